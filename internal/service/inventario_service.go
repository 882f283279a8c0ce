package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cajapos/internal/apierror"
	"cajapos/internal/dto"
	"cajapos/internal/model"
	"cajapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Movimiento describes why stock changed, for the audit row written with it.
type Movimiento struct {
	Tipo         string // model.MovVenta | MovDevolucion | MovAnulacion | MovAjuste
	Motivo       string
	ReferenciaID *uuid.UUID
}

// InventarioService is the stock ledger. The Tx methods run inside a caller's
// transaction and never open their own.
type InventarioService interface {
	// DecrementarTx fails with InsufficientStock when existencia < cantidad and
	// with ReferenceNotFound when the article does not exist.
	DecrementarTx(tx *gorm.DB, articuloID uuid.UUID, cantidad int, mov Movimiento) error
	IncrementarTx(tx *gorm.DB, articuloID uuid.UUID, cantidad int, mov Movimiento) error

	Ajustar(ctx context.Context, articuloID uuid.UUID, req dto.AjusteStockRequest) (*dto.AjusteStockResponse, error)
	ObtenerAlertas(ctx context.Context) ([]dto.AlertaStockResponse, error)
	// Movimientos lists the audit trail of one article, newest first.
	Movimientos(ctx context.Context, articuloID uuid.UUID, filter dto.MovimientoStockFilter) (*dto.MovimientoStockListResponse, error)
}

type inventarioService struct {
	tx          *repository.TxRunner
	repo        repository.ArticuloRepository
	movimientos repository.MovimientoStockRepository
}

func NewInventarioService(
	tx *repository.TxRunner,
	repo repository.ArticuloRepository,
	movimientos repository.MovimientoStockRepository,
) InventarioService {
	return &inventarioService{tx: tx, repo: repo, movimientos: movimientos}
}

// ── DecrementarTx ─────────────────────────────────────────────────────────────

func (s *inventarioService) DecrementarTx(tx *gorm.DB, articuloID uuid.UUID, cantidad int, mov Movimiento) error {
	if cantidad <= 0 {
		return apierror.Validation("la cantidad debe ser mayor a 0").With("articulo_id", articuloID.String())
	}

	n, err := s.repo.DecrementTx(tx, articuloID, cantidad)
	if err != nil {
		return fmt.Errorf("decrementar stock: %w", err)
	}
	if n == 0 {
		disponible, err := s.repo.ExistenciaTx(tx, articuloID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierror.ReferenceNotFound("articulo", articuloID)
		}
		if err != nil {
			return fmt.Errorf("leer existencia: %w", err)
		}
		return apierror.InsufficientStock(articuloID.String(), cantidad, disponible)
	}

	return s.registrarMovimiento(tx, articuloID, -cantidad, mov)
}

// ── IncrementarTx ─────────────────────────────────────────────────────────────

func (s *inventarioService) IncrementarTx(tx *gorm.DB, articuloID uuid.UUID, cantidad int, mov Movimiento) error {
	if cantidad <= 0 {
		return apierror.Validation("la cantidad debe ser mayor a 0").With("articulo_id", articuloID.String())
	}

	n, err := s.repo.IncrementTx(tx, articuloID, cantidad)
	if err != nil {
		return fmt.Errorf("incrementar stock: %w", err)
	}
	if n == 0 {
		return apierror.ReferenceNotFound("articulo", articuloID)
	}

	return s.registrarMovimiento(tx, articuloID, cantidad, mov)
}

// registrarMovimiento reads the post-update stock, which the row lock taken by
// the UPDATE keeps stable until commit, and derives the previous value from it.
func (s *inventarioService) registrarMovimiento(tx *gorm.DB, articuloID uuid.UUID, delta int, mov Movimiento) error {
	nuevo, err := s.repo.ExistenciaTx(tx, articuloID)
	if err != nil {
		return fmt.Errorf("leer existencia: %w", err)
	}
	m := &model.MovimientoStock{
		ArticuloID:    articuloID,
		Tipo:          mov.Tipo,
		Cantidad:      delta,
		StockAnterior: nuevo - delta,
		StockNuevo:    nuevo,
		Motivo:        mov.Motivo,
		ReferenciaID:  mov.ReferenciaID,
	}
	if err := s.movimientos.CreateTx(tx, m); err != nil {
		return fmt.Errorf("registrar movimiento: %w", err)
	}
	return nil
}

// ── Ajustar ───────────────────────────────────────────────────────────────────
// Manual correction after a physical count. Negative deltas go through the
// same guarded decrement, so an adjustment can never drive stock below zero.

func (s *inventarioService) Ajustar(ctx context.Context, articuloID uuid.UUID, req dto.AjusteStockRequest) (*dto.AjusteStockResponse, error) {
	if req.Delta == 0 {
		return nil, apierror.ValidationFields(map[string]string{"delta": "no puede ser 0"})
	}

	mov := Movimiento{Tipo: model.MovAjuste, Motivo: req.Motivo}
	var resp dto.AjusteStockResponse
	err := s.tx.Run(ctx, "ajustar_stock", func(tx *gorm.DB) error {
		var err error
		if req.Delta < 0 {
			err = s.DecrementarTx(tx, articuloID, -req.Delta, mov)
		} else {
			err = s.IncrementarTx(tx, articuloID, req.Delta, mov)
		}
		if err != nil {
			return err
		}
		nuevo, err := s.repo.ExistenciaTx(tx, articuloID)
		if err != nil {
			return err
		}
		resp = dto.AjusteStockResponse{
			ArticuloID:    articuloID.String(),
			StockAnterior: nuevo - req.Delta,
			StockNuevo:    nuevo,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("articulo_id", articuloID.String()).
		Int("delta", req.Delta).
		Int("stock_nuevo", resp.StockNuevo).
		Msg("stock ajustado")
	return &resp, nil
}

// ── ObtenerAlertas ────────────────────────────────────────────────────────────

func (s *inventarioService) ObtenerAlertas(ctx context.Context) ([]dto.AlertaStockResponse, error) {
	rows, err := s.repo.ListBajoMinimo(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.AlertaStockResponse, 0, len(rows))
	for _, a := range rows {
		out = append(out, dto.AlertaStockResponse{
			ArticuloID:  a.ID.String(),
			Codigo:      a.Codigo,
			Nombre:      a.Nombre,
			Existencia:  a.Existencia,
			StockMinimo: a.StockMinimo,
			Faltante:    a.StockMinimo - a.Existencia,
		})
	}
	return out, nil
}

// ── Movimientos ───────────────────────────────────────────────────────────────

func (s *inventarioService) Movimientos(ctx context.Context, articuloID uuid.UUID, filter dto.MovimientoStockFilter) (*dto.MovimientoStockListResponse, error) {
	if _, err := s.repo.FindByID(ctx, articuloID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.ReferenceNotFound("articulo", articuloID)
		}
		return nil, err
	}
	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	repoFilter := repository.MovimientoStockFilter{
		ArticuloID: &articuloID,
		Tipo:       filter.Tipo,
		Page:       page,
		Limit:      limit,
	}
	if filter.ReferenciaID != "" {
		ref, err := uuid.Parse(filter.ReferenciaID)
		if err != nil {
			return nil, apierror.ValidationFields(map[string]string{"referencia_id": "uuid invalido"})
		}
		repoFilter.ReferenciaID = &ref
	}
	rows, total, err := s.movimientos.List(ctx, repoFilter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.MovimientoStockResponse, 0, len(rows))
	for _, m := range rows {
		r := dto.MovimientoStockResponse{
			ID:            m.ID.String(),
			Tipo:          m.Tipo,
			Cantidad:      m.Cantidad,
			StockAnterior: m.StockAnterior,
			StockNuevo:    m.StockNuevo,
			Motivo:        m.Motivo,
			CreatedAt:     m.CreatedAt.Format(time.RFC3339),
		}
		if m.ReferenciaID != nil {
			ref := m.ReferenciaID.String()
			r.ReferenciaID = &ref
		}
		data = append(data, r)
	}
	return &dto.MovimientoStockListResponse{Data: data, Total: total, Page: page, Limit: limit}, nil
}
