package service

import (
	"context"
	"errors"
	"time"

	"cajapos/internal/apierror"
	"cajapos/internal/dto"
	"cajapos/internal/model"
	"cajapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// PrecioService records price changes. History rows are append-only.
type PrecioService interface {
	ActualizarPrecio(ctx context.Context, articuloID, usuarioID uuid.UUID, req dto.ActualizarPrecioRequest) (*dto.HistorialPrecioItem, error)
	Historial(ctx context.Context, articuloID uuid.UUID, page, limit int) (*dto.HistorialPrecioListResponse, error)
}

type precioService struct {
	tx        *repository.TxRunner
	articulos repository.ArticuloRepository
	historial repository.HistorialPrecioRepository
}

func NewPrecioService(tx *repository.TxRunner, articulos repository.ArticuloRepository, historial repository.HistorialPrecioRepository) PrecioService {
	return &precioService{tx: tx, articulos: articulos, historial: historial}
}

// ActualizarPrecio locks the article row, so concurrent edits produce a
// history chain where each row's "antes" is the previous row's "despues".
// It returns nil when neither price actually changes.
func (s *precioService) ActualizarPrecio(ctx context.Context, articuloID, usuarioID uuid.UUID, req dto.ActualizarPrecioRequest) (*dto.HistorialPrecioItem, error) {
	if req.PrecioVenta == nil && req.PrecioCosto == nil {
		return nil, apierror.Validation("se requiere precio_venta o precio_costo")
	}
	fields := map[string]string{}
	if req.PrecioVenta != nil && (req.PrecioVenta.IsNegative() || !maxDosDecimales(*req.PrecioVenta)) {
		fields["precio_venta"] = "debe ser >= 0 con hasta dos decimales"
	}
	if req.PrecioCosto != nil && (req.PrecioCosto.IsNegative() || !maxDosDecimales(*req.PrecioCosto)) {
		fields["precio_costo"] = "debe ser >= 0 con hasta dos decimales"
	}
	if len(fields) > 0 {
		return nil, apierror.ValidationFields(fields)
	}
	motivo := req.Motivo
	if motivo == "" {
		motivo = "manual"
	}

	var h *model.HistorialPrecio
	err := s.tx.Run(ctx, "actualizar_precio", func(tx *gorm.DB) error {
		a, err := s.articulos.LockTx(tx, articuloID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierror.ReferenceNotFound("articulo", articuloID)
		}
		if err != nil {
			return err
		}

		venta, costo := a.PrecioVenta, a.PrecioCosto
		if req.PrecioVenta != nil {
			venta = *req.PrecioVenta
		}
		if req.PrecioCosto != nil {
			costo = *req.PrecioCosto
		}
		if venta.Equal(a.PrecioVenta) && costo.Equal(a.PrecioCosto) {
			return nil
		}

		if err := s.articulos.UpdatePreciosTx(tx, articuloID, costo, venta); err != nil {
			return err
		}
		h = &model.HistorialPrecio{
			ArticuloID:   articuloID,
			CostoAntes:   a.PrecioCosto,
			CostoDespues: costo,
			VentaAntes:   a.PrecioVenta,
			VentaDespues: venta,
			Motivo:       motivo,
			UsuarioID:    usuarioID,
		}
		return s.historial.CreateTx(tx, h)
	})
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, nil
	}

	log.Info().
		Str("articulo_id", articuloID.String()).
		Str("venta_antes", h.VentaAntes.StringFixed(2)).
		Str("venta_despues", h.VentaDespues.StringFixed(2)).
		Msg("precio actualizado")
	item := historialToItem(h)
	return &item, nil
}

func (s *precioService) Historial(ctx context.Context, articuloID uuid.UUID, page, limit int) (*dto.HistorialPrecioListResponse, error) {
	if _, err := s.articulos.FindByID(ctx, articuloID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.ReferenceNotFound("articulo", articuloID)
		}
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	rows, total, err := s.historial.ListByArticulo(ctx, articuloID, page, limit)
	if err != nil {
		return nil, err
	}
	data := make([]dto.HistorialPrecioItem, 0, len(rows))
	for i := range rows {
		data = append(data, historialToItem(&rows[i]))
	}
	return &dto.HistorialPrecioListResponse{Data: data, Total: total, Page: page, Limit: limit}, nil
}

func historialToItem(h *model.HistorialPrecio) dto.HistorialPrecioItem {
	return dto.HistorialPrecioItem{
		ID:           h.ID.String(),
		ArticuloID:   h.ArticuloID.String(),
		CostoAntes:   h.CostoAntes,
		CostoDespues: h.CostoDespues,
		VentaAntes:   h.VentaAntes,
		VentaDespues: h.VentaDespues,
		Motivo:       h.Motivo,
		UsuarioID:    h.UsuarioID.String(),
		CreatedAt:    h.CreatedAt.Format(time.RFC3339),
	}
}
