package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cajapos/internal/apierror"
	"cajapos/internal/dto"
	"cajapos/internal/model"
	"cajapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DevolucionService interface {
	RegistrarDevolucion(ctx context.Context, usuarioID uuid.UUID, req dto.RegistrarDevolucionRequest) (*dto.DevolucionResponse, error)
	ObtenerDevolucion(ctx context.Context, id uuid.UUID) (*dto.DevolucionResponse, error)
	ListarPorVenta(ctx context.Context, ventaID uuid.UUID) ([]dto.DevolucionResponse, error)
}

type devolucionService struct {
	tx         *repository.TxRunner
	repos      Repos
	inventario InventarioService
	pol        Politicas
}

func NewDevolucionService(tx *repository.TxRunner, repos Repos, inventario InventarioService, pol Politicas) DevolucionService {
	return &devolucionService{tx: tx, repos: repos, inventario: inventario, pol: pol}
}

type lineaDevolucion struct {
	articuloID uuid.UUID
	cantidad   int
}

// ── RegistrarDevolucion ───────────────────────────────────────────────────────
// The sale row is locked FOR UPDATE, so two returns against the same sale run
// one after the other and each sees the quantities the other returned. Every
// line is checked before the first stock increment.

func (s *devolucionService) RegistrarDevolucion(ctx context.Context, usuarioID uuid.UUID, req dto.RegistrarDevolucionRequest) (*dto.DevolucionResponse, error) {
	ventaID, lineas, err := validarDevolucion(req)
	if err != nil {
		return nil, err
	}

	dev := model.Devolucion{
		ID:        uuid.New(),
		VentaID:   ventaID,
		Motivo:    strings.TrimSpace(req.Motivo),
		UsuarioID: usuarioID,
	}

	txErr := s.tx.Run(ctx, "registrar_devolucion", func(tx *gorm.DB) error {
		if err := s.repos.Caja.LockCompartidoTx(tx); err != nil {
			return fmt.Errorf("bloquear caja: %w", err)
		}
		venta, err := s.repos.Ventas.LockTx(tx, ventaID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierror.ReferenceNotFound("venta", ventaID)
		}
		if err != nil {
			return err
		}
		if venta.Anulada {
			return apierror.Validation("la venta esta anulada").With("venta_id", ventaID.String())
		}

		devuelto, err := s.repos.Devoluciones.DevueltoPorItemTx(tx, ventaID)
		if err != nil {
			return fmt.Errorf("sumar devoluciones previas: %w", err)
		}

		porArticulo := make(map[uuid.UUID]model.VentaItem, len(venta.Items))
		for _, it := range venta.Items {
			porArticulo[it.ArticuloID] = it
		}

		items := make([]model.DevolucionItem, 0, len(lineas))
		total := decimal.Zero
		for _, l := range lineas {
			it, vendido := porArticulo[l.articuloID]
			if !vendido {
				return apierror.OverReturn(ventaID.String(), l.articuloID.String(), 0, 0, l.cantidad)
			}
			ya := devuelto[it.ID]
			if ya+l.cantidad > it.Cantidad {
				return apierror.OverReturn(ventaID.String(), l.articuloID.String(), it.Cantidad, ya, l.cantidad)
			}
			monto := MontoDevolucion(it, ya, l.cantidad)
			items = append(items, model.DevolucionItem{
				VentaItemID:    it.ID,
				ArticuloID:     l.articuloID,
				Cantidad:       l.cantidad,
				PrecioUnitario: it.PrecioUnitario,
				Total:          monto,
			})
			total = total.Add(monto)
		}

		ref := dev.ID
		for _, it := range items {
			mov := Movimiento{Tipo: model.MovDevolucion, Motivo: dev.Motivo, ReferenciaID: &ref}
			if err := s.inventario.IncrementarTx(tx, it.ArticuloID, it.Cantidad, mov); err != nil {
				return err
			}
		}

		dev.Fecha = s.pol.ahora()
		dev.MetodoPago = venta.MetodoPago
		dev.Contado = venta.Contado
		dev.Total = total
		dev.TotalBase = total.Mul(venta.TipoCambio).Round(escalaMoneda)
		dev.Items = items
		return s.repos.Devoluciones.CreateTx(tx, &dev)
	})
	if txErr != nil {
		return nil, txErr
	}

	log.Info().
		Str("devolucion_id", dev.ID.String()).
		Str("venta_id", ventaID.String()).
		Str("total", dev.Total.StringFixed(2)).
		Msg("devolucion registrada")
	return devolucionToResponse(&dev), nil
}

func validarDevolucion(req dto.RegistrarDevolucionRequest) (uuid.UUID, []lineaDevolucion, error) {
	fields := map[string]string{}
	ventaID, err := uuid.Parse(req.VentaID)
	if err != nil {
		fields["venta_id"] = "uuid invalido"
	}
	if strings.TrimSpace(req.Motivo) == "" {
		fields["motivo"] = "requerido"
	}
	if len(req.Items) == 0 {
		fields["items"] = "se requiere al menos una linea"
	}

	lineas := make([]lineaDevolucion, 0, len(req.Items))
	vistos := make(map[uuid.UUID]bool, len(req.Items))
	for i, it := range req.Items {
		campo := fmt.Sprintf("items[%d]", i)
		id, err := uuid.Parse(it.ArticuloID)
		if err != nil {
			fields[campo+".articulo_id"] = "uuid invalido"
			continue
		}
		if vistos[id] {
			fields[campo+".articulo_id"] = "articulo repetido en la devolucion"
			continue
		}
		vistos[id] = true
		if it.Cantidad <= 0 {
			fields[campo+".cantidad"] = "debe ser mayor a 0"
		}
		lineas = append(lineas, lineaDevolucion{articuloID: id, cantidad: it.Cantidad})
	}

	if len(fields) > 0 {
		return uuid.Nil, nil, apierror.ValidationFields(fields)
	}
	return ventaID, lineas, nil
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *devolucionService) ObtenerDevolucion(ctx context.Context, id uuid.UUID) (*dto.DevolucionResponse, error) {
	d, err := s.repos.Devoluciones.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierror.ReferenceNotFound("devolucion", id)
	}
	if err != nil {
		return nil, err
	}
	return devolucionToResponse(d), nil
}

func (s *devolucionService) ListarPorVenta(ctx context.Context, ventaID uuid.UUID) ([]dto.DevolucionResponse, error) {
	if _, err := s.repos.Ventas.FindByID(ctx, ventaID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.ReferenceNotFound("venta", ventaID)
		}
		return nil, err
	}
	rows, err := s.repos.Devoluciones.ListByVenta(ctx, ventaID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.DevolucionResponse, 0, len(rows))
	for i := range rows {
		out = append(out, *devolucionToResponse(&rows[i]))
	}
	return out, nil
}

func devolucionToResponse(d *model.Devolucion) *dto.DevolucionResponse {
	resp := &dto.DevolucionResponse{
		ID:         d.ID.String(),
		VentaID:    d.VentaID.String(),
		Fecha:      d.Fecha.Format(time.RFC3339),
		Motivo:     d.Motivo,
		UsuarioID:  d.UsuarioID.String(),
		MetodoPago: d.MetodoPago,
		Total:      d.Total,
		TotalBase:  d.TotalBase,
		Items:      make([]dto.ItemDevolucionResponse, 0, len(d.Items)),
	}
	for _, it := range d.Items {
		resp.Items = append(resp.Items, dto.ItemDevolucionResponse{
			ArticuloID:     it.ArticuloID.String(),
			VentaItemID:    it.VentaItemID.String(),
			Cantidad:       it.Cantidad,
			PrecioUnitario: it.PrecioUnitario,
			Total:          it.Total,
		})
	}
	return resp
}
