package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cajapos/internal/apierror"
	"cajapos/internal/config"
	"cajapos/internal/dto"
	"cajapos/internal/model"
	"cajapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CierreService reconciles the drawer. A shift has no row of its own: it is
// the window between the last closing and now.
type CierreService interface {
	Cerrar(ctx context.Context, usuarioID uuid.UUID, req dto.CerrarCajaRequest) (*dto.CierreResponse, error)
	Ultimo(ctx context.Context) (*dto.CierreResponse, error)
	Listar(ctx context.Context, filter dto.CierreFilter) (*dto.CierreListResponse, error)
	// Previsualizar computes the closing of the open shift without persisting it.
	// A nil contado assumes the drawer holds exactly the expected cash.
	Previsualizar(ctx context.Context, contado *decimal.Decimal) (*dto.CierreResponse, error)
}

type cierreService struct {
	tx         *repository.TxRunner
	repos      Repos
	dispatcher Despachador
	pol        Politicas
}

func NewCierreService(tx *repository.TxRunner, repos Repos, dispatcher Despachador, pol Politicas) CierreService {
	return &cierreService{tx: tx, repos: repos, dispatcher: dispatcher, pol: pol}
}

// ── Cerrar ────────────────────────────────────────────────────────────────────
// The exclusive drawer lock waits for in-flight sales and returns and blocks
// new ones until commit, so the window read below is complete. Two closings
// racing for the same window collide on the unique desde.

func (s *cierreService) Cerrar(ctx context.Context, usuarioID uuid.UUID, req dto.CerrarCajaRequest) (*dto.CierreResponse, error) {
	if req.EfectivoContado.IsNegative() || !maxDosDecimales(req.EfectivoContado) {
		return nil, apierror.ValidationFields(map[string]string{"efectivo_contado": "debe ser >= 0 con hasta dos decimales"})
	}

	var cierre *model.CierreCaja
	err := s.tx.Run(ctx, "cerrar_caja", func(tx *gorm.DB) error {
		if err := s.repos.Caja.LockExclusivoTx(tx); err != nil {
			return fmt.Errorf("bloquear caja: %w", err)
		}
		c, err := s.calcular(tx, req.EfectivoContado, req.FondoInicial, s.pol.ahora())
		if err != nil {
			return err
		}

		if c.Clasificacion == "critico" && (req.Observaciones == nil || strings.TrimSpace(*req.Observaciones) == "") {
			return apierror.Validation("desvio critico: se requieren observaciones").
				With("diferencia", c.Diferencia.StringFixed(2))
		}
		c.FondoSiguiente = c.FondoInicial
		if req.FondoSiguiente != nil {
			c.FondoSiguiente = req.FondoSiguiente.Round(escalaMoneda)
		}
		if c.FondoSiguiente.IsNegative() {
			return apierror.ValidationFields(map[string]string{"fondo_siguiente": "no puede ser negativo"})
		}
		if c.FondoSiguiente.GreaterThan(c.EfectivoContado) {
			return apierror.ValidationFields(map[string]string{"fondo_siguiente": "no puede superar el efectivo contado"})
		}
		c.Observaciones = req.Observaciones
		c.UsuarioID = usuarioID

		if err := s.repos.Cierres.CreateTx(tx, c); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apierror.Conflict("el turno ya fue cerrado por otra operacion", err)
			}
			return err
		}
		cierre = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("cierre_id", cierre.ID.String()).
		Time("desde", cierre.Desde).
		Time("hasta", cierre.Fecha).
		Str("esperado", cierre.EfectivoEsperado.StringFixed(2)).
		Str("diferencia", cierre.Diferencia.StringFixed(2)).
		Str("clasificacion", cierre.Clasificacion).
		Msg("caja cerrada")

	if s.dispatcher != nil {
		if err := s.dispatcher.EnqueueCierre(ctx, cierre.ID); err != nil {
			log.Warn().Err(err).Str("cierre_id", cierre.ID.String()).Msg("no se pudo encolar el reporte de cierre")
		}
	}
	return cierreToResponse(cierre), nil
}

// calcular aggregates the window (last closing, hasta] into an unsaved closing.
func (s *cierreService) calcular(tx *gorm.DB, contado decimal.Decimal, fondo *decimal.Decimal, hasta time.Time) (*model.CierreCaja, error) {
	ultimo, err := s.repos.Cierres.UltimoTx(tx)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("leer ultimo cierre: %w", err)
	}

	c := &model.CierreCaja{
		ID:              uuid.New(),
		Desde:           s.pol.InicioTurno,
		Fecha:           hasta,
		EfectivoContado: contado.Round(escalaMoneda),
	}
	if ultimo != nil {
		c.Desde = ultimo.Fecha
		c.FondoInicial = ultimo.FondoSiguiente
	}
	if fondo != nil {
		if fondo.IsNegative() {
			return nil, apierror.ValidationFields(map[string]string{"fondo_inicial": "no puede ser negativo"})
		}
		c.FondoInicial = fondo.Round(escalaMoneda)
	}
	if !c.Fecha.After(c.Desde) {
		return nil, apierror.Conflict("el turno se cerro en este mismo instante", nil).
			With("desde", c.Desde.Format(time.RFC3339Nano))
	}

	ventas, err := s.repos.Ventas.ListVigentesTx(tx, c.Desde, c.Fecha)
	if err != nil {
		return nil, fmt.Errorf("leer ventas del turno: %w", err)
	}
	for _, v := range ventas {
		c.CantidadVentas++
		c.VentasBrutas = c.VentasBrutas.Add(v.TotalBase)
		if !v.Contado {
			c.VentasCredito = c.VentasCredito.Add(v.TotalBase)
			continue
		}
		switch v.MetodoPago {
		case model.MetodoEfectivo:
			c.VentasEfectivo = c.VentasEfectivo.Add(v.TotalBase)
		case model.MetodoTarjeta:
			c.VentasTarjeta = c.VentasTarjeta.Add(v.TotalBase)
		case model.MetodoTransferencia:
			c.VentasTransferencia = c.VentasTransferencia.Add(v.TotalBase)
		default:
			c.VentasOtro = c.VentasOtro.Add(v.TotalBase)
		}
	}

	devoluciones, err := s.repos.Devoluciones.ListEnVentanaTx(tx, c.Desde, c.Fecha)
	if err != nil {
		return nil, fmt.Errorf("leer devoluciones del turno: %w", err)
	}
	for _, d := range devoluciones {
		c.CantidadDevoluciones++
		c.DevolucionesTotal = c.DevolucionesTotal.Add(d.TotalBase)
		if s.reduceEfectivo(d) {
			c.DevolucionesEfectivo = c.DevolucionesEfectivo.Add(d.TotalBase)
		}
	}

	c.EfectivoEsperado = c.FondoInicial.Add(c.VentasEfectivo).Sub(c.DevolucionesEfectivo)
	c.Diferencia = c.EfectivoContado.Sub(c.EfectivoEsperado)
	c.Clasificacion = clasificarDesvio(porcentaje(c.Diferencia, c.EfectivoEsperado))
	return c, nil
}

// reduceEfectivo applies CASH_RETURNS_POLICY. With cash_only, a refund leaves
// the drawer only when the sale was paid in cash on the spot; card and
// transfer refunds go back through their own rails.
func (s *cierreService) reduceEfectivo(d model.Devolucion) bool {
	if s.pol.Devoluciones == config.DevolucionesTodas {
		return true
	}
	return d.Contado && d.MetodoPago == model.MetodoEfectivo
}

// clasificarDesvio returns "normal" | "advertencia" | "critico"
// normal: |desvio| <= 1%, advertencia: <= 5%, critico: > 5%
func clasificarDesvio(pct decimal.Decimal) string {
	abs := pct.Abs()
	one := decimal.NewFromInt(1)
	five := decimal.NewFromInt(5)
	switch {
	case abs.LessThanOrEqual(one):
		return "normal"
	case abs.LessThanOrEqual(five):
		return "advertencia"
	default:
		return "critico"
	}
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *cierreService) Ultimo(ctx context.Context) (*dto.CierreResponse, error) {
	c, err := s.repos.Cierres.Ultimo(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierror.ReferenceNotFound("cierre", "ultimo")
	}
	if err != nil {
		return nil, err
	}
	return cierreToResponse(c), nil
}

func (s *cierreService) Listar(ctx context.Context, filter dto.CierreFilter) (*dto.CierreListResponse, error) {
	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	rows, total, err := s.repos.Cierres.List(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	data := make([]dto.CierreResponse, 0, len(rows))
	for i := range rows {
		data = append(data, *cierreToResponse(&rows[i]))
	}
	return &dto.CierreListResponse{Data: data, Total: total, Page: page, Limit: limit}, nil
}

func (s *cierreService) Previsualizar(ctx context.Context, contado *decimal.Decimal) (*dto.CierreResponse, error) {
	var c *model.CierreCaja
	err := s.tx.Run(ctx, "previsualizar_cierre", func(tx *gorm.DB) error {
		var err error
		c, err = s.calcular(tx, decimal.Zero, nil, s.pol.ahora())
		if err != nil {
			return err
		}
		if contado == nil {
			c.EfectivoContado = c.EfectivoEsperado
		} else {
			c.EfectivoContado = contado.Round(escalaMoneda)
		}
		c.Diferencia = c.EfectivoContado.Sub(c.EfectivoEsperado)
		c.Clasificacion = clasificarDesvio(porcentaje(c.Diferencia, c.EfectivoEsperado))
		c.FondoSiguiente = c.FondoInicial
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := cierreToResponse(c)
	resp.ID = ""
	resp.UsuarioID = ""
	return resp, nil
}

func cierreToResponse(c *model.CierreCaja) *dto.CierreResponse {
	resp := &dto.CierreResponse{
		ID:           c.ID.String(),
		Desde:        c.Desde.Format(time.RFC3339Nano),
		Fecha:        c.Fecha.Format(time.RFC3339Nano),
		FondoInicial: c.FondoInicial,
		Ventas: dto.MontosPorMetodo{
			Efectivo:      c.VentasEfectivo,
			Tarjeta:       c.VentasTarjeta,
			Transferencia: c.VentasTransferencia,
			Otro:          c.VentasOtro,
			Credito:       c.VentasCredito,
		},
		VentasBrutas:         c.VentasBrutas,
		CantidadVentas:       c.CantidadVentas,
		DevolucionesTotal:    c.DevolucionesTotal,
		DevolucionesEfectivo: c.DevolucionesEfectivo,
		CantidadDevoluciones: c.CantidadDevoluciones,
		EfectivoEsperado:     c.EfectivoEsperado,
		EfectivoContado:      c.EfectivoContado,
		Desvio: dto.DesvioResponse{
			Monto:         c.Diferencia,
			Porcentaje:    porcentaje(c.Diferencia, c.EfectivoEsperado),
			Clasificacion: c.Clasificacion,
		},
		FondoSiguiente: c.FondoSiguiente,
		Observaciones:  c.Observaciones,
	}
	if c.UsuarioID != uuid.Nil {
		resp.UsuarioID = c.UsuarioID.String()
	}
	return resp
}
