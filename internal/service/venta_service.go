package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
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

// Despachador enqueues the after-commit jobs. Enqueue failures never undo a
// committed sale or closing.
type Despachador interface {
	EnqueueTicket(ctx context.Context, ventaID uuid.UUID) error
	EnqueueCierre(ctx context.Context, cierreID uuid.UUID) error
}

// Politicas groups the ledger settings read from configuration.
type Politicas struct {
	Tasa         decimal.Decimal
	MonedaBase   string
	SerieDefecto string
	Numeracion   string // config.NumeracionSinHuecos | config.NumeracionConHuecos
	Devoluciones string // config.DevolucionesSoloCash | config.DevolucionesTodas
	InicioTurno  time.Time
	Reloj        func() time.Time
}

// PoliticasDesdeConfig builds the policies from the loaded configuration.
func PoliticasDesdeConfig(cfg *config.Config) Politicas {
	return Politicas{
		Tasa:         cfg.Tasa(),
		MonedaBase:   cfg.BaseCurrency,
		SerieDefecto: cfg.DefaultSeries,
		Numeracion:   cfg.NumberingPolicy,
		Devoluciones: cfg.CashReturnsPolicy,
		InicioTurno:  cfg.InicioTurno(),
	}
}

// ahora is truncated to the microsecond PostgreSQL stores, so a closing's
// window bounds compare exactly against the rows it read.
func (p Politicas) ahora() time.Time {
	if p.Reloj != nil {
		return p.Reloj().UTC().Truncate(time.Microsecond)
	}
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Repos bundles the repositories the processors share.
type Repos struct {
	Articulos    repository.ArticuloRepository
	Numeraciones repository.NumeracionRepository
	Ventas       repository.VentaRepository
	Devoluciones repository.DevolucionRepository
	Cierres      repository.CierreRepository
	Caja         repository.CajaRepository
	Monedas      repository.MonedaRepository
}

type VentaService interface {
	RegistrarVenta(ctx context.Context, vendedorID uuid.UUID, req dto.RegistrarVentaRequest) (*dto.VentaResponse, error)
	AnularVenta(ctx context.Context, id uuid.UUID, motivo string) error
	ObtenerVenta(ctx context.Context, id uuid.UUID) (*dto.VentaResponse, error)
	ListVentas(ctx context.Context, filter dto.VentaFilter) (*dto.VentaListResponse, error)
}

type ventaService struct {
	tx         *repository.TxRunner
	repos      Repos
	inventario InventarioService
	numeracion NumeracionService
	dispatcher Despachador
	pol        Politicas
}

func NewVentaService(
	tx *repository.TxRunner,
	repos Repos,
	inventario InventarioService,
	numeracion NumeracionService,
	dispatcher Despachador,
	pol Politicas,
) VentaService {
	return &ventaService{
		tx:         tx,
		repos:      repos,
		inventario: inventario,
		numeracion: numeracion,
		dispatcher: dispatcher,
		pol:        pol,
	}
}

var metodosPago = map[string]bool{
	model.MetodoEfectivo:      true,
	model.MetodoTarjeta:       true,
	model.MetodoTransferencia: true,
	model.MetodoOtro:          true,
}

// lineaVenta is a request line after input validation.
type lineaVenta struct {
	articuloID uuid.UUID
	cantidad   int
	precio     *decimal.Decimal
	descuento  decimal.Decimal
}

type ventaValidada struct {
	lineas    []lineaVenta
	clienteID *uuid.UUID
	moneda    string
	metodo    string
	contado   bool
	serie     string
	clave     *string
}

// ── RegistrarVenta ────────────────────────────────────────────────────────────
// One transaction:
//   1. shared lock on the drawer (a closing cannot cut the shift mid-sale)
//   2. catalog read, price resolution, discount bounds
//   3. guarded decrement per article, in id order
//   4. totals + invariant check
//   5. invoice number (gapless policy) and the sale write
// After commit the ticket job is enqueued best-effort.

func (s *ventaService) RegistrarVenta(ctx context.Context, vendedorID uuid.UUID, req dto.RegistrarVentaRequest) (*dto.VentaResponse, error) {
	in, err := s.validarVenta(req)
	if err != nil {
		return nil, err
	}

	if in.clave != nil {
		if existente, err := s.repos.Ventas.FindByClave(ctx, *in.clave); err == nil {
			log.Info().Str("clave", *in.clave).Str("venta_id", existente.ID.String()).Msg("venta idempotente: se devuelve la existente")
			return ventaToResponse(existente), nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	tipoCambio, err := s.resolverTipoCambio(ctx, in.moneda)
	if err != nil {
		return nil, err
	}

	// gaps_allowed: the number is committed before the sale; an aborted sale leaves a gap.
	var numeroPrevio int64
	if s.pol.Numeracion == config.NumeracionConHuecos {
		numeroPrevio, err = s.numeracion.IssueNext(ctx, in.serie)
		if err != nil {
			return nil, err
		}
	}

	venta := model.Venta{
		ID:                uuid.New(),
		Serie:             in.serie,
		ClienteID:         in.clienteID,
		VendedorID:        vendedorID,
		MonedaCodigo:      in.moneda,
		TipoCambio:        tipoCambio,
		MetodoPago:        in.metodo,
		Contado:           in.contado,
		TasaImpuesto:      s.pol.Tasa,
		ClaveIdempotencia: in.clave,
	}

	txErr := s.tx.Run(ctx, "registrar_venta", func(tx *gorm.DB) error {
		if err := s.repos.Caja.LockCompartidoTx(tx); err != nil {
			return fmt.Errorf("bloquear caja: %w", err)
		}
		venta.Fecha = s.pol.ahora()

		calculo, err := s.resolverLineas(tx, in.lineas)
		if err != nil {
			return err
		}

		orden := make([]int, len(in.lineas))
		for i := range orden {
			orden[i] = i
		}
		sort.Slice(orden, func(a, b int) bool {
			return in.lineas[orden[a]].articuloID.String() < in.lineas[orden[b]].articuloID.String()
		})
		ref := venta.ID
		for _, i := range orden {
			l := in.lineas[i]
			mov := Movimiento{Tipo: model.MovVenta, Motivo: "venta", ReferenciaID: &ref}
			if err := s.inventario.DecrementarTx(tx, l.articuloID, l.cantidad, mov); err != nil {
				return err
			}
		}

		tot := CalcularTotales(calculo, s.pol.Tasa, tipoCambio)
		venta.Subtotal = tot.Subtotal
		venta.Impuesto = tot.Impuesto
		venta.Total = tot.Total
		venta.TotalBase = tot.TotalBase
		venta.Items = make([]model.VentaItem, len(in.lineas))
		for i, l := range in.lineas {
			venta.Items[i] = model.VentaItem{
				VentaID:        venta.ID,
				ArticuloID:     l.articuloID,
				Cantidad:       l.cantidad,
				PrecioUnitario: calculo[i].PrecioUnitario,
				Descuento:      l.descuento,
				Monto:          tot.Montos[i],
			}
		}
		if err := VerificarTotales(&venta); err != nil {
			return err
		}

		if s.pol.Numeracion == config.NumeracionConHuecos {
			venta.NumeroFactura = numeroPrevio
		} else {
			venta.NumeroFactura, err = s.numeracion.IssueNextTx(tx, in.serie)
			if err != nil {
				return err
			}
		}

		return s.repos.Ventas.CreateTx(tx, &venta)
	})
	if txErr != nil {
		// Two requests raced with the same key: the loser returns the winner's sale.
		if in.clave != nil && errors.Is(txErr, gorm.ErrDuplicatedKey) {
			if existente, err := s.repos.Ventas.FindByClave(ctx, *in.clave); err == nil {
				return ventaToResponse(existente), nil
			}
		}
		return nil, txErr
	}

	log.Info().
		Str("venta_id", venta.ID.String()).
		Str("serie", venta.Serie).
		Int64("numero", venta.NumeroFactura).
		Str("total", venta.Total.StringFixed(2)).
		Msg("venta registrada")

	if s.dispatcher != nil {
		if err := s.dispatcher.EnqueueTicket(ctx, venta.ID); err != nil {
			log.Warn().Err(err).Str("venta_id", venta.ID.String()).Msg("no se pudo encolar el ticket")
		}
	}

	return ventaToResponse(&venta), nil
}

// validarVenta rejects malformed input before any transaction is opened.
func (s *ventaService) validarVenta(req dto.RegistrarVentaRequest) (*ventaValidada, error) {
	fields := map[string]string{}
	if len(req.Items) == 0 {
		fields["items"] = "se requiere al menos una linea"
	}

	in := &ventaValidada{
		moneda:  strings.ToUpper(strings.TrimSpace(req.Moneda)),
		metodo:  req.MetodoPago,
		contado: true,
		serie:   strings.TrimSpace(req.Serie),
		clave:   req.ClaveIdempotencia,
	}
	if in.moneda == "" {
		in.moneda = s.pol.MonedaBase
	}
	if in.serie == "" {
		in.serie = s.pol.SerieDefecto
	}
	if req.Contado != nil {
		in.contado = *req.Contado
	}
	if !metodosPago[req.MetodoPago] {
		fields["metodo_pago"] = "debe ser efectivo, tarjeta, transferencia u otro"
	}
	if req.ClienteID != nil && *req.ClienteID != "" {
		id, err := uuid.Parse(*req.ClienteID)
		if err != nil {
			fields["cliente_id"] = "uuid invalido"
		} else {
			in.clienteID = &id
		}
	}
	if in.clave != nil && strings.TrimSpace(*in.clave) == "" {
		in.clave = nil
	}

	vistos := make(map[uuid.UUID]bool, len(req.Items))
	for i, it := range req.Items {
		campo := fmt.Sprintf("items[%d]", i)
		id, err := uuid.Parse(it.ArticuloID)
		if err != nil {
			fields[campo+".articulo_id"] = "uuid invalido"
			continue
		}
		if vistos[id] {
			fields[campo+".articulo_id"] = "articulo repetido en la venta"
			continue
		}
		vistos[id] = true
		if it.Cantidad <= 0 {
			fields[campo+".cantidad"] = "debe ser mayor a 0"
		}
		if it.PrecioUnitario != nil && (it.PrecioUnitario.IsNegative() || !maxDosDecimales(*it.PrecioUnitario)) {
			fields[campo+".precio_unitario"] = "debe ser >= 0 con hasta dos decimales"
		}
		if it.Descuento.IsNegative() || !maxDosDecimales(it.Descuento) {
			fields[campo+".descuento"] = "debe ser >= 0 con hasta dos decimales"
		}
		if it.PrecioUnitario != nil && it.Descuento.GreaterThan(it.PrecioUnitario.Mul(decimal.NewFromInt(int64(it.Cantidad)))) {
			fields[campo+".descuento"] = "no puede superar cantidad x precio"
		}
		in.lineas = append(in.lineas, lineaVenta{
			articuloID: id,
			cantidad:   it.Cantidad,
			precio:     it.PrecioUnitario,
			descuento:  it.Descuento,
		})
	}

	if len(fields) > 0 {
		return nil, apierror.ValidationFields(fields)
	}
	return in, nil
}

func (s *ventaService) resolverTipoCambio(ctx context.Context, moneda string) (decimal.Decimal, error) {
	if moneda == s.pol.MonedaBase {
		return decimal.NewFromInt(1), nil
	}
	m, err := s.repos.Monedas.FindByCodigo(ctx, moneda)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !m.Activo) {
		return decimal.Zero, apierror.ReferenceNotFound("moneda", moneda)
	}
	if err != nil {
		return decimal.Zero, err
	}
	if !m.TipoCambio.IsPositive() {
		return decimal.Zero, apierror.Validation("tipo de cambio invalido").With("moneda", moneda)
	}
	return m.TipoCambio, nil
}

// resolverLineas reads the catalog inside the transaction and fixes the unit
// price of each line. It runs before the first decrement.
func (s *ventaService) resolverLineas(tx *gorm.DB, lineas []lineaVenta) ([]LineaCalculo, error) {
	ids := make([]uuid.UUID, len(lineas))
	for i, l := range lineas {
		ids[i] = l.articuloID
	}
	articulos, err := s.repos.Articulos.FindByIDsTx(tx, ids)
	if err != nil {
		return nil, fmt.Errorf("leer articulos: %w", err)
	}

	out := make([]LineaCalculo, len(lineas))
	for i, l := range lineas {
		a, ok := articulos[l.articuloID]
		if !ok || !a.Activo {
			return nil, apierror.ReferenceNotFound("articulo", l.articuloID)
		}
		precio := a.PrecioVenta
		if l.precio != nil {
			precio = *l.precio
		}
		if l.descuento.GreaterThan(precio.Mul(decimal.NewFromInt(int64(l.cantidad)))) {
			return nil, apierror.ValidationFields(map[string]string{
				fmt.Sprintf("items[%d].descuento", i): "no puede superar cantidad x precio",
			})
		}
		out[i] = LineaCalculo{Cantidad: l.cantidad, PrecioUnitario: precio, Descuento: l.descuento}
	}
	return out, nil
}

// ── AnularVenta ───────────────────────────────────────────────────────────────
// Only a sale of the open shift without returns can be voided; anything else
// is corrected with a return. Stock is restored in the same transaction.

func (s *ventaService) AnularVenta(ctx context.Context, id uuid.UUID, motivo string) error {
	if len(strings.TrimSpace(motivo)) < 5 {
		return apierror.ValidationFields(map[string]string{"motivo": "minimo 5 caracteres"})
	}

	var numero int64
	err := s.tx.Run(ctx, "anular_venta", func(tx *gorm.DB) error {
		if err := s.repos.Caja.LockCompartidoTx(tx); err != nil {
			return fmt.Errorf("bloquear caja: %w", err)
		}
		venta, err := s.repos.Ventas.LockTx(tx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierror.ReferenceNotFound("venta", id)
		}
		if err != nil {
			return err
		}
		numero = venta.NumeroFactura
		if venta.Anulada {
			return apierror.Validation("la venta ya esta anulada").With("venta_id", id.String())
		}

		n, err := s.repos.Devoluciones.CountByVentaTx(tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apierror.Validation("la venta tiene devoluciones; no se puede anular").With("venta_id", id.String())
		}

		ultimo, err := s.repos.Cierres.UltimoTx(tx)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if ultimo != nil && !venta.Fecha.After(ultimo.Fecha) {
			return apierror.Validation("la venta pertenece a un turno ya cerrado").
				With("venta_id", id.String()).
				With("cierre_id", ultimo.ID.String())
		}

		ref := venta.ID
		for _, it := range venta.Items {
			mov := Movimiento{Tipo: model.MovAnulacion, Motivo: motivo, ReferenciaID: &ref}
			if err := s.inventario.IncrementarTx(tx, it.ArticuloID, it.Cantidad, mov); err != nil {
				return err
			}
		}
		return s.repos.Ventas.AnularTx(tx, id, motivo, s.pol.ahora())
	})
	if err != nil {
		return err
	}

	log.Info().Str("venta_id", id.String()).Int64("numero", numero).Str("motivo", motivo).Msg("venta anulada")
	return nil
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *ventaService) ObtenerVenta(ctx context.Context, id uuid.UUID) (*dto.VentaResponse, error) {
	v, err := s.repos.Ventas.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierror.ReferenceNotFound("venta", id)
	}
	if err != nil {
		return nil, err
	}
	return ventaToResponse(v), nil
}

// ListVentas returns a paginated list of sales, newest first.
func (s *ventaService) ListVentas(ctx context.Context, filter dto.VentaFilter) (*dto.VentaListResponse, error) {
	f := repository.VentaFiltro{Serie: filter.Serie, Estado: filter.Estado, Page: filter.Page, Limit: filter.Limit}
	switch f.Estado {
	case "", "all", "vigente", "anulada":
	default:
		return nil, apierror.ValidationFields(map[string]string{"estado": "vigente | anulada | all"})
	}
	if filter.Desde != "" {
		t, err := parseFecha(filter.Desde, false)
		if err != nil {
			return nil, apierror.ValidationFields(map[string]string{"desde": "fecha invalida"})
		}
		f.Desde = &t
	}
	if filter.Hasta != "" {
		t, err := parseFecha(filter.Hasta, true)
		if err != nil {
			return nil, apierror.ValidationFields(map[string]string{"hasta": "fecha invalida"})
		}
		f.Hasta = &t
	}

	ventas, total, err := s.repos.Ventas.List(ctx, f)
	if err != nil {
		return nil, err
	}
	data := make([]dto.VentaResponse, 0, len(ventas))
	for i := range ventas {
		data = append(data, *ventaToResponse(&ventas[i]))
	}
	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return &dto.VentaListResponse{Data: data, Total: total, Page: page, Limit: limit}, nil
}

// parseFecha accepts YYYY-MM-DD or RFC3339. A bare date used as an upper
// bound covers the whole day.
func parseFecha(s string, finDeDia bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	if finDeDia {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t.UTC(), nil
}

func ventaToResponse(v *model.Venta) *dto.VentaResponse {
	resp := &dto.VentaResponse{
		ID:              v.ID.String(),
		Serie:           v.Serie,
		NumeroFactura:   v.NumeroFactura,
		Fecha:           v.Fecha.Format(time.RFC3339),
		VendedorID:      v.VendedorID.String(),
		Moneda:          v.MonedaCodigo,
		TipoCambio:      v.TipoCambio,
		MetodoPago:      v.MetodoPago,
		Contado:         v.Contado,
		Subtotal:        v.Subtotal,
		TasaImpuesto:    v.TasaImpuesto,
		Impuesto:        v.Impuesto,
		Total:           v.Total,
		TotalBase:       v.TotalBase,
		Anulada:         v.Anulada,
		MotivoAnulacion: v.MotivoAnulacion,
		Items:           make([]dto.ItemVentaResponse, 0, len(v.Items)),
	}
	if v.ClienteID != nil {
		c := v.ClienteID.String()
		resp.ClienteID = &c
	}
	if v.AnuladaAt != nil {
		a := v.AnuladaAt.Format(time.RFC3339)
		resp.AnuladaAt = &a
	}
	for _, it := range v.Items {
		resp.Items = append(resp.Items, dto.ItemVentaResponse{
			ID:             it.ID.String(),
			ArticuloID:     it.ArticuloID.String(),
			Cantidad:       it.Cantidad,
			PrecioUnitario: it.PrecioUnitario,
			Descuento:      it.Descuento,
			Monto:          it.Monto,
		})
	}
	return resp
}
