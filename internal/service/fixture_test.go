package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"cajapos/internal/apierror"
	"cajapos/internal/config"
	"cajapos/internal/dto"
	"cajapos/internal/model"
	"cajapos/internal/repository"
	"cajapos/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// reloj is a deterministic clock: every reading advances one second, unless
// the step is zero.
type reloj struct {
	mu   sync.Mutex
	t    time.Time
	paso time.Duration
}

func (r *reloj) ahora() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.t
	r.t = r.t.Add(r.paso)
	return t
}

type despachadorFake struct {
	mu      sync.Mutex
	tickets []uuid.UUID
	cierres []uuid.UUID
}

func (d *despachadorFake) EnqueueTicket(_ context.Context, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tickets = append(d.tickets, id)
	return nil
}

func (d *despachadorFake) EnqueueCierre(_ context.Context, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cierres = append(d.cierres, id)
	return nil
}

type fixture struct {
	db           *gorm.DB
	repos        Repos
	inventario   InventarioService
	numeracion   NumeracionService
	ventas       VentaService
	devoluciones DevolucionService
	cierres      CierreService
	precios      PrecioService
	desp         *despachadorFake
	reloj        *reloj
	usuario      uuid.UUID
}

func nuevaFixture(t *testing.T, ajustes ...func(*Politicas)) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	clk := &reloj{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), paso: time.Second}
	pol := Politicas{
		Tasa:         decimal.RequireFromString("0.15"),
		MonedaBase:   "NIO",
		SerieDefecto: "A",
		Numeracion:   config.NumeracionSinHuecos,
		Devoluciones: config.DevolucionesSoloCash,
		InicioTurno:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Reloj:        clk.ahora,
	}
	for _, a := range ajustes {
		a(&pol)
	}

	tx := repository.NewTxRunner(db, 0)
	repos := Repos{
		Articulos:    repository.NewArticuloRepository(db),
		Numeraciones: repository.NewNumeracionRepository(db),
		Ventas:       repository.NewVentaRepository(db),
		Devoluciones: repository.NewDevolucionRepository(db),
		Cierres:      repository.NewCierreRepository(db),
		Caja:         repository.NewCajaRepository(),
		Monedas:      repository.NewMonedaRepository(db),
	}
	desp := &despachadorFake{}
	inv := NewInventarioService(tx, repos.Articulos, repository.NewMovimientoStockRepository(db))
	num := NewNumeracionService(tx, repos.Numeraciones)
	return &fixture{
		db:           db,
		repos:        repos,
		inventario:   inv,
		numeracion:   num,
		ventas:       NewVentaService(tx, repos, inv, num, desp, pol),
		devoluciones: NewDevolucionService(tx, repos, inv, pol),
		cierres:      NewCierreService(tx, repos, desp, pol),
		precios:      NewPrecioService(tx, repos.Articulos, repository.NewHistorialPrecioRepository(db)),
		desp:         desp,
		reloj:        clk,
		usuario:      uuid.New(),
	}
}

func sinImpuesto(p *Politicas) { p.Tasa = decimal.Zero }

func item(a model.Articulo, cantidad int) dto.ItemVentaRequest {
	return dto.ItemVentaRequest{ArticuloID: a.ID.String(), Cantidad: cantidad}
}

func (f *fixture) vender(t *testing.T, metodo string, items ...dto.ItemVentaRequest) *dto.VentaResponse {
	t.Helper()
	v, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
		Items:      items,
		MetodoPago: metodo,
	})
	require.NoError(t, err)
	return v
}

func (f *fixture) devolver(t *testing.T, venta *dto.VentaResponse, a model.Articulo, cantidad int) (*dto.DevolucionResponse, error) {
	t.Helper()
	return f.devoluciones.RegistrarDevolucion(context.Background(), f.usuario, dto.RegistrarDevolucionRequest{
		VentaID: venta.ID,
		Motivo:  "cliente desistio",
		Items:   []dto.ItemDevolucionRequest{{ArticuloID: a.ID.String(), Cantidad: cantidad}},
	})
}

func (f *fixture) correlativo(t *testing.T, serie string) int64 {
	t.Helper()
	var n model.Numeracion
	require.NoError(t, f.db.First(&n, "serie = ?", serie).Error)
	return n.Correlativo
}

func requireKind(t *testing.T, err error, kind apierror.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apierror.KindOf(err), "error: %v", err)
}

var dec = testutil.Dec

func mustUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}

func strPtr(s string) *string { return &s }
