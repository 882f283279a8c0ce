package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"cajapos/internal/dto"
	"cajapos/internal/model"
	"cajapos/internal/repository"
	"cajapos/internal/testutil"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { backoffBase = time.Millisecond }

func envelope(t *testing.T, jobType string, payload interface{}) string {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(Job{Type: jobType, Payload: data})
	require.NoError(t, err)
	return string(raw)
}

func TestProcessJob_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	handlers := Handlers{"x": func(context.Context, json.RawMessage) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}}

	_, err := processJob(context.Background(), "q", envelope(t, "x", map[string]string{}), handlers)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestProcessJob_ExhaustedRetriesReturnsJob(t *testing.T) {
	handlers := Handlers{"x": func(context.Context, json.RawMessage) error { return errors.New("boom") }}

	job, err := processJob(context.Background(), "q", envelope(t, "x", map[string]string{"a": "b"}), handlers)
	require.Error(t, err)
	assert.Equal(t, "x", job.Type)
	assert.JSONEq(t, `{"a":"b"}`, string(job.Payload))
}

func TestProcessJob_UnknownTypeAndBadEnvelope(t *testing.T) {
	_, err := processJob(context.Background(), "q", envelope(t, "nadie", nil), Handlers{})
	assert.Error(t, err)

	job, err := processJob(context.Background(), "q", "{not json", Handlers{})
	assert.Error(t, err)
	assert.Equal(t, "desconocido", job.Type)
	assert.True(t, json.Valid(job.Payload))
}

func TestWithRetry_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, 5, func(int) error {
		calls++
		cancel()
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

// contadorComandos counts commands sent through a redis client.
type contadorComandos struct{ n atomic.Int32 }

func (h *contadorComandos) DialHook(next redis.DialHook) redis.DialHook { return next }
func (h *contadorComandos) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.n.Add(1)
		return next(ctx, cmd)
	}
}
func (h *contadorComandos) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRunWorker_PausesWhileRedisIsDown(t *testing.T) {
	anterior := pausaRedis
	pausaRedis = 50 * time.Millisecond
	t.Cleanup(func() { pausaRedis = anterior })

	// Nothing listens on port 1: every BRPOP fails at once.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })
	hook := &contadorComandos{}
	rdb.AddHook(hook)

	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		runWorker(ctx, rdb, 0, Handlers{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
	assert.GreaterOrEqual(t, hook.n.Load(), int32(1))
	assert.LessOrEqual(t, hook.n.Load(), int32(5), "worker must not spin on a dead connection")
}

func TestEsperarTrasError(t *testing.T) {
	anterior := pausaRedis
	pausaRedis = time.Hour
	t.Cleanup(func() { pausaRedis = anterior })

	// Empty-queue timeout: no pause.
	assert.True(t, esperarTrasError(context.Background(), 0, redis.Nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, esperarTrasError(ctx, 0, errors.New("connection refused")))
}

func seedVenta(t *testing.T) (*TicketWorker, model.Venta) {
	t.Helper()
	db := testutil.OpenDB(t)
	art := testutil.Articulo(t, db, "CUA-01", 10, "5.00")
	v := model.Venta{
		Serie: "A", NumeroFactura: 1, Fecha: time.Now().UTC(), VendedorID: uuid.New(),
		MonedaCodigo: "NIO", TipoCambio: testutil.Dec("1"), MetodoPago: model.MetodoEfectivo, Contado: true,
		Subtotal: testutil.Dec("10.00"), TasaImpuesto: testutil.Dec("0.15"), Impuesto: testutil.Dec("1.50"),
		Total: testutil.Dec("11.50"), TotalBase: testutil.Dec("11.50"),
		Items: []model.VentaItem{{ArticuloID: art.ID, Cantidad: 2, PrecioUnitario: testutil.Dec("5.00"), Monto: testutil.Dec("10.00")}},
	}
	require.NoError(t, db.Create(&v).Error)
	w := NewTicketWorker(db, repository.NewVentaRepository(db), repository.NewArticuloRepository(db), t.TempDir())
	return w, v
}

func TestTicketWorker_GeneratesPDF(t *testing.T) {
	w, v := seedVenta(t)

	raw, _ := json.Marshal(TicketJobPayload{VentaID: v.ID.String()})
	path, err := w.Process(context.Background(), raw)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestTicketWorker_UnknownVenta(t *testing.T) {
	w, _ := seedVenta(t)
	raw, _ := json.Marshal(TicketJobPayload{VentaID: uuid.NewString()})
	assert.Error(t, w.Handle(context.Background(), raw))

	raw, _ = json.Marshal(TicketJobPayload{VentaID: "nope"})
	assert.Error(t, w.Handle(context.Background(), raw))
}

type fakeMailer struct {
	enabled bool
	err     error
	sent    []string
}

func (m *fakeMailer) Enabled() bool { return m.enabled }
func (m *fakeMailer) Send(to, _, _, pdfPath string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to+"|"+pdfPath)
	return nil
}

func seedCierre(t *testing.T) (repository.CierreRepository, model.CierreCaja) {
	t.Helper()
	db := testutil.OpenDB(t)
	c := model.CierreCaja{
		Desde: time.Now().Add(-time.Hour).UTC(), Fecha: time.Now().UTC(),
		FondoInicial: testutil.Dec("100"), EfectivoEsperado: testutil.Dec("100"),
		EfectivoContado: testutil.Dec("100"), Clasificacion: "normal", FondoSiguiente: testutil.Dec("100"),
		UsuarioID: uuid.New(),
	}
	require.NoError(t, db.Create(&c).Error)
	return repository.NewCierreRepository(db), c
}

func TestCierreWorker_SendsReportWhenEnabled(t *testing.T) {
	repo, c := seedCierre(t)
	m := &fakeMailer{enabled: true}
	w := NewCierreWorker(repo, m, "gerencia@example.com", t.TempDir())

	raw, _ := json.Marshal(CierreJobPayload{CierreID: c.ID.String()})
	require.NoError(t, w.Handle(context.Background(), raw))
	require.Len(t, m.sent, 1)
	assert.Contains(t, m.sent[0], "gerencia@example.com|")
}

func TestCierreWorker_SkipsMailWhenDisabled(t *testing.T) {
	repo, c := seedCierre(t)
	m := &fakeMailer{enabled: false}
	w := NewCierreWorker(repo, m, "gerencia@example.com", t.TempDir())

	raw, _ := json.Marshal(CierreJobPayload{CierreID: c.ID.String()})
	require.NoError(t, w.Handle(context.Background(), raw))
	assert.Empty(t, m.sent)
}

func TestCierreWorker_MailFailureIsRetryable(t *testing.T) {
	repo, c := seedCierre(t)
	w := NewCierreWorker(repo, &fakeMailer{enabled: true, err: errors.New("smtp down")}, "x@example.com", t.TempDir())

	raw, _ := json.Marshal(CierreJobPayload{CierreID: c.ID.String()})
	assert.Error(t, w.Handle(context.Background(), raw))
}

type fakeAlertas struct {
	out []dto.AlertaStockResponse
	err error
}

func (f fakeAlertas) ObtenerAlertas(context.Context) ([]dto.AlertaStockResponse, error) {
	return f.out, f.err
}

func TestBarrerAlertas(t *testing.T) {
	src := fakeAlertas{out: []dto.AlertaStockResponse{{ArticuloID: "a", Existencia: 1, StockMinimo: 5, Faltante: 4}}}
	assert.Equal(t, 1, barrerAlertas(context.Background(), src, nil))
	assert.Equal(t, 0, barrerAlertas(context.Background(), fakeAlertas{err: errors.New("db")}, nil))
}

func TestStartStockAlertCron_RejectsBadExpression(t *testing.T) {
	_, err := StartStockAlertCron(context.Background(), "not a cron", fakeAlertas{}, nil)
	assert.Error(t, err)
}
