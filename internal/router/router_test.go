package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cajapos/internal/apierror"
	"cajapos/internal/config"
	"cajapos/internal/dto"
	"cajapos/internal/infra"
	"cajapos/internal/middleware"
	"cajapos/internal/model"
	"cajapos/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "secreto-de-pruebas"

func init() {
	gin.SetMode(gin.TestMode)
}

type api struct {
	t   *testing.T
	db  *gorm.DB
	eng *gin.Engine
}

func newAPI(t *testing.T) *api {
	return newAPIConSMTP(t, nil)
}

func newAPIConSMTP(t *testing.T, smtpCB *infra.CircuitBreaker) *api {
	t.Helper()
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("APP_ENV", "test")
	cfg, err := config.Load()
	require.NoError(t, err)

	db := testutil.OpenDB(t)
	return &api{t: t, db: db, eng: New(cfg, db, nil, nil, smtpCB)}
}

func token(t *testing.T, rol string) string {
	t.Helper()
	claims := middleware.JWTClaims{
		UserID:   uuid.NewString(),
		Username: rol,
		Rol:      rol,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (a *api) do(method, path, rol string, body any, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if rol != "" {
		req.Header.Set("Authorization", "Bearer "+token(a.t, rol))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.eng.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func venta(a model.Articulo, cantidad int) dto.RegistrarVentaRequest {
	return dto.RegistrarVentaRequest{
		Items:      []dto.ItemVentaRequest{{ArticuloID: a.ID.String(), Cantidad: cantidad}},
		MetodoPago: "efectivo",
	}
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "connected", body["db"])
	assert.Equal(t, "disabled", body["redis"])
	assert.Equal(t, "disabled", body["smtp"])

	w = a.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealth_ReportsOpenSMTPBreaker(t *testing.T) {
	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{FailureThreshold: 1, OpenTimeout: time.Hour})
	a := newAPIConSMTP(t, cb)

	w := a.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, "closed", decode[map[string]any](t, w)["smtp"])

	_ = cb.Execute(func() error { return errors.New("relay caido") })

	// The relay is not critical: health stays 200 and only reports the state.
	w = a.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "open", decode[map[string]any](t, w)["smtp"])
}

func TestAuth(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodGet, "/v1/ventas", "", nil, middleware.RequestIDHeader, "req-123")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "req-123", w.Header().Get(middleware.RequestIDHeader))
	env := decode[apierror.APIError](t, w)
	assert.Equal(t, apierror.KindUnauthorized, env.Kind)

	w = a.do(http.MethodGet, "/v1/ventas", "", nil, "Authorization", "Bearer basura")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(http.MethodGet, "/v1/ventas", "invitado", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodGet, "/v1/ventas", "cajero", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestRegistrarVenta_HTTP(t *testing.T) {
	a := newAPI(t)
	x := testutil.Articulo(t, a.db, "X", 10, "5.00")

	w := a.do(http.MethodPost, "/v1/ventas", "cajero", venta(x, 3))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	v := decode[dto.VentaResponse](t, w)
	assert.Equal(t, "17.25", v.Total.StringFixed(2))
	assert.Equal(t, int64(1), v.NumeroFactura)
	assert.Equal(t, 7, testutil.Existencia(t, a.db, x.ID))

	w = a.do(http.MethodGet, "/v1/ventas/"+v.ID, "cajero", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, v.ID, decode[dto.VentaResponse](t, w).ID)

	w = a.do(http.MethodPost, "/v1/ventas", "cajero", venta(x, 11))
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode[apierror.APIError](t, w)
	assert.Equal(t, apierror.KindInsufficientStock, env.Kind)
	assert.EqualValues(t, 11, env.Context["requested"])
	assert.EqualValues(t, 7, env.Context["available"])

	w = a.do(http.MethodPost, "/v1/ventas", "cajero", venta(x, 0))
	require.Equal(t, http.StatusBadRequest, w.Code)
	env = decode[apierror.APIError](t, w)
	assert.Equal(t, apierror.KindValidation, env.Kind)
	assert.Contains(t, env.Fields, "items[0].cantidad")

	w = a.do(http.MethodGet, "/v1/ventas/"+uuid.NewString(), "cajero", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(http.MethodGet, "/v1/ventas/no-es-uuid", "cajero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistrarVenta_IdempotencyKeyHeader(t *testing.T) {
	a := newAPI(t)
	x := testutil.Articulo(t, a.db, "X", 10, "5.00")

	w1 := a.do(http.MethodPost, "/v1/ventas", "cajero", venta(x, 2), "Idempotency-Key", "terminal-7-0001")
	require.Equal(t, http.StatusCreated, w1.Code)
	w2 := a.do(http.MethodPost, "/v1/ventas", "cajero", venta(x, 2), "Idempotency-Key", "terminal-7-0001")
	require.Equal(t, http.StatusCreated, w2.Code)

	assert.Equal(t, decode[dto.VentaResponse](t, w1).ID, decode[dto.VentaResponse](t, w2).ID)
	assert.Equal(t, 8, testutil.Existencia(t, a.db, x.ID))
}

func TestAnularVenta_RequiresSupervisor(t *testing.T) {
	a := newAPI(t)
	x := testutil.Articulo(t, a.db, "X", 10, "5.00")
	v := decode[dto.VentaResponse](t, a.do(http.MethodPost, "/v1/ventas", "cajero", venta(x, 2)))

	body := dto.AnularVentaRequest{Motivo: "cliente arrepentido"}
	w := a.do(http.MethodDelete, "/v1/ventas/"+v.ID, "cajero", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodDelete, "/v1/ventas/"+v.ID, "supervisor", body)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	assert.Equal(t, 10, testutil.Existencia(t, a.db, x.ID))

	w = a.do(http.MethodDelete, "/v1/ventas/"+v.ID, "supervisor", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDevoluciones_HTTP(t *testing.T) {
	a := newAPI(t)
	x := testutil.Articulo(t, a.db, "X", 10, "5.00")
	v := decode[dto.VentaResponse](t, a.do(http.MethodPost, "/v1/ventas", "cajero", venta(x, 3)))

	req := dto.RegistrarDevolucionRequest{
		VentaID: v.ID,
		Motivo:  "producto defectuoso",
		Items:   []dto.ItemDevolucionRequest{{ArticuloID: x.ID.String(), Cantidad: 2}},
	}
	w := a.do(http.MethodPost, "/v1/devoluciones", "cajero", req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodPost, "/v1/devoluciones", "supervisor", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	d := decode[dto.DevolucionResponse](t, w)
	assert.Equal(t, "10.00", d.Total.StringFixed(2))

	w = a.do(http.MethodPost, "/v1/devoluciones", "supervisor", req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apierror.KindOverReturn, decode[apierror.APIError](t, w).Kind)

	w = a.do(http.MethodGet, "/v1/ventas/"+v.ID+"/devoluciones", "cajero", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]dto.DevolucionResponse](t, w), 1)

	w = a.do(http.MethodGet, "/v1/devoluciones/"+d.ID, "cajero", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCierres_HTTP(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodGet, "/v1/cierres/ultimo", "cajero", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(http.MethodGet, "/v1/cierres/previsualizar?efectivo_contado=0", "cajero", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, decode[dto.CierreResponse](t, w).ID)

	w = a.do(http.MethodPost, "/v1/cierres", "cajero", map[string]any{"efectivo_contado": "0", "fondo_inicial": "0"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	c := decode[dto.CierreResponse](t, w)
	assert.Equal(t, "normal", c.Desvio.Clasificacion)

	w = a.do(http.MethodGet, "/v1/cierres/ultimo", "cajero", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, c.ID, decode[dto.CierreResponse](t, w).ID)

	w = a.do(http.MethodGet, "/v1/cierres", "cajero", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = a.do(http.MethodGet, "/v1/cierres", "supervisor", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[dto.CierreListResponse](t, w).Total)
}

func TestNumeraciones_HTTP(t *testing.T) {
	a := newAPI(t)
	req := dto.CrearNumeracionRequest{Serie: "B", Descripcion: "segunda caja"}

	w := a.do(http.MethodPost, "/v1/numeraciones", "supervisor", req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodPost, "/v1/numeraciones", "administrador", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(http.MethodPost, "/v1/numeraciones", "administrador", req)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apierror.KindConflict, decode[apierror.APIError](t, w).Kind)

	w = a.do(http.MethodDelete, "/v1/numeraciones/B", "administrador", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = a.do(http.MethodDelete, "/v1/numeraciones/ZZ", "administrador", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(http.MethodGet, "/v1/numeraciones", "cajero", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]dto.NumeracionResponse](t, w), 2)
}

func TestArticulos_HTTP(t *testing.T) {
	a := newAPI(t)
	x := testutil.Articulo(t, a.db, "X", 1, "5.00")
	require.NoError(t, a.db.Model(&model.Articulo{}).Where("id = ?", x.ID).Update("stock_minimo", 3).Error)

	w := a.do(http.MethodGet, "/v1/inventario/alertas", "supervisor", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]dto.AlertaStockResponse](t, w), 1)

	w = a.do(http.MethodPatch, "/v1/articulos/"+x.ID.String()+"/stock", "supervisor", dto.AjusteStockRequest{Delta: 9, Motivo: "recepcion"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 10, decode[dto.AjusteStockResponse](t, w).StockNuevo)

	w = a.do(http.MethodPut, "/v1/articulos/"+x.ID.String()+"/precio", "administrador", map[string]any{"precio_venta": "6.25"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodGet, "/v1/articulos/"+x.ID.String()+"/historial-precios", "cajero", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[dto.HistorialPrecioListResponse](t, w).Total)

	w = a.do(http.MethodGet, "/v1/articulos/"+x.ID.String()+"/movimientos?tipo=ajuste", "supervisor", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, decode[dto.MovimientoStockListResponse](t, w).Total)

	w = a.do(http.MethodGet, "/v1/articulos/"+x.ID.String()+"/movimientos?tipo=robo", "supervisor", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodGet, "/v1/articulos/"+x.ID.String()+"/movimientos?referencia_id="+uuid.NewString(), "supervisor", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 0, decode[dto.MovimientoStockListResponse](t, w).Total)

	w = a.do(http.MethodGet, "/v1/articulos/"+x.ID.String()+"/movimientos?referencia_id=abc", "supervisor", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
