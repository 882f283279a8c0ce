package service

import (
	"context"
	"sync"
	"testing"

	"cajapos/internal/apierror"
	"cajapos/internal/config"
	"cajapos/internal/dto"
	"cajapos/internal/model"
	"cajapos/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrarVenta_DecrementsStockAndNumbers(t *testing.T) {
	f := nuevaFixture(t)
	x := testutil.Articulo(t, f.db, "X", 10, "5.00")

	v := f.vender(t, model.MetodoEfectivo, item(x, 3))

	assert.Equal(t, 7, testutil.Existencia(t, f.db, x.ID))
	assert.Equal(t, "15.00", v.Subtotal.StringFixed(2))
	assert.Equal(t, "2.25", v.Impuesto.StringFixed(2))
	assert.Equal(t, "17.25", v.Total.StringFixed(2))
	assert.Equal(t, "17.25", v.TotalBase.StringFixed(2))
	assert.Equal(t, int64(1), v.NumeroFactura)
	assert.Equal(t, "A", v.Serie)
	assert.True(t, v.Contado)
	require.Len(t, v.Items, 1)
	assert.Equal(t, "5.00", v.Items[0].PrecioUnitario.StringFixed(2))

	v2 := f.vender(t, model.MetodoEfectivo, item(x, 1))
	assert.Equal(t, int64(2), v2.NumeroFactura)
	assert.Equal(t, int64(2), f.correlativo(t, "A"))
	assert.Len(t, f.desp.tickets, 2)

	var movs []model.MovimientoStock
	require.NoError(t, f.db.Where("articulo_id = ?", x.ID).Order("stock_nuevo DESC").Find(&movs).Error)
	require.Len(t, movs, 2)
	assert.Equal(t, model.MovVenta, movs[0].Tipo)
	assert.Equal(t, -3, movs[0].Cantidad)
	assert.Equal(t, 10, movs[0].StockAnterior)
	assert.Equal(t, 7, movs[0].StockNuevo)
}

func TestRegistrarVenta_InsufficientStockLeavesStateUntouched(t *testing.T) {
	f := nuevaFixture(t)
	x := testutil.Articulo(t, f.db, "X", 10, "5.00")

	_, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
		Items:      []dto.ItemVentaRequest{item(x, 11)},
		MetodoPago: model.MetodoEfectivo,
	})
	requireKind(t, err, apierror.KindInsufficientStock)

	var e *apierror.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 11, e.Context["requested"])
	assert.Equal(t, 10, e.Context["available"])
	assert.Equal(t, 10, testutil.Existencia(t, f.db, x.ID))
	assert.Equal(t, int64(0), f.correlativo(t, "A"))
	assert.Empty(t, f.desp.tickets)
}

func TestRegistrarVenta_FailingLineRollsBackEarlierLines(t *testing.T) {
	f := nuevaFixture(t)
	a := testutil.Articulo(t, f.db, "A1", 10, "1.00")
	b := testutil.Articulo(t, f.db, "B1", 2, "1.00")

	_, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
		Items:      []dto.ItemVentaRequest{item(a, 5), item(b, 3)},
		MetodoPago: model.MetodoEfectivo,
	})
	requireKind(t, err, apierror.KindInsufficientStock)
	assert.Equal(t, 10, testutil.Existencia(t, f.db, a.ID))
	assert.Equal(t, 2, testutil.Existencia(t, f.db, b.ID))
	assert.Equal(t, int64(0), f.correlativo(t, "A"))

	var movs int64
	require.NoError(t, f.db.Model(&model.MovimientoStock{}).Count(&movs).Error)
	assert.Zero(t, movs)
}

func TestRegistrarVenta_ConcurrentSalesNeverOversell(t *testing.T) {
	f := nuevaFixture(t)
	x := testutil.Articulo(t, f.db, "X", 10, "5.00")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
				Items:      []dto.ItemVentaRequest{item(x, 6)},
				MetodoPago: model.MetodoEfectivo,
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		kind := apierror.KindOf(err)
		assert.Contains(t, []apierror.Kind{apierror.KindInsufficientStock, apierror.KindConflict}, kind)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 4, testutil.Existencia(t, f.db, x.ID))
}

func TestRegistrarVenta_StockNeverNegativeOverSequence(t *testing.T) {
	f := nuevaFixture(t)
	x := testutil.Articulo(t, f.db, "X", 5, "2.00")

	cantidades := []int{2, 4, 1, 3, 2, 1, 1}
	for _, q := range cantidades {
		_, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
			Items:      []dto.ItemVentaRequest{item(x, q)},
			MetodoPago: model.MetodoTarjeta,
		})
		if err != nil {
			requireKind(t, err, apierror.KindInsufficientStock)
		}
		assert.GreaterOrEqual(t, testutil.Existencia(t, f.db, x.ID), 0)
	}
	assert.Equal(t, 0, testutil.Existencia(t, f.db, x.ID))
}

func TestRegistrarVenta_TotalsInvariantHoldsForEverySale(t *testing.T) {
	f := nuevaFixture(t)
	a := testutil.Articulo(t, f.db, "A", 100, "3.33")
	b := testutil.Articulo(t, f.db, "B", 100, "0.07")
	precio := dec("12.99")

	reqs := [][]dto.ItemVentaRequest{
		{item(a, 7)},
		{item(a, 1), item(b, 13)},
		{{ArticuloID: b.ID.String(), Cantidad: 9, Descuento: dec("0.05")}},
		{{ArticuloID: a.ID.String(), Cantidad: 2, PrecioUnitario: &precio, Descuento: dec("1.01")}},
	}
	for _, items := range reqs {
		v := f.vender(t, model.MetodoEfectivo, items...)
		suma := dec("0")
		for _, it := range v.Items {
			suma = suma.Add(it.Monto)
		}
		assert.True(t, suma.Equal(v.Subtotal), "subtotal %s vs %s", v.Subtotal, suma)
		assert.True(t, v.Subtotal.Add(v.Impuesto).Equal(v.Total))
	}
}

func TestRegistrarVenta_DiscountAndPriceOverride(t *testing.T) {
	f := nuevaFixture(t, sinImpuesto)
	x := testutil.Articulo(t, f.db, "X", 10, "5.00")
	precio := dec("4.50")

	v := f.vender(t, model.MetodoEfectivo, dto.ItemVentaRequest{
		ArticuloID: x.ID.String(), Cantidad: 3, PrecioUnitario: &precio, Descuento: dec("1.50"),
	})
	assert.Equal(t, "12.00", v.Items[0].Monto.StringFixed(2))
	assert.Equal(t, "12.00", v.Total.StringFixed(2))
}

func TestRegistrarVenta_ValidationErrors(t *testing.T) {
	f := nuevaFixture(t)
	x := testutil.Articulo(t, f.db, "X", 10, "5.00")
	tresDecimales := dec("1.005")
	negativo := dec("-1")

	cases := []struct {
		name  string
		req   dto.RegistrarVentaRequest
		field string
	}{
		{"sin lineas", dto.RegistrarVentaRequest{MetodoPago: "efectivo"}, "items"},
		{"cantidad cero", dto.RegistrarVentaRequest{MetodoPago: "efectivo", Items: []dto.ItemVentaRequest{item(x, 0)}}, "items[0].cantidad"},
		{"precio negativo", dto.RegistrarVentaRequest{MetodoPago: "efectivo", Items: []dto.ItemVentaRequest{{ArticuloID: x.ID.String(), Cantidad: 1, PrecioUnitario: &negativo}}}, "items[0].precio_unitario"},
		{"tres decimales", dto.RegistrarVentaRequest{MetodoPago: "efectivo", Items: []dto.ItemVentaRequest{{ArticuloID: x.ID.String(), Cantidad: 1, PrecioUnitario: &tresDecimales}}}, "items[0].precio_unitario"},
		{"articulo repetido", dto.RegistrarVentaRequest{MetodoPago: "efectivo", Items: []dto.ItemVentaRequest{item(x, 1), item(x, 2)}}, "items[1].articulo_id"},
		{"metodo desconocido", dto.RegistrarVentaRequest{MetodoPago: "cheque", Items: []dto.ItemVentaRequest{item(x, 1)}}, "metodo_pago"},
		{"descuento mayor al importe", dto.RegistrarVentaRequest{MetodoPago: "efectivo", Items: []dto.ItemVentaRequest{{ArticuloID: x.ID.String(), Cantidad: 1, Descuento: dec("5.01")}}}, "items[0].descuento"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, tc.req)
			requireKind(t, err, apierror.KindValidation)
			var e *apierror.Error
			require.ErrorAs(t, err, &e)
			assert.Contains(t, e.Context, tc.field)
		})
	}
	assert.Equal(t, 10, testutil.Existencia(t, f.db, x.ID))
	assert.Equal(t, int64(0), f.correlativo(t, "A"))
}

func TestRegistrarVenta_UnknownOrInactiveArticle(t *testing.T) {
	f := nuevaFixture(t)
	x := testutil.Articulo(t, f.db, "X", 10, "5.00")
	inactivo := testutil.Articulo(t, f.db, "OFF", 10, "5.00")
	require.NoError(t, f.db.Model(&model.Articulo{}).Where("id = ?", inactivo.ID).Update("activo", false).Error)

	_, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
		Items:      []dto.ItemVentaRequest{item(x, 1), {ArticuloID: "6f1c2a8e-0000-4000-8000-000000000000", Cantidad: 1}},
		MetodoPago: model.MetodoEfectivo,
	})
	requireKind(t, err, apierror.KindReferenceNotFound)

	_, err = f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
		Items:      []dto.ItemVentaRequest{item(inactivo, 1)},
		MetodoPago: model.MetodoEfectivo,
	})
	requireKind(t, err, apierror.KindReferenceNotFound)
	assert.Equal(t, 10, testutil.Existencia(t, f.db, x.ID))
}

func TestRegistrarVenta_SeriesErrors(t *testing.T) {
	f := nuevaFixture(t)
	x := testutil.Articulo(t, f.db, "X", 10, "5.00")

	_, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(x, 1)}, MetodoPago: model.MetodoEfectivo, Serie: "ZZ",
	})
	requireKind(t, err, apierror.KindSeriesNotFound)

	require.NoError(t, f.numeracion.Desactivar(context.Background(), "A"))
	_, err = f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(x, 1)}, MetodoPago: model.MetodoEfectivo,
	})
	requireKind(t, err, apierror.KindSeriesInactive)
	assert.Equal(t, 10, testutil.Existencia(t, f.db, x.ID))
}

func TestRegistrarVenta_GaplessPolicyReusesNumberOfFailedSale(t *testing.T) {
	f := nuevaFixture(t)
	x := testutil.Articulo(t, f.db, "X", 2, "5.00")

	_, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(x, 3)}, MetodoPago: model.MetodoEfectivo,
	})
	require.Error(t, err)

	v := f.vender(t, model.MetodoEfectivo, item(x, 1))
	assert.Equal(t, int64(1), v.NumeroFactura)
}

func TestRegistrarVenta_GapsAllowedPolicyBurnsNumberOfFailedSale(t *testing.T) {
	f := nuevaFixture(t, func(p *Politicas) { p.Numeracion = config.NumeracionConHuecos })
	x := testutil.Articulo(t, f.db, "X", 2, "5.00")

	_, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(x, 3)}, MetodoPago: model.MetodoEfectivo,
	})
	requireKind(t, err, apierror.KindInsufficientStock)
	assert.Equal(t, int64(1), f.correlativo(t, "A"))

	v := f.vender(t, model.MetodoEfectivo, item(x, 1))
	assert.Equal(t, int64(2), v.NumeroFactura)
}

func TestRegistrarVenta_ForeignCurrency(t *testing.T) {
	f := nuevaFixture(t)
	testutil.Moneda(t, f.db, "USD", "36.5")
	x := testutil.Articulo(t, f.db, "X", 10, "5.00")

	v, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(x, 3)}, MetodoPago: model.MetodoTarjeta, Moneda: "usd",
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", v.Moneda)
	assert.Equal(t, "17.25", v.Total.StringFixed(2))
	assert.Equal(t, "629.63", v.TotalBase.StringFixed(2))

	_, err = f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(x, 1)}, MetodoPago: model.MetodoTarjeta, Moneda: "EUR",
	})
	requireKind(t, err, apierror.KindReferenceNotFound)
}

func TestRegistrarVenta_IdempotencyKeyReturnsStoredSale(t *testing.T) {
	f := nuevaFixture(t)
	x := testutil.Articulo(t, f.db, "X", 10, "5.00")
	clave := "pos-1-000042"
	req := dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(x, 2)}, MetodoPago: model.MetodoEfectivo, ClaveIdempotencia: &clave,
	}

	v1, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, req)
	require.NoError(t, err)
	v2, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, req)
	require.NoError(t, err)

	assert.Equal(t, v1.ID, v2.ID)
	assert.Equal(t, v1.NumeroFactura, v2.NumeroFactura)
	assert.Equal(t, 8, testutil.Existencia(t, f.db, x.ID))
	assert.Equal(t, int64(1), f.correlativo(t, "A"))
}

func TestRegistrarVenta_CancelledContextRollsBack(t *testing.T) {
	f := nuevaFixture(t)
	x := testutil.Articulo(t, f.db, "X", 10, "5.00")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(x, 3)}, MetodoPago: model.MetodoEfectivo,
	})
	require.Error(t, err)
	assert.Equal(t, 10, testutil.Existencia(t, f.db, x.ID))
	assert.Equal(t, int64(0), f.correlativo(t, "A"))
}

func TestRegistrarVenta_CreditSale(t *testing.T) {
	f := nuevaFixture(t)
	x := testutil.Articulo(t, f.db, "X", 10, "5.00")
	credito := false

	v, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(x, 1)}, MetodoPago: model.MetodoOtro, Contado: &credito,
	})
	require.NoError(t, err)
	assert.False(t, v.Contado)

	stored, err := f.ventas.ObtenerVenta(context.Background(), mustUUID(t, v.ID))
	require.NoError(t, err)
	assert.False(t, stored.Contado)
}

func TestAnularVenta(t *testing.T) {
	f := nuevaFixture(t)
	x := testutil.Articulo(t, f.db, "X", 10, "5.00")
	v := f.vender(t, model.MetodoEfectivo, item(x, 4))
	id := mustUUID(t, v.ID)

	require.NoError(t, f.ventas.AnularVenta(context.Background(), id, "error de digitacion"))
	assert.Equal(t, 10, testutil.Existencia(t, f.db, x.ID))

	got, err := f.ventas.ObtenerVenta(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, got.Anulada)
	require.NotNil(t, got.MotivoAnulacion)
	// 4 x 5.00 + 15% stays on the voided record.
	assert.Equal(t, "23.00", got.Total.StringFixed(2))

	err = f.ventas.AnularVenta(context.Background(), id, "otra vez por error")
	requireKind(t, err, apierror.KindValidation)
	assert.Equal(t, 10, testutil.Existencia(t, f.db, x.ID))

	requireKind(t, f.ventas.AnularVenta(context.Background(), id, "no"), apierror.KindValidation)
}

func TestAnularVenta_RejectedWithReturnsOrAfterClosing(t *testing.T) {
	f := nuevaFixture(t)
	x := testutil.Articulo(t, f.db, "X", 10, "5.00")

	conDevolucion := f.vender(t, model.MetodoEfectivo, item(x, 2))
	_, err := f.devolver(t, conDevolucion, x, 1)
	require.NoError(t, err)
	err = f.ventas.AnularVenta(context.Background(), mustUUID(t, conDevolucion.ID), "cliente arrepentido")
	requireKind(t, err, apierror.KindValidation)

	cerrada := f.vender(t, model.MetodoEfectivo, item(x, 1))
	_, err = f.cierres.Cerrar(context.Background(), f.usuario, dto.CerrarCajaRequest{EfectivoContado: dec("1000"), Observaciones: strPtr("arqueo de prueba")})
	require.NoError(t, err)
	err = f.ventas.AnularVenta(context.Background(), mustUUID(t, cerrada.ID), "cliente arrepentido")
	requireKind(t, err, apierror.KindValidation)

	err = f.ventas.AnularVenta(context.Background(), mustUUID(t, "6f1c2a8e-0000-4000-8000-000000000000"), "no existe la venta")
	requireKind(t, err, apierror.KindReferenceNotFound)
}

func TestListVentas_FiltersByEstado(t *testing.T) {
	f := nuevaFixture(t)
	x := testutil.Articulo(t, f.db, "X", 10, "1.00")
	v1 := f.vender(t, model.MetodoEfectivo, item(x, 1))
	f.vender(t, model.MetodoEfectivo, item(x, 1))
	require.NoError(t, f.ventas.AnularVenta(context.Background(), mustUUID(t, v1.ID), "venta duplicada"))

	todas, err := f.ventas.ListVentas(context.Background(), dto.VentaFilter{Estado: "all", Page: 1, Limit: 50})
	require.NoError(t, err)
	assert.EqualValues(t, 2, todas.Total)

	anuladas, err := f.ventas.ListVentas(context.Background(), dto.VentaFilter{Estado: "anulada", Page: 1, Limit: 50})
	require.NoError(t, err)
	require.Len(t, anuladas.Data, 1)
	assert.Equal(t, v1.ID, anuladas.Data[0].ID)

	_, err = f.ventas.ListVentas(context.Background(), dto.VentaFilter{Estado: "raro"})
	requireKind(t, err, apierror.KindValidation)
	_, err = f.ventas.ListVentas(context.Background(), dto.VentaFilter{Desde: "ayer"})
	requireKind(t, err, apierror.KindValidation)
}
