package service

import (
	"cajapos/internal/apierror"
	"cajapos/internal/model"

	"github.com/shopspring/decimal"
)

// Money is kept at two fractional digits; every derived amount is rounded
// half away from zero at that precision.
const escalaMoneda = 2

var cien = decimal.NewFromInt(100)

// LineaCalculo is the arithmetic view of one sale line.
type LineaCalculo struct {
	Cantidad       int
	PrecioUnitario decimal.Decimal
	Descuento      decimal.Decimal
}

type Totales struct {
	Montos    []decimal.Decimal
	Subtotal  decimal.Decimal
	Impuesto  decimal.Decimal
	Total     decimal.Decimal
	TotalBase decimal.Decimal
}

// CalcularTotales derives line amounts and sale totals:
//
//	monto     = cantidad × precio − descuento
//	subtotal  = Σ monto
//	impuesto  = round(subtotal × tasa, 2)
//	total     = subtotal + impuesto
//	totalBase = round(total × tipoCambio, 2)
func CalcularTotales(lineas []LineaCalculo, tasa, tipoCambio decimal.Decimal) Totales {
	t := Totales{Montos: make([]decimal.Decimal, len(lineas))}
	for i, l := range lineas {
		monto := l.PrecioUnitario.Mul(decimal.NewFromInt(int64(l.Cantidad))).Sub(l.Descuento).Round(escalaMoneda)
		t.Montos[i] = monto
		t.Subtotal = t.Subtotal.Add(monto)
	}
	t.Impuesto = t.Subtotal.Mul(tasa).Round(escalaMoneda)
	t.Total = t.Subtotal.Add(t.Impuesto)
	t.TotalBase = t.Total.Mul(tipoCambio).Round(escalaMoneda)
	return t
}

// VerificarTotales re-checks the arithmetic invariants of a built sale. A
// failure means a bug upstream; the sale must not be persisted.
func VerificarTotales(v *model.Venta) error {
	suma := decimal.Zero
	for _, it := range v.Items {
		esperado := it.PrecioUnitario.Mul(decimal.NewFromInt(int64(it.Cantidad))).Sub(it.Descuento)
		if !it.Monto.Equal(esperado.Round(escalaMoneda)) || it.Monto.IsNegative() {
			return apierror.Inconsistent("monto de linea no cuadra").With("articulo_id", it.ArticuloID.String())
		}
		suma = suma.Add(it.Monto)
	}
	if !suma.Equal(v.Subtotal) {
		return apierror.Inconsistent("subtotal distinto de la suma de lineas")
	}
	if !v.Subtotal.Add(v.Impuesto).Equal(v.Total) {
		return apierror.Inconsistent("total distinto de subtotal + impuesto")
	}
	if !v.Impuesto.Equal(v.Subtotal.Mul(v.TasaImpuesto).Round(escalaMoneda)) {
		return apierror.Inconsistent("impuesto no corresponde a la tasa")
	}
	return nil
}

// MontoDevolucion is the refund for returning cantidad more units of a sale
// line when yaDevuelto units were already returned. It is the returned share
// of the line amount, i.e. the unit price actually charged less the pro-rated
// line discount. Shares are taken cumulatively so that returning the whole
// line in several steps refunds exactly its monto.
func MontoDevolucion(item model.VentaItem, yaDevuelto, cantidad int) decimal.Decimal {
	acumulado := func(q int) decimal.Decimal {
		if q >= item.Cantidad {
			return item.Monto
		}
		return item.Monto.Mul(decimal.NewFromInt(int64(q))).
			Div(decimal.NewFromInt(int64(item.Cantidad))).
			Round(escalaMoneda)
	}
	return acumulado(yaDevuelto + cantidad).Sub(acumulado(yaDevuelto))
}

// maxDosDecimales reports whether d has no more than two fractional digits.
func maxDosDecimales(d decimal.Decimal) bool {
	return d.Equal(d.Round(escalaMoneda))
}

// porcentaje returns parte/total×100 rounded to two digits, or 100 when total
// is zero and parte is not.
func porcentaje(parte, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		if parte.IsZero() {
			return decimal.Zero
		}
		return cien
	}
	return parte.Div(total).Mul(cien).Round(2)
}
