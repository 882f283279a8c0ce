package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CerrarCajaRequest struct {
	EfectivoContado decimal.Decimal `json:"efectivo_contado" validate:"min=0"`
	// FondoInicial defaults to the previous closing's fondo_siguiente.
	FondoInicial *decimal.Decimal `json:"fondo_inicial" validate:"omitempty,min=0"`
	// FondoSiguiente is the cash left in the drawer; defaults to the opening float.
	FondoSiguiente *decimal.Decimal `json:"fondo_siguiente" validate:"omitempty,min=0"`
	Observaciones  *string          `json:"observaciones"`
}

// CierreFilter is bound from query string of GET /v1/cierres.
type CierreFilter struct {
	Page  int `form:"page,default=1"   validate:"min=1"`
	Limit int `form:"limit,default=20" validate:"min=1,max=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type DesvioResponse struct {
	Monto         decimal.Decimal `json:"monto"`
	Porcentaje    decimal.Decimal `json:"porcentaje"`
	Clasificacion string          `json:"clasificacion"` // normal | advertencia | critico
}

type MontosPorMetodo struct {
	Efectivo      decimal.Decimal `json:"efectivo"`
	Tarjeta       decimal.Decimal `json:"tarjeta"`
	Transferencia decimal.Decimal `json:"transferencia"`
	Otro          decimal.Decimal `json:"otro"`
	Credito       decimal.Decimal `json:"credito"`
}

type CierreResponse struct {
	ID                   string          `json:"id,omitempty"` // empty on previsualizar
	Desde                string          `json:"desde"`
	Fecha                string          `json:"fecha"`
	FondoInicial         decimal.Decimal `json:"fondo_inicial"`
	Ventas               MontosPorMetodo `json:"ventas"`
	VentasBrutas         decimal.Decimal `json:"ventas_brutas"`
	CantidadVentas       int             `json:"cantidad_ventas"`
	DevolucionesTotal    decimal.Decimal `json:"devoluciones_total"`
	DevolucionesEfectivo decimal.Decimal `json:"devoluciones_efectivo"`
	CantidadDevoluciones int             `json:"cantidad_devoluciones"`
	EfectivoEsperado     decimal.Decimal `json:"efectivo_esperado"`
	EfectivoContado      decimal.Decimal `json:"efectivo_contado"`
	Desvio               DesvioResponse  `json:"desvio"`
	FondoSiguiente       decimal.Decimal `json:"fondo_siguiente"`
	Observaciones        *string         `json:"observaciones,omitempty"`
	UsuarioID            string          `json:"usuario_id,omitempty"`
}

type CierreListResponse struct {
	Data  []CierreResponse `json:"data"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}
