package dto

import "github.com/shopspring/decimal"

// ─── Filter / List ──────────────────────────────────────────────────────────

// VentaFilter is bound from query string of GET /v1/ventas.
type VentaFilter struct {
	Desde  string `form:"desde"` // YYYY-MM-DD or RFC3339; inclusive
	Hasta  string `form:"hasta"` // YYYY-MM-DD or RFC3339; inclusive
	Serie  string `form:"serie"`
	Estado string `form:"estado,default=all"` // vigente | anulada | all
	Page   int    `form:"page,default=1"   validate:"min=1"`
	Limit  int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type VentaListResponse struct {
	Data  []VentaResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type ItemVentaRequest struct {
	ArticuloID string `json:"articulo_id" validate:"required,uuid"`
	Cantidad   int    `json:"cantidad"    validate:"required,min=1"`
	// PrecioUnitario overrides the catalog price; nil charges the current catalog price.
	PrecioUnitario *decimal.Decimal `json:"precio_unitario" validate:"omitempty,min=0"`
	Descuento      decimal.Decimal  `json:"descuento"       validate:"min=0"`
}

type RegistrarVentaRequest struct {
	Items      []ItemVentaRequest `json:"items"       validate:"required,min=1,dive"`
	ClienteID  *string            `json:"cliente_id"  validate:"omitempty,uuid"`
	Moneda     string             `json:"moneda"      validate:"omitempty,len=3"` // empty = base currency
	MetodoPago string             `json:"metodo_pago" validate:"required,oneof=efectivo tarjeta transferencia otro"`
	// Contado defaults to true; false records a sale on credit.
	Contado *bool  `json:"contado"`
	Serie   string `json:"serie" validate:"omitempty,max=10"` // empty = DEFAULT_SERIES
	// ClaveIdempotencia lets a client retry a sale without creating a second one.
	ClaveIdempotencia *string `json:"clave_idempotencia" validate:"omitempty,max=64"`
}

type AnularVentaRequest struct {
	Motivo string `json:"motivo" validate:"required,min=5"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ItemVentaResponse struct {
	ID             string          `json:"id"`
	ArticuloID     string          `json:"articulo_id"`
	Cantidad       int             `json:"cantidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	Descuento      decimal.Decimal `json:"descuento"`
	Monto          decimal.Decimal `json:"monto"`
}

type VentaResponse struct {
	ID              string              `json:"id"`
	Serie           string              `json:"serie"`
	NumeroFactura   int64               `json:"numero_factura"`
	Fecha           string              `json:"fecha"`
	ClienteID       *string             `json:"cliente_id,omitempty"`
	VendedorID      string              `json:"vendedor_id"`
	Moneda          string              `json:"moneda"`
	TipoCambio      decimal.Decimal     `json:"tipo_cambio"`
	MetodoPago      string              `json:"metodo_pago"`
	Contado         bool                `json:"contado"`
	Items           []ItemVentaResponse `json:"items"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	TasaImpuesto    decimal.Decimal     `json:"tasa_impuesto"`
	Impuesto        decimal.Decimal     `json:"impuesto"`
	Total           decimal.Decimal     `json:"total"`
	TotalBase       decimal.Decimal     `json:"total_base"`
	Anulada         bool                `json:"anulada"`
	MotivoAnulacion *string             `json:"motivo_anulacion,omitempty"`
	AnuladaAt       *string             `json:"anulada_at,omitempty"`
}
