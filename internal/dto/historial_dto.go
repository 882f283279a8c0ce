package dto

import "github.com/shopspring/decimal"

// ActualizarPrecioRequest is the body of PUT /v1/articulos/:id/precio.
// A nil price keeps its current value.
type ActualizarPrecioRequest struct {
	PrecioVenta *decimal.Decimal `json:"precio_venta" validate:"omitempty,min=0"`
	PrecioCosto *decimal.Decimal `json:"precio_costo" validate:"omitempty,min=0"`
	Motivo      string           `json:"motivo"       validate:"omitempty,oneof=manual lista_proveedor ajuste_moneda"`
}

// HistorialPrecioItem is one row in the price-history list.
type HistorialPrecioItem struct {
	ID           string          `json:"id"`
	ArticuloID   string          `json:"articulo_id"`
	CostoAntes   decimal.Decimal `json:"costo_antes"`
	CostoDespues decimal.Decimal `json:"costo_despues"`
	VentaAntes   decimal.Decimal `json:"venta_antes"`
	VentaDespues decimal.Decimal `json:"venta_despues"`
	Motivo       string          `json:"motivo"`
	UsuarioID    string          `json:"usuario_id"`
	CreatedAt    string          `json:"created_at"`
}

// HistorialPrecioListResponse is returned by GET /v1/articulos/:id/historial-precios.
type HistorialPrecioListResponse struct {
	Data  []HistorialPrecioItem `json:"data"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}
