package dto

import "github.com/shopspring/decimal"

type ItemDevolucionRequest struct {
	ArticuloID string `json:"articulo_id" validate:"required,uuid"`
	Cantidad   int    `json:"cantidad"    validate:"required,min=1"`
}

type RegistrarDevolucionRequest struct {
	VentaID string                  `json:"venta_id" validate:"required,uuid"`
	Motivo  string                  `json:"motivo"   validate:"required,min=3"`
	Items   []ItemDevolucionRequest `json:"items"    validate:"required,min=1,dive"`
}

type ItemDevolucionResponse struct {
	ArticuloID     string          `json:"articulo_id"`
	VentaItemID    string          `json:"venta_item_id"`
	Cantidad       int             `json:"cantidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	Total          decimal.Decimal `json:"total"`
}

type DevolucionResponse struct {
	ID         string                   `json:"id"`
	VentaID    string                   `json:"venta_id"`
	Fecha      string                   `json:"fecha"`
	Motivo     string                   `json:"motivo"`
	UsuarioID  string                   `json:"usuario_id"`
	MetodoPago string                   `json:"metodo_pago"`
	Items      []ItemDevolucionResponse `json:"items"`
	Total      decimal.Decimal          `json:"total"`
	TotalBase  decimal.Decimal          `json:"total_base"`
}
