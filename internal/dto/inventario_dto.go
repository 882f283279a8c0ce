package dto

// AjusteStockRequest is the body of PATCH /v1/articulos/:id/stock.
type AjusteStockRequest struct {
	Delta  int    `json:"delta"  validate:"required"` // non-zero; negative removes stock
	Motivo string `json:"motivo" validate:"required,min=3"`
}

type AjusteStockResponse struct {
	ArticuloID    string `json:"articulo_id"`
	StockAnterior int    `json:"stock_anterior"`
	StockNuevo    int    `json:"stock_nuevo"`
}

// AlertaStockResponse is one article at or below its minimum stock.
type AlertaStockResponse struct {
	ArticuloID  string `json:"articulo_id"`
	Codigo      string `json:"codigo"`
	Nombre      string `json:"nombre"`
	Existencia  int    `json:"existencia"`
	StockMinimo int    `json:"stock_minimo"`
	Faltante    int    `json:"faltante"`
}

// MovimientoStockFilter is bound from query string of GET /v1/articulos/:id/movimientos.
type MovimientoStockFilter struct {
	Tipo string `form:"tipo"  validate:"omitempty,oneof=venta devolucion anulacion ajuste"`
	// ReferenciaID narrows to the movements of one sale, return or void.
	ReferenciaID string `form:"referencia_id" validate:"omitempty,uuid"`
	Page         int    `form:"page,default=1"    validate:"min=1"`
	Limit        int    `form:"limit,default=100" validate:"min=1,max=500"`
}

type MovimientoStockResponse struct {
	ID            string  `json:"id"`
	Tipo          string  `json:"tipo"`
	Cantidad      int     `json:"cantidad"`
	StockAnterior int     `json:"stock_anterior"`
	StockNuevo    int     `json:"stock_nuevo"`
	Motivo        string  `json:"motivo"`
	ReferenciaID  *string `json:"referencia_id,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

type MovimientoStockListResponse struct {
	Data  []MovimientoStockResponse `json:"data"`
	Total int64                     `json:"total"`
	Page  int                       `json:"page"`
	Limit int                       `json:"limit"`
}
