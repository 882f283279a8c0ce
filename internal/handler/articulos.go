package handler

import (
	"net/http"

	"cajapos/internal/dto"
	"cajapos/internal/service"

	"github.com/gin-gonic/gin"
)

// ArticulosHandler exposes the stock and price operations on an article.
// Catalog CRUD is owned by another service.
type ArticulosHandler struct {
	inventario service.InventarioService
	precios    service.PrecioService
}

func NewArticulosHandler(inventario service.InventarioService, precios service.PrecioService) *ArticulosHandler {
	return &ArticulosHandler{inventario: inventario, precios: precios}
}

// AjustarStock godoc
// @Summary      Ajuste manual de stock
// @Description  Suma o resta delta unidades y registra el movimiento. Nunca deja la existencia negativa.
// @Tags         articulos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path     string                 true "UUID del articulo"
// @Param        body body     dto.AjusteStockRequest true "Ajuste"
// @Success      200  {object} dto.AjusteStockResponse
// @Failure      400  {object} apierror.APIError
// @Failure      404  {object} apierror.APIError
// @Router       /v1/articulos/{id}/stock [patch]
func (h *ArticulosHandler) AjustarStock(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.AjusteStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.inventario.Ajustar(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ActualizarPrecio godoc
// @Summary      Actualizar precio
// @Description  Cambia precio de venta y/o costo. Solo registra historial si algun precio cambia.
// @Tags         articulos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path     string                     true "UUID del articulo"
// @Param        body body     dto.ActualizarPrecioRequest true "Precios nuevos"
// @Success      200  {object} dto.HistorialPrecioItem
// @Success      204  "Sin cambios"
// @Failure      400  {object} apierror.APIError
// @Failure      404  {object} apierror.APIError
// @Router       /v1/articulos/{id}/precio [put]
func (h *ArticulosHandler) ActualizarPrecio(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ActualizarPrecioRequest
	if !bindAndValidate(c, &req) {
		return
	}
	usuarioID, ok := usuarioActual(c)
	if !ok {
		return
	}
	resp, err := h.precios.ActualizarPrecio(c.Request.Context(), id, usuarioID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	if resp == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HistorialPrecios godoc
// @Summary      Historial de precios de un articulo
// @Description  Retorna el historial inmutable de cambios de precio, ordenado por fecha descendente.
// @Tags         articulos
// @Produce      json
// @Security     BearerAuth
// @Param        id    path     string  true  "UUID del articulo"
// @Param        page  query    int     false "Pagina (default 1)"
// @Param        limit query    int     false "Registros por pagina (default 50, max 200)"
// @Success      200   {object} dto.HistorialPrecioListResponse
// @Failure      400   {object} apierror.APIError
// @Failure      404   {object} apierror.APIError
// @Router       /v1/articulos/{id}/historial-precios [get]
func (h *ArticulosHandler) HistorialPrecios(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.precios.Historial(c.Request.Context(), id, queryInt(c, "page", 1), queryInt(c, "limit", 50))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Movimientos godoc
// @Summary      Movimientos de stock de un articulo
// @Description  Auditoria de cada cambio de existencia (venta, devolucion, anulacion, ajuste).
// @Tags         articulos
// @Produce      json
// @Security     BearerAuth
// @Param        id    path     string  true  "UUID del articulo"
// @Param        tipo  query    string  false "venta | devolucion | anulacion | ajuste"
// @Param        referencia_id query string false "UUID de la venta, devolucion o anulacion"
// @Param        page  query    int     false "Pagina (default 1)"
// @Param        limit query    int     false "Registros por pagina (default 100, max 500)"
// @Success      200   {object} dto.MovimientoStockListResponse
// @Failure      400   {object} apierror.APIError
// @Failure      404   {object} apierror.APIError
// @Router       /v1/articulos/{id}/movimientos [get]
func (h *ArticulosHandler) Movimientos(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var filter dto.MovimientoStockFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		writeError(c, validationFromBind(err))
		return
	}
	if !validateStruct(c, &filter) {
		return
	}
	resp, err := h.inventario.Movimientos(c.Request.Context(), id, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AlertasStock godoc
// @Summary      Alertas de stock bajo
// @Description  Articulos activos con existencia menor o igual a su stock minimo.
// @Tags         inventario
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} dto.AlertaStockResponse
// @Router       /v1/inventario/alertas [get]
func (h *ArticulosHandler) AlertasStock(c *gin.Context) {
	resp, err := h.inventario.ObtenerAlertas(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
