package handler

import (
	"net/http"

	"cajapos/internal/dto"
	"cajapos/internal/service"

	"github.com/gin-gonic/gin"
)

type DevolucionesHandler struct{ svc service.DevolucionService }

func NewDevolucionesHandler(svc service.DevolucionService) *DevolucionesHandler {
	return &DevolucionesHandler{svc: svc}
}

// RegistrarDevolucion godoc
// @Summary      Registrar devolucion
// @Description  Devuelve articulos de una venta: repone stock y calcula el reembolso proporcional de cada linea.
// @Tags         devoluciones
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body     dto.RegistrarDevolucionRequest true "Lineas a devolver"
// @Success      201  {object} dto.DevolucionResponse
// @Failure      400  {object} apierror.APIError
// @Failure      404  {object} apierror.APIError
// @Failure      409  {object} apierror.APIError
// @Router       /v1/devoluciones [post]
func (h *DevolucionesHandler) RegistrarDevolucion(c *gin.Context) {
	var req dto.RegistrarDevolucionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	usuarioID, ok := usuarioActual(c)
	if !ok {
		return
	}
	resp, err := h.svc.RegistrarDevolucion(c.Request.Context(), usuarioID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ObtenerDevolucion godoc
// @Summary      Obtener devolucion
// @Tags         devoluciones
// @Produce      json
// @Security     BearerAuth
// @Param        id  path     string true "UUID de la devolucion"
// @Success      200 {object} dto.DevolucionResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/devoluciones/{id} [get]
func (h *DevolucionesHandler) ObtenerDevolucion(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerDevolucion(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListarPorVenta godoc
// @Summary      Devoluciones de una venta
// @Tags         devoluciones
// @Produce      json
// @Security     BearerAuth
// @Param        id  path     string true "UUID de la venta"
// @Success      200 {array}  dto.DevolucionResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/ventas/{id}/devoluciones [get]
func (h *DevolucionesHandler) ListarPorVenta(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ListarPorVenta(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
