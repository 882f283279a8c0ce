package handler

import (
	"net/http"

	"cajapos/internal/dto"
	"cajapos/internal/service"

	"github.com/gin-gonic/gin"
)

type NumeracionesHandler struct{ svc service.NumeracionService }

func NewNumeracionesHandler(svc service.NumeracionService) *NumeracionesHandler {
	return &NumeracionesHandler{svc: svc}
}

// Listar godoc
// @Summary      Series de facturacion
// @Tags         numeraciones
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} dto.NumeracionResponse
// @Router       /v1/numeraciones [get]
func (h *NumeracionesHandler) Listar(c *gin.Context) {
	resp, err := h.svc.Listar(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Crear godoc
// @Summary      Crear serie
// @Tags         numeraciones
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body     dto.CrearNumeracionRequest true "Serie"
// @Success      201  {object} dto.NumeracionResponse
// @Failure      400  {object} apierror.APIError
// @Failure      409  {object} apierror.APIError
// @Router       /v1/numeraciones [post]
func (h *NumeracionesHandler) Crear(c *gin.Context) {
	var req dto.CrearNumeracionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Crear(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Desactivar godoc
// @Summary      Desactivar serie
// @Description  Una serie inactiva rechaza nuevas ventas; su correlativo se conserva.
// @Tags         numeraciones
// @Security     BearerAuth
// @Param        serie path string true "Serie"
// @Success      204
// @Failure      404 {object} apierror.APIError
// @Router       /v1/numeraciones/{serie} [delete]
func (h *NumeracionesHandler) Desactivar(c *gin.Context) {
	if err := h.svc.Desactivar(c.Request.Context(), c.Param("serie")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
