package handler

import (
	"net/http"

	"cajapos/internal/apierror"
	"cajapos/internal/dto"
	"cajapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type CierresHandler struct{ svc service.CierreService }

func NewCierresHandler(svc service.CierreService) *CierresHandler { return &CierresHandler{svc: svc} }

// Cerrar godoc
// @Summary      Cerrar caja
// @Description  Cierra el turno abierto: totaliza ventas y devoluciones desde el ultimo cierre y clasifica el desvio de efectivo.
// @Description  Un desvio critico (> 5%) exige observaciones.
// @Tags         cierres
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body     dto.CerrarCajaRequest true "Arqueo"
// @Success      201  {object} dto.CierreResponse
// @Failure      400  {object} apierror.APIError
// @Failure      409  {object} apierror.APIError
// @Router       /v1/cierres [post]
func (h *CierresHandler) Cerrar(c *gin.Context) {
	var req dto.CerrarCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	usuarioID, ok := usuarioActual(c)
	if !ok {
		return
	}
	resp, err := h.svc.Cerrar(c.Request.Context(), usuarioID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Ultimo godoc
// @Summary      Ultimo cierre
// @Tags         cierres
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.CierreResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/cierres/ultimo [get]
func (h *CierresHandler) Ultimo(c *gin.Context) {
	resp, err := h.svc.Ultimo(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Listar godoc
// @Summary      Historial de cierres
// @Tags         cierres
// @Produce      json
// @Security     BearerAuth
// @Param        page  query    int false "Pagina (default 1)"
// @Param        limit query    int false "Registros por pagina (default 20)"
// @Success      200   {object} dto.CierreListResponse
// @Router       /v1/cierres [get]
func (h *CierresHandler) Listar(c *gin.Context) {
	var filter dto.CierreFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		writeError(c, validationFromBind(err))
		return
	}
	if !validateStruct(c, &filter) {
		return
	}
	resp, err := h.svc.Listar(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Previsualizar godoc
// @Summary      Previsualizar cierre
// @Description  Calcula el cierre del turno abierto sin guardarlo. Sin efectivo_contado asume que la caja tiene lo esperado.
// @Tags         cierres
// @Produce      json
// @Security     BearerAuth
// @Param        efectivo_contado query    string false "Efectivo contado"
// @Success      200              {object} dto.CierreResponse
// @Failure      400              {object} apierror.APIError
// @Router       /v1/cierres/previsualizar [get]
func (h *CierresHandler) Previsualizar(c *gin.Context) {
	var contado *decimal.Decimal
	if raw, ok := c.GetQuery("efectivo_contado"); ok {
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			writeError(c, apierror.ValidationFields(map[string]string{"efectivo_contado": "monto invalido"}))
			return
		}
		contado = &d
	}
	resp, err := h.svc.Previsualizar(c.Request.Context(), contado)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
