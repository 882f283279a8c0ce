package dto

type CrearNumeracionRequest struct {
	Serie       string `json:"serie"       validate:"required,alphanum,max=10"`
	Descripcion string `json:"descripcion" validate:"max=120"`
	// CorrelativoInicial is the last number already used on paper, if any.
	CorrelativoInicial int64 `json:"correlativo_inicial" validate:"min=0"`
}

type NumeracionResponse struct {
	Serie       string `json:"serie"`
	Descripcion string `json:"descripcion"`
	Correlativo int64  `json:"correlativo"`
	Activo      bool   `json:"activo"`
}
