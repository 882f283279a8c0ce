package model

import (
	"time"

	"github.com/google/uuid"
)

// Stock movement kinds.
const (
	MovVenta      = "venta"
	MovDevolucion = "devolucion"
	MovAnulacion  = "anulacion"
	MovAjuste     = "ajuste"
)

// MovimientoStock registra cada cambio de existencia de un articulo.
// Se crea en la misma transaccion que la modificacion.
type MovimientoStock struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ArticuloID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	Tipo          string     `gorm:"type:varchar(20);not null"`
	Cantidad      int        `gorm:"not null"` // positive = entrada, negative = salida
	StockAnterior int        `gorm:"not null"`
	StockNuevo    int        `gorm:"not null"`
	Motivo        string
	ReferenciaID  *uuid.UUID `gorm:"type:uuid"` // venta_id or devolucion_id
	CreatedAt     time.Time
}

// TableName overrides GORM's default pluralization (movimiento_stocks → movimientos_stock).
func (MovimientoStock) TableName() string { return "movimientos_stock" }
