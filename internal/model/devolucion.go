package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Devolucion is an immutable return against an existing sale.
// MetodoPago is copied from the sale so the closing can allocate refunds to the
// drawer without joining back to ventas.
type Devolucion struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	VentaID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Fecha      time.Time       `gorm:"not null;index"`
	Motivo     string          `gorm:"not null"`
	UsuarioID  uuid.UUID       `gorm:"type:uuid;not null"`
	MetodoPago string          `gorm:"type:varchar(20);not null"`
	Contado    bool            `gorm:"not null"`
	Total      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TotalBase  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt  time.Time

	Items []DevolucionItem `gorm:"foreignKey:DevolucionID;constraint:OnDelete:CASCADE"`
}

func (Devolucion) TableName() string { return "devoluciones" }

type DevolucionItem struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	DevolucionID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	VentaItemID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	ArticuloID     uuid.UUID       `gorm:"type:uuid;not null"`
	Cantidad       int             `gorm:"not null"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Total          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (DevolucionItem) TableName() string { return "devolucion_items" }
