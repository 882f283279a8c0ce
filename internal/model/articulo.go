package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Articulo is the catalog entity the ledger consumes. Catalog maintenance owns
// every other column; the ledger only mutates Existencia and the two prices.
type Articulo struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Codigo      string          `gorm:"uniqueIndex;not null"`
	Nombre      string          `gorm:"index;not null"`
	PrecioCosto decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	PrecioVenta decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// Existencia never goes below zero; the CHECK backs up the guarded UPDATE.
	Existencia  int  `gorm:"not null;default:0;check:chk_articulos_existencia,existencia >= 0"`
	StockMinimo int  `gorm:"not null;default:0"`
	Activo      bool `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Articulo) TableName() string { return "articulos" }
