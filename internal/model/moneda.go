package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Moneda holds the current exchange rate of a currency against the base
// currency (units of base currency per unit of Codigo).
type Moneda struct {
	Codigo     string          `gorm:"type:varchar(3);primaryKey"`
	Nombre     string          `gorm:"not null"`
	TipoCambio decimal.Decimal `gorm:"type:decimal(12,6);not null"`
	Activo     bool            `gorm:"not null"`
	UpdatedAt  time.Time
}

func (Moneda) TableName() string { return "monedas" }
