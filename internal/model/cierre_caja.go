package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CierreCaja is the immutable reconciliation of one shift, covering sales and
// returns dated in (Desde, Fecha]. Desde is unique: two closings can never
// claim the same window.
//
//	EfectivoEsperado = FondoInicial + VentasEfectivo − DevolucionesEfectivo
//	Diferencia       = EfectivoContado − EfectivoEsperado
type CierreCaja struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Desde time.Time `gorm:"not null;uniqueIndex"`
	Fecha time.Time `gorm:"not null;index"`

	FondoInicial        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	VentasEfectivo      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	VentasTarjeta       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	VentasTransferencia decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	VentasOtro          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	VentasCredito       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	VentasBrutas        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CantidadVentas      int             `gorm:"not null"`

	DevolucionesTotal    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	DevolucionesEfectivo decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CantidadDevoluciones int             `gorm:"not null"`

	EfectivoEsperado decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	EfectivoContado  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Diferencia       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// Clasificacion: "normal" | "advertencia" | "critico"
	Clasificacion  string          `gorm:"type:varchar(20);not null"`
	FondoSiguiente decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Observaciones  *string
	UsuarioID      uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt      time.Time
}

func (CierreCaja) TableName() string { return "cierres_caja" }

// Caja is the single cash drawer. Its row is the coordination point between
// sales (shared lock) and closings (exclusive lock).
type Caja struct {
	ID        int    `gorm:"primaryKey;autoIncrement:false"`
	Nombre    string `gorm:"not null"`
	CreatedAt time.Time
}

func (Caja) TableName() string { return "cajas" }

// CajaPrincipalID is the id of the only drawer row.
const CajaPrincipalID = 1
