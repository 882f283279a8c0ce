package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment methods accepted on a sale.
const (
	MetodoEfectivo      = "efectivo"
	MetodoTarjeta       = "tarjeta"
	MetodoTransferencia = "transferencia"
	MetodoOtro          = "otro"
)

// Venta is the sale aggregate. Once persisted its numeric contents never
// change; the only later mutation is voiding it (Anulada).
type Venta struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Serie         string     `gorm:"type:varchar(10);not null;uniqueIndex:idx_ventas_serie_numero"`
	NumeroFactura int64      `gorm:"not null;uniqueIndex:idx_ventas_serie_numero"`
	Fecha         time.Time  `gorm:"not null;index"`
	ClienteID     *uuid.UUID `gorm:"type:uuid"`
	VendedorID    uuid.UUID  `gorm:"type:uuid;not null"`

	MonedaCodigo string          `gorm:"type:varchar(3);not null"`
	TipoCambio   decimal.Decimal `gorm:"type:decimal(12,6);not null"`
	MetodoPago   string          `gorm:"type:varchar(20);not null"`
	// Contado is false for sales on credit; they never touch the drawer.
	Contado bool `gorm:"not null"`

	Subtotal     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TasaImpuesto decimal.Decimal `gorm:"type:decimal(5,4);not null"`
	Impuesto     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Total        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// TotalBase is Total converted to the base currency at TipoCambio.
	TotalBase decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	Anulada         bool `gorm:"not null;default:false"`
	MotivoAnulacion *string
	AnuladaAt       *time.Time

	ClaveIdempotencia *string `gorm:"type:varchar(64);uniqueIndex"`
	CreatedAt         time.Time

	Items []VentaItem `gorm:"foreignKey:VentaID;constraint:OnDelete:CASCADE"`
}

func (Venta) TableName() string { return "ventas" }

// VentaItem is one line (detalle) of a sale.
type VentaItem struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	VentaID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	ArticuloID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Cantidad       int             `gorm:"not null"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Descuento      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	// Monto = Cantidad × PrecioUnitario − Descuento
	Monto decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (VentaItem) TableName() string { return "venta_items" }
