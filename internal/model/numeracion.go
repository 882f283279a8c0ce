package model

import "time"

// Numeracion is an invoice series. Correlativo holds the last number issued;
// the next sale on the series receives Correlativo+1.
type Numeracion struct {
	Serie       string `gorm:"type:varchar(10);primaryKey"`
	Descripcion string
	Correlativo int64 `gorm:"not null;default:0"`
	Activo      bool  `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Numeracion) TableName() string { return "numeraciones" }
