package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IDs are generated in Go rather than by gen_random_uuid() so the same models
// work on every dialect the repositories run against.

func newID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (a *Articulo) BeforeCreate(*gorm.DB) error        { newID(&a.ID); return nil }
func (v *Venta) BeforeCreate(*gorm.DB) error           { newID(&v.ID); return nil }
func (i *VentaItem) BeforeCreate(*gorm.DB) error       { newID(&i.ID); return nil }
func (d *Devolucion) BeforeCreate(*gorm.DB) error      { newID(&d.ID); return nil }
func (i *DevolucionItem) BeforeCreate(*gorm.DB) error  { newID(&i.ID); return nil }
func (c *CierreCaja) BeforeCreate(*gorm.DB) error      { newID(&c.ID); return nil }
func (h *HistorialPrecio) BeforeCreate(*gorm.DB) error { newID(&h.ID); return nil }
func (m *MovimientoStock) BeforeCreate(*gorm.DB) error { newID(&m.ID); return nil }

// All lists every table the ledger owns, in creation order.
func All() []interface{} {
	return []interface{}{
		&Articulo{},
		&Moneda{},
		&Numeracion{},
		&Caja{},
		&Venta{},
		&VentaItem{},
		&Devolucion{},
		&DevolucionItem{},
		&CierreCaja{},
		&HistorialPrecio{},
		&MovimientoStock{},
	}
}
