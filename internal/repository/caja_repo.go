package repository

import (
	"cajapos/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CajaRepository guards the drawer row. Sales and returns hold it shared so
// they run in parallel with each other; a closing holds it exclusively, so it
// waits for every in-flight sale to commit and no sale can start while the
// closing computes its window.
type CajaRepository interface {
	LockCompartidoTx(tx *gorm.DB) error
	LockExclusivoTx(tx *gorm.DB) error
}

type cajaRepo struct{}

func NewCajaRepository() CajaRepository { return &cajaRepo{} }

func (r *cajaRepo) LockCompartidoTx(tx *gorm.DB) error {
	return lockCaja(tx, "SHARE")
}

func (r *cajaRepo) LockExclusivoTx(tx *gorm.DB) error {
	return lockCaja(tx, "UPDATE")
}

func lockCaja(tx *gorm.DB, strength string) error {
	var c model.Caja
	return tx.Clauses(clause.Locking{Strength: strength}).
		Select("id").
		First(&c, "id = ?", model.CajaPrincipalID).Error
}
