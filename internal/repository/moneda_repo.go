package repository

import (
	"context"

	"cajapos/internal/model"

	"gorm.io/gorm"
)

type MonedaRepository interface {
	Create(ctx context.Context, m *model.Moneda) error
	FindByCodigo(ctx context.Context, codigo string) (*model.Moneda, error)
}

type monedaRepo struct{ db *gorm.DB }

func NewMonedaRepository(db *gorm.DB) MonedaRepository { return &monedaRepo{db: db} }

func (r *monedaRepo) Create(ctx context.Context, m *model.Moneda) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *monedaRepo) FindByCodigo(ctx context.Context, codigo string) (*model.Moneda, error) {
	var m model.Moneda
	err := r.db.WithContext(ctx).First(&m, "codigo = ?", codigo).Error
	return &m, err
}
