package repository

import (
	"context"

	"cajapos/internal/model"

	"gorm.io/gorm"
)

type NumeracionRepository interface {
	Create(ctx context.Context, n *model.Numeracion) error
	List(ctx context.Context) ([]model.Numeracion, error)
	FindBySerie(ctx context.Context, serie string) (*model.Numeracion, error)
	SetActivo(ctx context.Context, serie string, activo bool) (int64, error)

	// IncrementTx bumps the counter of an active series in a single statement.
	// It affects 0 rows when the series is unknown or inactive.
	IncrementTx(tx *gorm.DB, serie string) (int64, error)
	FindTx(tx *gorm.DB, serie string) (*model.Numeracion, error)
}

type numeracionRepo struct{ db *gorm.DB }

func NewNumeracionRepository(db *gorm.DB) NumeracionRepository { return &numeracionRepo{db: db} }

func (r *numeracionRepo) Create(ctx context.Context, n *model.Numeracion) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *numeracionRepo) List(ctx context.Context) ([]model.Numeracion, error) {
	var rows []model.Numeracion
	err := r.db.WithContext(ctx).Order("serie ASC").Find(&rows).Error
	return rows, err
}

func (r *numeracionRepo) FindBySerie(ctx context.Context, serie string) (*model.Numeracion, error) {
	return r.FindTx(r.db.WithContext(ctx), serie)
}

func (r *numeracionRepo) SetActivo(ctx context.Context, serie string, activo bool) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Numeracion{}).
		Where("serie = ?", serie).
		Update("activo", activo)
	return res.RowsAffected, res.Error
}

func (r *numeracionRepo) IncrementTx(tx *gorm.DB, serie string) (int64, error) {
	res := tx.Model(&model.Numeracion{}).
		Where("serie = ? AND activo = ?", serie, true).
		Update("correlativo", gorm.Expr("correlativo + 1"))
	return res.RowsAffected, res.Error
}

func (r *numeracionRepo) FindTx(tx *gorm.DB, serie string) (*model.Numeracion, error) {
	var n model.Numeracion
	err := tx.First(&n, "serie = ?", serie).Error
	return &n, err
}
