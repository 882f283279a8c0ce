package repository

import (
	"context"

	"cajapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CierreRepository interface {
	CreateTx(tx *gorm.DB, c *model.CierreCaja) error
	// UltimoTx returns the most recent closing by date, or gorm.ErrRecordNotFound.
	UltimoTx(tx *gorm.DB) (*model.CierreCaja, error)
	Ultimo(ctx context.Context) (*model.CierreCaja, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.CierreCaja, error)
	List(ctx context.Context, page, limit int) ([]model.CierreCaja, int64, error)
}

type cierreRepo struct{ db *gorm.DB }

func NewCierreRepository(db *gorm.DB) CierreRepository { return &cierreRepo{db: db} }

func (r *cierreRepo) CreateTx(tx *gorm.DB, c *model.CierreCaja) error {
	return tx.Create(c).Error
}

func (r *cierreRepo) UltimoTx(tx *gorm.DB) (*model.CierreCaja, error) {
	var c model.CierreCaja
	err := tx.Order("fecha DESC").First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *cierreRepo) Ultimo(ctx context.Context) (*model.CierreCaja, error) {
	return r.UltimoTx(r.db.WithContext(ctx))
}

func (r *cierreRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.CierreCaja, error) {
	var c model.CierreCaja
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *cierreRepo) List(ctx context.Context, page, limit int) ([]model.CierreCaja, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.CierreCaja{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []model.CierreCaja
	err := r.db.WithContext(ctx).
		Order("fecha DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&rows).Error
	return rows, total, err
}
