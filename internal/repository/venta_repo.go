package repository

import (
	"context"
	"time"

	"cajapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VentaFiltro is the parsed form of dto.VentaFilter.
type VentaFiltro struct {
	Desde  *time.Time
	Hasta  *time.Time
	Serie  string
	Estado string // vigente | anulada | all
	Page   int
	Limit  int
}

type VentaRepository interface {
	CreateTx(tx *gorm.DB, v *model.Venta) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error)
	FindByClave(ctx context.Context, clave string) (*model.Venta, error)
	List(ctx context.Context, filter VentaFiltro) ([]model.Venta, int64, error)

	// LockTx loads the sale with its lines and holds its row lock until the
	// transaction ends.
	LockTx(tx *gorm.DB, id uuid.UUID) (*model.Venta, error)
	AnularTx(tx *gorm.DB, id uuid.UUID, motivo string, at time.Time) error
	// ListVigentesTx returns non-voided sales with desde < fecha <= hasta.
	ListVigentesTx(tx *gorm.DB, desde, hasta time.Time) ([]model.Venta, error)
}

type ventaRepo struct{ db *gorm.DB }

func NewVentaRepository(db *gorm.DB) VentaRepository { return &ventaRepo{db: db} }

func (r *ventaRepo) CreateTx(tx *gorm.DB, v *model.Venta) error {
	return tx.Create(v).Error
}

func (r *ventaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	err := r.db.WithContext(ctx).Preload("Items").First(&v, "id = ?", id).Error
	return &v, err
}

func (r *ventaRepo) FindByClave(ctx context.Context, clave string) (*model.Venta, error) {
	var v model.Venta
	err := r.db.WithContext(ctx).Preload("Items").Where("clave_idempotencia = ?", clave).First(&v).Error
	return &v, err
}

func (r *ventaRepo) List(ctx context.Context, filter VentaFiltro) ([]model.Venta, int64, error) {
	var ventas []model.Venta
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Venta{})

	switch filter.Estado {
	case "vigente":
		q = q.Where("anulada = ?", false)
	case "anulada":
		q = q.Where("anulada = ?", true)
	}
	if filter.Serie != "" {
		q = q.Where("serie = ?", filter.Serie)
	}
	if filter.Desde != nil {
		q = q.Where("fecha >= ?", *filter.Desde)
	}
	if filter.Hasta != nil {
		q = q.Where("fecha <= ?", *filter.Hasta)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	err := q.Preload("Items").
		Order("fecha DESC, numero_factura DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&ventas).Error

	return ventas, total, err
}

func (r *ventaRepo) LockTx(tx *gorm.DB, id uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&v, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	if err := tx.Where("venta_id = ?", id).Find(&v.Items).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *ventaRepo) AnularTx(tx *gorm.DB, id uuid.UUID, motivo string, at time.Time) error {
	return tx.Model(&model.Venta{}).Where("id = ?", id).Updates(map[string]interface{}{
		"anulada":          true,
		"motivo_anulacion": motivo,
		"anulada_at":       at,
	}).Error
}

func (r *ventaRepo) ListVigentesTx(tx *gorm.DB, desde, hasta time.Time) ([]model.Venta, error) {
	var ventas []model.Venta
	err := tx.Where("anulada = ? AND fecha > ? AND fecha <= ?", false, desde, hasta).
		Order("fecha ASC").
		Find(&ventas).Error
	return ventas, err
}
