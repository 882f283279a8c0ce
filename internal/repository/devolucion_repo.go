package repository

import (
	"context"
	"time"

	"cajapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DevolucionRepository interface {
	CreateTx(tx *gorm.DB, d *model.Devolucion) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Devolucion, error)
	ListByVenta(ctx context.Context, ventaID uuid.UUID) ([]model.Devolucion, error)

	// DevueltoPorItemTx sums returned quantities per sale line.
	DevueltoPorItemTx(tx *gorm.DB, ventaID uuid.UUID) (map[uuid.UUID]int, error)
	CountByVentaTx(tx *gorm.DB, ventaID uuid.UUID) (int64, error)
	// ListEnVentanaTx returns returns with desde < fecha <= hasta.
	ListEnVentanaTx(tx *gorm.DB, desde, hasta time.Time) ([]model.Devolucion, error)
}

type devolucionRepo struct{ db *gorm.DB }

func NewDevolucionRepository(db *gorm.DB) DevolucionRepository { return &devolucionRepo{db: db} }

func (r *devolucionRepo) CreateTx(tx *gorm.DB, d *model.Devolucion) error {
	return tx.Create(d).Error
}

func (r *devolucionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Devolucion, error) {
	var d model.Devolucion
	err := r.db.WithContext(ctx).Preload("Items").First(&d, "id = ?", id).Error
	return &d, err
}

func (r *devolucionRepo) ListByVenta(ctx context.Context, ventaID uuid.UUID) ([]model.Devolucion, error) {
	var rows []model.Devolucion
	err := r.db.WithContext(ctx).Preload("Items").
		Where("venta_id = ?", ventaID).
		Order("fecha ASC").
		Find(&rows).Error
	return rows, err
}

func (r *devolucionRepo) DevueltoPorItemTx(tx *gorm.DB, ventaID uuid.UUID) (map[uuid.UUID]int, error) {
	var rows []struct {
		VentaItemID uuid.UUID
		Cantidad    int
	}
	err := tx.Table("devolucion_items di").
		Select("di.venta_item_id AS venta_item_id, SUM(di.cantidad) AS cantidad").
		Joins("JOIN devoluciones d ON d.id = di.devolucion_id").
		Where("d.venta_id = ?", ventaID).
		Group("di.venta_item_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]int, len(rows))
	for _, r := range rows {
		out[r.VentaItemID] = r.Cantidad
	}
	return out, nil
}

func (r *devolucionRepo) CountByVentaTx(tx *gorm.DB, ventaID uuid.UUID) (int64, error) {
	var n int64
	err := tx.Model(&model.Devolucion{}).Where("venta_id = ?", ventaID).Count(&n).Error
	return n, err
}

func (r *devolucionRepo) ListEnVentanaTx(tx *gorm.DB, desde, hasta time.Time) ([]model.Devolucion, error) {
	var rows []model.Devolucion
	err := tx.Where("fecha > ? AND fecha <= ?", desde, hasta).
		Order("fecha ASC").
		Find(&rows).Error
	return rows, err
}
