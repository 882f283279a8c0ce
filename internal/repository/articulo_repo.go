package repository

import (
	"context"

	"cajapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ArticuloRepository is the ledger's view of the catalog: lookups plus the
// conditional stock updates. Catalog CRUD lives outside this service.
type ArticuloRepository interface {
	Create(ctx context.Context, a *model.Articulo) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Articulo, error)
	FindByIDsTx(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]model.Articulo, error)
	ListBajoMinimo(ctx context.Context) ([]model.Articulo, error)

	// DecrementTx subtracts cantidad only if existencia >= cantidad. The
	// returned count is 0 when the guard rejected the update or the row is missing.
	DecrementTx(tx *gorm.DB, id uuid.UUID, cantidad int) (int64, error)
	IncrementTx(tx *gorm.DB, id uuid.UUID, cantidad int) (int64, error)
	ExistenciaTx(tx *gorm.DB, id uuid.UUID) (int, error)

	LockTx(tx *gorm.DB, id uuid.UUID) (*model.Articulo, error)
	UpdatePreciosTx(tx *gorm.DB, id uuid.UUID, costo, venta decimal.Decimal) error
}

type articuloRepo struct{ db *gorm.DB }

func NewArticuloRepository(db *gorm.DB) ArticuloRepository { return &articuloRepo{db: db} }

func (r *articuloRepo) Create(ctx context.Context, a *model.Articulo) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *articuloRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Articulo, error) {
	var a model.Articulo
	err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error
	return &a, err
}

func (r *articuloRepo) FindByIDsTx(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]model.Articulo, error) {
	var rows []model.Articulo
	if err := tx.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]model.Articulo, len(rows))
	for _, a := range rows {
		out[a.ID] = a
	}
	return out, nil
}

func (r *articuloRepo) ListBajoMinimo(ctx context.Context) ([]model.Articulo, error) {
	var rows []model.Articulo
	err := r.db.WithContext(ctx).
		Where("activo = ? AND existencia <= stock_minimo", true).
		Order("existencia ASC, nombre ASC").
		Find(&rows).Error
	return rows, err
}

// The WHERE guard and the SET run as one statement, so the row lock taken by
// the UPDATE serializes concurrent decrements on the same article.
func (r *articuloRepo) DecrementTx(tx *gorm.DB, id uuid.UUID, cantidad int) (int64, error) {
	res := tx.Model(&model.Articulo{}).
		Where("id = ? AND existencia >= ?", id, cantidad).
		Update("existencia", gorm.Expr("existencia - ?", cantidad))
	return res.RowsAffected, res.Error
}

func (r *articuloRepo) IncrementTx(tx *gorm.DB, id uuid.UUID, cantidad int) (int64, error) {
	res := tx.Model(&model.Articulo{}).
		Where("id = ?", id).
		Update("existencia", gorm.Expr("existencia + ?", cantidad))
	return res.RowsAffected, res.Error
}

func (r *articuloRepo) ExistenciaTx(tx *gorm.DB, id uuid.UUID) (int, error) {
	var a model.Articulo
	if err := tx.Select("existencia").First(&a, "id = ?", id).Error; err != nil {
		return 0, err
	}
	return a.Existencia, nil
}

func (r *articuloRepo) LockTx(tx *gorm.DB, id uuid.UUID) (*model.Articulo, error) {
	var a model.Articulo
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&a, "id = ?", id).Error
	return &a, err
}

func (r *articuloRepo) UpdatePreciosTx(tx *gorm.DB, id uuid.UUID, costo, venta decimal.Decimal) error {
	return tx.Model(&model.Articulo{}).Where("id = ?", id).Updates(map[string]interface{}{
		"precio_costo": costo,
		"precio_venta": venta,
	}).Error
}
