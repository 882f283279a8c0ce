package infra

import (
	"fmt"
	"time"

	"cajapos/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormConfig is shared by every connection the ledger opens.
// TranslateError maps unique violations to gorm.ErrDuplicatedKey, which the
// transaction runner turns into a Conflict.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

// NewDatabase establishes a GORM connection backed by pgx, migrates the ledger
// tables, then applies the idempotent SQL patches that GORM cannot express.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), GormConfig())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every ledger table and seeds the drawer row.
// Series and currencies are seeded by the caller through EnsureSerie and
// EnsureMoneda.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}

	caja := model.Caja{ID: model.CajaPrincipalID, Nombre: "Caja principal"}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&caja).Error; err != nil {
		return fmt.Errorf("seed caja: %w", err)
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// EnsureSerie creates the series if it does not exist yet. An existing series
// keeps its counter and its active flag.
func EnsureSerie(db *gorm.DB, serie string) error {
	n := model.Numeracion{Serie: serie, Descripcion: "Serie por defecto", Activo: true}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&n).Error
}

// EnsureMoneda registers the base currency with rate 1.
func EnsureMoneda(db *gorm.DB, codigo string) error {
	m := model.Moneda{Codigo: codigo, Nombre: codigo, TipoCambio: decimal.NewFromInt(1), Activo: true}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error
}

// applySchemaPatches runs idempotent DDL statements that GORM AutoMigrate cannot
// fully handle on its own (partial indexes, CHECK constraints on existing
// tables). Each statement uses IF NOT EXISTS semantics so re-running on an
// already-patched DB is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// closing window scans only touch non-voided sales
		`CREATE INDEX IF NOT EXISTS idx_ventas_fecha_vigentes
		    ON ventas (fecha) WHERE anulada = false`,
		// low-stock sweep
		`CREATE INDEX IF NOT EXISTS idx_articulos_bajo_minimo
		    ON articulos (id) WHERE activo = true AND existencia <= stock_minimo`,
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_venta_items_cantidad') THEN
		    ALTER TABLE venta_items ADD CONSTRAINT chk_venta_items_cantidad CHECK (cantidad > 0);
		  END IF;
		END $$`,
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_numeraciones_correlativo') THEN
		    ALTER TABLE numeraciones ADD CONSTRAINT chk_numeraciones_correlativo CHECK (correlativo >= 0);
		  END IF;
		END $$`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
