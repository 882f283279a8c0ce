// Package testutil opens throwaway ledger databases for tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"cajapos/internal/infra"
	"cajapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var seq atomic.Int64

// OpenDB returns a migrated in-memory SQLite database private to the test.
// A single connection serializes transactions the way row locks would.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:cajapos_%d_%s?mode=memory&cache=shared&_busy_timeout=5000&_foreign_keys=on",
		seq.Add(1), uuid.NewString()[:8])
	db, err := gorm.Open(sqlite.Open(dsn), infra.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, infra.Migrate(db))
	require.NoError(t, infra.EnsureSerie(db, "A"))
	require.NoError(t, infra.EnsureMoneda(db, "NIO"))
	return db
}

// Articulo inserts an active article with the given stock and sale price.
func Articulo(t *testing.T, db *gorm.DB, codigo string, existencia int, precio string) model.Articulo {
	t.Helper()
	a := model.Articulo{
		Codigo:      codigo,
		Nombre:      "Articulo " + codigo,
		PrecioCosto: decimal.RequireFromString(precio).Div(decimal.NewFromInt(2)).Round(2),
		PrecioVenta: decimal.RequireFromString(precio),
		Existencia:  existencia,
		Activo:      true,
	}
	require.NoError(t, db.Create(&a).Error)
	return a
}

// Existencia reads the current stock of an article.
func Existencia(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var a model.Articulo
	require.NoError(t, db.First(&a, "id = ?", id).Error)
	return a.Existencia
}

// Moneda registers an active currency at the given rate.
func Moneda(t *testing.T, db *gorm.DB, codigo, tipoCambio string) {
	t.Helper()
	m := model.Moneda{Codigo: codigo, Nombre: codigo, TipoCambio: decimal.RequireFromString(tipoCambio), Activo: true}
	require.NoError(t, db.Create(&m).Error)
}

// Dec is decimal.RequireFromString, short for table-heavy tests.
func Dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
