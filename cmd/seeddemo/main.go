// cmd/seeddemo/main.go: carga articulos, series y monedas de demo.
// Idempotente: re-ejecutarlo no duplica filas ni pisa existencias.
// Uso: go run ./cmd/seeddemo
package main

import (
	"fmt"
	"os"

	"cajapos/internal/config"
	"cajapos/internal/infra"
	"cajapos/internal/model"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}

	for _, serie := range []string{cfg.DefaultSeries, "B"} {
		if err := infra.EnsureSerie(db, serie); err != nil {
			log.Fatal().Err(err).Str("serie", serie).Msg("seed serie")
		}
	}
	if err := infra.EnsureMoneda(db, cfg.BaseCurrency); err != nil {
		log.Fatal().Err(err).Msg("seed moneda base")
	}
	usd := model.Moneda{Codigo: "USD", Nombre: "Dolar estadounidense", TipoCambio: decimal.RequireFromString("36.624300"), Activo: true}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&usd).Error; err != nil {
		log.Fatal().Err(err).Msg("seed USD")
	}

	articulos := []model.Articulo{
		{Codigo: "CUA-100", Nombre: "Cuaderno 100 hojas", PrecioCosto: decimal.RequireFromString("2.50"), PrecioVenta: decimal.RequireFromString("5.00"), Existencia: 120, StockMinimo: 20, Activo: true},
		{Codigo: "LAP-HB", Nombre: "Lapiz HB", PrecioCosto: decimal.RequireFromString("0.20"), PrecioVenta: decimal.RequireFromString("0.50"), Existencia: 500, StockMinimo: 100, Activo: true},
		{Codigo: "BOR-01", Nombre: "Borrador blanco", PrecioCosto: decimal.RequireFromString("0.15"), PrecioVenta: decimal.RequireFromString("0.40"), Existencia: 8, StockMinimo: 30, Activo: true},
		{Codigo: "MOC-ESC", Nombre: "Mochila escolar", PrecioCosto: decimal.RequireFromString("18.00"), PrecioVenta: decimal.RequireFromString("34.99"), Existencia: 15, StockMinimo: 5, Activo: true},
	}
	creados := 0
	for i := range articulos {
		res := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "codigo"}}, DoNothing: true}).Create(&articulos[i])
		if res.Error != nil {
			log.Fatal().Err(res.Error).Str("codigo", articulos[i].Codigo).Msg("seed articulo")
		}
		creados += int(res.RowsAffected)
	}
	fmt.Printf("Seed listo: %d articulos nuevos, series %s/B, monedas %s/USD\n", creados, cfg.DefaultSeries, cfg.BaseCurrency)
}
