package worker

// stock_alert_cron.go
// Scheduled sweep of articles at or below their minimum stock. The result is
// logged and cached in Redis so dashboards can read it without a query.

import (
	"context"
	"encoding/json"
	"time"

	"cajapos/internal/dto"

	"github.com/go-co-op/gocron"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// AlertasCacheKey holds the JSON of the last sweep.
const AlertasCacheKey = "inventario:alertas"

// AlertaSource is satisfied by service.InventarioService.
type AlertaSource interface {
	ObtenerAlertas(ctx context.Context) ([]dto.AlertaStockResponse, error)
}

// StartStockAlertCron schedules the sweep with a standard five-field cron
// expression in UTC. The returned scheduler must be stopped on shutdown.
func StartStockAlertCron(ctx context.Context, expr string, src AlertaSource, rdb *redis.Client) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(time.UTC)
	if _, err := s.Cron(expr).Do(func() { barrerAlertas(ctx, src, rdb) }); err != nil {
		return nil, err
	}
	s.StartAsync()
	log.Info().Str("cron", expr).Msg("stock_alert_cron: started")
	return s, nil
}

func barrerAlertas(ctx context.Context, src AlertaSource, rdb *redis.Client) int {
	alertas, err := src.ObtenerAlertas(ctx)
	if err != nil {
		log.Error().Err(err).Msg("stock_alert_cron: sweep failed")
		return 0
	}
	for _, a := range alertas {
		log.Warn().
			Str("articulo_id", a.ArticuloID).
			Str("codigo", a.Codigo).
			Int("existencia", a.Existencia).
			Int("stock_minimo", a.StockMinimo).
			Msg("stock_alert_cron: article below minimum")
	}
	if rdb != nil {
		data, err := json.Marshal(alertas)
		if err == nil {
			err = rdb.Set(ctx, AlertasCacheKey, data, 24*time.Hour).Err()
		}
		if err != nil {
			log.Warn().Err(err).Msg("stock_alert_cron: cache write failed")
		}
	}
	log.Info().Int("alertas", len(alertas)).Msg("stock_alert_cron: sweep done")
	return len(alertas)
}
