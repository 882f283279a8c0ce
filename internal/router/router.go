package router

import (
	"time"

	"cajapos/internal/config"
	"cajapos/internal/handler"
	"cajapos/internal/infra"
	"cajapos/internal/middleware"
	"cajapos/internal/repository"
	"cajapos/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis.
// dispatcher may be nil; sales and closings then skip their after-commit jobs.
// smtpCB is the mail relay's breaker, reported on /health; nil when disabled.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, dispatcher service.Despachador, smtpCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.Prometheus())
	r.Use(middleware.CORS(cfg.CORSOrigin))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(rdb, cfg.RateLimit, time.Minute))

	// ── Repositories ─────────────────────────────────────────────────────────
	txRunner := repository.NewTxRunner(db, cfg.LockTimeout())
	repos := service.Repos{
		Articulos:    repository.NewArticuloRepository(db),
		Numeraciones: repository.NewNumeracionRepository(db),
		Ventas:       repository.NewVentaRepository(db),
		Devoluciones: repository.NewDevolucionRepository(db),
		Cierres:      repository.NewCierreRepository(db),
		Caja:         repository.NewCajaRepository(),
		Monedas:      repository.NewMonedaRepository(db),
	}
	movimientoStockRepo := repository.NewMovimientoStockRepository(db)
	historialPrecioRepo := repository.NewHistorialPrecioRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	pol := service.PoliticasDesdeConfig(cfg)
	inventarioSvc := service.NewInventarioService(txRunner, repos.Articulos, movimientoStockRepo)
	numeracionSvc := service.NewNumeracionService(txRunner, repos.Numeraciones)
	ventaSvc := service.NewVentaService(txRunner, repos, inventarioSvc, numeracionSvc, dispatcher, pol)
	devolucionSvc := service.NewDevolucionService(txRunner, repos, inventarioSvc, pol)
	cierreSvc := service.NewCierreService(txRunner, repos, dispatcher, pol)
	precioSvc := service.NewPrecioService(txRunner, repos.Articulos, historialPrecioRepo)

	// ── Handlers ─────────────────────────────────────────────────────────────
	ventasH := handler.NewVentasHandler(ventaSvc)
	devolucionesH := handler.NewDevolucionesHandler(devolucionSvc)
	cierresH := handler.NewCierresHandler(cierreSvc)
	numeracionesH := handler.NewNumeracionesHandler(numeracionSvc)
	articulosH := handler.NewArticulosHandler(inventarioSvc, precioSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, smtpCB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	todos := middleware.RequireRole("cajero", "supervisor", "administrador")
	supervision := middleware.RequireRole("supervisor", "administrador")
	admin := middleware.RequireRole("administrador")

	// Protected routes
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		v1.POST("/ventas", todos, ventasH.RegistrarVenta)
		v1.GET("/ventas", todos, ventasH.ListarVentas)
		v1.GET("/ventas/:id", todos, ventasH.ObtenerVenta)
		v1.DELETE("/ventas/:id", supervision, ventasH.AnularVenta)
		v1.GET("/ventas/:id/devoluciones", todos, devolucionesH.ListarPorVenta)

		v1.POST("/devoluciones", supervision, devolucionesH.RegistrarDevolucion)
		v1.GET("/devoluciones/:id", todos, devolucionesH.ObtenerDevolucion)

		cierres := v1.Group("/cierres")
		{
			cierres.POST("", todos, cierresH.Cerrar)
			cierres.GET("", supervision, cierresH.Listar)
			cierres.GET("/ultimo", todos, cierresH.Ultimo)
			cierres.GET("/previsualizar", todos, cierresH.Previsualizar)
		}

		num := v1.Group("/numeraciones")
		{
			num.GET("", todos, numeracionesH.Listar)
			num.POST("", admin, numeracionesH.Crear)
			num.DELETE("/:serie", admin, numeracionesH.Desactivar)
		}

		art := v1.Group("/articulos")
		{
			art.PATCH("/:id/stock", supervision, articulosH.AjustarStock)
			art.PUT("/:id/precio", admin, articulosH.ActualizarPrecio)
			art.GET("/:id/historial-precios", todos, articulosH.HistorialPrecios)
			art.GET("/:id/movimientos", supervision, articulosH.Movimientos)
		}

		v1.GET("/inventario/alertas", supervision, articulosH.AlertasStock)
	}

	// Swagger UI, only outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
