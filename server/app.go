package server

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pulse/config"
	"pulse/internal/db"
	"pulse/internal/health"
	"pulse/internal/keyreg"
	"pulse/internal/logs"
	"pulse/internal/middleware"
	"pulse/internal/models"
	"pulse/internal/relay"
	"pulse/internal/repo"
	"pulse/internal/tsdb"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type App struct {
	cfg        *config.Config
	Router     *mux.Router
	httpServer *http.Server

	db     *gorm.DB
	ctx    context.Context
	cancel context.CancelFunc
}

func (a *App) Initialize(cfg *config.Config) {
	a.cfg = cfg

	// 1) Логи
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	// 2) БД (опционально: пустой driver — in-memory сторы)
	if drv := a.cfg.Database.Driver; drv != "" {
		d, err := db.Open(drv, a.cfg.Database.DSN)
		if err != nil {
			log.Fatalf("db open failed: %v", err)
		}
		a.db = d
	}

	// ---- DB migrations (only if DB is connected) ----
	if a.db != nil {
		if err := a.db.AutoMigrate(
			// key registry
			&models.Key{},
			&models.KeyOwner{},
			&models.PendingCommand{},
			&models.ActiveKey{},

			// time-series
			&models.MetricSample{},
		); err != nil {
			logs.Logger.Errorf("automigrate: %v", err)
		}
		if err := db.MigrateSampleIndex(a.db); err != nil {
			logs.Logger.Warnf("sample index migration: %v", err)
		}
	}

	// 3) Роутер + middleware
	a.Router = mux.NewRouter()
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(middleware.LoggerMW)

	// 4) Health маршруты
	if a.db != nil {
		health.RegisterRoutesWithDB(a.Router, a.db) // /healthz и /readyz
	} else {
		health.RegisterRoutes(a.Router) // только /healthz
	}

	// 5) Сторы: gorm если БД есть, иначе память
	var keyStore keyreg.Store
	var metricStore tsdb.Store
	if a.db != nil {
		keyStore = repo.NewKeyStore(a.db)
		metricStore = repo.NewMetricStore(a.db)
	} else {
		keyStore = keyreg.NewMemStore()
		metricStore = tsdb.NewMemStore()
	}
	registry := keyreg.New(keyStore)

	// 6) API: приём агентов + операторские ручки + выдача рядов
	relay.RegisterRoutes(a.Router, keyStore, metricStore)
	keyreg.NewHTTP(registry).RegisterRoutes(a.Router)
	tsdb.NewHTTP(metricStore, registry).RegisterRoutes(a.Router)

	a.Router.Walk(func(rt *mux.Route, r *mux.Router, ancestors []*mux.Route) error {
		path, _ := rt.GetPathTemplate()
		methods, _ := rt.GetMethods()
		log.Printf("route: %-6v %s", methods, path)
		return nil
	})
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return ErrNotInitialized
	}
	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() { <-sigs; a.cancel() }()

	a.httpServer = &http.Server{
		Addr:         bind,
		Handler:      a.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// TLS, если оператор подложил cert/key (генерация — вне ядра).
	// Агенты пинят именно этот сертификат.
	useTLS := a.cfg.Server.TLSCert != "" && a.cfg.Server.TLSKey != ""

	go func() {
		var err error
		if useTLS {
			log.Printf("HTTPS listening on %s", bind)
			err = a.httpServer.ListenAndServeTLS(a.cfg.Server.TLSCert, a.cfg.Server.TLSKey)
		} else {
			log.Printf("HTTP listening on %s (TLS disabled)", bind)
			err = a.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-a.ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.httpServer.Shutdown(ctx)
	return nil
}

var ErrNotInitialized = &initError{"server not initialized (call Initialize(cfg) first)"}

type initError struct{ s string }

func (e *initError) Error() string { return e.s }
