package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/crestdesk/crestdesk-backend/internal/broker"
	"github.com/crestdesk/crestdesk-backend/internal/db"
	"github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
	"github.com/crestdesk/crestdesk-backend/internal/platform/deskapi"
	"github.com/crestdesk/crestdesk-backend/internal/realtime"
	"github.com/crestdesk/crestdesk-backend/internal/realtime/bus"
)

type App struct {
	Log       *logger.Logger
	DB        *gorm.DB
	Router    *gin.Engine
	Cfg       Config
	Repos     Repos
	Services  Services
	Hub       *realtime.Hub
	Broker    *broker.Broker
	bus       bus.Bus
	consumers Consumers
	cancel    context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig()

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	hub := realtime.NewHub(log)

	var realtimeBus bus.Bus
	if cfg.UseRedisBus {
		realtimeBus, err = bus.NewRedisBus(log)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init realtime bus: %w", err)
		}
	}

	platform, err := deskapi.NewFromEnv(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init platform client: %w", err)
	}

	amqpBroker, err := broker.Connect(log, broker.ConfigFromEnv())
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init broker: %w", err)
	}

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, cfg, reposet, hub, realtimeBus, platform)
	consumerset := wireConsumers(log, cfg, serviceset)
	router := wireRouter(log, hub)

	return &App{
		Log:       log,
		DB:        theDB,
		Router:    router,
		Cfg:       cfg,
		Repos:     reposet,
		Services:  serviceset,
		Hub:       hub,
		Broker:    amqpBroker,
		bus:       realtimeBus,
		consumers: consumerset,
	}, nil
}

func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.bus != nil {
		if err := a.bus.StartForwarder(ctx, a.Hub.Broadcast); err != nil {
			a.Log.Error("Failed to start realtime bus forwarder", "error", err)
		}
	}
	a.consumers.Start(ctx, a.Log, a.Broker)
}

func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("HTTP server listening", "addr", a.Cfg.HTTPAddr)
	return a.Router.Run(a.Cfg.HTTPAddr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Broker != nil {
		a.Broker.Close()
	}
	if a.bus != nil {
		_ = a.bus.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
