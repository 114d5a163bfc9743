package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/wfunc/pongserver/broadcast"
	"github.com/wfunc/pongserver/config"
	"github.com/wfunc/pongserver/engine"
	"github.com/wfunc/pongserver/logger"
	"github.com/wfunc/pongserver/monitor"
	"github.com/wfunc/pongserver/persistence"
	"github.com/wfunc/pongserver/server"
)

func main() {
	// Initialize logger
	logger.Init()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	db, err := persistence.NewGormPostgreSQL(
		cfg.Database.Postgres.Host,
		cfg.Database.Postgres.Port,
		cfg.Database.Postgres.User,
		cfg.Database.Postgres.Password,
		cfg.Database.Postgres.DBName,
	)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Log.Info("Database connection successful.")

	// Connection registry and delivery surface
	registry := broadcast.NewRegistry()
	broadcaster := broadcast.NewBroadcaster(registry)

	// Monitoring
	mon := monitor.NewMonitor("pongserver")
	mon.StartServer(cfg.Server.MetricsAddress)

	// Simulation engine
	eng := engine.New(db, broadcaster, cfg.Game)
	eng.SetMetrics(mon)
	eng.Start()

	// Pong Server
	pongServer := server.NewPongServer(cfg.Server, cfg.Game, db, eng, registry, mon)

	go func() {
		logger.Log.Infof("Starting pong server on %s", cfg.Server.HTTPAddress)
		if err := pongServer.Start(); err != nil {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// The engine stops first so no tick races the teardown, then the
	// listeners, then the store of record.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down.")
	eng.Shutdown()
	pongServer.Shutdown()
	if err := db.Close(); err != nil {
		logger.Log.Errorf("Failed to close database: %v", err)
	}
}
