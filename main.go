package main

import (
	"flag"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tank_sales/api"
	"tank_sales/internal/config"
	"tank_sales/internal/tanks"
)

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func newStorage(cfg *config.Config) (tanks.Storage, error) {
	if cfg.Database.URL == config.MemoryDatabase {
		return tanks.NewLocalStorage(), nil
	}
	return tanks.NewSQLiteStorage(cfg.Database.URL)
}

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(fmt.Errorf("error loading config: %v", err))
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("error building logger: %v", err))
	}
	defer logger.Sync()

	storage, err := newStorage(cfg)
	if err != nil {
		logger.Fatal("failed to open storage", zap.String("database_url", cfg.Database.URL), zap.Error(err))
	}
	defer storage.Close()

	r := gin.New()
	r.Use(gin.Recovery())
	api.InitRoutes(r, tanks.NewService(storage, logger), logger)

	logger.Info("starting server", zap.String("addr", cfg.Server.Addr))
	if err := r.Run(cfg.Server.Addr); err != nil {
		logger.Fatal("error trying to start server", zap.Error(err))
	}
}
