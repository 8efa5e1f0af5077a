package main

import (
	"fmt"
	"log"

	"soda-machine/internal/api"
	"soda-machine/internal/config"
	"soda-machine/internal/db"
	"soda-machine/internal/logger"
	"soda-machine/internal/metrics"
	"soda-machine/internal/service"
	"soda-machine/pkg"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := pkg.NewLogger(cfg.LogMode, cfg.LogFile)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func(l *zap.Logger) {
		_ = l.Sync()
	}(zapLogger)

	store, err := db.Open(cfg)
	if err != nil {
		zapLogger.Fatal("Failed to open storage", zap.String("storage", cfg.Storage), zap.Error(err))
	}
	defer store.Close()

	machineService := service.NewMachineService(store, zapLogger,
		service.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
		service.WithStrictDeposits(cfg.StrictDeposits),
	)
	authService := service.NewAuthService(zapLogger, cfg.JWTSecret, cfg.OperatorPassword)

	e := echo.New()
	e.HideBanner = true
	e.Use(logger.RequestLogger(zapLogger))

	api.RegisterHandlers(e, &api.Handlers{
		AuthService:    authService,
		MachineService: machineService,
		Logger:         zapLogger,
		JWTSecret:      cfg.JWTSecret,
	})

	port := fmt.Sprintf(":%s", cfg.ServerPort)
	zapLogger.Info("Starting server",
		zap.String("port", cfg.ServerPort),
		zap.String("storage", cfg.Storage),
		zap.Bool("strictDeposits", cfg.StrictDeposits))
	if err := e.Start(port); err != nil {
		zapLogger.Error("Failed to run server", zap.Error(err))
	}
}
