package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pyx-backend/internal/config"
	"pyx-backend/internal/metrics"
	"pyx-backend/internal/persist"
	"pyx-backend/internal/service"
	"pyx-backend/internal/storage"
	"pyx-backend/pkg/logger"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "pyx",
		Short:         "PyX assistant backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "./configs/config.yaml", "配置文件路径")

	root.AddCommand(newServeCommand(), newChatCommand(), newClassifyCommand(), newBackupCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is everything a command needs to drive assistants.
type app struct {
	cfg     *config.Config
	backend storage.Storage
	metrics *metrics.Metrics
	manager *service.Manager
}

func setup() (*app, error) {
	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	backend := storage.Open(cfg.Storage)
	m := metrics.NewMetrics()
	manager := service.NewManager(service.Deps{
		Config:  cfg,
		Store:   persist.NewStore(backend, cfg.Storage.KeyPrefix, cfg.Storage.SecretKey),
		Metrics: m,
	})
	return &app{cfg: cfg, backend: backend, metrics: m, manager: manager}, nil
}

func (r *app) shutdown(ctx context.Context) {
	if err := r.manager.Shutdown(ctx); err != nil {
		logger.Errorf("Failed to persist visitors on shutdown: %v", err)
	}
	if err := r.backend.Close(); err != nil {
		logger.Errorf("Failed to close storage: %v", err)
	}
}
