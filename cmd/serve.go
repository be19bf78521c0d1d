package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pyx-backend/internal/handler"
	"pyx-backend/pkg/logger"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			cfg := rt.cfg

			router := handler.NewRouter(cfg, rt.manager, rt.metrics)

			// 创建HTTP服务器
			server := &http.Server{
				Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:        router,
				ReadTimeout:    cfg.Server.ReadTimeout,
				WriteTimeout:   cfg.Server.WriteTimeout,
				MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
			}

			serveErr := make(chan error, 1)
			go func() {
				logger.Infof("服务器启动在端口 %d", cfg.Server.Port)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
			}()

			// 等待信号优雅关闭
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-quit:
			case err := <-serveErr:
				rt.shutdown(context.Background())
				return fmt.Errorf("server failed: %w", err)
			}

			logger.Info("服务器正在关闭...")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				logger.Errorf("服务器关闭失败: %v", err)
			}
			rt.shutdown(ctx)
			logger.Info("服务器已关闭")
			return nil
		},
	}
}
