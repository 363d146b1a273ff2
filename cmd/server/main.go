// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/thaasbai/thaasbai/internal/admission"
	"github.com/thaasbai/thaasbai/internal/auth"
	"github.com/thaasbai/thaasbai/internal/config"
	"github.com/thaasbai/thaasbai/internal/coordinator"
	"github.com/thaasbai/thaasbai/internal/handlers"
)

func main() {
	cfg := config.New()
	cobra.CheckErr(config.NewCommand(cfg, run).Execute())
}

func run(cfg *config.Config) error {
	logger := logrus.New()
	if cfg.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if cfg.AdminPassword == config.DefaultAdminPassword {
		logger.Warn("ADMIN_PASSWORD is the shipped default; override it in deployment")
	}

	adm, err := auth.NewAdmin(cfg.AdminPassword)
	if err != nil {
		return err
	}

	coord := coordinator.New(logger)
	limiter := admission.New(cfg.MaxConnectionsPerIP, cfg.ConnectionRateLimit)

	router := httprouter.New()
	router.GET("/", handlers.Health(coord))
	router.GET("/ws", handlers.WS(logger, coord, limiter))
	router.POST("/admin/login", handlers.AdminLogin(logger, adm))
	router.GET("/admin/state", handlers.AdminState(adm, coord))
	router.GET("/qr/:gameType/:code", handlers.JoinQR(coord))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go coord.RunJanitor(ctx)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", cfg.Addr())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	}
}
