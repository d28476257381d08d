package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradebotengine/internal/clock"
	"tradebotengine/internal/config"
	"tradebotengine/internal/engine"
	"tradebotengine/internal/exchange"
	"tradebotengine/internal/notifier"
	"tradebotengine/internal/obslog"
	"tradebotengine/internal/statusapi"
	"tradebotengine/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := obslog.New(obslog.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password,
		cfg.Database.Name, cfg.Database.SSLMode,
	)
	st, err := store.Open(dsn)
	if err != nil {
		logger.Fatalw("failed to connect to database", "err", err)
	}

	exFactory := exchange.NewFactory(
		exchange.Family(cfg.Exchange.Family),
		cfg.Exchange.BaseURL,
		cfg.Exchange.HTTPTimeout,
		cfg.Exchange.MaxClockRetries,
	)

	notify := notifier.NewLogNotifier(logger)
	eng := engine.New(st, exFactory, notify, clock.Real{}, logger, []byte(cfg.Security.EncryptionKey), cfg.Engine)

	ctx, cancelEngine := context.WithCancel(context.Background())
	eng.Start(ctx)

	router := statusapi.NewRouter(eng, logger)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infow("starting status api", "addr", server.Addr)
		var serveErr error
		if cfg.Server.UseHTTPS {
			serveErr = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			serveErr = server.ListenAndServe()
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Fatalw("status api failed", "err", serveErr)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infow("shutting down")
	cancelEngine()
	eng.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("status api forced shutdown", "err", err)
	}

	logger.Infow("shutdown complete")
}
