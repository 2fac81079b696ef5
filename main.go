package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/chxlky/sentry-trello/api"
	"github.com/chxlky/sentry-trello/database"
	"github.com/chxlky/sentry-trello/integrations"
	"github.com/chxlky/sentry-trello/internal/config"
	"github.com/chxlky/sentry-trello/plugin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger() *zap.Logger {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))
	if levelStr == "" {
		levelStr = "debug"
	}
	level, err := zapcore.ParseLevel(levelStr)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      true,
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// seedDefaultProject stores credentials from the config file so a fresh
// install has one usable project.
func seedDefaultProject(ctx context.Context, store plugin.OptionStore, cfg *config.Config) error {
	seeds := map[string]string{
		"trello:key":   cfg.Trello.APIKey,
		"trello:token": cfg.Trello.APIToken,
	}
	for key, value := range seeds {
		if value == "" {
			continue
		}
		current, err := store.GetOption(ctx, cfg.Trello.DefaultProject, key)
		if err != nil {
			return err
		}
		if current != "" {
			continue
		}
		if err := store.SetOption(ctx, cfg.Trello.DefaultProject, key, value); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	logger := newLogger()
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	cfg, err := config.Load(".")
	if err != nil {
		zap.L().Fatal("Error reading config file", zap.Error(err))
	}

	db := database.Init(cfg.Database.Path)
	sqlDB, _ := db.DB()

	store := database.NewOptionStore(db)
	if err := seedDefaultProject(context.Background(), store, cfg); err != nil {
		zap.L().Fatal("Failed to seed default project", zap.Error(err))
	}

	trelloCard := plugin.NewTrelloCard(store, func(key, token string) *integrations.TrelloClient {
		return integrations.NewTrelloClient(key, token,
			integrations.WithBaseURL(cfg.Trello.BaseURL),
			integrations.WithTimeout(cfg.Trello.Timeout),
		)
	})

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(&api.Handler{
		Plugin:    trelloCard,
		Groups:    database.NewGroups(db),
		URLPrefix: cfg.Host.URLPrefix,
	}, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	zap.L().Info("Starting server", zap.String("port", cfg.Server.Port), zap.String("plugin", trelloCard.Slug()))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("Server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	var once sync.Once

	cleanup := func(reason string) {
		zap.L().Info("Shutdown initiated", zap.String("reason", reason))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		zap.L().Info("Shutting down HTTP server...")
		if err := srv.Shutdown(ctx); err != nil {
			zap.L().Error("Error shutting down server", zap.Error(err))
		} else {
			zap.L().Info("HTTP server shut down gracefully.")
		}

		if sqlDB != nil {
			if err := sqlDB.Close(); err != nil {
				zap.L().Error("Error closing database", zap.Error(err))
			} else {
				zap.L().Info("Database connection closed.")
			}
		}
		close(done)
	}

	go func() {
		sig := <-sigCh
		once.Do(func() {
			cleanup(sig.String())
		})

		// a second signal exits immediately
		go func() {
			<-sigCh
			zap.L().Info("Second interrupt signal received. Exiting immediately.")
			os.Exit(1)
		}()
	}()

	<-done
	zap.L().Info("Exiting...")
}
