package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-mafia/backend/internal/config"
	"github.com/zhouzirui/z-mafia/backend/internal/handler"
	"github.com/zhouzirui/z-mafia/backend/internal/handler/realtime"
	"github.com/zhouzirui/z-mafia/backend/internal/logging"
	"github.com/zhouzirui/z-mafia/backend/internal/model/profile"
	"github.com/zhouzirui/z-mafia/backend/internal/service/mafia"
	"github.com/zhouzirui/z-mafia/backend/internal/service/narrator"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Info("no .env file loaded, continuing with system environment variables only", zap.Error(envErr))
	}

	profiles, err := newProfileStore(cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to initialize profile store", zap.Error(err))
	}

	// Initialize narrator (LLM with template fallback)
	var narration mafia.Narrator = narrator.Static{}
	if cfg.AI.Enabled() {
		llm, err := newLLMNarrator(ctx, cfg.AI, logger)
		if err != nil {
			logger.Warn("failed to initialize LLM narrator, using templates", zap.Error(err))
		} else {
			narration = llm
			logger.Info("LLM narrator initialized", zap.String("model", cfg.AI.Model))
		}
	} else {
		logger.Info("ark credentials not configured, using template narration")
	}

	hub := realtime.NewHub(nil, logger.Named("realtime"))
	svc := mafia.NewService(mafia.Options{
		Timeouts: mafia.Timeouts{
			Join:  cfg.Game.JoinTimeout,
			Night: cfg.Game.NightTimeout,
			Day:   cfg.Game.DayTimeout,
		},
		MaxPlayers:    cfg.Game.MaxPlayers,
		MaxSessionAge: cfg.Game.MaxSessionAge,
		SweepSpec:     cfg.Game.SweepSpec,
		QueueSize:     cfg.Game.QueueSize,
		Notifier:      hub,
		Profiles:      profiles,
		Narrator:      narration,
		Logger:        logger.Named("mafia"),
	})
	hub.Attach(svc)
	if err := svc.Start(ctx); err != nil {
		logger.Fatal("failed to start game service", zap.Error(err))
	}
	defer svc.Close()

	router := handler.NewRouter(handler.Deps{
		Games:          svc,
		Profiles:       profiles,
		Hub:            hub,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger.Named("http"),
	})

	startServer(ctx, cfg.Server, router, logger)
}

func newProfileStore(cfg config.DatabaseConfig, logger *zap.Logger) (profile.Store, error) {
	if !cfg.Enabled() {
		logger.Info("DATABASE_DSN not set, keeping player profiles in memory")
		return profile.NewMemoryStore(), nil
	}
	db, err := profile.OpenPostgres(cfg.DSN, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to profile database")
	return profile.NewGormStore(db)
}

func newLLMNarrator(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (*narrator.LLM, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, err
	}
	return narrator.NewLLM(ctx, chatModel, cfg.Language, logger.Named("narrator"))
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("Z Mafia backend listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
