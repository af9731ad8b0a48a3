// Command fallenbot runs the anime request bot: Telegram long polling plus an
// optional ops HTTP server exposing health, metrics and read-only request
// listings.
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

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fallenrobot/fallenbot/internal/animechan"
	"github.com/fallenrobot/fallenbot/internal/bot"
	"github.com/fallenrobot/fallenbot/internal/catalog"
	"github.com/fallenrobot/fallenbot/internal/config"
	httpapi "github.com/fallenrobot/fallenbot/internal/http"
	"github.com/fallenrobot/fallenbot/internal/nekos"
	"github.com/fallenrobot/fallenbot/internal/observability"
	"github.com/fallenrobot/fallenbot/internal/ratelimit"
	"github.com/fallenrobot/fallenbot/internal/repo"
	"github.com/fallenrobot/fallenbot/internal/services"
	"github.com/fallenrobot/fallenbot/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	handlerTimeout = 30 * time.Second
	floodIdleTTL   = 10 * time.Minute
)

// store is what the wiring needs from either backend.
type store interface {
	services.RequestStore
	services.ChannelStore
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	started := time.Now()

	// A missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, started); err != nil {
		log.Fatal().Err(err).Msg("fallenbot stopped with error")
	}
	log.Info().Msg("fallenbot exited")
}

func setupLogging(cfg config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl := sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
	log.Logger = log.With().Str("service", "fallenbot").Str("version", version).Logger()
	log.Debug().Str("level", lvl.String()).Msg("logging configured")
}

func run(ctx context.Context, cfg config.Config, started time.Time) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn().Err(err).Msg("store close")
		}
	}()

	svc := services.NewRequestService(st, catalog.NewAniList(cfg.Upstream.AniListURL, cfg.Upstream.AniListTimeout))
	svc.Cooldown = cfg.Requests.Cooldown
	svc.MaxPending = int64(cfg.Requests.MaxPending)
	svc.ListLimit = cfg.Requests.ListLimit
	svc.LookupTimeout = cfg.Upstream.AniListTimeout

	api, err := newBotAPI(cfg.Bot)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	log.Info().Str("username", api.Self.UserName).Msg("authorized on telegram")

	flood := ratelimit.New(cfg.RateRPS, cfg.RateBurst, floodIdleTTL)
	router := bot.NewRouter(api, bot.Authorizer{Bot: api, IsSudo: cfg.Bot.IsSudo}, flood)
	bot.Register(router, bot.Deps{
		Requests:  svc,
		Reactions: nekos.NewClient(cfg.Upstream.NekosURL, cfg.Upstream.NekosTimeout),
		Quotes:    animechan.NewClient(cfg.Upstream.QuotesURL, cfg.Upstream.QuotesTimeout),
		Channels:  services.NewSubscriptionService(st),
		BotID:     api.Self.ID,
		Started:   started,
		DiskPath:  "/",
	})

	var srv *http.Server
	if cfg.OpsEnabled {
		srv = startOps(cfg, svc, st)
	}

	runner := &bot.Runner{
		Updates:        api,
		Router:         router,
		PollTimeout:    cfg.Bot.PollTimeout,
		HandlerTimeout: handlerTimeout,
		Sweepers: map[string]bot.Sweeper{
			"cooldowns": svc.SweepCooldowns,
			"flood":     flood.Sweep,
		},
	}
	log.Info().Str("backend", cfg.Store.Backend).Bool("ops", cfg.OpsEnabled).Msg("fallenbot started")
	err = runner.Run(ctx)

	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if serr := srv.Shutdown(sctx); serr != nil {
			log.Warn().Err(serr).Msg("ops server shutdown")
		}
	}
	return err
}

func openStore(ctx context.Context, cfg config.Config) (store, error) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		rdb, err := repo.OpenRedis(ctx, cfg.Store.RedisURL, cfg.Store.RedisTimeout)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		log.Info().Str("prefix", cfg.Store.RedisPrefix).Msg("using redis store")
		return repo.NewRedisStore(rdb, repo.WithRedisPrefix(cfg.Store.RedisPrefix)), nil
	default:
		db, err := repo.OpenSQLite(cfg.Store.DBPath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		if err := repo.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info().Str("path", cfg.Store.DBPath).Msg("using sqlite store")
		return repo.NewSQLStore(db), nil
	}
}

func newBotAPI(c config.BotConfig) (*tgbotapi.BotAPI, error) {
	var (
		api *tgbotapi.BotAPI
		err error
	)
	if c.APIEndpoint != "" {
		api, err = tgbotapi.NewBotAPIWithAPIEndpoint(c.Token, c.APIEndpoint)
	} else {
		api, err = tgbotapi.NewBotAPI(c.Token)
	}
	if err != nil {
		return nil, err
	}
	api.Debug = c.Debug
	return api, nil
}

func startOps(cfg config.Config, svc *services.RequestService, st store) *http.Server {
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{Requests: svc, Store: st}, cfg)
	srv := httpapi.NewServer(r, cfg)

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("ops server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ops server failed")
		}
	}()
	return srv
}
