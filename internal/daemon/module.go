package daemon

import (
	"context"
	"net/http"
	"os"

	"github.com/matheus3301/wachat/internal/api"
	"github.com/matheus3301/wachat/internal/bus"
	"github.com/matheus3301/wachat/internal/clock"
	"github.com/matheus3301/wachat/internal/config"
	"github.com/matheus3301/wachat/internal/hub"
	"github.com/matheus3301/wachat/internal/lock"
	"github.com/matheus3301/wachat/internal/logging"
	"github.com/matheus3301/wachat/internal/session"
	"github.com/matheus3301/wachat/internal/store"
	intsync "github.com/matheus3301/wachat/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProcessName names the daemon's log file and logger component.
const ProcessName = "wachatd"

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	// Config is used as-is when set. Otherwise config.toml and WACHAT_*
	// variables are read.
	Config *config.Config
	// Addr overrides Config.Server.Addr, e.g. "127.0.0.1:0" in tests.
	Addr string
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideRegistry,
			provideHub,
			provideSyncEngine,
			provideRelay,
			provideSweeper,
			provideAPIHandler,
			provideRouter,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, nil
	}
	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName, ProcessName), p.SessionName, ProcessName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, cfg *config.Config, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName), listenAddr(p, cfg))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.AppDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideRegistry(cfg *config.Config, logger *zap.Logger) *hub.Registry {
	return hub.NewRegistry(clock.Real(), cfg.Hub.IdleTimeout.Duration, logger.Named("registry"))
}

func provideHub(reg *hub.Registry, logger *zap.Logger) *hub.Hub {
	return hub.New(reg, logger.Named("hub"))
}

func provideSyncEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, b, logger.Named("sync"))
}

func provideRelay(h *hub.Hub, b *bus.Bus, logger *zap.Logger) *hub.Relay {
	return hub.NewRelay(h, b, logger.Named("relay"))
}

func provideSweeper(reg *hub.Registry, cfg *config.Config, logger *zap.Logger) (*hub.Sweeper, error) {
	return hub.NewSweeper(reg, cfg.Hub.SweepInterval.Duration, logger.Named("sweeper"))
}

func provideAPIHandler(db *store.DB, engine *intsync.Engine, h *hub.Hub, logger *zap.Logger) *api.Handler {
	return api.NewHandler(db, engine, h, logger.Named("api"))
}

func provideRouter(handler *api.Handler, h *hub.Hub, cfg *config.Config, logger *zap.Logger) http.Handler {
	ws := hub.NewHandler(h, cfg.Server.AllowedOrigins, hub.ConnOptions{
		MaxMessageSize: cfg.Hub.MaxMessageSize,
		SendBuffer:     cfg.Hub.SendBuffer,
	}, logger.Named("ws"))
	return api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		WS:             ws,
	}, logger.Named("http"))
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, db *store.DB, h *hub.Hub, relay *hub.Relay, sweeper *hub.Sweeper, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Forward store changes to websocket clients.
			relay.Start(context.Background())
			sweeper.Start()

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}()

			logger.Info("daemon started", zap.String("addr", srv.Addr()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			h.Shutdown(ctx)
			sweeper.Stop()
			relay.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}

func listenAddr(p Params, cfg *config.Config) string {
	if p.Addr != "" {
		return p.Addr
	}
	return cfg.Server.Addr
}
