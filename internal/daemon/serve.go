package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/VentureIA/chorus/internal/api"
	"github.com/VentureIA/chorus/internal/config"
	"github.com/VentureIA/chorus/internal/db"
	"github.com/VentureIA/chorus/internal/dispatch"
	"github.com/VentureIA/chorus/internal/eventbus"
	"github.com/VentureIA/chorus/internal/intel"
	"github.com/VentureIA/chorus/internal/logging"
	"github.com/VentureIA/chorus/internal/store"
	"github.com/VentureIA/chorus/internal/webaccess"
	"github.com/VentureIA/chorus/internal/webui"
)

const shutdownTimeout = 10 * time.Second

// daemon is everything serve starts, built before any socket accepts.
type daemon struct {
	log    *slog.Logger
	api    *http.Server
	apiLn  net.Listener
	access *webaccess.Server
	webLn  net.Listener
	close  func()
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer d.close()
	return d.run(ctx)
}

func build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*daemon, error) {
	kv, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	d := &daemon{log: log, close: closeStore}

	hub := intel.New(intel.WithLogger(log))
	bus := eventbus.New(cfg.Events.Capacity)

	reg := dispatch.New()
	dispatch.RegisterIntel(reg, hub, bus, log)
	dispatch.RegisterStore(reg, kv)

	var access api.AccessControl
	if cfg.WebAccess.Enabled {
		ln, err := webaccess.Listen(cfg.WebAccess.Host, cfg.WebAccess.PortStart, cfg.WebAccess.PortEnd)
		if err != nil {
			closeStore()
			return nil, fmt.Errorf("web access: %w", err)
		}
		opts := []webaccess.Option{
			webaccess.WithAuthTimeout(cfg.WebAccess.AuthTimeout),
			webaccess.WithLogger(log),
		}
		if cfg.WebAccess.StaticDir != "" {
			if h, err := webui.Handler(cfg.WebAccess.StaticDir); err != nil {
				log.Warn("static assets disabled", "err", err)
			} else {
				opts = append(opts, webaccess.WithStatic(h))
			}
		}
		tokens := webaccess.NewTokenManager(cfg.WebAccess.TokenTTL, nil)
		d.access = webaccess.New(bus, reg, tokens, opts...)
		d.webLn = ln
		dispatch.RegisterStatus(reg, d.access)
		access = d.access
	}

	apiLn, err := net.Listen("tcp", cfg.Hub.Listen)
	if err != nil {
		if d.webLn != nil {
			_ = d.webLn.Close()
		}
		closeStore()
		return nil, fmt.Errorf("hub listen %s: %w", cfg.Hub.Listen, err)
	}
	d.apiLn = apiLn
	d.api = &http.Server{
		Handler:           api.New(hub, bus, access, log).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return d, nil
}

// run serves until ctx is cancelled or a server fails, then shuts both down.
func (d *daemon) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.log.Info("hub api listening", "addr", d.apiLn.Addr().String())
		if err := d.api.Serve(d.apiLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("hub api: %w", err)
		}
		return nil
	})
	if d.access != nil {
		g.Go(func() error { return d.access.Serve(d.webLn) })
	}

	g.Go(func() error {
		<-gctx.Done()
		d.log.Info("shutting down")
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if d.access != nil {
			errs = append(errs, d.access.Shutdown(shCtx))
		}
		errs = append(errs, d.api.Shutdown(shCtx))
		if err := errors.Join(errs...); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// openStore builds the KV backend named by store.backend. The returned
// func releases its connections.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.KV, func(), error) {
	switch cfg.Store.Backend {
	case "postgres":
		dbConn, err := db.Open(ctx, cfg.DB.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := db.ApplyMigrations(ctx, dbConn); err != nil {
			dbConn.Close()
			return nil, nil, err
		}
		log.Info("store backend", "backend", "postgres")
		return store.NewPostgres(dbConn), dbConn.Close, nil
	case "redis":
		rdb, err := store.OpenRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		log.Info("store backend", "backend", "redis")
		return store.NewRedis(rdb), func() { _ = rdb.Close() }, nil
	case "memory", "":
		return store.NewMemory(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
