package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/and161185/logistics-keeper/internal/config"
	"github.com/and161185/logistics-keeper/internal/credentials"
	"github.com/and161185/logistics-keeper/internal/limiter"
	"github.com/and161185/logistics-keeper/internal/migrate"
	"github.com/and161185/logistics-keeper/internal/notify"
	"github.com/and161185/logistics-keeper/internal/remote"
	"github.com/and161185/logistics-keeper/internal/repository/postgres"
	"github.com/and161185/logistics-keeper/internal/restore"
	"github.com/and161185/logistics-keeper/internal/service"
	"github.com/and161185/logistics-keeper/internal/state"
	"github.com/and161185/logistics-keeper/internal/store"
	"github.com/and161185/logistics-keeper/internal/store/file"
	"github.com/and161185/logistics-keeper/internal/syncer"
)

// env holds the wired application for one invocation.
type env struct {
	cfg config.Config
	log *zap.Logger
	in  *bufio.Reader
	out io.Writer
	err io.Writer

	app     *state.App
	auth    service.AuthService
	orders  service.OrderService
	users   service.UserService
	restore *restore.Pipeline
	sync    *syncer.Coordinator
	reg     *prometheus.Registry

	unsubscribe func()
	closers     []func()
}

// newLogger builds a production JSON logger writing to w at the configured level.
func newLogger(cfg config.Config, w io.Writer) (*zap.Logger, error) {
	lvl, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), lvl)
	return zap.New(core).With(zap.String("version", version)), nil
}

// openBackend returns the durable store backend and the login limiter that matches it.
func openBackend(ctx context.Context, cfg config.Config, log *zap.Logger) (store.Backend, func(*store.Store) limiter.Limiter, func(), error) {
	local := func(st *store.Store) limiter.Limiter { return limiter.NewLocal(st, limiter.DefaultPolicy) }
	switch cfg.Store {
	case config.StoreMemory:
		return store.NewMemory(), local, func() {}, nil
	case config.StorePostgres:
		if err := migrate.Up(ctx, cfg.DSN, log); err != nil {
			return nil, nil, nil, fmt.Errorf("migrate up: %w", err)
		}
		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		pg := func(*store.Store) limiter.Limiter { return limiter.NewPG(db.Pool, limiter.DefaultPolicy) }
		return postgres.NewKV(db), pg, db.Close, nil
	default:
		b, err := file.Open(cfg.DataDir, log.Named("file"))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open data dir: %w", err)
		}
		return b, local, func() {}, nil
	}
}

// wire builds state, services and the sync coordinator, and subscribes the
// coordinator to state changes.
func wire(ctx context.Context, cfg config.Config, log *zap.Logger, in *bufio.Reader, out, errOut io.Writer) (*env, error) {
	backend, newLimiter, closeBackend, err := openBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: log, in: in, out: out, err: errOut, closers: []func(){closeBackend}}

	st := store.New(backend, log)
	e.app, err = state.Open(ctx, st, state.Options{BootstrapPassword: cfg.BootstrapPassword, Logger: log})
	if err != nil {
		closeBackend()
		return nil, err
	}
	key, err := cfg.SessionSigningKey()
	if err != nil {
		closeBackend()
		return nil, fmt.Errorf("session key: %w", err)
	}
	vault, err := credentials.NewVault(ctx, st, cfg.Passphrase, log)
	if err != nil {
		closeBackend()
		return nil, fmt.Errorf("credentials: %w", err)
	}

	e.auth = service.NewAuthService(e.app, key, cfg.SessionTTL, newLimiter(st), log)
	e.orders = service.NewOrderService(e.app)
	e.users = service.NewUserService(e.app)
	e.restore = restore.NewPipeline(e.app, log)
	e.reg = prometheus.NewRegistry()

	client := remote.New(cfg.RemoteURL,
		remote.WithCollection(cfg.Collection),
		remote.WithTimeout(cfg.RequestTimeout),
		remote.WithLogger(log),
	)
	e.sync = syncer.New(ctx, client, vault, e.app, e.restore, syncer.Options{
		Debounce:   cfg.Debounce,
		Retries:    cfg.PushRetries,
		Registerer: e.reg,
		Notifier:   notify.Multi{notify.NewWriter(errOut), notify.Log{L: log}},
		Logger:     log,
	})
	e.unsubscribe = e.app.Subscribe(e.sync.Observe)
	return e, nil
}

// close stops observing state and flushes a pending automatic push.
func (e *env) close(ctx context.Context) error {
	e.unsubscribe()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.RequestTimeout*2)
	defer cancel()
	err := e.sync.Close(ctx)
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	return err
}

func cmdStore(ctx context.Context, cfg config.Config, log *zap.Logger, args []string, out io.Writer) error {
	if cfg.Store != config.StorePostgres {
		return errors.New("store commands need -store postgres")
	}
	if len(args) < 1 {
		return errUsage
	}
	var err error
	switch args[0] {
	case "migrate":
		err = migrate.Up(ctx, cfg.DSN, log)
	case "reset":
		err = migrate.Reset(ctx, cfg.DSN, log)
	default:
		return errUsage
	}
	if err == nil {
		fmt.Fprintln(out, "ok")
	}
	return err
}
