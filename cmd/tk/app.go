package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/and161185/taskkeeper/internal/config"
	"github.com/and161185/taskkeeper/internal/credstore"
	"github.com/and161185/taskkeeper/internal/handlecache"
	"github.com/and161185/taskkeeper/internal/migrate"
	"github.com/and161185/taskkeeper/internal/model"
	"github.com/and161185/taskkeeper/internal/repository"
	"github.com/and161185/taskkeeper/internal/repository/firestore"
	"github.com/and161185/taskkeeper/internal/repository/postgres"
	"github.com/and161185/taskkeeper/internal/service"
	"github.com/and161185/taskkeeper/internal/transport"
)

// app holds the per-invocation dependencies.
type app struct {
	cfg   config.Config
	log   *zap.Logger
	reg   *prometheus.Registry
	http  *http.Client
	creds credstore.Store

	tasks   service.TaskService
	closers []func()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

func newApp(cfg config.Config) (*app, error) {
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	a := &app{
		cfg:   cfg,
		log:   log,
		reg:   reg,
		http:  transport.NewClient(log, transport.NewMetrics(reg), cfg.Timeout),
		creds: credstore.NewFile(cfg.CredDir, cfg.CredPassphrase),
	}
	return a, nil
}

// auth returns the gateway for commands that reach the identity service.
func (a *app) auth() (service.AuthService, error) {
	if err := a.cfg.ValidateAuth(); err != nil {
		return nil, err
	}
	return a.localAuth(), nil
}

// localAuth skips the API key check; for commands that only touch the credential store.
func (a *app) localAuth() service.AuthService {
	return service.NewAuthService(service.AuthConfig{
		IdentityURL:    a.cfg.IdentityURL,
		SecureTokenURL: a.cfg.SecureTokenURL,
		APIKey:         a.cfg.APIKey,
	}, a.http, a.creds, a.log)
}

// taskService wires the configured backend on first use.
func (a *app) taskService(ctx context.Context) (service.TaskService, error) {
	if a.tasks != nil {
		return a.tasks, nil
	}
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	var repo repository.TaskRepository
	switch a.cfg.Backend {
	case config.BackendPostgres:
		if err := migrate.Up(ctx, a.cfg.DSN); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		db, err := postgres.New(ctx, a.cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		repo = postgres.NewTaskRepo(db)
	default:
		repo = firestore.NewTaskRepo(firestore.Config{
			BaseURL:   a.cfg.FirestoreURL,
			ProjectID: a.cfg.ProjectID,
			Database:  a.cfg.Database,
			APIKey:    a.cfg.APIKey,
		}, a.http, a.handleCache(), a.log)
	}
	a.tasks = service.NewTaskService(a.creds, repo, model.NewIDGenerator(nil), a.log)
	return a.tasks, nil
}

// handleCache shares resolved handles across invocations through Redis when configured.
// A fresh process otherwise starts with an empty in-memory cache.
func (a *app) handleCache() handlecache.Cache {
	if a.cfg.RedisAddr == "" {
		return handlecache.NewMemory()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	})
	a.closers = append(a.closers, func() { _ = client.Close() })
	return handlecache.NewRedis(client, "", a.cfg.HandleTTL)
}

// close flushes metrics and releases resources.
func (a *app) close() error {
	var err error
	if a.cfg.MetricsTextfile != "" {
		if werr := prometheus.WriteToTextfile(a.cfg.MetricsTextfile, a.reg); werr != nil {
			err = errors.Join(err, fmt.Errorf("write metrics: %w", werr))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.log.Sync()
	return err
}
