package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/Myudi422/youtube-telegram-downloader/core/config"
	coredatabase "github.com/Myudi422/youtube-telegram-downloader/core/database"
	"github.com/Myudi422/youtube-telegram-downloader/core/logger"
)

// Options control the bootstrap pipeline. Nil funcs fall back to the core implementations.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coreconfig.DatabaseConfig) (*sqlx.DB, error)
	Migrate    func(coreconfig.DatabaseConfig) error

	// Hooks run in order once infrastructure is up.
	Hooks []Hook
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
// DB is nil unless sessions are persisted in PostgreSQL.
type Result struct {
	Config *coreconfig.Config
	DB     *sqlx.DB
}

// Close releases the database pool if one was opened.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger and, for the postgres session backend, connects
// to the database and applies migrations. Hooks run last.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result{Config: opts.Config}
	if opts.Config.Sessions.Backend == coreconfig.SessionsPostgres {
		connect := opts.Connect
		if connect == nil {
			connect = coredatabase.Connect
		}
		db, err := connect(opts.Config.Database)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}
		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(opts.Config.Database); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
		res.DB = db
	}

	if err := runHooks(ctx, opts.Hooks, res); err != nil {
		_ = res.Close()
		return nil, err
	}
	return res, nil
}
