// Package migrate applies the embedded kv schema before the postgres backend is used.
package migrate

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/and161185/logistics-keeper/migrations"
)

// gooseLogger routes goose progress output into zap.
type gooseLogger struct{ s *zap.SugaredLogger }

func (l gooseLogger) Printf(format string, v ...any) { l.s.Infof(format, v...) }
func (l gooseLogger) Fatalf(format string, v ...any) { l.s.Fatalf(format, v...) }

// Up brings the kv schema to the latest version.
func Up(ctx context.Context, dsn string, log *zap.Logger) error {
	return run(ctx, dsn, log, func(db *sql.DB) error { return goose.UpContext(ctx, db, ".") })
}

// Reset rolls every migration back. Used by `logictl store reset`.
func Reset(ctx context.Context, dsn string, log *zap.Logger) error {
	return run(ctx, dsn, log, func(db *sql.DB) error { return goose.ResetContext(ctx, db, ".") })
}

func run(_ context.Context, dsn string, log *zap.Logger, fn func(*sql.DB) error) error {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{s: log.Named("migrate").Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return fn(db)
}
