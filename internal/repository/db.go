package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"huddle-admin/backend/internal/config"
	"huddle-admin/backend/internal/logging"
	"huddle-admin/backend/pkg/models"
)

// OpenPostgres builds a pgx pool from cfg and hands it to GORM. The caller
// owns the returned pool and must close it after the gorm.DB is done.
func OpenPostgres(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*gorm.DB, *pgxpool.Pool, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.DB.MaxConns > 0 {
		poolConfig.MaxConns = cfg.DB.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db, err := OpenGorm(postgres.New(postgres.Config{Conn: stdlib.OpenDBFromPool(pool)}), logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return db, pool, nil
}

// OpenGorm opens a gorm.DB on the given dialector with the settings every
// environment shares.
func OpenGorm(dialector gorm.Dialector, logger *logging.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger: gormlogger.New(gormWriter{log: logger}, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the schema.
func Migrate(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)
	if err := db.AutoMigrate(
		&models.Tenant{},
		&models.Employee{},
		&models.Configuration{},
		&models.PromptInstance{},
		&models.Completion{},
		&models.GenerationRun{},
		&models.RatingMatch{},
		&models.RatingResponse{},
		&models.FinalWinner{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	// One non-terminal run per configuration. Both Postgres and SQLite accept
	// partial indexes in this form.
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uq_generation_runs_active
		ON generation_runs (configuration_id)
		WHERE status IN ('QUEUED', 'RUNNING')`).Error; err != nil {
		return fmt.Errorf("create active run index: %w", err)
	}
	return nil
}

type gormWriter struct {
	log *logging.Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.log.Warn(fmt.Sprintf(format, args...), "component", "gorm")
}
