package repository_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"

	"huddle-admin/backend/internal/logging"
	"huddle-admin/backend/internal/repository"
	"huddle-admin/backend/internal/repository/repotest"
	"huddle-admin/backend/internal/services"
	"huddle-admin/backend/pkg/models"
)

func TestPostgres_ConcurrentStartRun(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("test-db"),
		tcpostgres.WithUsername("user"),
		tcpostgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	db, err := repository.OpenGorm(postgres.New(postgres.Config{Conn: stdlib.OpenDBFromPool(pool)}), logging.NewNop())
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(ctx, db))

	store := repository.NewGormStore(db, logging.NewNop())
	tenant := repotest.SeedTenant(t, db, "acme.test")
	cfg := repotest.SeedConfiguration(t, db, tenant.ID, 2)
	for i := 0; i < 3; i++ {
		repotest.SeedInstance(t, db, cfg.ID, models.InstancePending)
	}
	orch := services.NewOrchestrator(store, logging.NewNop(), nil)
	admin := models.Session{UserID: "admin", Role: models.RoleTenantAdmin, TenantID: tenant.ID}

	t.Run("exactly one run wins", func(t *testing.T) {
		var ok, busy atomic.Int32
		var g errgroup.Group
		for i := 0; i < 10; i++ {
			g.Go(func() error {
				_, err := orch.StartRun(ctx, admin, cfg.ID)
				switch {
				case err == nil:
					ok.Add(1)
				case errors.Is(err, services.ErrRunAlreadyInProgress):
					busy.Add(1)
				default:
					return err
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
		assert.EqualValues(t, 1, ok.Load())
		assert.EqualValues(t, 9, busy.Load())
		assert.EqualValues(t, 1, repotest.Count(t, db, &models.GenerationRun{}, "configuration_id = ?", cfg.ID))
	})

	t.Run("concurrent force-complete seeds one bracket", func(t *testing.T) {
		var inst models.PromptInstance
		require.NoError(t, db.Where("configuration_id = ?", cfg.ID).First(&inst).Error)
		repotest.SeedCompletions(t, db, inst.ID, 4)

		var g errgroup.Group
		for i := 0; i < 5; i++ {
			g.Go(func() error {
				_, err := orch.ForceComplete(ctx, admin, cfg.ID)
				return err
			})
		}
		require.NoError(t, g.Wait())
		assert.EqualValues(t, 2, repotest.Count(t, db, &models.RatingMatch{}, "prompt_instance_id = ?", inst.ID))
	})
}
