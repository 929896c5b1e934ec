package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/models"
)

type nopLogger struct{}

func (*nopLogger) Printf(_ string, _ ...any) {}

var _ tclog.Logger = (*nopLogger)(nil)

// setupTestStore starts a Postgres container seeded with testdata/schema.sql.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("atmos"),
		postgres.WithUsername("atmos"),
		postgres.WithPassword("atmos"),
		postgres.WithInitScripts(filepath.Join("testdata", "schema.sql")),
		postgres.BasicWaitStrategies(),
		tc.WithLogger(&nopLogger{}),
	)
	tc.CleanupContainer(t, container)
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	return store
}

func countValues(t *testing.T, pool *pgxpool.Pool) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT count(*) FROM valor_capturado`).Scan(&n))
	return n
}

func TestStoreIntegration(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, store.Ping(ctx))
	})

	t.Run("find station", func(t *testing.T) {
		st, err := store.FindStationByUUID(ctx, "S-1")
		require.NoError(t, err)
		require.NotNil(t, st)
		assert.Equal(t, int64(1), st.Key)
		assert.Equal(t, "S-1", st.UUID)
	})

	t.Run("unknown station", func(t *testing.T) {
		st, err := store.FindStationByUUID(ctx, "S-404")
		require.NoError(t, err)
		assert.Nil(t, st)
	})

	t.Run("bindings with corrections", func(t *testing.T) {
		bindings, err := store.FetchStationBindings(ctx, 1)
		require.NoError(t, err)
		require.Len(t, bindings, 2)

		temp := bindings[0]
		assert.Equal(t, int64(10), temp.Key)
		assert.Equal(t, int64(1), temp.ParameterTypeKey)
		assert.Equal(t, "tempC", temp.Code)
		require.NotNil(t, temp.Offset)
		require.NotNil(t, temp.Factor)
		assert.InDelta(t, 0.5, *temp.Offset, 1e-9)
		assert.InDelta(t, 2.0, *temp.Factor, 1e-9)

		umid := bindings[1]
		assert.Equal(t, "umid", umid.Code)
		assert.Nil(t, umid.Offset)
		assert.Nil(t, umid.Factor)
	})

	t.Run("station without bindings", func(t *testing.T) {
		bindings, err := store.FetchStationBindings(ctx, 2)
		require.NoError(t, err)
		assert.Empty(t, bindings)
	})
}

func TestWriterIntegration(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	w := NewWriter(store.Pool())
	ts := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)

	t.Run("commits every row", func(t *testing.T) {
		err := w.InsertCapturedValues(ctx, []models.CapturedValue{
			{Timestamp: ts, StationKey: 1, BindingKey: 10, Value: 21.5},
			{Timestamp: ts, StationKey: 1, BindingKey: 11, Value: 60},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, countValues(t, store.Pool()))

		var valor float64
		var at time.Time
		require.NoError(t, store.Pool().QueryRow(ctx,
			`SELECT valor, unixtime FROM valor_capturado WHERE "Parametros_pk" = 10`).Scan(&valor, &at))
		assert.InDelta(t, 21.5, valor, 1e-9)
		assert.True(t, ts.Equal(at))
	})

	t.Run("rolls back when one row fails", func(t *testing.T) {
		before := countValues(t, store.Pool())
		err := w.InsertCapturedValues(ctx, []models.CapturedValue{
			{Timestamp: ts, StationKey: 1, BindingKey: 10, Value: 1},
			{Timestamp: ts, StationKey: 1, BindingKey: 999, Value: 2},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrPersistFailed)
		assert.Equal(t, before, countValues(t, store.Pool()))
	})

	t.Run("value overflow rolls back", func(t *testing.T) {
		before := countValues(t, store.Pool())
		err := w.InsertCapturedValues(ctx, []models.CapturedValue{
			{Timestamp: ts, StationKey: 1, BindingKey: 10, Value: 123456.7},
		})
		assert.ErrorIs(t, err, models.ErrPersistFailed)
		assert.Equal(t, before, countValues(t, store.Pool()))
	})
}
