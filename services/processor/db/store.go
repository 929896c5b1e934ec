package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/models"
)

const connectMaxElapsed = 30 * time.Second

// Store wraps relational metadata lookups.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool, retrying the initial ping until
// the database answers or the retry window closes.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, pool.Ping(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(connectMaxElapsed),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewFromPool wraps an existing pool.
func NewFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool so a Writer can share it.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const stationByUUIDSQL = `
    SELECT pk, uuid
    FROM estacoes
    WHERE uuid = $1
    LIMIT 1
`

// FindStationByUUID returns the station registered under uuid, or nil when
// there is none.
func (s *Store) FindStationByUUID(ctx context.Context, uuid string) (*models.Station, error) {
	var st models.Station
	err := s.pool.QueryRow(ctx, stationByUUIDSQL, uuid).Scan(&st.Key, &st.UUID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find station %s: %w", uuid, err)
	}
	return &st, nil
}

const stationBindingsSQL = `
    SELECT p.pk, p.tipo_parametro_pk, tp.json_id,
           COALESCE(p."offset", tp."offset"), COALESCE(p.fator, tp.fator)
    FROM parametro p
    JOIN tipo_parametro tp ON tp.pk = p.tipo_parametro_pk
    WHERE p.estacao_est_pk = $1
    ORDER BY p.pk
`

// FetchStationBindings loads every parameter bound to the station, with the
// binding's correction attributes falling back to the parameter type's.
func (s *Store) FetchStationBindings(ctx context.Context, stationKey int64) ([]models.Binding, error) {
	rows, err := s.pool.Query(ctx, stationBindingsSQL, stationKey)
	if err != nil {
		return nil, fmt.Errorf("fetch bindings for station %d: %w", stationKey, err)
	}
	defer rows.Close()

	bindings := make([]models.Binding, 0)
	for rows.Next() {
		var b models.Binding
		if err := rows.Scan(&b.Key, &b.ParameterTypeKey, &b.Code, &b.Offset, &b.Factor); err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}
