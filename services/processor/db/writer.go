package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/models"
)

// Beginner starts transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Writer persists captured values, one transaction per source document.
type Writer struct {
	db Beginner
}

// NewWriter creates a Writer over db.
func NewWriter(db Beginner) *Writer {
	return &Writer{db: db}
}

const insertCapturedValueSQL = `INSERT INTO valor_capturado (unixtime, "Parametros_pk", valor, estacao_id)
VALUES ($1, $2, $3, $4)`

// InsertCapturedValues writes rows atomically. Either every row is committed
// or none is, and failures wrap models.ErrPersistFailed.
func (w *Writer) InsertCapturedValues(ctx context.Context, rows []models.CapturedValue) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := w.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", models.ErrPersistFailed, err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			_ = rollbackErr
		}
	}()

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertCapturedValueSQL, r.Timestamp, r.BindingKey, r.Value, r.StationKey)
	}

	if err := execBatch(tx.SendBatch(ctx, batch), len(rows)); err != nil {
		return fmt.Errorf("%w: insert captured values: %w", models.ErrPersistFailed, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", models.ErrPersistFailed, err)
	}
	return nil
}

func execBatch(res pgx.BatchResults, n int) error {
	for i := 0; i < n; i++ {
		if _, err := res.Exec(); err != nil {
			_ = res.Close()
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return res.Close()
}
