package watcher

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/logging"
)

// Notifier accepts pass requests. *Coalescer satisfies it.
type Notifier interface {
	Notify()
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func()

func (f NotifierFunc) Notify() { f() }

// RunSchedule calls n.Notify on the standard cron spec until ctx is done.
// It picks up documents inserted while the change feed was down.
func RunSchedule(ctx context.Context, spec string, n Notifier, logger *zap.Logger) error {
	logger = logging.OrNop(logger).Named("schedule")

	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		logger.Debug("scheduled sync triggered")
		n.Notify()
	}); err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", spec, err)
	}

	c.Start()
	logger.Info("sync schedule started", zap.String("spec", spec))

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
