package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ProduceBlocks seals a block every interval until ctx is cancelled. The
// block open at cancellation is sealed before returning so no accepted call
// is lost on shutdown.
func (l *Ledger) ProduceBlocks(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("core: block interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if _, _, err := l.AdvanceBlock(); err != nil {
				return err
			}
			return nil
		case <-ticker.C:
			if _, _, err := l.AdvanceBlock(); err != nil {
				l.logger.Error("seal block failed", slog.Any("error", err))
				return err
			}
		}
	}
}
