package media

import (
	"context"
	"time"

	"github.com/roadwatch/dashcall/internal/core"
)

// NormalizeLevel maps a dBov reading (0 loudest, 127 silence) onto the
// 0..100 scale the status surface displays.
func NormalizeLevel(dbov uint8) int {
	if dbov >= core.AudioLevelSilence {
		return 0
	}
	return int(core.AudioLevelSilence-dbov) * 100 / int(core.AudioLevelSilence)
}

// LevelMeter periodically reports the normalized audio level. It is started
// when a call reaches the connected state and stopped the moment the state
// is left; once Stop returns no further report is delivered.
type LevelMeter struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func StartLevelMeter(ctx context.Context, period time.Duration, source func() uint8, report func(int)) *LevelMeter {
	ctx, cancel := context.WithCancel(ctx)
	m := &LevelMeter{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				report(NormalizeLevel(source()))
			}
		}
	}()
	return m
}

// Stop cancels the meter and waits for the sampling goroutine to exit.
func (m *LevelMeter) Stop() {
	m.cancel()
	<-m.done
}
