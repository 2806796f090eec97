package risk

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ResetScheduler fires ResetLosses at window boundaries: daily at
// midnight UTC, weekly on Monday midnight, monthly on the first of
// the month. The original system drove these resets from an external
// scheduler; here they run in-process.
type ResetScheduler struct {
	accountant *Accountant
	log        *zap.Logger
	now        func() time.Time
}

// NewResetScheduler creates a scheduler bound to the accountant.
func NewResetScheduler(accountant *Accountant, log *zap.Logger) *ResetScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ResetScheduler{
		accountant: accountant,
		log:        log.Named("risk-reset"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run blocks until ctx is cancelled, resetting each window as its
// boundary passes.
func (s *ResetScheduler) Run(ctx context.Context) {
	for {
		now := s.now()
		nextDay := nextMidnight(now)

		select {
		case <-ctx.Done():
			return
		case <-time.After(nextDay.Sub(now)):
		}

		boundary := s.now()
		s.reset(WindowDaily)
		if boundary.Weekday() == time.Monday {
			s.reset(WindowWeekly)
		}
		if boundary.Day() == 1 {
			s.reset(WindowMonthly)
		}
	}
}

func (s *ResetScheduler) reset(w Window) {
	if err := s.accountant.ResetLosses(w); err != nil {
		s.log.Error("scheduled reset failed",
			zap.String("window", string(w)),
			zap.Error(err))
	}
}

func nextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
