package service

import (
	"context"
	"errors"
	"onlinemis-backend/internal/components/telemetry"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubSweeper struct {
	calls atomic.Int64
	err   error
}

func (s *stubSweeper) Sweep(ctx context.Context) (int64, error) {
	s.calls.Add(1)
	return 2, s.err
}

func TestSweepCacheDaemon(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		report string
	}{
		{name: "count", report: "count"},
		{name: "failure", err: errors.New("database is locked"), report: "warning"},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			sweeper := &stubSweeper{err: test.err}
			tel := &telemetry.RecordingAPI{}

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				SweepCacheDaemon(ctx, sweeper, time.Millisecond*5, tel)
				close(done)
			}()

			require.Eventually(t, func() bool {
				return sweeper.calls.Load() >= 2
			}, time.Second, time.Millisecond*5)
			cancel()
			<-done

			require.True(t, tel.Has(test.report, report_service_sweep))
		})
	}
}
