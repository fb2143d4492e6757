package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter             = otel.Meter("onlinemis/perf_stats")
	cpuGauge, _       = meter.Float64Gauge("process.cpu.usage", metric.WithUnit("%"))
	memoryGauge, _    = meter.Int64Gauge("process.memory.allocated", metric.WithUnit("MB"))
	liveObjects, _    = meter.Int64Gauge("process.memory.live_objects")
	goroutineGauge, _ = meter.Int64Gauge("process.goroutines")
)

// perfSample is one reading of the process gauges.
type perfSample struct {
	AllocatedMb int64
	LiveObjects int64
	Goroutines  int64
}

func readPerfSample() perfSample {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	return perfSample{
		AllocatedMb: int64(memStats.Alloc / 1_000_000),
		LiveObjects: int64(memStats.Mallocs) - int64(memStats.Frees),
		Goroutines:  int64(runtime.NumGoroutine()),
	}
}

// InstrumentPerfStats records process cpu, memory and goroutine gauges every
// interval until ctx is cancelled.
func InstrumentPerfStats(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			usage, err := cpu.PercentWithContext(ctx, time.Second, false)
			if err != nil || len(usage) == 0 {
				slog.WarnContext(ctx, "read cpu usage", "err", err)
			} else {
				cpuGauge.Record(ctx, usage[0])
			}

			sample := readPerfSample()
			memoryGauge.Record(ctx, sample.AllocatedMb)
			liveObjects.Record(ctx, sample.LiveObjects)
			goroutineGauge.Record(ctx, sample.Goroutines)
		}
	}()
}
