package main

import (
	"context"
	"log/slog"
	"onlinemis-backend/lib/restyutil"
	"onlinemis-backend/lib/serviceutil"
	"onlinemis-backend/lib/telemetry"
	"os"
	"time"
)

// InitTelemetry sets up logging, otel exporters (when telemetry.json5
// exists) and perf stats. In verbose mode every upstream http exchange is
// also dumped to disk, the returned output is nil otherwise.
func InitTelemetry(ctx context.Context, verbose bool) restyutil.InstrumentOutput {
	telemetry.InitSlog(verbose)

	err := telemetry.SetupFromEnv(ctx, "onlinemis-server")
	if os.IsNotExist(err) {
		slog.Warn("telemetry.json5 not found, traces and metrics will not be exported")
	} else if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	telemetry.InstrumentPerfStats(ctx, time.Second*15)

	if !verbose {
		return nil
	}
	output, err := restyutil.NewFilesystemOutput("<dev_state>/resty/onlinemis")
	if err != nil {
		serviceutil.Fatal("create resty output", err)
	}
	return output
}

func ShutdownTelemetry() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	err := telemetry.Shutdown(ctx)
	if err != nil {
		slog.Error("shutdown telemetry", "err", err)
	}
}
