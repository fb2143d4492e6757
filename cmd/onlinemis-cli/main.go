package main

import (
	"onlinemis-backend/cmd/onlinemis-cli/commands"
	"onlinemis-backend/lib/serviceutil"
	"onlinemis-backend/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()
	telemetry.SetupFromEnv(ctx, "onlinemis-cli")
	defer telemetry.Shutdown(ctx)
	commands.ExecuteContext(ctx)
}
