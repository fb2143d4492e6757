package onlinemis

import (
	"context"
	devenv "onlinemis-backend/dev/env"
	"onlinemis-backend/internal/components/telemetry"
	"onlinemis-backend/lib/testutil"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLivePortal(t *testing.T) {
	_, cleanup := testutil.SetupService(t, testutil.ServiceParams{Name: "scrapers/onlinemis"})
	defer cleanup()

	config, err := devenv.GetStateConfig[devenv.CasTestConfig]("cas_config.json5")
	if err != nil || config.Email == "" {
		t.Skip("skipping test because no valid test config was found at dev/.state/cas_config.json5")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	tel := &telemetry.RecordingAPI{}
	client, err := NewClient(ClientOptions{}, tel)
	require.NoError(t, err)

	upstream, err := client.Login(ctx, config.Email, config.Password)
	require.NoError(t, err)
	require.NotEmpty(t, upstream.Token)
	require.NotEmpty(t, upstream.Identity.Name)

	handlers := client.Handlers()
	query := ResourceQuery{Year: config.Year, Semester: Semester(config.Semester)}

	_, err = handlers.Home.Run(ctx, upstream.Token, NoQuery{})
	require.NoError(t, err)
	attendance, err := handlers.Attendance.Run(ctx, upstream.Token, query)
	require.NoError(t, err)
	require.NotEmpty(t, attendance.Years)
	_, err = handlers.Schedule.Run(ctx, upstream.Token, query)
	require.NoError(t, err)
	_, err = handlers.Grades.Run(ctx, upstream.Token, query)
	require.NoError(t, err)

	require.False(t, tel.Has("broken", "onlinemis: "+report_handler_run))
}
