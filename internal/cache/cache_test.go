package cache

import (
	"context"
	"onlinemis-backend/internal/cache/db"
	"onlinemis-backend/internal/components/chrono"
	"onlinemis-backend/internal/scrapers/onlinemis"
	"onlinemis-backend/lib/testutil"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	term := onlinemis.ResourceQuery{Year: 2024, Semester: onlinemis.SemesterEven}

	testCases := []struct {
		key      Key
		expected string
	}{
		{key: ResourceKey(onlinemis.ResourceAttendance, "3122600001", term), expected: "absen:3122600001:2024:2"},
		{key: ResourceKey(onlinemis.ResourceSchedule, "3122600001", term), expected: "jadwal:3122600001:2024:2"},
		{key: ResourceKey(onlinemis.ResourceGrades, "3122600001", term), expected: "nilai:3122600001:2024:2"},
		{key: ResourceKey(onlinemis.ResourceRegistration, "3122600001", term), expected: "frs:3122600001:2024:2"},
		{
			key:      LogbookKey("3122600001", onlinemis.LogbookQuery{ResourceQuery: term, Week: 3}),
			expected: "logbook:3122600001:2024:2:3",
		},
		{key: HomeKey("3122600001"), expected: "home:3122600001"},
	}
	for _, test := range testCases {
		require.Equal(t, test.expected, test.key.String())
		require.Equal(t, "3122600001", test.key.Identity)
	}
}

func TestSQL(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "internal/cache",
		DbSchema: db.Schema,
	})
	defer cleanup()

	ctx := context.Background()
	clock := &chrono.FixedTime{At: time.Date(2024, time.March, 12, 22, 30, 0, 0, chrono.Jakarta())}
	cache := NewSQL(setup.DB, clock)

	term := onlinemis.ResourceQuery{Year: 2024, Semester: onlinemis.SemesterEven}
	attendance := ResourceKey(onlinemis.ResourceAttendance, "3122600001", term)
	grades := ResourceKey(onlinemis.ResourceGrades, "3122600001", term)
	other := ResourceKey(onlinemis.ResourceGrades, "3122600002", term)

	_, hit, err := cache.Get(ctx, attendance)
	require.NoError(t, err)
	require.False(t, hit)

	require.NoError(t, cache.Set(ctx, attendance, []byte(`{"courses":[]}`)))
	require.NoError(t, cache.Set(ctx, grades, []byte(`{"courses":[1]}`)))
	require.NoError(t, cache.Set(ctx, other, []byte(`{"courses":[2]}`)))

	value, hit, err := cache.Get(ctx, attendance)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, `{"courses":[]}`, string(value))

	// entries survive until midnight in Asia/Jakarta
	clock.At = time.Date(2024, time.March, 12, 23, 59, 59, 0, chrono.Jakarta())
	_, hit, err = cache.Get(ctx, grades)
	require.NoError(t, err)
	require.True(t, hit)

	require.NoError(t, cache.InvalidateIdentity(ctx, "3122600001"))
	_, hit, err = cache.Get(ctx, attendance)
	require.NoError(t, err)
	require.False(t, hit)
	_, hit, err = cache.Get(ctx, grades)
	require.NoError(t, err)
	require.False(t, hit)
	_, hit, err = cache.Get(ctx, other)
	require.NoError(t, err)
	require.True(t, hit)

	clock.At = time.Date(2024, time.March, 13, 0, 0, 0, 0, chrono.Jakarta())
	_, hit, err = cache.Get(ctx, other)
	require.NoError(t, err)
	require.False(t, hit)

	swept, err := cache.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), swept)
}

func TestSQLDelete(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "internal/cache",
		DbSchema: db.Schema,
	})
	defer cleanup()

	ctx := context.Background()
	cache := NewSQL(setup.DB, chrono.FixedTime{At: time.Date(2024, time.March, 12, 9, 0, 0, 0, chrono.Jakarta())})

	term := onlinemis.ResourceQuery{Year: 2024, Semester: onlinemis.SemesterEven}
	week3 := LogbookKey("3122600001", onlinemis.LogbookQuery{ResourceQuery: term, Week: 3})
	week4 := LogbookKey("3122600001", onlinemis.LogbookQuery{ResourceQuery: term, Week: 4})
	require.NoError(t, cache.Set(ctx, week3, []byte("3")))
	require.NoError(t, cache.Set(ctx, week4, []byte("4")))

	require.NoError(t, cache.Delete(ctx, week3))
	_, hit, err := cache.Get(ctx, week3)
	require.NoError(t, err)
	require.False(t, hit)
	_, hit, err = cache.Get(ctx, week4)
	require.NoError(t, err)
	require.True(t, hit)
}
