package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"onlinemis-backend/internal/components/assert"
	"onlinemis-backend/internal/components/chrono"
	"onlinemis-backend/internal/scrapers/onlinemis"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("internal/cache")

// Key identifies a cached record, it always belongs to a single identity.
type Key struct {
	Identity string
	Name     string
}

func (k Key) String() string {
	return k.Name
}

func termSuffix(q onlinemis.ResourceQuery) string {
	return fmt.Sprintf("%d:%d", q.Year, q.Semester)
}

// ResourceKey is the key of a term scoped resource, ex. `absen:<nrp>:2024:2`.
func ResourceKey(resource onlinemis.Resource, nrp string, q onlinemis.ResourceQuery) Key {
	assert.NotEmptyStr(nrp)
	return Key{
		Identity: nrp,
		Name:     fmt.Sprintf("%s:%s:%s", resourceName(resource), nrp, termSuffix(q)),
	}
}

// LogbookKey is the key of one logbook week, ex. `logbook:<nrp>:2024:2:3`.
func LogbookKey(nrp string, q onlinemis.LogbookQuery) Key {
	assert.NotEmptyStr(nrp)
	return Key{
		Identity: nrp,
		Name:     fmt.Sprintf("logbook:%s:%s:%d", nrp, termSuffix(q.ResourceQuery), q.Week),
	}
}

// HomeKey is the key of the announcements on the home page.
func HomeKey(nrp string) Key {
	assert.NotEmptyStr(nrp)
	return Key{Identity: nrp, Name: fmt.Sprintf("home:%s", nrp)}
}

// resourceName keeps the key prefixes the portal paths are named after.
func resourceName(resource onlinemis.Resource) string {
	switch resource {
	case onlinemis.ResourceAttendance:
		return "absen"
	case onlinemis.ResourceSchedule:
		return "jadwal"
	case onlinemis.ResourceGrades:
		return "nilai"
	case onlinemis.ResourceRegistration:
		return "frs"
	}
	return strings.ToLower(string(resource))
}

// SQL caches serialized records until the next midnight in Asia/Jakarta, the
// portal only publishes changes once a day.
type SQL struct {
	db   *sql.DB
	time chrono.TimeAPI
}

func NewSQL(db *sql.DB, time chrono.TimeAPI) SQL {
	return SQL{db: db, time: time}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Get returns the cached value of key, the second return value is false on a
// miss or if the entry has expired.
func (c SQL) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	ctx, span := tracer.Start(ctx, "Get")
	defer span.End()
	span.SetAttributes(attribute.String("key", key.Name))

	var value []byte
	err := c.db.QueryRowContext(
		ctx,
		"select value from cache_entry where key = ? and expires_at > ?",
		key.Name,
		c.time.Now().Unix(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetAttributes(attribute.Bool("hit", false))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fail(span, err)
	}
	span.SetAttributes(attribute.Bool("hit", true))
	return value, true, nil
}

// Set stores value under key until the next midnight.
func (c SQL) Set(ctx context.Context, key Key, value []byte) error {
	ctx, span := tracer.Start(ctx, "Set")
	defer span.End()
	span.SetAttributes(attribute.String("key", key.Name))

	now := c.time.Now()
	expiresAt := now.Add(chrono.UntilMidnight(now))

	_, err := c.db.ExecContext(
		ctx,
		`insert into cache_entry(key, identity, value, expires_at) values (?, ?, ?, ?)
		on conflict(key) do update set
			identity = excluded.identity,
			value = excluded.value,
			expires_at = excluded.expires_at`,
		key.Name,
		key.Identity,
		value,
		expiresAt.Unix(),
	)
	if err != nil {
		return fail(span, err)
	}
	return nil
}

func (c SQL) Delete(ctx context.Context, key Key) error {
	ctx, span := tracer.Start(ctx, "Delete")
	defer span.End()
	span.SetAttributes(attribute.String("key", key.Name))

	_, err := c.db.ExecContext(ctx, "delete from cache_entry where key = ?", key.Name)
	if err != nil {
		return fail(span, err)
	}
	return nil
}

// InvalidateIdentity drops every entry that belongs to identity.
func (c SQL) InvalidateIdentity(ctx context.Context, identity string) error {
	ctx, span := tracer.Start(ctx, "InvalidateIdentity")
	defer span.End()

	_, err := c.db.ExecContext(ctx, "delete from cache_entry where identity = ?", identity)
	if err != nil {
		return fail(span, err)
	}
	return nil
}

// Sweep removes expired entries and returns how many there were.
func (c SQL) Sweep(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "Sweep")
	defer span.End()

	res, err := c.db.ExecContext(ctx, "delete from cache_entry where expires_at <= ?", c.time.Now().Unix())
	if err != nil {
		return 0, fail(span, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fail(span, err)
	}
	return count, nil
}
