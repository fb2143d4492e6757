package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"onlinemis-backend/internal/components/chrono"
	"onlinemis-backend/internal/scrapers/onlinemis"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("internal/sessionstore")

// SQL is a Store kept in the `session` table of db.Schema, it survives
// restarts of the server.
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

func (s SQL) Get(ctx context.Context, id string) (onlinemis.UpstreamSession, error) {
	ctx, span := tracer.Start(ctx, "Get")
	defer span.End()

	var session onlinemis.UpstreamSession
	err := s.db.QueryRowContext(
		ctx,
		"select token, name, nrp, year, semester, week from session where id = ?",
		id,
	).Scan(
		&session.Token,
		&session.Identity.Name,
		&session.Identity.NRP,
		&session.Term.Year,
		&session.Term.Semester,
		&session.Term.Week,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return onlinemis.UpstreamSession{}, ErrNotFound
	}
	if err != nil {
		return onlinemis.UpstreamSession{}, fail(span, err)
	}
	return session, nil
}

func (s SQL) Set(ctx context.Context, id string, session onlinemis.UpstreamSession) error {
	ctx, span := tracer.Start(ctx, "Set")
	defer span.End()

	_, err := s.db.ExecContext(
		ctx,
		`insert into session(id, token, name, nrp, year, semester, week, created_at) values (?, ?, ?, ?, ?, ?, ?, ?)
		on conflict(id) do update set
			token = excluded.token,
			name = excluded.name,
			nrp = excluded.nrp,
			year = excluded.year,
			semester = excluded.semester,
			week = excluded.week`,
		id,
		session.Token,
		session.Identity.Name,
		session.Identity.NRP,
		session.Term.Year,
		int(session.Term.Semester),
		session.Term.Week,
		s.time.Now().Unix(),
	)
	if err != nil {
		return fail(span, err)
	}
	return nil
}

func (s SQL) Has(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Has")
	defer span.End()

	var count int
	err := s.db.QueryRowContext(ctx, "select count(*) from session where id = ?", id).Scan(&count)
	if err != nil {
		return false, fail(span, err)
	}
	return count > 0, nil
}

func (s SQL) Destroy(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Destroy")
	defer span.End()

	_, err := s.db.ExecContext(ctx, "delete from session where id = ?", id)
	if err != nil {
		return fail(span, err)
	}
	return nil
}
