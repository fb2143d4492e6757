package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"onlinemis-backend/internal/cache"
	"onlinemis-backend/internal/components/chrono"
	"onlinemis-backend/internal/scrapers/onlinemis"
	"strconv"
)

type termParams struct {
	Year     int `validate:"gte=2000,lte=2100"`
	Semester int `validate:"oneof=1 2 3 4"`
}

type weekParams struct {
	termParams
	Week int `validate:"gte=1,lte=24"`
}

func intParam(values url.Values, name string, fallback int) (int, error) {
	raw := values.Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("%s must be a number, got %q", name, raw)
	}
	return n, nil
}

// defaultTerm is the term the portal reported at login, or the calendar
// term in its first week when it reported none.
func (s Service) defaultTerm(sess session) onlinemis.LogbookQuery {
	if sess.Upstream.Term.Validate() == nil {
		return sess.Upstream.Term
	}
	year, semester := chrono.CurrentTerm(s.time.Now())
	return onlinemis.LogbookQuery{
		ResourceQuery: onlinemis.ResourceQuery{Year: year, Semester: onlinemis.Semester(semester)},
		Week:          onlinemis.MinWeek,
	}
}

// termQuery reads `year` and `semester`, each defaults to the session's
// current term.
func (s Service) termQuery(sess session, values url.Values) (onlinemis.ResourceQuery, error) {
	fallback := s.defaultTerm(sess)
	year, semester := fallback.Year, int(fallback.Semester)

	params := termParams{}
	var err error
	params.Year, err = intParam(values, "year", year)
	if err != nil {
		return onlinemis.ResourceQuery{}, err
	}
	params.Semester, err = intParam(values, "semester", semester)
	if err != nil {
		return onlinemis.ResourceQuery{}, err
	}
	err = s.validate.Struct(params)
	if err != nil {
		return onlinemis.ResourceQuery{}, err
	}

	return onlinemis.ResourceQuery{
		Year:     params.Year,
		Semester: onlinemis.Semester(params.Semester),
	}, nil
}

// weekQuery is termQuery plus a `week` that defaults to the session's
// current week.
func (s Service) weekQuery(sess session, values url.Values) (onlinemis.LogbookQuery, error) {
	term, err := s.termQuery(sess, values)
	if err != nil {
		return onlinemis.LogbookQuery{}, err
	}
	week, err := intParam(values, "week", s.defaultTerm(sess).Week)
	if err != nil {
		return onlinemis.LogbookQuery{}, err
	}
	err = s.validate.Struct(weekParams{
		termParams: termParams{Year: term.Year, Semester: int(term.Semester)},
		Week:       week,
	})
	if err != nil {
		return onlinemis.LogbookQuery{}, err
	}
	return onlinemis.LogbookQuery{ResourceQuery: term, Week: week}, nil
}

// serveCached answers from the cache when it can, otherwise it runs handler
// and caches the record it produces until midnight.
func serveCached[Q, R any](
	s Service,
	w http.ResponseWriter,
	r *http.Request,
	sess session,
	key cache.Key,
	handler onlinemis.Handler[Q, R],
	query Q,
) {
	ctx := r.Context()

	cached, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		s.tel.ReportWarning(report_service_cache, key.String(), err)
	}
	if hit {
		writeData(w, json.RawMessage(cached))
		return
	}

	record, err := handler.Run(ctx, sess.Upstream.Token, query)
	if err != nil {
		s.fail(w, r, &sess, err)
		return
	}

	serialized, err := json.Marshal(record)
	if err != nil {
		s.fail(w, r, &sess, err)
		return
	}
	err = s.cache.Set(ctx, key, serialized)
	if err != nil {
		s.tel.ReportWarning(report_service_cache, key.String(), err)
	}
	writeData(w, json.RawMessage(serialized))
}

// requireTerm writes the error itself when the term query is invalid.
func (s Service) requireTerm(w http.ResponseWriter, r *http.Request, sess session) (onlinemis.ResourceQuery, bool) {
	q, err := s.termQuery(sess, r.URL.Query())
	if err != nil {
		s.fail(w, r, &sess, err)
		return onlinemis.ResourceQuery{}, false
	}
	return q, true
}

func (s Service) Home(w http.ResponseWriter, r *http.Request, sess session) {
	serveCached(s, w, r, sess, cache.HomeKey(sess.identity()), s.handlers.Home, onlinemis.NoQuery{})
}

func (s Service) Attendance(w http.ResponseWriter, r *http.Request, sess session) {
	q, ok := s.requireTerm(w, r, sess)
	if !ok {
		return
	}
	key := cache.ResourceKey(onlinemis.ResourceAttendance, sess.identity(), q)
	serveCached(s, w, r, sess, key, s.handlers.Attendance, q)
}

func (s Service) Schedule(w http.ResponseWriter, r *http.Request, sess session) {
	q, ok := s.requireTerm(w, r, sess)
	if !ok {
		return
	}
	key := cache.ResourceKey(onlinemis.ResourceSchedule, sess.identity(), q)
	serveCached(s, w, r, sess, key, s.handlers.Schedule, q)
}

func (s Service) Grades(w http.ResponseWriter, r *http.Request, sess session) {
	q, ok := s.requireTerm(w, r, sess)
	if !ok {
		return
	}
	key := cache.ResourceKey(onlinemis.ResourceGrades, sess.identity(), q)
	serveCached(s, w, r, sess, key, s.handlers.Grades, q)
}

func (s Service) Registration(w http.ResponseWriter, r *http.Request, sess session) {
	q, ok := s.requireTerm(w, r, sess)
	if !ok {
		return
	}
	key := cache.ResourceKey(onlinemis.ResourceRegistration, sess.identity(), q)
	serveCached(s, w, r, sess, key, s.handlers.Registration, q)
}

func (s Service) Logbook(w http.ResponseWriter, r *http.Request, sess session) {
	q, err := s.weekQuery(sess, r.URL.Query())
	if err != nil {
		s.fail(w, r, &sess, err)
		return
	}
	serveCached(s, w, r, sess, cache.LogbookKey(sess.identity(), q), s.handlers.Logbook, q)
}

// afterLogbookWrite drops the cached copy of the week that was written to.
func (s Service) afterLogbookWrite(ctx context.Context, sess session, q onlinemis.LogbookQuery) {
	err := s.cache.Delete(ctx, cache.LogbookKey(sess.identity(), q))
	if err != nil {
		s.tel.ReportWarning(report_service_cache, err)
	}
}
