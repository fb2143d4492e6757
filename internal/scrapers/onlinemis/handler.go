package onlinemis

import (
	"context"
	"fmt"
	"onlinemis-backend/internal/components/assert"
	"onlinemis-backend/internal/components/telemetry"
)

const (
	report_handler_run = "handler.run"
)

// FetchFunc performs the authenticated request for one resource.
type FetchFunc[Q any] func(ctx context.Context, token string, query Q) ([]byte, error)

// ValidateFunc classifies a fetched page as coming from a live session.
type ValidateFunc func(html []byte) bool

// ExtractFunc turns a page into its record, it performs no I/O.
type ExtractFunc[R any] func(html []byte) (R, error)

// HandlerState is a step of Handler.Run.
type HandlerState string

const (
	StateStart     HandlerState = "start"
	StateFetched   HandlerState = "fetched"
	StateValid     HandlerState = "valid"
	StateInvalid   HandlerState = "invalid"
	StateExtracted HandlerState = "extracted"
	StateExpired   HandlerState = "expired"
)

// Handler composes fetch, validate and extract for a single resource.
type Handler[Q, R any] struct {
	Resource Resource
	Fetch    FetchFunc[Q]
	Validate ValidateFunc
	Extract  ExtractFunc[R]

	tel telemetry.API
}

func NewHandler[Q, R any](resource Resource, fetch FetchFunc[Q], validate ValidateFunc, extract ExtractFunc[R], tel telemetry.API) Handler[Q, R] {
	assert.NotNil(fetch)
	assert.NotNil(validate)
	assert.NotNil(extract)
	assert.NotNil(tel)

	return Handler[Q, R]{
		Resource: resource,
		Fetch:    fetch,
		Validate: validate,
		Extract:  extract,
		tel:      tel,
	}
}

func (h Handler[Q, R]) transition(state HandlerState) {
	h.tel.ReportDebug(report_handler_run, h.Resource, state)
}

// Run fetches the page for query using token, and returns the extracted
// record. When the page is classified as coming from a dead session the
// extractor is never called and a *SessionExpiredError is returned, the
// caller has to log in again before retrying.
func (h Handler[Q, R]) Run(ctx context.Context, token string, query Q) (R, error) {
	var empty R

	h.transition(StateStart)
	html, err := h.Fetch(ctx, token, query)
	if err != nil {
		return empty, fmt.Errorf("%s: fetch: %w", h.Resource, err)
	}
	h.transition(StateFetched)

	if !h.Validate(html) {
		h.transition(StateInvalid)
		h.transition(StateExpired)
		return empty, &SessionExpiredError{Resource: h.Resource}
	}
	h.transition(StateValid)

	record, err := h.Extract(html)
	if err != nil {
		h.tel.ReportBroken(report_handler_run, h.Resource, err)
		return empty, err
	}
	h.transition(StateExtracted)
	return record, nil
}

// Handlers is the fixed table of resources the portal serves.
type Handlers struct {
	Home         Handler[NoQuery, HomeRecord]
	Attendance   Handler[ResourceQuery, AttendanceRecord]
	Schedule     Handler[ResourceQuery, ScheduleRecord]
	Grades       Handler[ResourceQuery, GradesRecord]
	Registration Handler[ResourceQuery, RegistrationRecord]
	Logbook      Handler[LogbookQuery, LogbookRecord]
}

// Handlers wires every resource's fetcher to its validator and extractor.
func (c *Client) Handlers() Handlers {
	return Handlers{
		Home:         NewHandler(ResourceHome, c.FetchHome, IsSessionValid, ExtractHome, c.tel),
		Attendance:   NewHandler(ResourceAttendance, c.FetchAttendance, IsSessionValid, ExtractAttendance, c.tel),
		Schedule:     NewHandler(ResourceSchedule, c.FetchSchedule, IsSessionValid, ExtractSchedule, c.tel),
		Grades:       NewHandler(ResourceGrades, c.FetchGrades, IsSessionValid, ExtractGrades, c.tel),
		Registration: NewHandler(ResourceRegistration, c.FetchRegistration, IsSessionValid, ExtractRegistration, c.tel),
		Logbook:      NewHandler(ResourceLogbook, c.FetchLogbook, IsLogbookSessionValid, ExtractLogbook, c.tel),
	}
}
