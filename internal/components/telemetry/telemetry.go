package telemetry

import (
	"fmt"
	"sync"
)

// API is an abstraction over logging/metrics.
// This allows for assertions and tests for working logging/metrics to exist.
//
// note: fault injection point
type API interface {
	// ReportBroken reports a component that has broken in a way that should be addressed.
	//
	// The `id` is a fully qualified identifier that should indicate what **component** broke, not what specific piece
	// of the implementation of a component broke. If you came across the report in an admin dashboard in production,
	// you should be able to find the place that is broken from the id alone.
	//
	// ex. Suppose an HTTP request fails in the attendance fetcher. The id should be `fetch.attendance`, no more
	// granular than that. If you need to disambiguate and specify that it was HTTP that failed, add a param or wrap
	// the error with fmt.Errorf.
	//
	// Formatting rules:
	// 1) all lowercase
	// 2) use underscores for large components
	// 3) use dashes for methods part of a larger component
	//
	// Note: an id does not need to carry whether or not something broke, that is already given by calling
	// ReportBroken or ReportWarning. As such, ids like `cas.broken-login` should just be `cas.login`.
	ReportBroken(id string, params ...any)

	// ReportWarning reports a scenario that does not necessarily indicate brokenness, but may be subject to investigation
	//
	// For what value to provide as `id` refer to ReportBroken.
	ReportWarning(id string, params ...any)

	// ReportDebug reports some debug information that will be ignored in production
	ReportDebug(msg string, params ...any)

	// ReportCount reports the current count of a specific event at the current time, these counts should
	// not be summed but interpreted as points of data over time.
	//
	// For what value to provide as `id` refer to ReportBroken.
	ReportCount(id string, count int64)
}

// ScopedAPI is a telemetry API that attaches a namespace for a given API, kind of like creating a
// "sub" logger using things like log.New(), in which you can define the prefix for the logs.
type ScopedAPI struct {
	namespace string
	inner     API
}

// NewScopedAPI creates a ScopedAPI out of a given namespace and another api.
func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(fmt.Sprintf("%s: %s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(fmt.Sprintf("%s: %s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(fmt.Sprintf("%s: %s", s.namespace, msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(fmt.Sprintf("%s: %s", s.namespace, id), count)
}

// Report is a single call recorded by RecordingAPI.
type Report struct {
	Kind string
	Id   string
}

// RecordingAPI keeps the kind and id of every report in memory so tests can
// assert that a component reported what it should have.
type RecordingAPI struct {
	mutex   sync.Mutex
	reports []Report
}

func (r *RecordingAPI) record(kind, id string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.reports = append(r.reports, Report{Kind: kind, Id: id})
}

func (r *RecordingAPI) ReportBroken(id string, params ...any)  { r.record("broken", id) }
func (r *RecordingAPI) ReportWarning(id string, params ...any) { r.record("warning", id) }
func (r *RecordingAPI) ReportDebug(msg string, params ...any)  {}
func (r *RecordingAPI) ReportCount(id string, count int64)     { r.record("count", id) }

// Reports returns a copy of the reports recorded so far.
func (r *RecordingAPI) Reports() []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

// Has returns true if a report with the given kind and id was recorded.
func (r *RecordingAPI) Has(kind, id string) bool {
	for _, report := range r.Reports() {
		if report.Kind == kind && report.Id == id {
			return true
		}
	}
	return false
}
