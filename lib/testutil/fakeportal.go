package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
)

const (
	FakeEmail       = "budi@it.student.pens.ac.id"
	FakePassword    = "rahasia"
	FakeLoginTicket = "LT-4821-fkdL0qPzXc"
	FakeNRP         = "3122600001"

	fakeCasSession = "JSESSIONID"
	fakeSession    = "PHPSESSID"
)

// RecordedRequest is what the fake portal saw of one request.
type RecordedRequest struct {
	Method string
	Header http.Header
	Query  url.Values
	Form   url.Values
	// Files maps a multipart field name to the uploaded contents.
	Files map[string][]byte
}

type FakePortalOptions struct {
	// OmitLoginTicket makes the CAS login page come without an `lt` field.
	OmitLoginTicket bool
	// OmitCasSession makes the CAS login page come without a JSESSIONID.
	OmitCasSession bool
	// RejectWrites makes every logbook save answer with a rejection banner.
	RejectWrites bool
	// OmitCurrentTerm makes the logbook entry page answer without the onload
	// call that carries the current term.
	OmitCurrentTerm bool
}

// FakePortal runs a CAS server and a portal server that answer with the
// recorded pages under pages/. Every successful login issues a new
// session token, the portal only serves its pages to the latest one.
type FakePortal struct {
	Cas    *httptest.Server
	Portal *httptest.Server

	mutex    sync.Mutex
	opts     FakePortalOptions
	logins   int
	token    string
	requests map[string][]RecordedRequest
}

func NewFakePortal(opts FakePortalOptions) *FakePortal {
	f := &FakePortal{
		opts:     opts,
		requests: map[string][]RecordedRequest{},
	}
	f.Cas = httptest.NewServer(http.HandlerFunc(f.serveCas))
	f.Portal = httptest.NewServer(http.HandlerFunc(f.servePortal))
	return f
}

// CasUrl is the login url to configure a client with.
func (f *FakePortal) CasUrl() string {
	return f.Cas.URL + "/cas/login"
}

func (f *FakePortal) Close() {
	f.Cas.Close()
	f.Portal.Close()
}

// Token returns the session token issued by the latest login.
func (f *FakePortal) Token() string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.token
}

// Logins returns the number of successful logins so far.
func (f *FakePortal) Logins() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.logins
}

// Expire invalidates the current session token.
func (f *FakePortal) Expire() {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.token = ""
}

func (f *FakePortal) SetRejectWrites(reject bool) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.opts.RejectWrites = reject
}

func (f *FakePortal) options() FakePortalOptions {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.opts
}

// Requests returns every request the portal received on path.
func (f *FakePortal) Requests(path string) []RecordedRequest {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	out := make([]RecordedRequest, len(f.requests[path]))
	copy(out, f.requests[path])
	return out
}

// LastRequest returns the latest request the portal received on path, or the
// zero value if there was none.
func (f *FakePortal) LastRequest(path string) RecordedRequest {
	requests := f.Requests(path)
	if len(requests) == 0 {
		return RecordedRequest{}
	}
	return requests[len(requests)-1]
}

func (f *FakePortal) record(path string, r *http.Request) RecordedRequest {
	recorded := RecordedRequest{
		Method: r.Method,
		Header: r.Header.Clone(),
		Query:  r.URL.Query(),
		Form:   url.Values{},
		Files:  map[string][]byte{},
	}

	if strings.HasPrefix(r.Header.Get("content-type"), "multipart/form-data") {
		err := r.ParseMultipartForm(32 << 20)
		if err == nil {
			recorded.Form = r.MultipartForm.Value
			for name, headers := range r.MultipartForm.File {
				file, err := headers[0].Open()
				if err != nil {
					continue
				}
				contents, _ := io.ReadAll(file)
				file.Close()
				recorded.Files[name] = contents
			}
		}
	} else if r.Method == http.MethodPost {
		err := r.ParseForm()
		if err == nil {
			recorded.Form = r.PostForm
		}
	}

	f.mutex.Lock()
	f.requests[path] = append(f.requests[path], recorded)
	f.mutex.Unlock()
	return recorded
}

func writePage(w http.ResponseWriter, name string) {
	w.Header().Set("content-type", "text/html; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	w.Write(Page(name))
}

func (f *FakePortal) serveCas(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/cas/login" {
		http.NotFound(w, r)
		return
	}
	recorded := f.record(r.URL.Path, r)
	opts := f.options()

	switch r.Method {
	case http.MethodGet:
		if !opts.OmitCasSession {
			http.SetCookie(w, &http.Cookie{
				Name:     fakeCasSession,
				Value:    "CAS-SESSION-1",
				Path:     "/cas",
				HttpOnly: true,
			})
		}
		if opts.OmitLoginTicket {
			writePage(w, "cas_login_no_lt.html")
			return
		}
		writePage(w, "cas_login.html")
	case http.MethodPost:
		_, err := r.Cookie(fakeCasSession)
		accepted := err == nil &&
			recorded.Form.Get("username") == FakeEmail &&
			recorded.Form.Get("password") == FakePassword &&
			recorded.Form.Get("lt") == FakeLoginTicket &&
			recorded.Form.Get("_eventId") == "submit"
		if !accepted {
			writePage(w, "cas_login_error.html")
			return
		}

		service, err := url.Parse(recorded.Query.Get("service"))
		if err != nil || service.Host == "" {
			http.Error(w, "invalid service", http.StatusBadRequest)
			return
		}
		query := service.Query()
		query.Set("ticket", "ST-1-fake")
		service.RawQuery = query.Encode()
		http.Redirect(w, r, service.String(), http.StatusFound)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

var portalPages = map[string]string{
	"/absen.php":      "attendance.html",
	"/jadwal_kul.php": "schedule.html",
	"/nilai_sem.php":  "grades.html",
	"/FRS_mbkm.php":   "registration.html",
}

func (f *FakePortal) servePortal(w http.ResponseWriter, r *http.Request) {
	recorded := f.record(r.URL.Path, r)

	if r.URL.Path == "/index.php" && recorded.Query.Get("ticket") != "" {
		f.mutex.Lock()
		f.logins++
		f.token = fmt.Sprintf("fake-session-%d", f.logins)
		token := f.token
		f.mutex.Unlock()

		http.SetCookie(w, &http.Cookie{Name: fakeSession, Value: token, Path: "/"})
		writePage(w, "home.html")
		return
	}

	cookie, err := r.Cookie(fakeSession)
	current := f.Token()
	if err != nil || current == "" || cookie.Value != current {
		// a dead session lands on the CAS login page
		writePage(w, "cas_login.html")
		return
	}

	switch r.URL.Path {
	case "/index.php":
		writePage(w, "home.html")
	case "/entry_logbook_kp1.php":
		f.serveLogbook(w, recorded)
	case "/mEntry_Logbook_KP1.php":
		if f.options().OmitCurrentTerm {
			writePage(w, "home.html")
			return
		}
		writePage(w, "logbook_entry.html")
	default:
		page, ok := portalPages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		writePage(w, page)
	}
}

func (f *FakePortal) serveLogbook(w http.ResponseWriter, recorded RecordedRequest) {
	saving := recorded.Form.Get("Simpan") == "1"
	if !saving {
		writePage(w, "logbook.html")
		return
	}
	if f.options().RejectWrites {
		writePage(w, "logbook_rejected.html")
		return
	}
	writePage(w, "logbook_saved.html")
}
