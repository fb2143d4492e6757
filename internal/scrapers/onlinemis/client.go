package onlinemis

import (
	"context"
	"fmt"
	"net/url"
	"onlinemis-backend/internal/components/assert"
	"onlinemis-backend/internal/components/telemetry"
	"onlinemis-backend/lib/restyutil"
	"strconv"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultPortalUrl = "https://online.mis.pens.ac.id"
	DefaultCasUrl    = "https://login.pens.ac.id/cas/login"

	// the portal has been observed to behave differently depending on the
	// client fingerprint, this is the one it is known to serve properly.
	UserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:133.0) Gecko/20100101 Firefox/133.0"

	portalSessionCookie = "PHPSESSID"
)

const (
	pathHome         = "/index.php"
	pathAttendance   = "/absen.php"
	pathSchedule     = "/jadwal_kul.php"
	pathGrades       = "/nilai_sem.php"
	pathRegistration = "/FRS_mbkm.php"
	pathLogbook      = "/entry_logbook_kp1.php"
	pathLogbookEntry = "/mEntry_Logbook_KP1.php"
)

const (
	report_client_fetch = "client.fetch"
	report_client_login = "client.login-cas"
	report_client_term  = "client.login-term"
)

type ClientOptions struct {
	// PortalUrl defaults to DefaultPortalUrl.
	PortalUrl string
	// CasUrl defaults to DefaultCasUrl.
	CasUrl string
	// Timeout defaults to 30 seconds.
	Timeout time.Duration
	// RequestsPerSecond defaults to 2.
	RequestsPerSecond float64
	// Output receives every formatted http exchange when it is not nil.
	Output restyutil.InstrumentOutput
}

// Client talks to the CAS server and the portal. It holds no session state
// of its own, every portal call takes the session token explicitly.
type Client struct {
	portalUrl *url.URL
	casUrl    *url.URL
	opts      ClientOptions
	limiter   *rate.Limiter
	http      *resty.Client

	tel telemetry.API
}

func NewClient(opts ClientOptions, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("onlinemis", tel)

	if opts.PortalUrl == "" {
		opts.PortalUrl = DefaultPortalUrl
	}
	if opts.CasUrl == "" {
		opts.CasUrl = DefaultCasUrl
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}
	if opts.RequestsPerSecond == 0 {
		opts.RequestsPerSecond = 2
	}

	portalUrl, err := url.Parse(opts.PortalUrl)
	if err != nil {
		return nil, fmt.Errorf("parse portal url: %w", err)
	}
	casUrl, err := url.Parse(opts.CasUrl)
	if err != nil {
		return nil, fmt.Errorf("parse cas url: %w", err)
	}

	// max burst >= requests per second just means that no requests will be dropped
	burst := int(opts.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		portalUrl: portalUrl,
		casUrl:    casUrl,
		opts:      opts,
		limiter:   rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst),
		tel:       tel,
	}
	c.http = c.newHttpClient()
	c.http.SetBaseURL(portalUrl.String())
	// the client is shared by every session, cookies are set per request
	c.http.SetCookieJar(nil)
	return c, nil
}

// newHttpClient creates a resty client with the fingerprint, limiter and
// instrumentation every upstream request shares.
func (c *Client) newHttpClient() *resty.Client {
	httpClient := resty.New()
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	httpClient.SetHeader("user-agent", UserAgent)
	httpClient.SetHeader("accept", "*/*")
	httpClient.SetTimeout(c.opts.Timeout)

	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return c.limiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, c.tel, c.opts.Output)
	return httpClient
}

// PortalUrl returns the base url of the portal.
func (c *Client) PortalUrl() *url.URL {
	u := *c.portalUrl
	return &u
}

func (c *Client) portalRequest(ctx context.Context, token string) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader("cookie", fmt.Sprintf("%s=%s", portalSessionCookie, token))
}

func checkResponse(op string, res *resty.Response, err error) error {
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if res.IsError() {
		return &TransportError{Op: op, Err: fmt.Errorf("unexpected status %s", res.Status())}
	}
	return nil
}

// get issues an authenticated GET against a portal path.
func (c *Client) get(ctx context.Context, resource Resource, token, path string, params map[string]string) ([]byte, error) {
	res, err := c.portalRequest(ctx, token).
		SetQueryParams(params).
		Get(path)
	err = checkResponse(string(resource), res, err)
	if err != nil {
		c.tel.ReportBroken(report_client_fetch, resource, err)
		return nil, err
	}
	return res.Body(), nil
}

func termParams(q ResourceQuery) map[string]string {
	return map[string]string{
		"valTahun":    strconv.Itoa(q.Year),
		"valSemester": strconv.Itoa(int(q.Semester)),
	}
}

func logbookParams(q LogbookQuery) map[string]string {
	params := termParams(q.ResourceQuery)
	params["valMinggu"] = strconv.Itoa(q.Week)
	return params
}

func (c *Client) FetchHome(ctx context.Context, token string, _ NoQuery) ([]byte, error) {
	return c.get(ctx, ResourceHome, token, pathHome, map[string]string{
		"Login":   "1",
		"halAwal": "1",
	})
}

func (c *Client) FetchAttendance(ctx context.Context, token string, q ResourceQuery) ([]byte, error) {
	return c.get(ctx, ResourceAttendance, token, pathAttendance, termParams(q))
}

func (c *Client) FetchSchedule(ctx context.Context, token string, q ResourceQuery) ([]byte, error) {
	return c.get(ctx, ResourceSchedule, token, pathSchedule, termParams(q))
}

func (c *Client) FetchGrades(ctx context.Context, token string, q ResourceQuery) ([]byte, error) {
	return c.get(ctx, ResourceGrades, token, pathGrades, termParams(q))
}

func (c *Client) FetchRegistration(ctx context.Context, token string, q ResourceQuery) ([]byte, error) {
	return c.get(ctx, ResourceRegistration, token, pathRegistration, termParams(q))
}

func (c *Client) FetchLogbook(ctx context.Context, token string, q LogbookQuery) ([]byte, error) {
	return c.get(ctx, ResourceLogbook, token, pathLogbook, logbookParams(q))
}
