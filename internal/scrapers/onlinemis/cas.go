package onlinemis

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"onlinemis-backend/lib/htmlutil"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	casSessionCookie = "JSESSIONID"

	selectLoginTicket = "[name='lt']"
	selectCasErrors   = ".errors"
	selectIdentity    = ".userout a"
)

// serviceUrl is the portal landing page CAS redirects back to with a ticket.
func (c *Client) serviceUrl() string {
	u := c.PortalUrl()
	u.Path = pathHome
	u.RawQuery = "Login=1&halAwal=1"
	return u.String()
}

func (c *Client) loginUrl() string {
	u := *c.casUrl
	q := u.Query()
	q.Set("service", c.serviceUrl())
	u.RawQuery = q.Encode()
	return u.String()
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, cookie := range cookies {
		if cookie.Name == name && cookie.Value != "" {
			return cookie
		}
	}
	return nil
}

// Login runs the two legged CAS exchange and returns the portal session it
// produces. Both legs share one cookie jar that does not outlive the call.
//
// A rejected email/password is reported as *CredentialsError, missing CAS
// artifacts as *ProtocolPreconditionError and network failures as
// *TransportError.
func (c *Client) Login(ctx context.Context, email, password string) (UpstreamSession, error) {
	loginError := func(err error) error {
		return fmt.Errorf("onlinemis: login: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return UpstreamSession{}, loginError(err)
	}
	httpClient := c.newHttpClient()
	httpClient.SetCookieJar(jar)

	loginUrl := c.loginUrl()

	res, err := httpClient.R().
		SetContext(ctx).
		Get(loginUrl)
	err = checkResponse("cas login page", res, err)
	if err != nil {
		c.tel.ReportBroken(report_client_login, err)
		return UpstreamSession{}, loginError(err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		c.tel.ReportBroken(report_client_login, fmt.Errorf("parse login page: %w", err))
		return UpstreamSession{}, loginError(err)
	}

	lt := strings.TrimSpace(doc.Find(selectLoginTicket).AttrOr("value", ""))
	if lt == "" {
		err := &ProtocolPreconditionError{Missing: "login ticket (lt)"}
		c.tel.ReportBroken(report_client_login, err)
		return UpstreamSession{}, loginError(err)
	}

	jarHasSession := findCookie(jar.Cookies(c.casUrl), casSessionCookie) != nil
	casSession := findCookie(res.Cookies(), casSessionCookie)
	if casSession == nil && jarHasSession {
		casSession = findCookie(jar.Cookies(c.casUrl), casSessionCookie)
	}
	if casSession == nil {
		err := &ProtocolPreconditionError{Missing: fmt.Sprintf("transient cas session cookie (%s)", casSessionCookie)}
		c.tel.ReportBroken(report_client_login, err)
		return UpstreamSession{}, loginError(err)
	}

	req := httpClient.R().
		SetContext(ctx).
		SetHeader("referer", loginUrl).
		SetHeader("origin", fmt.Sprintf("%s://%s", c.casUrl.Scheme, c.casUrl.Host)).
		SetHeader("connection", "keep-alive").
		SetFormData(map[string]string{
			"username": email,
			"password": password,
			"_eventId": "submit",
			"submit":   "LOGIN",
			"lt":       lt,
		})
	if !jarHasSession {
		req.SetCookie(&http.Cookie{Name: casSessionCookie, Value: casSession.Value})
	}
	res, err = req.Post(loginUrl)
	err = checkResponse("cas credentials", res, err)
	if err != nil {
		c.tel.ReportBroken(report_client_login, err)
		return UpstreamSession{}, loginError(err)
	}
	doc, err = goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		c.tel.ReportBroken(report_client_login, fmt.Errorf("parse login response: %w", err))
		return UpstreamSession{}, loginError(err)
	}

	message := extractCasError(doc)
	if message != "" {
		return UpstreamSession{}, loginError(&CredentialsError{Message: message})
	}

	identity, err := extractIdentity(doc)
	if err != nil {
		c.tel.ReportBroken(report_client_login, err)
		return UpstreamSession{}, loginError(err)
	}

	portalSession := findCookie(jar.Cookies(c.portalUrl), portalSessionCookie)
	if portalSession == nil {
		err := &ProtocolPreconditionError{Missing: fmt.Sprintf("portal session cookie (%s)", portalSessionCookie)}
		c.tel.ReportBroken(report_client_login, err)
		return UpstreamSession{}, loginError(err)
	}

	session := UpstreamSession{
		Token:    portalSession.Value,
		Identity: identity,
	}
	term, err := c.currentTerm(ctx, session.Token)
	if err != nil {
		// resource queries fall back to the calendar term
		c.tel.ReportWarning(report_client_term, err)
	} else {
		session.Term = term
	}

	c.tel.ReportDebug(report_client_login, "logged in", identity.NRP, session.Term)
	return session, nil
}

// currentTerm reads the year, semester and week the portal preselects on
// the logbook entry page.
func (c *Client) currentTerm(ctx context.Context, token string) (LogbookQuery, error) {
	html, err := c.get(ctx, ResourceLogbook, token, pathLogbookEntry, nil)
	if err != nil {
		return LogbookQuery{}, err
	}
	return ExtractCurrentTerm(html)
}

// extractCasError returns the trimmed text of the CAS error banner, empty
// when there is none.
func extractCasError(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find(selectCasErrors).Text())
}

var (
	identityNameRegex = regexp.MustCompile(`^(.*?)\s*\(`)
	identityNrpRegex  = regexp.MustCompile(`\(([^)]+)\)`)
)

// ParseIdentity parses the banner text `<label>:<name> (<nrp>)`.
func ParseIdentity(banner string) (Identity, error) {
	_, principal, found := strings.Cut(banner, ":")
	principal = strings.TrimSpace(principal)
	if !found || principal == "" {
		return Identity{}, &FieldParseError{
			Resource: ResourceLogin,
			Field:    "identity",
			Value:    banner,
		}
	}

	identity := Identity{Name: principal}
	if groups := identityNameRegex.FindStringSubmatch(principal); len(groups) == 2 {
		identity.Name = strings.TrimSpace(groups[1])
	}
	if groups := identityNrpRegex.FindStringSubmatch(principal); len(groups) == 2 {
		identity.NRP = strings.TrimSpace(groups[1])
	}
	return identity, nil
}

func extractIdentity(doc *goquery.Document) (Identity, error) {
	banner := doc.Find(selectIdentity).First()
	if banner.Length() == 0 {
		return Identity{}, &SchemaDriftError{
			Resource: ResourceLogin,
			Field:    "identity",
			Selector: selectIdentity,
		}
	}
	return ParseIdentity(htmlutil.CleanText(banner))
}
