package onlinemis

import (
	"context"
	"errors"
	"net/url"
	"onlinemis-backend/internal/components/telemetry"
	"onlinemis-backend/lib/testutil"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t testing.TB, portal *testutil.FakePortal) (*Client, *telemetry.RecordingAPI) {
	t.Helper()
	tel := &telemetry.RecordingAPI{}
	client, err := NewClient(ClientOptions{
		PortalUrl:         portal.Portal.URL,
		CasUrl:            portal.CasUrl(),
		RequestsPerSecond: 100,
	}, tel)
	require.NoError(t, err)
	return client, tel
}

func TestLogin(t *testing.T) {
	portal := testutil.NewFakePortal(testutil.FakePortalOptions{})
	defer portal.Close()
	client, _ := newTestClient(t, portal)

	session, err := client.Login(context.Background(), testutil.FakeEmail, testutil.FakePassword)
	require.NoError(t, err)
	require.Equal(t, portal.Token(), session.Token)
	require.NotEmpty(t, session.Token)
	require.Equal(t, Identity{Name: "Budi Santoso", NRP: testutil.FakeNRP}, session.Identity)
	require.Equal(t, LogbookQuery{
		ResourceQuery: ResourceQuery{Year: 2024, Semester: SemesterEven},
		Week:          3,
	}, session.Term)
	require.Len(t, portal.Requests("/mEntry_Logbook_KP1.php"), 1)

	requests := portal.Requests("/cas/login")
	require.Len(t, requests, 2)
	require.Equal(t, "GET", requests[0].Method)

	service, err := url.Parse(requests[0].Query.Get("service"))
	require.NoError(t, err)
	require.Equal(t, "/index.php", service.Path)
	require.Equal(t, "1", service.Query().Get("Login"))
	require.Equal(t, "1", service.Query().Get("halAwal"))

	submit := requests[1]
	require.Equal(t, "POST", submit.Method)
	require.Equal(t, testutil.FakeLoginTicket, submit.Form.Get("lt"))
	require.Equal(t, "LOGIN", submit.Form.Get("submit"))
	require.Equal(t, UserAgent, submit.Header.Get("user-agent"))
	require.Equal(t, portal.Cas.URL, submit.Header.Get("origin"))
	require.Contains(t, submit.Header.Get("referer"), "/cas/login?service=")

	// a second login yields a fresh session
	second, err := client.Login(context.Background(), testutil.FakeEmail, testutil.FakePassword)
	require.NoError(t, err)
	require.NotEqual(t, session.Token, second.Token)
	require.Equal(t, 2, portal.Logins())
}

func TestLoginRejectedCredentials(t *testing.T) {
	portal := testutil.NewFakePortal(testutil.FakePortalOptions{})
	defer portal.Close()
	client, _ := newTestClient(t, portal)

	_, err := client.Login(context.Background(), testutil.FakeEmail, "wrong password")
	var credentials *CredentialsError
	require.ErrorAs(t, err, &credentials)
	require.Equal(t, "The credentials you provided cannot be determined to be authentic.", credentials.Message)
	require.Equal(t, 0, portal.Logins())
}

func TestLoginWithoutCurrentTerm(t *testing.T) {
	portal := testutil.NewFakePortal(testutil.FakePortalOptions{OmitCurrentTerm: true})
	defer portal.Close()
	client, tel := newTestClient(t, portal)

	session, err := client.Login(context.Background(), testutil.FakeEmail, testutil.FakePassword)
	require.NoError(t, err)
	require.Equal(t, portal.Token(), session.Token)
	require.Equal(t, LogbookQuery{}, session.Term)
	require.True(t, tel.Has("warning", "onlinemis: "+report_client_term))
}

func TestExtractCasError(t *testing.T) {
	testCases := []struct {
		name     string
		banner   string
		expected string
	}{
		{
			name:     "inner whitespace is kept",
			banner:   `<div id="msg" class="errors">  Invalid` + "\n      " + `credentials.  </div>`,
			expected: "Invalid\n      credentials.",
		},
		{
			name:     "no banner",
			banner:   "",
			expected: "",
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			page := patch(
				t, casLoginErrorHtml,
				`<div id="msg" class="errors">  The credentials you provided cannot be determined to be authentic.  </div>`,
				test.banner,
			)
			doc, err := parseHtml(page)
			require.NoError(t, err)
			require.Equal(t, test.expected, extractCasError(doc))
		})
	}
}

func TestLoginProtocolPreconditions(t *testing.T) {
	testCases := []struct {
		name    string
		opts    testutil.FakePortalOptions
		missing string
	}{
		{name: "no login ticket", opts: testutil.FakePortalOptions{OmitLoginTicket: true}, missing: "login ticket (lt)"},
		{name: "no cas session", opts: testutil.FakePortalOptions{OmitCasSession: true}, missing: "transient cas session cookie (JSESSIONID)"},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			portal := testutil.NewFakePortal(test.opts)
			defer portal.Close()
			client, tel := newTestClient(t, portal)

			_, err := client.Login(context.Background(), testutil.FakeEmail, testutil.FakePassword)
			var precondition *ProtocolPreconditionError
			require.ErrorAs(t, err, &precondition)
			require.Equal(t, test.missing, precondition.Missing)
			require.True(t, tel.Has("broken", "onlinemis: "+report_client_login))

			// credentials are never submitted without the artifacts
			require.Len(t, portal.Requests("/cas/login"), 1)
		})
	}
}

func TestLoginTransportError(t *testing.T) {
	portal := testutil.NewFakePortal(testutil.FakePortalOptions{})
	client, _ := newTestClient(t, portal)
	portal.Close()

	_, err := client.Login(context.Background(), testutil.FakeEmail, testutil.FakePassword)
	var transport *TransportError
	require.ErrorAs(t, err, &transport)

	var credentials *CredentialsError
	require.False(t, errors.As(err, &credentials))
}
