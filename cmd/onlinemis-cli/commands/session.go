package commands

import (
	"context"
	"onlinemis-backend/internal/components/chrono"
	"onlinemis-backend/internal/components/telemetry"
	"onlinemis-backend/internal/scrapers/onlinemis"
	"onlinemis-backend/lib/configutil"
	"onlinemis-backend/lib/restyutil"
	"onlinemis-backend/lib/serviceutil"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type Config struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	PortalUrl string `json:"portal_url"`
	CasUrl    string `json:"cas_url"`
}

// termFlags are the --year/--semester flags shared by every term resource,
// both default to the current term.
type termFlags struct {
	year     *int
	semester *int
}

func addTermFlags(cmd *cobra.Command) termFlags {
	year, semester := chrono.CurrentTerm(chrono.StandardTime{}.Now())
	return termFlags{
		year:     cmd.Flags().Int("year", year, "The academic year the term starts in."),
		semester: cmd.Flags().Int("semester", semester, "1 (odd), 2 (even), 3 or 4 (intersession)."),
	}
}

func (f termFlags) query() onlinemis.ResourceQuery {
	q := onlinemis.ResourceQuery{
		Year:     *f.year,
		Semester: onlinemis.Semester(*f.semester),
	}
	err := q.Validate()
	if err != nil {
		serviceutil.Fatal("invalid term", err)
	}
	return q
}

// portalSession is a freshly logged in client, the cli never reuses a
// session across invocations.
type portalSession struct {
	client   *onlinemis.Client
	handlers onlinemis.Handlers
	upstream onlinemis.UpstreamSession
}

func login(ctx context.Context) portalSession {
	cfg, err := configutil.ReadConfig[Config](*configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}

	opts := onlinemis.ClientOptions{
		PortalUrl: cfg.PortalUrl,
		CasUrl:    cfg.CasUrl,
	}
	if *verbose {
		output, err := restyutil.NewFilesystemOutput("<dev_state>/resty/onlinemis-cli")
		if err != nil {
			serviceutil.Fatal("failed to create resty output", err)
		}
		opts.Output = output
	}

	client, err := onlinemis.NewClient(opts, telemetry.SlogAPI{})
	if err != nil {
		serviceutil.Fatal("failed to create client", err)
	}
	upstream, err := client.Login(ctx, cfg.Email, cfg.Password)
	if err != nil {
		serviceutil.Fatal("failed to login", err)
	}

	return portalSession{
		client:   client,
		handlers: client.Handlers(),
		upstream: upstream,
	}
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
