package onlinemis

import (
	"onlinemis-backend/lib/testutil"
	"testing"
)

var (
	attendanceHtml      = testutil.Page("attendance.html")
	scheduleHtml        = testutil.Page("schedule.html")
	gradesHtml          = testutil.Page("grades.html")
	registrationHtml    = testutil.Page("registration.html")
	logbookHtml         = testutil.Page("logbook.html")
	logbookSavedHtml    = testutil.Page("logbook_saved.html")
	logbookRejectedHtml = testutil.Page("logbook_rejected.html")
	logbookExpiredHtml  = testutil.Page("logbook_expired.html")
	logbookEntryHtml    = testutil.Page("logbook_entry.html")
	homeHtml            = testutil.Page("home.html")
	casLoginHtml        = testutil.Page("cas_login.html")
	casLoginNoLtHtml    = testutil.Page("cas_login_no_lt.html")
	casLoginErrorHtml   = testutil.Page("cas_login_error.html")
	expiredOracleHtml   = testutil.Page("expired_oracle.html")
)

func patch(t testing.TB, page []byte, old, new string) []byte {
	t.Helper()
	return testutil.Patch(t, page, old, new)
}
