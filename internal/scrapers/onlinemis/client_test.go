package onlinemis

import (
	"bytes"
	"context"
	"onlinemis-backend/lib/testutil"
	"testing"

	"github.com/stretchr/testify/require"
)

func loggedIn(t *testing.T, opts testutil.FakePortalOptions) (*Client, *testutil.FakePortal, UpstreamSession) {
	t.Helper()
	portal := testutil.NewFakePortal(opts)
	t.Cleanup(portal.Close)
	client, _ := newTestClient(t, portal)

	session, err := client.Login(context.Background(), testutil.FakeEmail, testutil.FakePassword)
	require.NoError(t, err)
	return client, portal, session
}

var testWeek = LogbookQuery{
	ResourceQuery: ResourceQuery{Year: 2024, Semester: SemesterEven},
	Week:          3,
}

func TestFetch(t *testing.T) {
	client, portal, session := loggedIn(t, testutil.FakePortalOptions{})
	ctx := context.Background()
	query := ResourceQuery{Year: 2024, Semester: SemesterEven}

	html, err := client.FetchAttendance(ctx, session.Token, query)
	require.NoError(t, err)
	require.Equal(t, attendanceHtml, html)

	request := portal.LastRequest("/absen.php")
	require.Equal(t, "2024", request.Query.Get("valTahun"))
	require.Equal(t, "2", request.Query.Get("valSemester"))
	require.Equal(t, "PHPSESSID="+session.Token, request.Header.Get("cookie"))
	require.Equal(t, UserAgent, request.Header.Get("user-agent"))
	require.Equal(t, "*/*", request.Header.Get("accept"))

	_, err = client.FetchLogbook(ctx, session.Token, testWeek)
	require.NoError(t, err)
	require.Equal(t, "3", portal.LastRequest("/entry_logbook_kp1.php").Query.Get("valMinggu"))

	_, err = client.FetchHome(ctx, session.Token, NoQuery{})
	require.NoError(t, err)
	require.Equal(t, "1", portal.LastRequest("/index.php").Query.Get("halAwal"))
}

func TestHandlersAgainstPortal(t *testing.T) {
	client, portal, session := loggedIn(t, testutil.FakePortalOptions{})
	ctx := context.Background()
	handlers := client.Handlers()
	query := ResourceQuery{Year: 2024, Semester: SemesterOdd}

	schedule, err := handlers.Schedule.Run(ctx, session.Token, query)
	require.NoError(t, err)
	require.Equal(t, "Kelas : 2 D4 Teknik Informatika A", schedule.Class)

	registration, err := handlers.Registration.Run(ctx, session.Token, query)
	require.NoError(t, err)
	require.Len(t, registration.Courses, 2)

	home, err := handlers.Home.Run(ctx, session.Token, NoQuery{})
	require.NoError(t, err)
	require.Len(t, home.Announcements, 2)

	portal.Expire()
	_, err = handlers.Grades.Run(ctx, session.Token, query)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestCreateLogbookEntry(t *testing.T) {
	client, portal, session := loggedIn(t, testutil.FakePortalOptions{})
	ctx := context.Background()

	input := LogbookEntryInput{
		LogbookQuery:  testWeek,
		Date:          "19-02-2024",
		Start:         "08:00",
		End:           "16:00",
		Activity:      "Merancang skema basis data inventaris",
		MatchesCourse: true,
		CourseId:      501,
		PlacementId:   "778",
		StudentId:     "1234",
	}
	err := client.CreateLogbookEntry(ctx, session, input)
	require.NoError(t, err)

	form := portal.LastRequest("/entry_logbook_kp1.php").Form
	require.Equal(t, "1", form.Get("Simpan"))
	require.Equal(t, "19-02-2024", form.Get("tanggal"))
	require.Equal(t, "08:00", form.Get("jam_mulai"))
	require.Equal(t, "16:00", form.Get("jam_selesai"))
	require.Equal(t, "1", form.Get("sesuai_kuliah"))
	require.Equal(t, "501", form.Get("matakuliah"))
	require.Equal(t, "778", form.Get("kp_daftar"))
	require.Equal(t, "1234", form.Get("mahasiswa"))
	require.Equal(t, testutil.FakeNRP, form.Get("valnrpMahasiswa"))
	require.Equal(t, "3", form.Get("valMinggu"))

	input.CourseId = 0
	input.MatchesCourse = false
	err = client.CreateLogbookEntry(ctx, session, input)
	require.NoError(t, err)
	form = portal.LastRequest("/entry_logbook_kp1.php").Form
	require.False(t, form.Has("matakuliah"))
	require.Equal(t, "0", form.Get("sesuai_kuliah"))
}

func TestCreateLogbookEntryRejected(t *testing.T) {
	client, portal, session := loggedIn(t, testutil.FakePortalOptions{RejectWrites: true})
	ctx := context.Background()

	input := LogbookEntryInput{
		LogbookQuery: testWeek,
		Date:         "01-01-2024",
		Start:        "08:00",
		End:          "09:00",
		Activity:     "Orientasi",
	}
	err := client.CreateLogbookEntry(ctx, session, input)
	var rejected *UpstreamRejectedError
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, "Tanggal di luar periode KP", rejected.Message)

	portal.Expire()
	err = client.CreateLogbookEntry(ctx, session, input)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestLogbookEntryInputValidate(t *testing.T) {
	valid := LogbookEntryInput{
		LogbookQuery: testWeek,
		Date:         "19-02-2024",
		Start:        "08:00",
		End:          "16:00",
		Activity:     "Rapat",
	}
	require.NoError(t, valid.Validate())

	testCases := []struct {
		name   string
		mutate func(in *LogbookEntryInput)
	}{
		{name: "week out of range", mutate: func(in *LogbookEntryInput) { in.Week = MaxWeek + 1 }},
		{name: "semester out of range", mutate: func(in *LogbookEntryInput) { in.Semester = 5 }},
		{name: "missing date", mutate: func(in *LogbookEntryInput) { in.Date = "" }},
		{name: "bad start", mutate: func(in *LogbookEntryInput) { in.Start = "8 pagi" }},
		{name: "bad end", mutate: func(in *LogbookEntryInput) { in.End = "24:00" }},
		{name: "activity too long", mutate: func(in *LogbookEntryInput) {
			in.Activity = string(bytes.Repeat([]byte("a"), MaxActivityLength+1))
		}},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			in := valid
			test.mutate(&in)
			require.Error(t, in.Validate())
		})
	}
}

func TestDeleteLogbookEntry(t *testing.T) {
	client, portal, session := loggedIn(t, testutil.FakePortalOptions{})
	ctx := context.Background()

	err := client.DeleteLogbookEntry(ctx, session, testWeek, "9001")
	require.NoError(t, err)

	query := portal.LastRequest("/entry_logbook_kp1.php").Query
	require.Equal(t, "1", query.Get("Hapus"))
	require.Equal(t, "9001", query.Get("nokplogbook"))
	require.Equal(t, testutil.FakeNRP, query.Get("valnrpMahasiswa"))

	require.Error(t, client.DeleteLogbookEntry(ctx, session, testWeek, ""))

	portal.Expire()
	err = client.DeleteLogbookEntry(ctx, session, testWeek, "9001")
	require.ErrorIs(t, err, ErrSessionExpired)
}

var (
	pngFile = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	pdfFile = []byte("%PDF-1.4\n%fake progress report\n")
)

func TestUploadLogbookFile(t *testing.T) {
	client, portal, session := loggedIn(t, testutil.FakePortalOptions{})
	ctx := context.Background()

	upload := LogbookUpload{
		LogbookQuery: testWeek,
		Kind:         UploadScreenshot,
		Date:         "19-02-2024",
		PlacementId:  "778",
		StudentId:    "1234",
		Filename:     "kegiatan.png",
		File:         bytes.NewReader(pngFile),
	}
	err := client.UploadLogbookFile(ctx, session, upload)
	require.NoError(t, err)

	request := portal.LastRequest("/entry_logbook_kp1.php")
	require.Equal(t, "1", request.Form.Get("UploadFoto"))
	require.Equal(t, "19-02-2024", request.Form.Get("tanggal"))
	require.Equal(t, pngFile, request.Files["file"])

	upload.Kind = UploadProgress
	upload.Filename = "progres.pdf"
	upload.File = bytes.NewReader(pdfFile)
	err = client.UploadLogbookFile(ctx, session, upload)
	require.NoError(t, err)
	request = portal.LastRequest("/entry_logbook_kp1.php")
	require.Equal(t, "1", request.Form.Get("UploadProgres"))
	require.Equal(t, pdfFile, request.Files["file"])
}

func TestUploadLogbookFileLimits(t *testing.T) {
	client, portal, session := loggedIn(t, testutil.FakePortalOptions{})
	ctx := context.Background()
	before := len(portal.Requests("/entry_logbook_kp1.php"))

	testCases := []struct {
		name     string
		kind     UploadKind
		contents []byte
		expected error
	}{
		{
			name:     "screenshot too large",
			kind:     UploadScreenshot,
			contents: append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, MaxScreenshotSize)...),
			expected: ErrFileTooLarge,
		},
		{name: "pdf as screenshot", kind: UploadScreenshot, contents: pdfFile, expected: ErrUnsupportedFile},
		{name: "png as progress", kind: UploadProgress, contents: pngFile, expected: ErrUnsupportedFile},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			err := client.UploadLogbookFile(ctx, session, LogbookUpload{
				LogbookQuery: testWeek,
				Kind:         test.kind,
				Filename:     "file",
				File:         bytes.NewReader(test.contents),
			})
			require.ErrorIs(t, err, test.expected)
		})
	}

	// rejected files never reach the portal
	require.Len(t, portal.Requests("/entry_logbook_kp1.php"), before)
}
