package onlinemis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"onlinemis-backend/lib/htmlutil"
	"regexp"
	"strconv"
	"unicode/utf8"
)

const (
	report_client_logbook_write = "client.logbook-write"

	logbookSaved = "Simpan Data Berhasil"

	MaxActivityLength = 4000
	MaxScreenshotSize = 5 << 20
	MaxProgressSize   = 20 << 20
)

var (
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedFile = errors.New("unsupported file type")
)

var clockRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// LogbookEntryInput is a new logbook entry for one week.
type LogbookEntryInput struct {
	LogbookQuery
	Date     string `json:"date"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Activity string `json:"activity"`
	// MatchesCourse marks the activity as related to CourseId.
	MatchesCourse bool `json:"matchesCourse"`
	// CourseId is omitted from the request when it is zero.
	CourseId    int    `json:"courseId"`
	PlacementId string `json:"placementId"`
	StudentId   string `json:"studentId"`
}

func (in LogbookEntryInput) Validate() error {
	err := in.LogbookQuery.Validate()
	if err != nil {
		return err
	}
	if in.Date == "" {
		return fmt.Errorf("date is required")
	}
	if !clockRegex.MatchString(in.Start) {
		return fmt.Errorf("invalid start time %q, expected HH:MM", in.Start)
	}
	if !clockRegex.MatchString(in.End) {
		return fmt.Errorf("invalid end time %q, expected HH:MM", in.End)
	}
	if utf8.RuneCountInString(in.Activity) > MaxActivityLength {
		return fmt.Errorf("activity is longer than %d characters", MaxActivityLength)
	}
	return nil
}

func writeParams(nrp string, q LogbookQuery) map[string]string {
	params := logbookParams(q)
	params["valnrpMahasiswa"] = nrp
	return params
}

// checkLogbookWrite classifies the page the portal answered a write with.
func (c *Client) checkLogbookWrite(html []byte, requireBanner bool) error {
	if !IsLogbookSessionValid(html) {
		return &SessionExpiredError{Resource: ResourceLogbook}
	}
	if !requireBanner {
		return nil
	}

	doc, err := parseHtml(html)
	if err != nil {
		return fmt.Errorf("logbook: parse html: %w", err)
	}
	banner := doc.Find(selectLogbookBanner)
	message := htmlutil.CleanText(banner.First())
	if message != logbookSaved {
		err := &UpstreamRejectedError{Resource: ResourceLogbook, Message: message}
		c.tel.ReportWarning(report_client_logbook_write, err)
		return err
	}
	return nil
}

// CreateLogbookEntry submits a new entry for the session's student.
func (c *Client) CreateLogbookEntry(ctx context.Context, session UpstreamSession, in LogbookEntryInput) error {
	err := in.Validate()
	if err != nil {
		return fmt.Errorf("create logbook entry: %w", err)
	}

	form := writeParams(session.Identity.NRP, in.LogbookQuery)
	form["Simpan"] = "1"
	form["Setuju"] = "1"
	form["tanggal"] = in.Date
	form["jam_mulai"] = in.Start
	form["jam_selesai"] = in.End
	form["kegiatan"] = in.Activity
	form["sesuai_kuliah"] = "0"
	if in.MatchesCourse {
		form["sesuai_kuliah"] = "1"
	}
	if in.CourseId != 0 {
		form["matakuliah"] = strconv.Itoa(in.CourseId)
	}
	form["kp_daftar"] = in.PlacementId
	form["mahasiswa"] = in.StudentId

	res, err := c.portalRequest(ctx, session.Token).
		SetFormData(form).
		Post(pathLogbook)
	err = checkResponse("create logbook entry", res, err)
	if err != nil {
		c.tel.ReportBroken(report_client_logbook_write, err)
		return err
	}
	return c.checkLogbookWrite(res.Body(), true)
}

// DeleteLogbookEntry removes the entry with the given id from a week.
func (c *Client) DeleteLogbookEntry(ctx context.Context, session UpstreamSession, q LogbookQuery, id string) error {
	err := q.Validate()
	if err != nil {
		return fmt.Errorf("delete logbook entry: %w", err)
	}
	if id == "" {
		return fmt.Errorf("delete logbook entry: id is required")
	}

	params := writeParams(session.Identity.NRP, q)
	params["Hapus"] = "1"
	params["nokplogbook"] = id

	body, err := c.get(ctx, ResourceLogbook, session.Token, pathLogbook, params)
	if err != nil {
		return err
	}
	return c.checkLogbookWrite(body, false)
}

// UploadKind is the kind of file attached to a logbook week.
type UploadKind string

const (
	UploadScreenshot UploadKind = "screenshot"
	UploadProgress   UploadKind = "progress"
)

func (k UploadKind) limit() int64 {
	if k == UploadProgress {
		return MaxProgressSize
	}
	return MaxScreenshotSize
}

func (k UploadKind) accepts(contentType string) bool {
	switch k {
	case UploadScreenshot:
		return contentType == "image/png" || contentType == "image/jpeg"
	case UploadProgress:
		return contentType == "application/pdf"
	}
	return false
}

func (k UploadKind) flag() string {
	if k == UploadProgress {
		return "UploadProgres"
	}
	return "UploadFoto"
}

// LogbookUpload is a file attached to a logbook day.
type LogbookUpload struct {
	LogbookQuery
	Kind        UploadKind
	Date        string
	PlacementId string
	StudentId   string
	Filename    string
	File        io.Reader
}

// readUpload reads the whole file, rejecting it once it grows past the
// limit of its kind or when its content does not match the kind.
func readUpload(upload LogbookUpload) ([]byte, error) {
	limit := upload.Kind.limit()
	contents, err := io.ReadAll(io.LimitReader(upload.File, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(contents)) > limit {
		return nil, fmt.Errorf("%w: %s is limited to %d bytes", ErrFileTooLarge, upload.Kind, limit)
	}
	contentType := http.DetectContentType(contents)
	if !upload.Kind.accepts(contentType) {
		return nil, fmt.Errorf("%w: %s cannot be %s", ErrUnsupportedFile, upload.Kind, contentType)
	}
	return contents, nil
}

// UploadLogbookFile attaches a screenshot or a progress report to a week.
func (c *Client) UploadLogbookFile(ctx context.Context, session UpstreamSession, upload LogbookUpload) error {
	err := upload.LogbookQuery.Validate()
	if err != nil {
		return fmt.Errorf("upload logbook file: %w", err)
	}
	if upload.Kind != UploadScreenshot && upload.Kind != UploadProgress {
		return fmt.Errorf("upload logbook file: unknown kind %q", upload.Kind)
	}
	contents, err := readUpload(upload)
	if err != nil {
		return fmt.Errorf("upload logbook file: %w", err)
	}

	form := writeParams(session.Identity.NRP, upload.LogbookQuery)
	form[upload.Kind.flag()] = "1"
	form["tanggal"] = upload.Date
	form["kp_daftar"] = upload.PlacementId
	form["mahasiswa"] = upload.StudentId

	res, err := c.portalRequest(ctx, session.Token).
		SetMultipartFormData(form).
		SetFileReader("file", upload.Filename, bytes.NewReader(contents)).
		Post(pathLogbook)
	err = checkResponse("upload logbook file", res, err)
	if err != nil {
		c.tel.ReportBroken(report_client_logbook_write, err)
		return err
	}
	return c.checkLogbookWrite(res.Body(), false)
}
