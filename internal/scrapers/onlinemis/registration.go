package onlinemis

import (
	"fmt"
	"onlinemis-backend/internal/components/chrono"
	"onlinemis-backend/lib/htmlutil"
	"onlinemis-backend/lib/textutil"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// upstreamDateLayout is dd-MM-yyyy.
const upstreamDateLayout = "02-01-2006"

type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type ImportantDates struct {
	Filling DateRange `json:"filling"`
	Change  DateRange `json:"change"`
	Drop    DateRange `json:"drop"`
}

type RegisteredCourse struct {
	Id         string `json:"id"`
	CourseCode string `json:"courseCode"`
	Group      string `json:"group"`
	Course     string `json:"course"`
	Day        string `json:"day"`
	Time       string `json:"time"`
	Instructor string `json:"instructor"`
	Credits    int    `json:"credits"`
	Class      string `json:"class"`
	// ApprovalStatus is the advisor approval cell as shown by the portal.
	ApprovalStatus string `json:"approvalStatus"`
}

type RegistrationRecord struct {
	SemesterList
	Advisor          string             `json:"advisor"`
	CreditLimit      int                `json:"creditLimit"`
	CreditsRemaining int                `json:"creditsRemaining"`
	CreditsUsed      int                `json:"creditsUsed"`
	GpaCumulative    float64            `json:"gpaCumulative"`
	GpaSemester      float64            `json:"gpaSemester"`
	ImportantDates   ImportantDates     `json:"importantDateRanges"`
	Courses          []RegisteredCourse `json:"courses"`
}

// ParseDateRange parses `dd-MM-yyyy sd dd-MM-yyyy` in Asia/Jakarta. Empty
// text yields the zero range.
func ParseDateRange(text string) (DateRange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return DateRange{}, nil
	}

	parts := strings.Split(text, "sd")
	if len(parts) != 2 {
		return DateRange{}, fmt.Errorf("expected '<from> sd <to>', got %q", text)
	}
	from, err := time.ParseInLocation(upstreamDateLayout, strings.TrimSpace(parts[0]), chrono.Jakarta())
	if err != nil {
		return DateRange{}, err
	}
	to, err := time.ParseInLocation(upstreamDateLayout, strings.TrimSpace(parts[1]), chrono.Jakarta())
	if err != nil {
		return DateRange{}, err
	}
	return DateRange{From: from, To: to}, nil
}

// splitPair splits `<a> / <b>` style text into its first and third field.
func splitPair(field, text string) (string, string, error) {
	fields := strings.Fields(text)
	if len(fields) < 3 {
		return "", "", &FieldParseError{
			Resource: ResourceRegistration,
			Field:    field,
			Value:    text,
			Err:      fmt.Errorf("expected '<a> / <b>'"),
		}
	}
	return fields[0], fields[2], nil
}

func parseRegistrationInt(field, text string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, &FieldParseError{Resource: ResourceRegistration, Field: field, Value: text, Err: err}
	}
	return n, nil
}

func parseRegistrationFloat(field, text string) (float64, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	f, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, &FieldParseError{Resource: ResourceRegistration, Field: field, Value: text, Err: err}
	}
	return f, nil
}

func ExtractRegistration(html []byte) (RegistrationRecord, error) {
	doc, err := parseHtml(html)
	if err != nil {
		return RegistrationRecord{}, fmt.Errorf("registration: parse html: %w", err)
	}

	semesters, err := extractSemesterList(ResourceRegistration, doc)
	if err != nil {
		return RegistrationRecord{}, err
	}
	record := RegistrationRecord{SemesterList: semesters}

	advisor, err := requireAnchor(ResourceRegistration, "advisor", doc.Selection, selectRegistrationAdvisor)
	if err != nil {
		return RegistrationRecord{}, err
	}
	record.Advisor = htmlutil.CleanText(advisor.First())

	err = extractRegistrationCredits(doc, &record)
	if err != nil {
		return RegistrationRecord{}, err
	}
	err = extractRegistrationDates(doc, &record)
	if err != nil {
		return RegistrationRecord{}, err
	}

	_, err = requireAnchor(ResourceRegistration, "courses", doc.Selection, selectRegistrationTable)
	if err != nil {
		return RegistrationRecord{}, err
	}
	record.Courses = []RegisteredCourse{}
	doc.Find(selectRegistrationRows).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		var course RegisteredCourse
		course, err = extractRegisteredCourse(row)
		if err != nil {
			return false
		}
		record.Courses = append(record.Courses, course)
		return true
	})
	if err != nil {
		return RegistrationRecord{}, err
	}

	return record, nil
}

func extractRegistrationCredits(doc *goquery.Document, record *RegistrationRecord) error {
	credits, err := requireAnchor(ResourceRegistration, "credits", doc.Selection, selectRegistrationCredits)
	if err != nil {
		return err
	}
	limit, remaining, err := splitPair("credits", htmlutil.CleanText(credits.First()))
	if err != nil {
		return err
	}
	record.CreditLimit, err = parseRegistrationInt("creditLimit", limit)
	if err != nil {
		return err
	}
	record.CreditsRemaining, err = parseRegistrationInt("creditsRemaining", remaining)
	if err != nil {
		return err
	}
	record.CreditsUsed = record.CreditLimit - record.CreditsRemaining

	gpa, err := requireAnchor(ResourceRegistration, "gpa", doc.Selection, selectRegistrationGpa)
	if err != nil {
		return err
	}
	cumulative, semester, err := splitPair("gpa", htmlutil.CleanText(gpa.First()))
	if err != nil {
		return err
	}
	record.GpaCumulative, err = parseRegistrationFloat("gpaCumulative", cumulative)
	if err != nil {
		return err
	}
	record.GpaSemester, err = parseRegistrationFloat("gpaSemester", semester)
	if err != nil {
		return err
	}
	return nil
}

func extractRegistrationDates(doc *goquery.Document, record *RegistrationRecord) error {
	dates, err := requireAnchor(ResourceRegistration, "importantDateRanges", doc.Selection, selectRegistrationDates)
	if err != nil {
		return err
	}
	dates = dates.First()

	windows := []struct {
		field string
		child int
		out   *DateRange
	}{
		{field: "filling", child: 2, out: &record.ImportantDates.Filling},
		{field: "change", child: 4, out: &record.ImportantDates.Change},
		{field: "drop", child: 6, out: &record.ImportantDates.Drop},
	}
	for _, window := range windows {
		selector := fmt.Sprintf("i:nth-child(%d)", window.child)
		cell, err := requireAnchor(ResourceRegistration, window.field, dates, selector)
		if err != nil {
			return err
		}
		text := htmlutil.CleanText(cell.First())
		dateRange, err := ParseDateRange(text)
		if err != nil {
			return &FieldParseError{Resource: ResourceRegistration, Field: window.field, Value: text, Err: err}
		}
		*window.out = dateRange
	}
	return nil
}

// extractRegisteredCourse reads a course row, the course cell has the form
// `name<br>Hari : day<br>Jam : time`.
func extractRegisteredCourse(row *goquery.Selection) (RegisteredCourse, error) {
	cells := row.ChildrenFiltered("td")
	if cells.Length() < 9 {
		return RegisteredCourse{}, &FieldParseError{
			Resource: ResourceRegistration,
			Field:    "row",
			Value:    htmlutil.CleanText(row),
			Err:      fmt.Errorf("expected 9 cells, got %d", cells.Length()),
		}
	}

	course := RegisteredCourse{
		CourseCode:     htmlutil.CleanText(cells.Eq(2)),
		Group:          htmlutil.CleanText(cells.Eq(3)),
		Instructor:     htmlutil.CleanText(cells.Eq(5)),
		Class:          htmlutil.CleanText(cells.Eq(7)),
		ApprovalStatus: htmlutil.CleanText(cells.Eq(8)),
	}
	if anchor, ok := htmlutil.GetAnchor(cells.Eq(0)); ok {
		course.Id = textutil.AfterLast(anchor.Href, "=")
	}

	credits, err := parseRegistrationInt("credits", htmlutil.CleanText(cells.Eq(6)))
	if err != nil {
		return RegisteredCourse{}, err
	}
	course.Credits = credits

	courseCell := cells.Eq(4)
	if font := courseCell.Find("font").First(); font.Length() > 0 {
		courseCell = font
	}
	lines := htmlutil.Lines(courseCell)
	if len(lines) < 3 {
		return RegisteredCourse{}, &FieldParseError{
			Resource: ResourceRegistration,
			Field:    "course",
			Value:    strings.Join(lines, " | "),
			Err:      fmt.Errorf("expected 3 lines, got %d", len(lines)),
		}
	}
	course.Course = lines[0]
	course.Day, err = labelledValue("day", lines[1])
	if err != nil {
		return RegisteredCourse{}, err
	}
	course.Time, err = labelledValue("time", lines[2])
	if err != nil {
		return RegisteredCourse{}, err
	}

	return course, nil
}

// labelledValue returns the trimmed value of a `label : value` line.
func labelledValue(field, line string) (string, error) {
	value, found := textutil.AfterFirst(line, ":")
	if !found {
		return "", &FieldParseError{
			Resource: ResourceRegistration,
			Field:    field,
			Value:    line,
			Err:      fmt.Errorf("missing ':' delimiter"),
		}
	}
	return strings.TrimSpace(value), nil
}
