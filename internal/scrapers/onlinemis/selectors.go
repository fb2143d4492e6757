package onlinemis

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// The academic pages share one table layout without ids or classes. Every
// selector below encodes exact row/column positions of that layout.

// selectFilterTable is the inner table holding the title row (1), the year
// select (2), the semester select (3) and the page content (4 onwards).
const selectFilterTable = "table:nth-child(1) > tbody:nth-child(1) > tr:nth-child(3) > td:nth-child(1) > " +
	"div:nth-child(1) > table:nth-child(1) > tbody:nth-child(1) > tr:nth-child(1) > td:nth-child(1) > " +
	"table:nth-child(1) > tbody:nth-child(1)"

const (
	// year select sits in the second cell of row 2, wrapped in two fonts
	selectYearSelect = selectFilterTable + " > tr:nth-child(2) > td:nth-child(2) > font:nth-child(1) > font:nth-child(1) > select:nth-child(1)"
	// semester select sits in the second cell of row 3
	selectSemesterSelect = selectFilterTable + " > tr:nth-child(3) > td:nth-child(2) > font:nth-child(1) > font:nth-child(1) > select:nth-child(1)"
)

// selectTermTable is the table of attendance and grades pages, its first two
// rows are headers.
const selectTermTable = selectFilterTable + " > tr:nth-child(4) > td:nth-child(2) > table:nth-child(1) > tbody:nth-child(1) > " +
	"tr:nth-child(1) > td:nth-child(1) > table:nth-child(1) > tbody:nth-child(1)"

const selectTermRows = selectTermTable + " > tr:not(:first-child):not(:nth-child(2))"

// selectScheduleContent holds the class banner table (1) and the week table (2).
const selectScheduleContent = "table > tbody > tr:nth-child(3) > td > div > table > tbody > tr > td > table > tbody > " +
	"tr:nth-child(4) > td:nth-child(2) > table > tbody > tr > td"

const (
	selectScheduleClass = selectScheduleContent + " > table:nth-child(1) > tbody > tr > td > div > b"
	selectScheduleWeek  = "body > " + selectScheduleContent + " > table:nth-child(2) > tbody"
	// the week table has a header row, seven day rows and the break time row
	selectScheduleDays  = selectScheduleWeek + " > tr:not(:first-child):not(:last-child)"
	selectScheduleBreak = selectScheduleWeek + " > tr:nth-child(9) > td > strong"
	// inside a day row, odd rows are entries and even rows are spacers
	selectScheduleEntries = "tr:nth-child(odd) > td:nth-child(2) > div"
)

const (
	selectRegistrationAdvisor = selectFilterTable + " > tr:nth-child(5) > td:nth-child(2) > font:nth-child(1)"
	selectRegistrationCredits = selectFilterTable + " > tr:nth-child(6) > td:nth-child(2) > font:nth-child(1)"
	selectRegistrationGpa     = selectFilterTable + " > tr:nth-child(7) > td:nth-child(2) > font:nth-child(1)"
	// filling, change and drop windows are the 2nd, 4th and 6th children,
	// each preceded by its label
	selectRegistrationDates = selectFilterTable + " > tr:nth-child(8) > td:nth-child(2) > font:nth-child(1)"
	// the course table has a header row and a totals row
	selectRegistrationTable = "table > tbody > tr:nth-child(3) > td > div > table > tbody > tr > td > table > tbody > " +
		"tr:nth-child(10) > td:nth-child(2) > table:nth-child(1) > tbody"
	selectRegistrationRows = selectRegistrationTable + " > tr:not(:first-child):not(:last-child)"
)

const (
	selectLogbookYears     = "#tahun"
	selectLogbookSemesters = "#cbSemester"
	selectLogbookWeeks     = "#minggu"
	selectLogbookCourses   = "#matakuliah > option:not(:first-child)"
	selectLogbookPlacement = "#kp_daftar"
	selectLogbookStudent   = "#mahasiswa"
	selectLogbookOnload    = "body[onload]"

	// the form table lists name, nrp, supervisor, placement and placement
	// dates in rows 6 through 10
	selectLogbookForm    = "table:nth-child(2) > tbody"
	selectLogbookName    = selectLogbookForm + " > tr:nth-child(6) > td:nth-child(2)"
	selectLogbookNrp     = selectLogbookForm + " > tr:nth-child(7) > td:nth-child(2)"
	selectLogbookAdvisor = selectLogbookForm + " > tr:nth-child(8) > td:nth-child(2)"
	selectLogbookPlace   = selectLogbookForm + " > tr:nth-child(9) > td:nth-child(2)"
	selectLogbookDates   = selectLogbookForm + " > tr:nth-child(10) > td:nth-child(2)"
	selectLogbookBanner  = "table:nth-child(2) > tbody:nth-child(1) > tr:nth-child(2) > td:nth-child(1) > div:nth-child(1) > font"

	// the entry table has two header rows
	selectLogbookEntries         = "table:nth-child(8) > tbody > tr:not(:first-child):not(:nth-child(2))"
	selectLogbookSupervisorNotes = "table:nth-child(10) > tbody:nth-child(1) > tr:nth-child(2) > td:nth-child(1)"
	selectLogbookCompanyNotes    = "table:nth-child(12) > tbody:nth-child(1) > tr:nth-child(2) > td:nth-child(1)"
)

const (
	selectAnnouncementScript = "body script[language='JavaScript']"
	selectAnnouncementTitle  = "font b"
)

// requireAnchor returns the selection of selector, or a *SchemaDriftError if
// it matched nothing.
func requireAnchor(resource Resource, field string, root *goquery.Selection, selector string) (*goquery.Selection, error) {
	sel := root.Find(selector)
	if sel.Length() == 0 {
		return nil, &SchemaDriftError{
			Resource: resource,
			Field:    field,
			Selector: selector,
		}
	}
	return sel, nil
}

// optionValues parses the numeric values of options in document order.
func optionValues(resource Resource, field string, options *goquery.Selection) ([]int, error) {
	values := make([]int, 0, options.Length())
	var err error
	options.EachWithBreak(func(_ int, option *goquery.Selection) bool {
		raw := strings.TrimSpace(option.AttrOr("value", ""))
		n, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			err = &FieldParseError{Resource: resource, Field: field, Value: raw, Err: parseErr}
			return false
		}
		values = append(values, n)
		return true
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// extractSemesterList reads the year and semester selects shared by the
// academic pages.
func extractSemesterList(resource Resource, doc *goquery.Document) (SemesterList, error) {
	years, err := requireAnchor(resource, "years", doc.Selection, selectYearSelect)
	if err != nil {
		return SemesterList{}, err
	}
	semesters, err := requireAnchor(resource, "semesters", doc.Selection, selectSemesterSelect)
	if err != nil {
		return SemesterList{}, err
	}

	yearValues, err := optionValues(resource, "years", years.First().Find("option"))
	if err != nil {
		return SemesterList{}, err
	}
	semesterValues, err := optionValues(resource, "semesters", semesters.First().Find("option"))
	if err != nil {
		return SemesterList{}, err
	}
	return SemesterList{Years: yearValues, Semesters: semesterValues}, nil
}
