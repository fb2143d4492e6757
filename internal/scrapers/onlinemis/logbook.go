package onlinemis

import (
	"fmt"
	"onlinemis-backend/lib/htmlutil"
	"onlinemis-backend/lib/textutil"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type LogbookCourse struct {
	Text  string `json:"text"`
	Value int    `json:"value"`
}

// LogbookForm holds the placement details printed above the entry form.
type LogbookForm struct {
	Name           string          `json:"name"`
	NRP            string          `json:"nrp"`
	Supervisor     string          `json:"supervisor"`
	Placement      string          `json:"placement"`
	PlacementDates string          `json:"placementDates"`
	Courses        []LogbookCourse `json:"courses"`
}

type LogbookEntry struct {
	Id       string `json:"id"`
	Date     string `json:"date"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Activity string `json:"activity"`
	Course   string `json:"course"`
	// ProgressFile is empty when no progress report was uploaded.
	ProgressFile string `json:"progressFile,omitempty"`
	PhotoFile    string `json:"photoFile"`
	PrintLink    string `json:"printLink"`
	Deletable    bool   `json:"deletable"`
}

type LogbookRecord struct {
	SemesterList
	Weeks []int       `json:"weeks"`
	Form  LogbookForm `json:"form"`
	// PlacementId and StudentId are the hidden form values every logbook
	// write has to send back.
	PlacementId     string         `json:"placementId"`
	StudentId       string         `json:"studentId"`
	SupervisorNotes string         `json:"supervisorNotes"`
	CompanyNotes    string         `json:"companyNotes"`
	Entries         []LogbookEntry `json:"entries"`
}

func logbookOptions(doc *goquery.Document, field, selector string) ([]int, error) {
	sel, err := requireAnchor(ResourceLogbook, field, doc.Selection, selector)
	if err != nil {
		return nil, err
	}
	return optionValues(ResourceLogbook, field, sel.First().Find("option"))
}

// afterLabel reads a `label : value` form cell.
func afterLabel(sel *goquery.Selection) string {
	return textutil.AfterLast(htmlutil.CleanText(sel.First()), ":")
}

func notes(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(strings.Join(htmlutil.Lines(sel.First()), "\n"))
}

func ExtractLogbook(html []byte) (LogbookRecord, error) {
	doc, err := parseHtml(html)
	if err != nil {
		return LogbookRecord{}, fmt.Errorf("logbook: parse html: %w", err)
	}

	_, err = requireAnchor(ResourceLogbook, "form", doc.Selection, selectLogbookForm)
	if err != nil {
		return LogbookRecord{}, err
	}
	entryRows := doc.Find(selectLogbookEntries)
	_, err = requireAnchor(ResourceLogbook, "entries", doc.Selection, "table:nth-child(8) > tbody")
	if err != nil {
		return LogbookRecord{}, err
	}

	record := LogbookRecord{
		PlacementId:     strings.TrimSpace(doc.Find(selectLogbookPlacement).AttrOr("value", "")),
		StudentId:       strings.TrimSpace(doc.Find(selectLogbookStudent).AttrOr("value", "")),
		SupervisorNotes: notes(doc.Find(selectLogbookSupervisorNotes)),
		CompanyNotes:    notes(doc.Find(selectLogbookCompanyNotes)),
		Form: LogbookForm{
			Name:           afterLabel(doc.Find(selectLogbookName)),
			NRP:            afterLabel(doc.Find(selectLogbookNrp)),
			Supervisor:     afterLabel(doc.Find(selectLogbookAdvisor)),
			Placement:      afterLabel(doc.Find(selectLogbookPlace)),
			PlacementDates: afterLabel(doc.Find(selectLogbookDates)),
			Courses:        []LogbookCourse{},
		},
		Entries: []LogbookEntry{},
	}

	record.Years, err = logbookOptions(doc, "years", selectLogbookYears)
	if err != nil {
		return LogbookRecord{}, err
	}
	record.Semesters, err = logbookOptions(doc, "semesters", selectLogbookSemesters)
	if err != nil {
		return LogbookRecord{}, err
	}
	record.Weeks, err = logbookOptions(doc, "weeks", selectLogbookWeeks)
	if err != nil {
		return LogbookRecord{}, err
	}

	doc.Find(selectLogbookCourses).EachWithBreak(func(_ int, option *goquery.Selection) bool {
		raw := strings.TrimSpace(option.AttrOr("value", ""))
		value, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			err = &FieldParseError{Resource: ResourceLogbook, Field: "courses", Value: raw, Err: parseErr}
			return false
		}
		record.Form.Courses = append(record.Form.Courses, LogbookCourse{
			Text:  htmlutil.CleanText(option),
			Value: value,
		})
		return true
	})
	if err != nil {
		return LogbookRecord{}, err
	}

	entryRows.Each(func(_ int, row *goquery.Selection) {
		record.Entries = append(record.Entries, extractLogbookEntry(row))
	})

	return record, nil
}

var currentTermRegex = regexp.MustCompile(`showEntry_Logbook_KP1\(\s*(\S*?)\s*,\s*(\S*?)\s*,\s*(\S*?)\s*\)`)

// ExtractCurrentTerm reads the `showEntry_Logbook_KP1(year, semester, week)`
// call the logbook entry page runs on load.
func ExtractCurrentTerm(html []byte) (LogbookQuery, error) {
	doc, err := parseHtml(html)
	if err != nil {
		return LogbookQuery{}, fmt.Errorf("logbook term: parse html: %w", err)
	}

	body, err := requireAnchor(ResourceLogbook, "term", doc.Selection, selectLogbookOnload)
	if err != nil {
		return LogbookQuery{}, err
	}
	onload := body.First().AttrOr("onload", "")
	groups := currentTermRegex.FindStringSubmatch(onload)
	if len(groups) != 4 {
		return LogbookQuery{}, &SchemaDriftError{
			Resource: ResourceLogbook,
			Field:    "term",
			Selector: selectLogbookOnload,
		}
	}

	values := make([]int, 3)
	for i, raw := range groups[1:] {
		values[i], err = strconv.Atoi(strings.Trim(raw, `'"`))
		if err != nil {
			return LogbookQuery{}, &FieldParseError{Resource: ResourceLogbook, Field: "term", Value: onload, Err: err}
		}
	}
	term := LogbookQuery{
		ResourceQuery: ResourceQuery{Year: values[0], Semester: Semester(values[1])},
		Week:          values[2],
	}
	err = term.Validate()
	if err != nil {
		return LogbookQuery{}, &FieldParseError{Resource: ResourceLogbook, Field: "term", Value: onload, Err: err}
	}
	return term, nil
}

// extractLogbookEntry reads an entry row: number, date, start, end, activity,
// related course, progress file, photo, print link and the delete icon.
func extractLogbookEntry(row *goquery.Selection) LogbookEntry {
	cell := func(n int) *goquery.Selection {
		return row.ChildrenFiltered(fmt.Sprintf("td:nth-child(%d)", n))
	}
	href := func(n int) string {
		return strings.TrimSpace(cell(n).ChildrenFiltered("a").First().AttrOr("href", ""))
	}

	entry := LogbookEntry{
		Date:      htmlutil.CleanText(cell(2)),
		Start:     htmlutil.CleanText(cell(3)),
		End:       htmlutil.CleanText(cell(4)),
		Activity:  htmlutil.CleanText(cell(5)),
		Course:    htmlutil.CleanText(cell(6)),
		PhotoFile: href(8),
		PrintLink: href(9),
		Deletable: cell(10).ChildrenFiltered("img").Length() > 0,
	}
	if inner, _ := cell(7).ChildrenFiltered("a").First().Html(); strings.TrimSpace(inner) != "" {
		entry.ProgressFile = href(7)
	}
	if entry.PrintLink != "" {
		entry.Id = textutil.AfterLast(entry.PrintLink, "=")
	}
	return entry
}
