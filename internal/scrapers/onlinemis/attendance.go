package onlinemis

import (
	"fmt"
	"onlinemis-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// AttendanceWeeks is the number of weekly cells every attendance row has.
const AttendanceWeeks = 16

type AttendanceRecord struct {
	SemesterList
	Courses []CourseAttendance `json:"courses"`
}

type CourseAttendance struct {
	CourseCode string `json:"courseCode"`
	CourseName string `json:"courseName"`
	// WeeklyStatus holds the raw cell of every week in order, empty cells
	// stay in place as empty strings.
	WeeklyStatus []string `json:"weeklyStatus"`
	Summary      string   `json:"attendanceSummary"`
}

func ExtractAttendance(html []byte) (AttendanceRecord, error) {
	doc, err := parseHtml(html)
	if err != nil {
		return AttendanceRecord{}, fmt.Errorf("attendance: parse html: %w", err)
	}

	semesters, err := extractSemesterList(ResourceAttendance, doc)
	if err != nil {
		return AttendanceRecord{}, err
	}
	_, err = requireAnchor(ResourceAttendance, "table", doc.Selection, selectTermTable)
	if err != nil {
		return AttendanceRecord{}, err
	}

	courses := []CourseAttendance{}
	doc.Find(selectTermRows).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		var course CourseAttendance
		course, err = extractAttendanceRow(row)
		if err != nil {
			return false
		}
		courses = append(courses, course)
		return true
	})
	if err != nil {
		return AttendanceRecord{}, err
	}

	return AttendanceRecord{
		SemesterList: semesters,
		Courses:      courses,
	}, nil
}

func extractAttendanceRow(row *goquery.Selection) (CourseAttendance, error) {
	cells := row.ChildrenFiltered("td")
	// code, name, the weeks and the summary
	if cells.Length() < 3 {
		return CourseAttendance{}, &FieldParseError{
			Resource: ResourceAttendance,
			Field:    "row",
			Value:    htmlutil.CleanText(row),
			Err:      fmt.Errorf("expected at least 3 cells, got %d", cells.Length()),
		}
	}

	weekCells := cells.Slice(2, cells.Length()-1)
	if weekCells.Length() > AttendanceWeeks {
		return CourseAttendance{}, &FieldParseError{
			Resource: ResourceAttendance,
			Field:    "weeklyStatus",
			Value:    htmlutil.CleanText(row),
			Err:      fmt.Errorf("expected %d weeks, got %d", AttendanceWeeks, weekCells.Length()),
		}
	}

	weeks := make([]string, AttendanceWeeks)
	weekCells.Each(func(i int, cell *goquery.Selection) {
		weeks[i] = htmlutil.CleanText(cell)
	})

	return CourseAttendance{
		CourseCode:   htmlutil.CleanText(cells.Eq(0)),
		CourseName:   htmlutil.CleanText(cells.Eq(1)),
		WeeklyStatus: weeks,
		Summary:      htmlutil.CleanText(cells.Last()),
	}, nil
}
