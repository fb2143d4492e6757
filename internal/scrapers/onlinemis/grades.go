package onlinemis

import (
	"fmt"
	"onlinemis-backend/lib/htmlutil"
	"slices"

	"github.com/PuerkitoBio/goquery"
)

type GradesRecord struct {
	SemesterList
	Courses []CourseGrade `json:"courses"`
}

type CourseGrade struct {
	CourseCode  string `json:"courseCode"`
	CourseName  string `json:"courseName"`
	LetterGrade string `json:"letterGrade"`
}

func ExtractGrades(html []byte) (GradesRecord, error) {
	doc, err := parseHtml(html)
	if err != nil {
		return GradesRecord{}, fmt.Errorf("grades: parse html: %w", err)
	}

	semesters, err := extractSemesterList(ResourceGrades, doc)
	if err != nil {
		return GradesRecord{}, err
	}
	_, err = requireAnchor(ResourceGrades, "table", doc.Selection, selectTermTable)
	if err != nil {
		return GradesRecord{}, err
	}

	courses := []CourseGrade{}
	doc.Find(selectTermRows).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.ChildrenFiltered("td")
		if cells.Length() < 3 {
			err = &FieldParseError{
				Resource: ResourceGrades,
				Field:    "row",
				Value:    htmlutil.CleanText(row),
				Err:      fmt.Errorf("expected 3 cells, got %d", cells.Length()),
			}
			return false
		}
		courses = append(courses, CourseGrade{
			CourseCode:  htmlutil.CleanText(cells.Eq(0)),
			CourseName:  htmlutil.CleanText(cells.Eq(1)),
			LetterGrade: htmlutil.CleanText(cells.Eq(2)),
		})
		return true
	})
	if err != nil {
		return GradesRecord{}, err
	}

	return GradesRecord{
		SemesterList: semesters,
		Courses:      courses,
	}, nil
}

// GradeOrder lists letter grades from best to worst.
var GradeOrder = []string{"A", "A-", "AB", "B+", "B", "BC", "C", "D", "E"}

// GradeRank returns the position of grade in GradeOrder, grades that are
// not in the table (including ungraded courses) rank after all of them.
func GradeRank(grade string) int {
	idx := slices.Index(GradeOrder, grade)
	if idx < 0 {
		return len(GradeOrder)
	}
	return idx
}

// CompareGrades orders a before b when a is the better grade.
func CompareGrades(a, b string) int {
	return GradeRank(a) - GradeRank(b)
}

// SortGrades returns a copy of courses ordered from best to worst grade,
// courses with equal grades keep their relative order.
func SortGrades(courses []CourseGrade) []CourseGrade {
	sorted := slices.Clone(courses)
	slices.SortStableFunc(sorted, func(a, b CourseGrade) int {
		return CompareGrades(a.LetterGrade, b.LetterGrade)
	})
	return sorted
}
