package onlinemis

import (
	"fmt"
	"onlinemis-backend/lib/htmlutil"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

type ScheduleEntry struct {
	Course     string `json:"course"`
	Instructor string `json:"instructor"`
	Time       string `json:"time"`
	Room       string `json:"room"`
}

type DaySchedule struct {
	Day     time.Weekday    `json:"weekday"`
	Name    string          `json:"day"`
	Entries []ScheduleEntry `json:"entries"`
}

type ScheduleRecord struct {
	SemesterList
	Class     string         `json:"class"`
	BreakTime string         `json:"breakTime"`
	Days      [7]DaySchedule `json:"days"`
}

// Day returns the entries of a day of the week.
func (r ScheduleRecord) Day(day time.Weekday) []ScheduleEntry {
	return r.Days[day].Entries
}

// ExtractSchedule names the seven day rows by position, Sunday first. The
// day labels in the markup are not read.
func ExtractSchedule(html []byte) (ScheduleRecord, error) {
	doc, err := parseHtml(html)
	if err != nil {
		return ScheduleRecord{}, fmt.Errorf("schedule: parse html: %w", err)
	}

	semesters, err := extractSemesterList(ResourceSchedule, doc)
	if err != nil {
		return ScheduleRecord{}, err
	}
	rows, err := requireAnchor(ResourceSchedule, "days", doc.Selection, selectScheduleDays)
	if err != nil {
		return ScheduleRecord{}, err
	}
	if rows.Length() != 7 {
		return ScheduleRecord{}, &SchemaDriftError{
			Resource: ResourceSchedule,
			Field:    fmt.Sprintf("days (found %d rows)", rows.Length()),
			Selector: selectScheduleDays,
		}
	}

	record := ScheduleRecord{
		SemesterList: semesters,
		Class:        htmlutil.CleanText(doc.Find(selectScheduleClass).First()),
		BreakTime:    htmlutil.CleanText(doc.Find(selectScheduleBreak).First()),
	}

	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		day := DaySchedule{
			Day:     time.Weekday(i),
			Name:    strings.ToLower(time.Weekday(i).String()),
			Entries: []ScheduleEntry{},
		}
		row.Find(selectScheduleEntries).EachWithBreak(func(_ int, cell *goquery.Selection) bool {
			var entry ScheduleEntry
			entry, err = parseScheduleEntry(cell)
			if err != nil {
				return false
			}
			day.Entries = append(day.Entries, entry)
			return true
		})
		record.Days[i] = day
		return err == nil
	})
	if err != nil {
		return ScheduleRecord{}, err
	}

	return record, nil
}

// parseScheduleEntry reads a cell of the form `course<br>instructor - time<br>room`.
func parseScheduleEntry(cell *goquery.Selection) (ScheduleEntry, error) {
	lines := htmlutil.Lines(cell)
	if len(lines) < 3 {
		return ScheduleEntry{}, &FieldParseError{
			Resource: ResourceSchedule,
			Field:    "entry",
			Value:    strings.Join(lines, " | "),
			Err:      fmt.Errorf("expected 3 lines, got %d", len(lines)),
		}
	}

	instructor, timeRange, found := strings.Cut(lines[1], "-")
	if !found {
		return ScheduleEntry{}, &FieldParseError{
			Resource: ResourceSchedule,
			Field:    "instructor - time",
			Value:    lines[1],
			Err:      fmt.Errorf("missing '-' delimiter"),
		}
	}

	return ScheduleEntry{
		Course:     lines[0],
		Instructor: strings.TrimSpace(instructor),
		Time:       strings.TrimSpace(timeRange),
		Room:       lines[2],
	}, nil
}
