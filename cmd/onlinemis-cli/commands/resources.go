package commands

import (
	"fmt"
	"onlinemis-backend/internal/scrapers/onlinemis"
	"onlinemis-backend/lib/serviceutil"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	attendanceTerm   termFlags
	scheduleTerm     termFlags
	gradesTerm       termFlags
	registrationTerm termFlags
)

func init() {
	attendanceTerm = addTermFlags(attendanceCmd)
	scheduleTerm = addTermFlags(scheduleCmd)
	gradesTerm = addTermFlags(gradesCmd)
	registrationTerm = addTermFlags(registrationCmd)

	rootCmd.AddCommand(
		loginCmd,
		attendanceCmd,
		scheduleCmd,
		gradesCmd,
		registrationCmd,
		announcementsCmd,
	)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Logs in with the configured credentials and prints the identity.",
	Run: func(cmd *cobra.Command, args []string) {
		s := login(cmd.Context())
		fmt.Printf("logged in as %s (%s)\n", s.upstream.Identity.Name, s.upstream.Identity.NRP)
	},
}

var attendanceCmd = &cobra.Command{
	Use:   "attendance [--year <year>] [--semester <1-4>]",
	Short: "Prints the weekly attendance of every course in a term.",
	Run: func(cmd *cobra.Command, args []string) {
		s := login(cmd.Context())
		record, err := s.handlers.Attendance.Run(cmd.Context(), s.upstream.Token, attendanceTerm.query())
		if err != nil {
			serviceutil.Fatal("failed to get attendance", err)
		}

		t := newTable()
		header := table.Row{"Code", "Course"}
		for week := 1; week <= onlinemis.AttendanceWeeks; week++ {
			header = append(header, week)
		}
		t.AppendHeader(append(header, "Summary"))
		for _, course := range record.Courses {
			row := table.Row{course.CourseCode, course.CourseName}
			for _, status := range course.WeeklyStatus {
				row = append(row, status)
			}
			t.AppendRow(append(row, course.Summary))
		}
		t.Render()
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule [--year <year>] [--semester <1-4>]",
	Short: "Prints the weekly class schedule of a term.",
	Run: func(cmd *cobra.Command, args []string) {
		s := login(cmd.Context())
		record, err := s.handlers.Schedule.Run(cmd.Context(), s.upstream.Token, scheduleTerm.query())
		if err != nil {
			serviceutil.Fatal("failed to get schedule", err)
		}

		fmt.Printf("class: %s, break: %s\n", record.Class, record.BreakTime)
		t := newTable()
		t.AppendHeader(table.Row{"Day", "Time", "Course", "Instructor", "Room"})
		for day := time.Sunday; day <= time.Saturday; day++ {
			for _, entry := range record.Day(day) {
				t.AppendRow(table.Row{record.Days[day].Name, entry.Time, entry.Course, entry.Instructor, entry.Room})
			}
		}
		t.Render()
	},
}

var gradesCmd = &cobra.Command{
	Use:   "grades [--year <year>] [--semester <1-4>]",
	Short: "Prints the letter grades of a term, best first.",
	Run: func(cmd *cobra.Command, args []string) {
		s := login(cmd.Context())
		record, err := s.handlers.Grades.Run(cmd.Context(), s.upstream.Token, gradesTerm.query())
		if err != nil {
			serviceutil.Fatal("failed to get grades", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Code", "Course", "Grade"})
		for _, course := range onlinemis.SortGrades(record.Courses) {
			t.AppendRow(table.Row{course.CourseCode, course.CourseName, course.LetterGrade})
		}
		t.Render()
	},
}

func formatRange(r onlinemis.DateRange) string {
	if r.From.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%s - %s", r.From.Format("02 Jan 2006"), r.To.Format("02 Jan 2006"))
}

var registrationCmd = &cobra.Command{
	Use:   "registration [--year <year>] [--semester <1-4>]",
	Short: "Prints the course registration (FRS) of a term.",
	Run: func(cmd *cobra.Command, args []string) {
		s := login(cmd.Context())
		record, err := s.handlers.Registration.Run(cmd.Context(), s.upstream.Token, registrationTerm.query())
		if err != nil {
			serviceutil.Fatal("failed to get registration", err)
		}

		summary := newTable()
		summary.AppendRows([]table.Row{
			{"Advisor", record.Advisor},
			{"Credits", fmt.Sprintf("%d used, %d remaining of %d", record.CreditsUsed, record.CreditsRemaining, record.CreditLimit)},
			{"GPA", fmt.Sprintf("%.2f cumulative, %.2f last semester", record.GpaCumulative, record.GpaSemester)},
			{"Filling", formatRange(record.ImportantDates.Filling)},
			{"Change", formatRange(record.ImportantDates.Change)},
			{"Drop", formatRange(record.ImportantDates.Drop)},
		})
		summary.Render()

		t := newTable()
		t.AppendHeader(table.Row{"Code", "Course", "Group", "Day", "Time", "Instructor", "Credits", "Class", "Approval"})
		for _, c := range record.Courses {
			t.AppendRow(table.Row{c.CourseCode, c.Course, c.Group, c.Day, c.Time, c.Instructor, c.Credits, c.Class, c.ApprovalStatus})
		}
		t.AppendFooter(table.Row{"", "", "", "", "", "Total", record.CreditsUsed})
		t.Render()
	},
}

var announcementsCmd = &cobra.Command{
	Use:   "announcements",
	Short: "Prints the announcements on the portal home page.",
	Run: func(cmd *cobra.Command, args []string) {
		s := login(cmd.Context())
		record, err := s.handlers.Home.Run(cmd.Context(), s.upstream.Token, onlinemis.NoQuery{})
		if err != nil {
			serviceutil.Fatal("failed to get announcements", err)
		}

		for _, a := range record.Announcements {
			fmt.Printf("%s\n%s, %s, %s\n\n%s\n\n", a.Title, a.Category, a.Sender, a.Date, strings.TrimSpace(a.Content))
		}
	},
}
