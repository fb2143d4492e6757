package commands

import (
	"fmt"
	"onlinemis-backend/internal/scrapers/onlinemis"
	"onlinemis-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type weekFlags struct {
	termFlags
	week *int
}

func addWeekFlags(cmd *cobra.Command) weekFlags {
	return weekFlags{
		termFlags: addTermFlags(cmd),
		week:      cmd.Flags().Int("week", onlinemis.MinWeek, "The placement week."),
	}
}

func (f weekFlags) query() onlinemis.LogbookQuery {
	q := onlinemis.LogbookQuery{
		ResourceQuery: f.termFlags.query(),
		Week:          *f.week,
	}
	err := q.Validate()
	if err != nil {
		serviceutil.Fatal("invalid week", err)
	}
	return q
}

var (
	logbookWeek       weekFlags
	logbookAddWeek    weekFlags
	logbookDeleteWeek weekFlags

	addDate     *string
	addStart    *string
	addEnd      *string
	addActivity *string
	addCourse   *int
)

func init() {
	logbookWeek = addWeekFlags(logbookCmd)
	logbookAddWeek = addWeekFlags(logbookAddCmd)
	logbookDeleteWeek = addWeekFlags(logbookDeleteCmd)

	addDate = logbookAddCmd.Flags().String("date", "", "The date of the activity, dd-mm-yyyy.")
	addStart = logbookAddCmd.Flags().String("start", "08:00", "The start time, HH:MM.")
	addEnd = logbookAddCmd.Flags().String("end", "17:00", "The end time, HH:MM.")
	addActivity = logbookAddCmd.Flags().String("activity", "", "What was done.")
	addCourse = logbookAddCmd.Flags().Int("course", 0, "The id of the course the activity matches, 0 for none.")
	logbookAddCmd.MarkFlagRequired("date")
	logbookAddCmd.MarkFlagRequired("activity")

	logbookCmd.AddCommand(logbookAddCmd, logbookDeleteCmd)
	rootCmd.AddCommand(logbookCmd)
}

func printLogbook(record onlinemis.LogbookRecord) {
	fmt.Printf("%s (%s), %s at %s, %s\n", record.Form.Name, record.Form.NRP, record.Form.Supervisor, record.Form.Placement, record.Form.PlacementDates)

	t := newTable()
	t.AppendHeader(table.Row{"Id", "Date", "Start", "End", "Activity", "Course", "Deletable"})
	for _, e := range record.Entries {
		t.AppendRow(table.Row{e.Id, e.Date, e.Start, e.End, e.Activity, e.Course, e.Deletable})
	}
	t.Render()

	if record.SupervisorNotes != "" {
		fmt.Println("supervisor:", record.SupervisorNotes)
	}
	if record.CompanyNotes != "" {
		fmt.Println("company:", record.CompanyNotes)
	}
}

var logbookCmd = &cobra.Command{
	Use:   "logbook [--year <year>] [--semester <1-4>] [--week <week>]",
	Short: "Prints the work placement logbook of a week.",
	Run: func(cmd *cobra.Command, args []string) {
		s := login(cmd.Context())
		record, err := s.handlers.Logbook.Run(cmd.Context(), s.upstream.Token, logbookWeek.query())
		if err != nil {
			serviceutil.Fatal("failed to get logbook", err)
		}
		printLogbook(record)
	},
}

var logbookAddCmd = &cobra.Command{
	Use:   "add --date <dd-mm-yyyy> --activity <text> [--start HH:MM] [--end HH:MM] [--course <id>]",
	Short: "Adds an entry to the logbook of a week.",
	Run: func(cmd *cobra.Command, args []string) {
		s := login(cmd.Context())
		q := logbookAddWeek.query()

		// the hidden placement and student ids come from the logbook page itself
		record, err := s.handlers.Logbook.Run(cmd.Context(), s.upstream.Token, q)
		if err != nil {
			serviceutil.Fatal("failed to get logbook", err)
		}

		err = s.client.CreateLogbookEntry(cmd.Context(), s.upstream, onlinemis.LogbookEntryInput{
			LogbookQuery:  q,
			Date:          *addDate,
			Start:         *addStart,
			End:           *addEnd,
			Activity:      *addActivity,
			MatchesCourse: *addCourse != 0,
			CourseId:      *addCourse,
			PlacementId:   record.PlacementId,
			StudentId:     record.StudentId,
		})
		if err != nil {
			serviceutil.Fatal("failed to add logbook entry", err)
		}
		fmt.Println("entry saved")
	},
}

var logbookDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Deletes a logbook entry of a week.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := login(cmd.Context())
		err := s.client.DeleteLogbookEntry(cmd.Context(), s.upstream, logbookDeleteWeek.query(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to delete logbook entry", err)
		}
		fmt.Println("entry deleted")
	},
}
