package onlinemis

import (
	"fmt"
)

// Identity is the logged in principal as shown by the portal banner.
type Identity struct {
	Name string `json:"name"`
	// NRP is the student number, empty when the banner did not carry one.
	NRP string `json:"nrp"`
}

// UpstreamSession is the result of a successful CAS login. Token is the
// portal session cookie value and is only ever sent back to the portal as is.
type UpstreamSession struct {
	Token    string   `json:"token"`
	Identity Identity `json:"identity"`
	// Term is the year, semester and week the portal considered current at
	// login, the zero value when it could not be read.
	Term LogbookQuery `json:"term"`
}

// Resource names one of the fixed page shapes the portal produces.
type Resource string

const (
	ResourceLogin        Resource = "login"
	ResourceHome         Resource = "home"
	ResourceAttendance   Resource = "attendance"
	ResourceSchedule     Resource = "schedule"
	ResourceGrades       Resource = "grades"
	ResourceRegistration Resource = "registration"
	ResourceLogbook      Resource = "logbook"
)

// Semester 1/2 are the regular odd/even terms, 3/4 the intersession terms.
type Semester int

const (
	SemesterOdd              Semester = 1
	SemesterEven             Semester = 2
	SemesterIntersessionOdd  Semester = 3
	SemesterIntersessionEven Semester = 4
)

func (s Semester) Valid() bool {
	return s >= SemesterOdd && s <= SemesterIntersessionEven
}

const (
	MinWeek = 1
	MaxWeek = 24
)

// ResourceQuery identifies which slice of upstream data to fetch.
type ResourceQuery struct {
	Year     int      `json:"year"`
	Semester Semester `json:"semester"`
}

func (q ResourceQuery) Validate() error {
	if q.Year <= 0 {
		return fmt.Errorf("invalid year %d", q.Year)
	}
	if !q.Semester.Valid() {
		return fmt.Errorf("invalid semester %d", q.Semester)
	}
	return nil
}

// LogbookQuery is a ResourceQuery narrowed to one week of a work placement.
type LogbookQuery struct {
	ResourceQuery
	Week int `json:"week"`
}

func (q LogbookQuery) Validate() error {
	err := q.ResourceQuery.Validate()
	if err != nil {
		return err
	}
	if q.Week < MinWeek || q.Week > MaxWeek {
		return fmt.Errorf("invalid week %d, expected %d..%d", q.Week, MinWeek, MaxWeek)
	}
	return nil
}

// NoQuery is the query of resources that take no parameters.
type NoQuery struct{}

// SemesterList holds the year and semester choices a page offers in its
// selection controls, in document order.
type SemesterList struct {
	Years     []int `json:"years"`
	Semesters []int `json:"semesters"`
}
