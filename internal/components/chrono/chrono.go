package chrono

import (
	"time"
)

var jakarta *time.Location

func init() {
	var err error
	jakarta, err = time.LoadLocation("Asia/Jakarta")
	if err != nil {
		// WIB has no daylight saving, a fixed zone is equivalent
		jakarta = time.FixedZone("WIB", 7*60*60)
	}
}

// Jakarta returns a [*time.Location] for Asia/Jakarta, the timezone the
// upstream portal operates in.
func Jakarta() *time.Location {
	return jakarta
}

// TimeAPI is the interface that anything depending on the system clock should use.
type TimeAPI interface {
	// Now returns the current time in Asia/Jakarta.
	Now() time.Time
}

// StandardTime is the standard implementation of TimeAPI using the standard library.
type StandardTime struct{}

// NewStandardTime is the constructor of StandardTime.
func NewStandardTime() StandardTime {
	return StandardTime{}
}

func (StandardTime) Now() time.Time {
	return time.Now().In(jakarta)
}

// FixedTime is a TimeAPI that always returns the same instant, used in tests.
type FixedTime struct {
	At time.Time
}

func (f FixedTime) Now() time.Time {
	return f.At.In(jakarta)
}

// UntilMidnight returns the duration between now and the next midnight in
// the timezone of now.
func UntilMidnight(now time.Time) time.Duration {
	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	return midnight.Sub(now)
}

// CurrentTerm returns the academic year and regular semester that contain
// now. June through September belong to the even semester.
func CurrentTerm(now time.Time) (year int, semester int) {
	month := now.Month()
	if month >= time.June && month <= time.September {
		return now.Year(), 2
	}
	return now.Year(), 1
}
