// Package availability owns a doctor's recurring weekly schedule, per-date
// overrides, and slot generation. Everything here is pure computation over
// profile data; persistence lives in the repository and cache.
package availability

import (
	"errors"
	"fmt"
	"time"
)

// ErrConfiguration indicates malformed availability data. Not recoverable by
// the patient; surfaced to the doctor/admin who owns the profile.
var ErrConfiguration = errors.New("availability: invalid schedule configuration")

// DaySchedule describes one weekday's working hours.
// Times are "HH:MM" 24-hour strings; break times may both be empty.
type DaySchedule struct {
	IsAvailable         bool   `dynamodbav:"isAvailable" json:"isAvailable"`
	StartTime           string `dynamodbav:"startTime" json:"startTime"`
	EndTime             string `dynamodbav:"endTime" json:"endTime"`
	BreakStartTime      string `dynamodbav:"breakStartTime" json:"breakStartTime"`
	BreakEndTime        string `dynamodbav:"breakEndTime" json:"breakEndTime"`
	SlotDurationMinutes int    `dynamodbav:"slotDurationMinutes" json:"slotDurationMinutes"`
}

// Validate checks the invariants of an available day: start before end, and
// when both break times are set, the break nested inside the working window.
// Unavailable days carry no constraints.
func (d DaySchedule) Validate() error {
	if !d.IsAvailable {
		return nil
	}
	if d.SlotDurationMinutes <= 0 {
		return fmt.Errorf("%w: slot duration must be positive, got %d", ErrConfiguration, d.SlotDurationMinutes)
	}

	start, err := minutesOfDay(d.StartTime)
	if err != nil {
		return fmt.Errorf("%w: start time %q", ErrConfiguration, d.StartTime)
	}
	end, err := minutesOfDay(d.EndTime)
	if err != nil {
		return fmt.Errorf("%w: end time %q", ErrConfiguration, d.EndTime)
	}
	if start >= end {
		return fmt.Errorf("%w: start %s not before end %s", ErrConfiguration, d.StartTime, d.EndTime)
	}

	if d.BreakStartTime == "" && d.BreakEndTime == "" {
		return nil
	}
	breakStart, err := minutesOfDay(d.BreakStartTime)
	if err != nil {
		return fmt.Errorf("%w: break start %q", ErrConfiguration, d.BreakStartTime)
	}
	breakEnd, err := minutesOfDay(d.BreakEndTime)
	if err != nil {
		return fmt.Errorf("%w: break end %q", ErrConfiguration, d.BreakEndTime)
	}
	if start > breakStart || breakStart >= breakEnd || breakEnd > end {
		return fmt.Errorf("%w: break %s-%s outside window %s-%s",
			ErrConfiguration, d.BreakStartTime, d.BreakEndTime, d.StartTime, d.EndTime)
	}
	return nil
}

// WeeklySchedule maps each weekday to its schedule. A nil entry is a
// configuration error at resolution time; the seven entries must always be
// present on a valid profile.
type WeeklySchedule struct {
	Monday    *DaySchedule `dynamodbav:"monday" json:"monday"`
	Tuesday   *DaySchedule `dynamodbav:"tuesday" json:"tuesday"`
	Wednesday *DaySchedule `dynamodbav:"wednesday" json:"wednesday"`
	Thursday  *DaySchedule `dynamodbav:"thursday" json:"thursday"`
	Friday    *DaySchedule `dynamodbav:"friday" json:"friday"`
	Saturday  *DaySchedule `dynamodbav:"saturday" json:"saturday"`
	Sunday    *DaySchedule `dynamodbav:"sunday" json:"sunday"`
}

// ForWeekday returns the schedule entry for the given weekday, or nil when
// the entry is missing.
func (w WeeklySchedule) ForWeekday(day time.Weekday) *DaySchedule {
	switch day {
	case time.Monday:
		return w.Monday
	case time.Tuesday:
		return w.Tuesday
	case time.Wednesday:
		return w.Wednesday
	case time.Thursday:
		return w.Thursday
	case time.Friday:
		return w.Friday
	case time.Saturday:
		return w.Saturday
	case time.Sunday:
		return w.Sunday
	default:
		return nil
	}
}

// DefaultWeeklySchedule returns the onboarding schedule: weekdays 09:00-17:00
// with a 13:00-14:00 break, Saturday mornings without a break, Sundays off.
// Each call returns a fresh value so profiles never alias a shared template.
func DefaultWeeklySchedule() WeeklySchedule {
	weekday := func() *DaySchedule {
		return &DaySchedule{
			IsAvailable:         true,
			StartTime:           "09:00",
			EndTime:             "17:00",
			BreakStartTime:      "13:00",
			BreakEndTime:        "14:00",
			SlotDurationMinutes: 30,
		}
	}
	return WeeklySchedule{
		Monday:    weekday(),
		Tuesday:   weekday(),
		Wednesday: weekday(),
		Thursday:  weekday(),
		Friday:    weekday(),
		Saturday: &DaySchedule{
			IsAvailable:         true,
			StartTime:           "09:00",
			EndTime:             "13:00",
			SlotDurationMinutes: 30,
		},
		Sunday: &DaySchedule{
			SlotDurationMinutes: 30,
		},
	}
}

// minutesOfDay parses an "HH:MM" clock string into minutes since midnight.
func minutesOfDay(clock string) (int, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func clockOfMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
