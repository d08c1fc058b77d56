package availability

import (
	"fmt"
	"time"
)

// Defaults applied on doctor onboarding.
const (
	DefaultConsultationFee         = 500
	DefaultAdvanceBookingLimitDays = 30
)

// SpecificDateOverride replaces the weekly schedule for one exact date.
// Either Unavailable is set, or Schedule carries a full day override.
type SpecificDateOverride struct {
	Date        string       `dynamodbav:"date" json:"date"` // "2006-01-02"
	Unavailable bool         `dynamodbav:"unavailable" json:"unavailable"`
	Schedule    *DaySchedule `dynamodbav:"schedule,omitempty" json:"schedule,omitempty"`
}

// Profile is a doctor's availability: the recurring weekly schedule, date
// overrides, and booking policy. Owned by exactly one doctor.
type Profile struct {
	ID                      string                 `dynamodbav:"id" json:"id"`
	DoctorID                string                 `dynamodbav:"doctorId" json:"doctorId"`
	WeeklySchedule          WeeklySchedule         `dynamodbav:"weeklySchedule" json:"weeklySchedule"`
	SpecificDates           []SpecificDateOverride `dynamodbav:"specificDates" json:"specificDates"`
	ConsultationFee         float64                `dynamodbav:"consultationFee" json:"consultationFee"`
	EmergencyAvailable      bool                   `dynamodbav:"emergencyAvailable" json:"emergencyAvailable"`
	AdvanceBookingLimitDays int                    `dynamodbav:"advanceBookingLimitDays" json:"advanceBookingLimitDays"`
	CreatedAt               time.Time              `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt               time.Time              `dynamodbav:"updatedAt" json:"updatedAt"`
}

// NewProfile builds an onboarding profile with the default weekly schedule
// and booking policy.
func NewProfile(doctorID string) *Profile {
	return &Profile{
		DoctorID:                doctorID,
		WeeklySchedule:          DefaultWeeklySchedule(),
		SpecificDates:           []SpecificDateOverride{},
		ConsultationFee:         DefaultConsultationFee,
		AdvanceBookingLimitDays: DefaultAdvanceBookingLimitDays,
	}
}

// Resolve returns the effective day schedule for a date. A specific-date
// override wins over the weekly schedule; an override marked unavailable
// closes the date regardless of the weekly entry.
func (p *Profile) Resolve(date time.Time) (DaySchedule, error) {
	dateKey := date.Format(time.DateOnly)
	for _, override := range p.SpecificDates {
		if override.Date != dateKey {
			continue
		}
		if override.Unavailable || override.Schedule == nil {
			return DaySchedule{}, nil
		}
		return *override.Schedule, nil
	}

	day := p.WeeklySchedule.ForWeekday(date.Weekday())
	if day == nil {
		return DaySchedule{}, fmt.Errorf("%w: no weekly entry for %s (doctor %s)",
			ErrConfiguration, date.Weekday(), p.DoctorID)
	}
	return *day, nil
}

// SetOverride adds or replaces the override for its date, keeping overrides
// unique by date and ordered.
func (p *Profile) SetOverride(override SpecificDateOverride) {
	for i, existing := range p.SpecificDates {
		if existing.Date == override.Date {
			p.SpecificDates[i] = override
			return
		}
	}
	p.SpecificDates = append(p.SpecificDates, override)
	for i := len(p.SpecificDates) - 1; i > 0; i-- {
		if p.SpecificDates[i].Date < p.SpecificDates[i-1].Date {
			p.SpecificDates[i], p.SpecificDates[i-1] = p.SpecificDates[i-1], p.SpecificDates[i]
		}
	}
}
