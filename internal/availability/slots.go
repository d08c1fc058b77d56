package availability

import (
	"time"
)

// Slot is a candidate bookable interval. Slots are derived per request and
// never persisted; booked status comes from cross-referencing appointments.
type Slot struct {
	Date      string `json:"date"` // "2006-01-02"
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	IsBooked  bool   `json:"isBooked"`
}

// GenerateSlots walks the day's working window in slot-duration increments
// and returns the candidate slots in ascending order. An unavailable day
// yields an empty result, not an error. Slots that would overlap the break
// are skipped, with the cursor jumping straight to the end of the break so
// dead intervals are not re-tested. A trailing interval shorter than the
// slot duration is dropped.
func GenerateSlots(day DaySchedule, date time.Time) ([]Slot, error) {
	if !day.IsAvailable {
		return nil, nil
	}
	if err := day.Validate(); err != nil {
		return nil, err
	}

	start, _ := minutesOfDay(day.StartTime)
	end, _ := minutesOfDay(day.EndTime)

	hasBreak := day.BreakStartTime != "" && day.BreakEndTime != ""
	var breakStart, breakEnd int
	if hasBreak {
		breakStart, _ = minutesOfDay(day.BreakStartTime)
		breakEnd, _ = minutesOfDay(day.BreakEndTime)
	}

	dateKey := date.Format(time.DateOnly)
	duration := day.SlotDurationMinutes

	var slots []Slot
	for cursor := start; cursor+duration <= end; {
		slotEnd := cursor + duration
		if hasBreak && cursor < breakEnd && slotEnd > breakStart {
			cursor = breakEnd
			continue
		}
		slots = append(slots, Slot{
			Date:      dateKey,
			StartTime: clockOfMinutes(cursor),
			EndTime:   clockOfMinutes(slotEnd),
		})
		cursor = slotEnd
	}
	return slots, nil
}
