package model

import "fmt"

const (
	// MinIntakeSlots and MaxIntakeSlots bound the slot list; remove is a
	// no-op at the floor, add is rejected at the cap.
	MinIntakeSlots = 1
	MaxIntakeSlots = 10
)

// IntakeTimeSlot is one configured daily intake-time anchor shared across
// all medications in the current form. Index is kept dense (0..n-1) after
// every removal. Ordering is insertion order, not sorted by time of day.
type IntakeTimeSlot struct {
	Index        int    `json:"index"`
	Time         string `json:"time"` // "HH:MM", 24h
	Label        string `json:"label"`
	AlarmEnabled bool   `json:"alarm_enabled"`
}

// SlotPatch is a partial slot update. Nil fields are left unchanged.
type SlotPatch struct {
	Time         *string `json:"time,omitempty"`
	Label        *string `json:"label,omitempty"`
	AlarmEnabled *bool   `json:"alarm_enabled,omitempty"`
}

// anchor times for the common frequencies; counts beyond the table spread
// evenly between the first and last daily anchors.
var anchorTable = map[int][]anchor{
	1: {{"09:00", "Morning"}},
	2: {{"09:00", "Morning"}, {"21:00", "Evening"}},
	3: {{"08:00", "Morning"}, {"13:00", "Noon"}, {"19:00", "Evening"}},
	4: {{"08:00", "Morning"}, {"12:00", "Noon"}, {"17:00", "Afternoon"}, {"21:00", "Bedtime"}},
	5: {{"08:00", "Morning"}, {"11:00", "Late morning"}, {"14:00", "Afternoon"}, {"18:00", "Evening"}, {"22:00", "Bedtime"}},
}

type anchor struct {
	time  string
	label string
}

// DefaultSlots returns the standard five daily anchors with alarms enabled.
func DefaultSlots() []IntakeTimeSlot {
	return SlotsForFrequency(5)
}

// SlotsForFrequency builds a slot list matching a detected daily frequency
// using the default-anchor policy. The count is clamped to [MinIntakeSlots,
// MaxIntakeSlots]. Alarms are enabled on every generated slot.
func SlotsForFrequency(n int) []IntakeTimeSlot {
	if n < MinIntakeSlots {
		n = MinIntakeSlots
	}
	if n > MaxIntakeSlots {
		n = MaxIntakeSlots
	}

	slots := make([]IntakeTimeSlot, 0, n)
	if anchors, ok := anchorTable[n]; ok {
		for i, a := range anchors {
			slots = append(slots, IntakeTimeSlot{Index: i, Time: a.time, Label: a.label, AlarmEnabled: true})
		}
		return slots
	}

	// Spread evenly between 08:00 and 22:00.
	const firstMinute, lastMinute = 8 * 60, 22 * 60
	step := (lastMinute - firstMinute) / (n - 1)
	for i := 0; i < n; i++ {
		m := firstMinute + i*step
		slots = append(slots, IntakeTimeSlot{
			Index:        i,
			Time:         fmt.Sprintf("%02d:%02d", m/60, m%60),
			Label:        fmt.Sprintf("Intake %d", i+1),
			AlarmEnabled: true,
		})
	}
	return slots
}

// AdjustSlotsForFrequency regenerates the slot list when the detected daily
// frequency differs from the current slot count. Called once per successful
// extraction with the first detected medication's frequency; a frequency of
// zero or a matching count leaves the current slots untouched.
func AdjustSlotsForFrequency(current []IntakeTimeSlot, detectedFrequency int) []IntakeTimeSlot {
	if detectedFrequency < MinIntakeSlots || detectedFrequency > MaxIntakeSlots {
		return current
	}
	if detectedFrequency == len(current) {
		return current
	}
	return SlotsForFrequency(detectedFrequency)
}
