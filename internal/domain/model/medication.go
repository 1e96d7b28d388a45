package model

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// EditableMedication is the mutable, user-facing projection of a detected
// line item. SelectedTimes is a mask over the form's intake slots and must
// always have exactly one entry per slot; every slot insertion/removal
// resizes the mask in lock-step.
type EditableMedication struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Ingredient    string  `json:"ingredient,omitempty"`
	Dosage        float64 `json:"dosage,omitempty"`
	SelectedTimes []bool  `json:"selected_times"`
	DurationDays  int     `json:"duration_days"`
	ImageURL      string  `json:"image_url,omitempty"`
}

// MedicationPatch is a partial medication update. Nil fields are unchanged.
type MedicationPatch struct {
	Name          *string  `json:"name,omitempty"`
	Ingredient    *string  `json:"ingredient,omitempty"`
	Dosage        *float64 `json:"dosage,omitempty"`
	SelectedTimes []bool   `json:"selected_times,omitempty"`
	DurationDays  *int     `json:"duration_days,omitempty"`
}

// NewMedicationID returns a fresh sortable local identifier.
func NewMedicationID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

func allSelected(n int) []bool {
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}
	return mask
}
