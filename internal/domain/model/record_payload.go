package model

import "fmt"

// RecordPayload is the submission shape consumed by the persistence
// backend. Intake times are serialized as display strings; a medication
// whose mask selects every slot carries a nil index list ("all slots").
type RecordPayload struct {
	UserID        string             `json:"user_id"`
	PharmacyName  string             `json:"pharmacy_name"`
	HospitalName  *string            `json:"hospital_name,omitempty"`
	StartDate     string             `json:"start_date"`
	EndDate       string             `json:"end_date"`
	IntakeTimes   []string           `json:"intake_times"`
	Medications   []RecordMedication `json:"medications"`
	PaymentAmount *int               `json:"payment_amount,omitempty"`
}

type RecordMedication struct {
	Name        string  `json:"name"`
	Ingredient  string  `json:"ingredient,omitempty"`
	Dosage      float64 `json:"dosage,omitempty"`
	SlotIndexes []int   `json:"slot_indexes,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
}

const dateLayout = "2006-01-02"

// SubmissionPayload projects the form into the persistence shape.
func (f *RegistrationFormState) SubmissionPayload(userID string) *RecordPayload {
	times := make([]string, len(f.IntakeTimes))
	for i, s := range f.IntakeTimes {
		times[i] = fmt.Sprintf("%s %s", s.Time, s.Label)
	}

	meds := make([]RecordMedication, len(f.Medications))
	for i, m := range f.Medications {
		meds[i] = RecordMedication{
			Name:        m.Name,
			Ingredient:  m.Ingredient,
			Dosage:      m.Dosage,
			SlotIndexes: resolveSlotIndexes(m.SelectedTimes),
			ImageURL:    m.ImageURL,
		}
	}

	return &RecordPayload{
		UserID:        userID,
		PharmacyName:  f.PharmacyName,
		HospitalName:  f.HospitalName,
		StartDate:     f.StartDate.Format(dateLayout),
		EndDate:       f.EndDate.Format(dateLayout),
		IntakeTimes:   times,
		Medications:   meds,
		PaymentAmount: f.PaymentAmount,
	}
}

// resolveSlotIndexes returns nil when every slot is selected, otherwise the
// explicit list of selected indices.
func resolveSlotIndexes(mask []bool) []int {
	all := true
	var idx []int
	for i, sel := range mask {
		if sel {
			idx = append(idx, i)
		} else {
			all = false
		}
	}
	if all {
		return nil
	}
	return idx
}
