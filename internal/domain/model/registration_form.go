package model

import (
	"fmt"
	"strings"
	"time"

	"medscan-registration/internal/domain"
)

type PipelineStage string

const (
	StageSelect     PipelineStage = "select"
	StageCapture    PipelineStage = "capture"
	StagePreview    PipelineStage = "preview"
	StageAnalyzing  PipelineStage = "analyzing"
	StageEdit       PipelineStage = "edit"
	StageSubmitting PipelineStage = "submitting"
)

// defaultDurationDays is used when extraction reports no duration.
const defaultDurationDays = 3

// RegistrationFormState is the editable aggregate built from an extraction
// result. All slot mutations go through AddSlot/RemoveSlot so the slot list
// and every medication's selection mask stay the same length.
type RegistrationFormState struct {
	PharmacyName  string               `json:"pharmacy_name"`
	HospitalName  *string              `json:"hospital_name,omitempty"`
	StartDate     time.Time            `json:"start_date"`
	EndDate       time.Time            `json:"end_date"`
	IntakeTimes   []IntakeTimeSlot     `json:"intake_times"`
	Medications   []EditableMedication `json:"medications"`
	PaymentAmount *int                 `json:"payment_amount,omitempty"`
}

// FormPatch is a partial top-level form update. Nil fields are unchanged.
type FormPatch struct {
	PharmacyName  *string    `json:"pharmacy_name,omitempty"`
	HospitalName  *string    `json:"hospital_name,omitempty"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	PaymentAmount *int       `json:"payment_amount,omitempty"`
}

// NewRegistrationFormState returns the pipeline's initial form: today as
// start date, the default three-day window, default slots, no medications.
func NewRegistrationFormState(now time.Time) *RegistrationFormState {
	start := now.Truncate(24 * time.Hour)
	return &RegistrationFormState{
		StartDate:   start,
		EndDate:     start.AddDate(0, 0, defaultDurationDays),
		IntakeTimes: DefaultSlots(),
	}
}

// AddSlot appends a slot with a generic default time and label, alarm
// enabled, and extends every medication's mask with true.
func (f *RegistrationFormState) AddSlot() error {
	if len(f.IntakeTimes) >= MaxIntakeSlots {
		return domain.ErrSlotLimit
	}
	idx := len(f.IntakeTimes)
	f.IntakeTimes = append(f.IntakeTimes, IntakeTimeSlot{
		Index:        idx,
		Time:         "12:00",
		Label:        fmt.Sprintf("Intake %d", idx+1),
		AlarmEnabled: true,
	})
	for i := range f.Medications {
		f.Medications[i].SelectedTimes = append(f.Medications[i].SelectedTimes, true)
	}
	return nil
}

// RemoveSlot deletes the slot at index, reindexes the remainder densely and
// splices the same index out of every medication's mask.
func (f *RegistrationFormState) RemoveSlot(index int) error {
	if len(f.IntakeTimes) <= MinIntakeSlots {
		return domain.ErrSlotMinimum
	}
	if index < 0 || index >= len(f.IntakeTimes) {
		return fmt.Errorf("slot index %d out of range: %w", index, domain.ErrInvalidArgument)
	}
	f.IntakeTimes = append(f.IntakeTimes[:index], f.IntakeTimes[index+1:]...)
	for i := range f.IntakeTimes {
		f.IntakeTimes[i].Index = i
	}
	for i := range f.Medications {
		mask := f.Medications[i].SelectedTimes
		if index < len(mask) {
			f.Medications[i].SelectedTimes = append(mask[:index], mask[index+1:]...)
		}
	}
	return nil
}

// UpdateSlot merges a partial update into the slot at index. Masks are not
// affected.
func (f *RegistrationFormState) UpdateSlot(index int, patch SlotPatch) error {
	if index < 0 || index >= len(f.IntakeTimes) {
		return fmt.Errorf("slot index %d out of range: %w", index, domain.ErrInvalidArgument)
	}
	slot := &f.IntakeTimes[index]
	if patch.Time != nil {
		slot.Time = *patch.Time
	}
	if patch.Label != nil {
		slot.Label = *patch.Label
	}
	if patch.AlarmEnabled != nil {
		slot.AlarmEnabled = *patch.AlarmEnabled
	}
	return nil
}

// AddMedication appends a blank medication: duration computed from the
// current date range, mask all-true sized to the current slot count.
func (f *RegistrationFormState) AddMedication() *EditableMedication {
	med := EditableMedication{
		ID:            NewMedicationID(),
		SelectedTimes: allSelected(len(f.IntakeTimes)),
		DurationDays:  f.durationDays(),
	}
	f.Medications = append(f.Medications, med)
	return &f.Medications[len(f.Medications)-1]
}

// UpdateMedication merges a partial update into the medication with the
// given local id. A supplied mask must match the current slot count.
func (f *RegistrationFormState) UpdateMedication(id string, patch MedicationPatch) error {
	med := f.findMedication(id)
	if med == nil {
		return fmt.Errorf("medication %s: %w", id, domain.ErrNotFound)
	}
	if patch.SelectedTimes != nil && len(patch.SelectedTimes) != len(f.IntakeTimes) {
		return fmt.Errorf("selection mask size %d != slot count %d: %w",
			len(patch.SelectedTimes), len(f.IntakeTimes), domain.ErrInvalidArgument)
	}
	if patch.Name != nil {
		med.Name = *patch.Name
	}
	if patch.Ingredient != nil {
		med.Ingredient = *patch.Ingredient
	}
	if patch.Dosage != nil {
		med.Dosage = *patch.Dosage
	}
	if patch.SelectedTimes != nil {
		med.SelectedTimes = append([]bool(nil), patch.SelectedTimes...)
	}
	if patch.DurationDays != nil {
		med.DurationDays = *patch.DurationDays
	}
	return nil
}

// RemoveMedication deletes the medication with the given local id.
func (f *RegistrationFormState) RemoveMedication(id string) error {
	for i := range f.Medications {
		if f.Medications[i].ID == id {
			f.Medications = append(f.Medications[:i], f.Medications[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("medication %s: %w", id, domain.ErrNotFound)
}

// Apply merges a partial top-level update.
func (f *RegistrationFormState) Apply(patch FormPatch) {
	if patch.PharmacyName != nil {
		f.PharmacyName = *patch.PharmacyName
	}
	if patch.HospitalName != nil {
		f.HospitalName = patch.HospitalName
	}
	if patch.StartDate != nil {
		f.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		f.EndDate = *patch.EndDate
	}
	if patch.PaymentAmount != nil {
		f.PaymentAmount = patch.PaymentAmount
	}
}

// ApplyScanResult normalizes a raw extraction result into the form:
// fresh local ids, all-true masks, and aggregate defaults derived from the
// first detected medication (duration drives the end date, frequency drives
// the slot count). The first-item precedence is deliberate; detected items
// that disagree are not reconciled.
func (f *RegistrationFormState) ApplyScanResult(res *ScanResult) error {
	if res == nil || len(res.Medications) == 0 {
		return domain.ErrEmptyExtraction
	}

	meds := make([]EditableMedication, 0, len(res.Medications))
	for _, raw := range res.Medications {
		meds = append(meds, EditableMedication{
			ID:            NewMedicationID(),
			Name:          raw.Name,
			Ingredient:    raw.Ingredient,
			Dosage:        raw.Dosage,
			SelectedTimes: allSelected(len(f.IntakeTimes)),
			DurationDays:  raw.DurationDays,
			ImageURL:      raw.ImageURL,
		})
	}
	f.Medications = meds

	first := res.Medications[0]
	duration := first.DurationDays
	if duration <= 0 {
		duration = defaultDurationDays
	}
	f.EndDate = f.StartDate.AddDate(0, 0, duration)

	f.IntakeTimes = AdjustSlotsForFrequency(f.IntakeTimes, first.DailyFrequency)
	for i := range f.Medications {
		if len(f.Medications[i].SelectedTimes) != len(f.IntakeTimes) {
			f.Medications[i].SelectedTimes = allSelected(len(f.IntakeTimes))
		}
	}

	// Optional fields pass through only when the scan detected them.
	if res.PharmacyName != "" {
		f.PharmacyName = res.PharmacyName
	}
	if res.HospitalName != "" {
		h := res.HospitalName
		f.HospitalName = &h
	}
	if res.PaymentAmount != nil {
		f.PaymentAmount = res.PaymentAmount
	}
	return nil
}

// Validate runs the pre-submit checks: a non-empty medication list and a
// non-blank name on every medication.
func (f *RegistrationFormState) Validate() error {
	if len(f.Medications) == 0 {
		return domain.ErrNoMedications
	}
	for _, m := range f.Medications {
		if strings.TrimSpace(m.Name) == "" {
			return domain.ErrMissingName
		}
	}
	return nil
}

func (f *RegistrationFormState) findMedication(id string) *EditableMedication {
	for i := range f.Medications {
		if f.Medications[i].ID == id {
			return &f.Medications[i]
		}
	}
	return nil
}

func (f *RegistrationFormState) durationDays() int {
	d := int(f.EndDate.Sub(f.StartDate).Hours() / 24)
	if d <= 0 {
		return defaultDurationDays
	}
	return d
}

// Clone returns a deep copy safe to hand to callers while the pipeline
// keeps mutating the original.
func (f *RegistrationFormState) Clone() *RegistrationFormState {
	cp := *f
	cp.IntakeTimes = append([]IntakeTimeSlot(nil), f.IntakeTimes...)
	cp.Medications = make([]EditableMedication, len(f.Medications))
	for i, m := range f.Medications {
		cp.Medications[i] = m
		cp.Medications[i].SelectedTimes = append([]bool(nil), m.SelectedTimes...)
	}
	if f.HospitalName != nil {
		h := *f.HospitalName
		cp.HospitalName = &h
	}
	if f.PaymentAmount != nil {
		p := *f.PaymentAmount
		cp.PaymentAmount = &p
	}
	return &cp
}
