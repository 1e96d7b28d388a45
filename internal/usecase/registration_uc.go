package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"medscan-registration/internal/domain"
	"medscan-registration/internal/domain/model"
	"medscan-registration/internal/domain/ports/adapter"
	"medscan-registration/internal/domain/ports/repository"
	"medscan-registration/internal/infra/logging"
	"medscan-registration/internal/infra/metrics"
)

// Compile-time check
var _ RegistrationUseCase = (*registrationUC)(nil)

// RegistrationUseCase owns one user's scan-registration pipeline: the stage
// lifecycle, the editable form, and the reconciliation of the two job
// completion channels. All operations are safe for concurrent dispatch;
// StartAnalysis and Register block until their terminal outcome.
type RegistrationUseCase interface {
	UseCamera() error
	CaptureImage(image []byte, filename string) error
	SelectImage(image []byte, filename string) error
	Retake() error
	StartAnalysis(ctx context.Context) error
	CachedScan(ctx context.Context) (*repository.CachedScan, error)
	RecoverCachedResult(ctx context.Context) error

	AddMedication() (string, error)
	UpdateMedication(id string, patch model.MedicationPatch) error
	RemoveMedication(id string) error
	AddSlot() error
	RemoveSlot(index int) error
	UpdateSlot(index int, patch model.SlotPatch) error
	PatchForm(patch model.FormPatch) error

	Register(ctx context.Context) (string, error)
	Reset()

	State() *Snapshot
	LastActive() time.Time
}

// TaskRunner runs a background task. Satisfied by worker.Pool; a Submit
// failure makes the caller fall back to a plain goroutine.
type TaskRunner interface {
	Submit(task func(ctx context.Context) error) error
}

// Options tune the polling loop and the recovery window.
type Options struct {
	PollAttempts int
	PollInterval time.Duration
	CacheWindow  time.Duration
}

func (o Options) withDefaults() Options {
	if o.PollAttempts <= 0 {
		o.PollAttempts = 20
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.CacheWindow <= 0 {
		o.CacheWindow = 24 * time.Hour
	}
	return o
}

// Snapshot is the read-only view handed to the surrounding UI.
type Snapshot struct {
	Stage        model.PipelineStage          `json:"stage"`
	HasImage     bool                         `json:"has_image"`
	ImageName    string                       `json:"image_name,omitempty"`
	Form         *model.RegistrationFormState `json:"form"`
	IsSubmitting bool                         `json:"is_submitting"`
	Error        string                       `json:"error,omitempty"`
	ActiveJobID  string                       `json:"active_job_id,omitempty"`
}

type registrationUC struct {
	mu           sync.Mutex
	userID       string
	stage        model.PipelineStage
	image        []byte
	imageName    string
	form         *model.RegistrationFormState
	isSubmitting bool
	errMsg       string
	activeJobID  string
	lastActive   time.Time

	scan    adapter.ScanServiceAdapter
	records adapter.RecordServiceAdapter
	push    adapter.PushChannel
	cache   repository.ResultCacheRepository
	journal repository.ScanJobRepository
	runner  TaskRunner
	opts    Options
	log     *zerolog.Logger
}

func NewRegistrationUseCase(
	userID string,
	scan adapter.ScanServiceAdapter,
	records adapter.RecordServiceAdapter,
	push adapter.PushChannel,
	cache repository.ResultCacheRepository,
	journal repository.ScanJobRepository,
	runner TaskRunner,
	opts Options,
	log *zerolog.Logger,
) *registrationUC {
	return &registrationUC{
		userID:     userID,
		stage:      model.StageSelect,
		form:       model.NewRegistrationFormState(time.Now()),
		lastActive: time.Now(),
		scan:       scan,
		records:    records,
		push:       push,
		cache:      cache,
		journal:    journal,
		runner:     runner,
		opts:       opts.withDefaults(),
		log:        log,
	}
}

// ---- capture / preview transitions ----

func (u *registrationUC) UseCamera() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.touchLocked()
	if u.stage != model.StageSelect {
		return domain.ErrWrongStage
	}
	u.stage = model.StageCapture
	return nil
}

func (u *registrationUC) CaptureImage(image []byte, filename string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.touchLocked()
	if u.stage != model.StageCapture {
		return domain.ErrWrongStage
	}
	if len(image) == 0 {
		return fmt.Errorf("empty capture: %w", domain.ErrInvalidArgument)
	}
	u.image = image
	u.imageName = filename
	u.stage = model.StagePreview
	return nil
}

func (u *registrationUC) SelectImage(image []byte, filename string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.touchLocked()
	if u.stage != model.StageSelect && u.stage != model.StageCapture {
		return domain.ErrWrongStage
	}
	if len(image) == 0 {
		return fmt.Errorf("empty image: %w", domain.ErrInvalidArgument)
	}
	u.image = image
	u.imageName = filename
	u.stage = model.StagePreview
	return nil
}

func (u *registrationUC) Retake() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.touchLocked()
	if u.stage != model.StagePreview {
		return domain.ErrWrongStage
	}
	u.image = nil
	u.imageName = ""
	u.errMsg = ""
	u.stage = model.StageSelect
	return nil
}

// ---- analysis ----

// jobReport is one candidate resolution produced by either channel.
type jobReport struct {
	report   model.JobStatusReport
	channel  model.ReportChannel
	timedOut bool
}

func (u *registrationUC) StartAnalysis(ctx context.Context) error {
	defer logging.TraceDuration(u.log, "RegistrationUC.StartAnalysis")()
	u.mu.Lock()
	u.touchLocked()
	if u.stage != model.StagePreview {
		u.mu.Unlock()
		return domain.ErrWrongStage
	}
	image, filename := u.image, u.imageName
	u.errMsg = ""
	u.stage = model.StageAnalyzing
	u.mu.Unlock()

	start := time.Now()
	jobID, err := u.scan.SubmitScanJob(ctx, image, filename)
	if err != nil {
		u.failAnalysis("", fmt.Sprintf("scan submission failed: %v", err))
		metrics.ObserveAnalysis("submit_error", time.Since(start))
		return fmt.Errorf("submit scan job: %w", err)
	}

	u.mu.Lock()
	if u.stage != model.StageAnalyzing {
		// The pipeline was reset while the upload was in flight; the job
		// is abandoned and its reports will be ignored.
		u.mu.Unlock()
		return nil
	}
	u.activeJobID = jobID
	u.mu.Unlock()

	ctx = logging.WithJobID(ctx, jobID)
	logging.With(ctx, u.log).Info().Msg("scan job submitted")
	u.journalSave(ctx, &model.ScanJob{
		ID:        jobID,
		UserID:    u.userID,
		Status:    model.ScanJobStatusPending,
		CreatedAt: time.Now(),
	})

	err = u.awaitOutcome(ctx, jobID)
	metrics.ObserveAnalysis(outcomeLabel(err), time.Since(start))
	return err
}

// awaitOutcome races the polling loop against the push channel and acts on
// the first terminal report for jobID.
func (u *registrationUC) awaitOutcome(ctx context.Context, jobID string) error {
	sub := u.push.Subscribe()
	defer sub.Close()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	reports := make(chan jobReport, 2)

	// Push watcher. The registry snapshot covers an event that landed
	// before this subscription existed.
	go func() {
		if ev, ok := u.push.Latest(jobID); ok && ev.Status.Terminal() {
			deliver(watchCtx, reports, jobReport{report: ev, channel: model.ChannelPush})
			return
		}
		for {
			select {
			case <-watchCtx.Done():
				return
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				if ev.JobID != jobID || !ev.Status.Terminal() {
					continue
				}
				deliver(watchCtx, reports, jobReport{report: ev, channel: model.ChannelPush})
				return
			}
		}
	}()

	// Bounded polling loop.
	poll := func(taskCtx context.Context) error {
		ticker := time.NewTicker(u.opts.PollInterval)
		defer ticker.Stop()
		for attempt := 1; attempt <= u.opts.PollAttempts; attempt++ {
			select {
			case <-taskCtx.Done():
				return nil
			case <-watchCtx.Done():
				return nil
			case <-ticker.C:
			}
			if !u.jobActive(jobID) {
				// The job was abandoned; wake the waiter so it can observe
				// that and return.
				deliver(watchCtx, reports, jobReport{})
				return nil
			}
			rep, err := u.scan.GetJobStatus(taskCtx, jobID)
			if err != nil {
				u.log.Warn().Err(err).Str("job_id", jobID).Int("attempt", attempt).Msg("status poll failed")
				continue
			}
			if rep.JobID == "" {
				rep.JobID = jobID
			}
			if rep.Status.Terminal() {
				deliver(watchCtx, reports, jobReport{report: *rep, channel: model.ChannelPoll})
				return nil
			}
		}
		deliver(watchCtx, reports, jobReport{timedOut: true})
		return nil
	}
	if err := u.runner.Submit(poll); err != nil {
		u.log.Warn().Err(err).Msg("worker pool saturated, polling inline")
		go func() { _ = poll(watchCtx) }()
	}

	for {
		select {
		case <-ctx.Done():
			u.abandonJob(jobID)
			return ctx.Err()
		case msg := <-reports:
			decided, err := u.resolveJob(msg.reportID(jobID), msg)
			if decided {
				return err
			}
			if !u.jobActive(jobID) {
				// A reset or a competing channel already settled it.
				return nil
			}
		}
	}
}

func (r jobReport) reportID(fallback string) string {
	if r.timedOut || r.report.JobID == "" {
		return fallback
	}
	return r.report.JobID
}

func deliver(ctx context.Context, ch chan<- jobReport, msg jobReport) {
	select {
	case ch <- msg:
	case <-ctx.Done():
	}
}

// resolveJob is the single reconciliation point for both channels. It acts
// only while the pipeline is still analyzing this exact job; anything else
// is a stale or foreign report and is discarded without a state change.
func (u *registrationUC) resolveJob(jobID string, msg jobReport) (bool, error) {
	u.mu.Lock()
	if u.stage != model.StageAnalyzing || u.activeJobID != jobID {
		u.mu.Unlock()
		return false, nil
	}

	if msg.timedOut {
		u.failLocked(domain.ErrAnalysisTimeout.Error())
		u.mu.Unlock()
		u.journalTerminal(jobID, model.ScanJobStatusFailed, model.ChannelPoll, domain.ErrAnalysisTimeout.Error())
		metrics.IncScanJob("timeout", string(model.ChannelPoll))
		return true, domain.ErrAnalysisTimeout
	}

	rep := msg.report
	switch rep.Status {
	case model.ScanJobStatusFailed:
		reason := rep.Error
		if reason == "" {
			reason = domain.ErrJobFailed.Error()
		}
		u.failLocked(reason)
		u.mu.Unlock()
		u.journalTerminal(jobID, model.ScanJobStatusFailed, msg.channel, reason)
		metrics.IncScanJob("failed", string(msg.channel))
		return true, fmt.Errorf("%s: %w", reason, domain.ErrJobFailed)

	case model.ScanJobStatusDone:
		if err := u.form.ApplyScanResult(rep.Result); err != nil {
			// A successful job with nothing usable in it fails the same
			// way a failed job does.
			u.failLocked(err.Error())
			u.mu.Unlock()
			u.journalTerminal(jobID, model.ScanJobStatusFailed, msg.channel, err.Error())
			metrics.IncScanJob("empty", string(msg.channel))
			return true, err
		}
		u.stage = model.StageEdit
		u.activeJobID = ""
		u.errMsg = ""
		userID := u.userID
		u.mu.Unlock()

		u.cachePut(userID, jobID)
		u.journalTerminal(jobID, model.ScanJobStatusDone, msg.channel, "")
		metrics.IncScanJob("done", string(msg.channel))
		u.log.Info().Str("job_id", jobID).Str("channel", string(msg.channel)).Msg("scan result merged")
		return true, nil
	}

	u.mu.Unlock()
	return false, nil
}

// failAnalysis leaves the analyzing stage on the failure path: back to
// preview when an image is on hand, otherwise to select. The message stays
// visible; the job id is cleared so late reports become no-ops.
func (u *registrationUC) failAnalysis(jobID, message string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.stage != model.StageAnalyzing {
		return
	}
	if jobID != "" && u.activeJobID != jobID {
		return
	}
	u.failLocked(message)
}

func (u *registrationUC) failLocked(message string) {
	u.activeJobID = ""
	u.errMsg = message
	if len(u.image) > 0 {
		u.stage = model.StagePreview
	} else {
		u.stage = model.StageSelect
	}
}

func (u *registrationUC) abandonJob(jobID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.activeJobID != jobID {
		return
	}
	u.activeJobID = ""
	if u.stage == model.StageAnalyzing {
		if len(u.image) > 0 {
			u.stage = model.StagePreview
		} else {
			u.stage = model.StageSelect
		}
	}
}

func (u *registrationUC) jobActive(jobID string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.stage == model.StageAnalyzing && u.activeJobID == jobID
}

// ---- cached result recovery ----

// CachedScan reports whether a recoverable extraction exists for this user.
// Entries outside the recovery window, or written by another account, are
// discarded silently.
func (u *registrationUC) CachedScan(ctx context.Context) (*repository.CachedScan, error) {
	u.mu.Lock()
	stage, userID := u.stage, u.userID
	u.mu.Unlock()
	if stage != model.StageSelect {
		return nil, domain.ErrWrongStage
	}

	entry, err := u.cache.Get(ctx, userID)
	if err != nil {
		metrics.IncCacheRequest("scan_result", "miss")
		return nil, err
	}
	if entry.UserID != userID || time.Since(entry.CompletedAt) > u.opts.CacheWindow {
		_ = u.cache.Clear(ctx, userID)
		metrics.IncCacheRequest("scan_result", "stale")
		return nil, domain.ErrNotFound
	}
	metrics.IncCacheRequest("scan_result", "hit")
	return entry, nil
}

// RecoverCachedResult re-fetches the cached job once and routes the answer
// through the same completion path as a live analysis.
func (u *registrationUC) RecoverCachedResult(ctx context.Context) error {
	defer logging.TraceDuration(u.log, "RegistrationUC.RecoverCachedResult")()
	entry, err := u.CachedScan(ctx)
	if err != nil {
		return err
	}

	u.mu.Lock()
	u.touchLocked()
	if u.stage != model.StageSelect {
		u.mu.Unlock()
		return domain.ErrWrongStage
	}
	u.stage = model.StageAnalyzing
	u.activeJobID = entry.JobID
	u.errMsg = ""
	u.mu.Unlock()

	rep, err := u.scan.GetJobStatus(ctx, entry.JobID)
	if err != nil {
		u.failAnalysis(entry.JobID, fmt.Sprintf("could not recover scan result: %v", err))
		return fmt.Errorf("recover job %s: %w", entry.JobID, err)
	}
	if rep.JobID == "" {
		rep.JobID = entry.JobID
	}
	if !rep.Status.Terminal() {
		u.failAnalysis(entry.JobID, domain.ErrAnalysisTimeout.Error())
		return domain.ErrAnalysisTimeout
	}
	_, err = u.resolveJob(entry.JobID, jobReport{report: *rep, channel: model.ChannelPoll})
	return err
}

// ---- edit-stage mutations ----

func (u *registrationUC) AddMedication() (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.touchLocked()
	if u.stage != model.StageEdit {
		return "", domain.ErrWrongStage
	}
	med := u.form.AddMedication()
	return med.ID, nil
}

func (u *registrationUC) UpdateMedication(id string, patch model.MedicationPatch) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.touchLocked()
	if u.stage != model.StageEdit {
		return domain.ErrWrongStage
	}
	return u.form.UpdateMedication(id, patch)
}

func (u *registrationUC) RemoveMedication(id string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.touchLocked()
	if u.stage != model.StageEdit {
		return domain.ErrWrongStage
	}
	return u.form.RemoveMedication(id)
}

func (u *registrationUC) AddSlot() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.touchLocked()
	if u.stage != model.StageEdit {
		return domain.ErrWrongStage
	}
	return u.form.AddSlot()
}

func (u *registrationUC) RemoveSlot(index int) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.touchLocked()
	if u.stage != model.StageEdit {
		return domain.ErrWrongStage
	}
	return u.form.RemoveSlot(index)
}

func (u *registrationUC) UpdateSlot(index int, patch model.SlotPatch) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.touchLocked()
	if u.stage != model.StageEdit {
		return domain.ErrWrongStage
	}
	return u.form.UpdateSlot(index, patch)
}

func (u *registrationUC) PatchForm(patch model.FormPatch) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.touchLocked()
	if u.stage != model.StageEdit {
		return domain.ErrWrongStage
	}
	u.form.Apply(patch)
	return nil
}

// ---- submission ----

func (u *registrationUC) Register(ctx context.Context) (string, error) {
	defer logging.TraceDuration(u.log, "RegistrationUC.Register")()
	u.mu.Lock()
	u.touchLocked()
	if u.stage != model.StageEdit {
		u.mu.Unlock()
		return "", domain.ErrWrongStage
	}
	if err := u.form.Validate(); err != nil {
		// Validation failures stay on the edit stage and never reach the
		// persistence backend.
		u.errMsg = err.Error()
		u.mu.Unlock()
		return "", err
	}
	u.stage = model.StageSubmitting
	u.isSubmitting = true
	u.errMsg = ""
	payload := u.form.SubmissionPayload(u.userID)
	u.mu.Unlock()

	recordID, err := u.records.CreatePersistedRecord(ctx, payload)

	u.mu.Lock()
	u.isSubmitting = false
	if err != nil {
		// All edited data is preserved on this path.
		u.stage = model.StageEdit
		u.errMsg = submitMessage(err)
		u.mu.Unlock()
		metrics.IncSubmission("failed")
		return "", fmt.Errorf("create record: %w", err)
	}
	userID := u.userID
	u.resetLocked()
	u.mu.Unlock()

	_ = u.cache.Clear(ctx, userID)
	metrics.IncSubmission("succeeded")
	u.log.Info().Str("record_id", recordID).Str("user_id", userID).Msg("medication record created")
	return recordID, nil
}

func submitMessage(err error) string {
	if err == nil || err.Error() == "" {
		return "registration failed, please try again"
	}
	return err.Error()
}

// ---- reset / introspection ----

func (u *registrationUC) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.touchLocked()
	u.resetLocked()
}

func (u *registrationUC) resetLocked() {
	u.stage = model.StageSelect
	u.image = nil
	u.imageName = ""
	u.form = model.NewRegistrationFormState(time.Now())
	u.isSubmitting = false
	u.errMsg = ""
	u.activeJobID = ""
}

func (u *registrationUC) State() *Snapshot {
	u.mu.Lock()
	defer u.mu.Unlock()
	return &Snapshot{
		Stage:        u.stage,
		HasImage:     len(u.image) > 0,
		ImageName:    u.imageName,
		Form:         u.form.Clone(),
		IsSubmitting: u.isSubmitting,
		Error:        u.errMsg,
		ActiveJobID:  u.activeJobID,
	}
}

func (u *registrationUC) LastActive() time.Time {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastActive
}

func (u *registrationUC) touchLocked() { u.lastActive = time.Now() }

// ---- journal / cache helpers (best effort) ----

func (u *registrationUC) journalSave(ctx context.Context, job *model.ScanJob) {
	if u.journal == nil {
		return
	}
	if err := u.journal.Save(ctx, job); err != nil {
		u.log.Warn().Err(err).Str("job_id", job.ID).Msg("scan job journal write failed")
	}
}

func (u *registrationUC) journalTerminal(jobID string, status model.ScanJobStatus, channel model.ReportChannel, lastError string) {
	if u.journal == nil {
		return
	}
	now := time.Now()
	job := &model.ScanJob{
		ID:         jobID,
		UserID:     u.userID,
		Status:     status,
		WonBy:      channel,
		LastError:  lastError,
		ResolvedAt: &now,
	}
	if err := u.journal.Save(context.Background(), job); err != nil {
		u.log.Warn().Err(err).Str("job_id", jobID).Msg("scan job journal write failed")
	}
}

func (u *registrationUC) cachePut(userID, jobID string) {
	entry := &repository.CachedScan{JobID: jobID, UserID: userID, CompletedAt: time.Now()}
	if err := u.cache.Put(context.Background(), userID, entry); err != nil {
		u.log.Warn().Err(err).Str("job_id", jobID).Msg("result cache write failed")
	}
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
