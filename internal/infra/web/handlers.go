package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"medscan-registration/internal/domain"
	"medscan-registration/internal/domain/model"
	"medscan-registration/internal/infra/logging"
	"medscan-registration/internal/infra/metrics"
	redisinfra "medscan-registration/internal/infra/redis"
	"medscan-registration/internal/usecase"
)

const maxImageBytes = 10 << 20

func (s *Server) pipeline(r *http.Request) usecase.RegistrationUseCase {
	return s.pipelines.ForUser(logging.UserID(r.Context()))
}

// ---- session ----

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if _, err := s.auth.Mint(w, body.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"user_id": body.UserID})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if claims, err := s.auth.ParseFromRequest(r); err == nil {
		// Leaving the app invalidates any in-flight job.
		s.pipelines.Drop(claims.UserID)
	}
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// ---- pipeline state and transitions ----

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline(r).State())
}

func (s *Server) handleUseCamera(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.pipeline(r).UseCamera())
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	image, name, err := readImage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respond(w, r, s.pipeline(r).CaptureImage(image, name))
}

func (s *Server) handleSelectImage(w http.ResponseWriter, r *http.Request) {
	image, name, err := readImage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respond(w, r, s.pipeline(r).SelectImage(image, name))
}

func (s *Server) handleRetake(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.pipeline(r).Retake())
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	userID := logging.UserID(r.Context())
	if s.limiter != nil {
		ok, err := s.limiter.Allow(r.Context(), redisinfra.AnalysisKey(userID), s.scansPerHour, time.Hour)
		if err != nil {
			s.log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
		} else if !ok {
			writeError(w, http.StatusTooManyRequests, "scan limit reached, try again later")
			return
		}
	}
	s.respond(w, r, s.pipeline(r).StartAnalysis(r.Context()))
}

func (s *Server) handleCachedScan(w http.ResponseWriter, r *http.Request) {
	entry, err := s.pipeline(r).CachedScan(r.Context())
	if err != nil {
		s.respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.pipeline(r).RecoverCachedResult(r.Context()))
}

// ---- edit-stage mutations ----

func (s *Server) handlePatchForm(w http.ResponseWriter, r *http.Request) {
	var patch model.FormPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form patch")
		return
	}
	s.respond(w, r, s.pipeline(r).PatchForm(patch))
}

func (s *Server) handleAddMedication(w http.ResponseWriter, r *http.Request) {
	id, err := s.pipeline(r).AddMedication()
	if err != nil {
		s.respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleUpdateMedication(w http.ResponseWriter, r *http.Request) {
	var patch model.MedicationPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid medication patch")
		return
	}
	s.respond(w, r, s.pipeline(r).UpdateMedication(chi.URLParam(r, "id"), patch))
}

func (s *Server) handleRemoveMedication(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.pipeline(r).RemoveMedication(chi.URLParam(r, "id")))
}

func (s *Server) handleAddSlot(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.pipeline(r).AddSlot())
}

func (s *Server) handleUpdateSlot(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid slot index")
		return
	}
	var patch model.SlotPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid slot patch")
		return
	}
	s.respond(w, r, s.pipeline(r).UpdateSlot(index, patch))
}

func (s *Server) handleRemoveSlot(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid slot index")
		return
	}
	s.respond(w, r, s.pipeline(r).RemoveSlot(index))
}

// ---- submission and reset ----

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	recordID, err := s.pipeline(r).Register(r.Context())
	if err != nil {
		s.respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"record_id": recordID})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.pipeline(r).Reset()
	writeJSON(w, http.StatusOK, s.pipeline(r).State())
}

// ---- webhook ----

// handleScanWebhook feeds the extraction backend's push notifications into
// the shared registry. Each pipeline filters by its own job id.
func (s *Server) handleScanWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhookToken != "" && r.Header.Get("X-Webhook-Token") != s.webhookToken {
		writeError(w, http.StatusForbidden, "invalid webhook token")
		return
	}
	var report model.JobStatusReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil || report.JobID == "" {
		writeError(w, http.StatusBadRequest, "invalid job report")
		return
	}
	switch report.Status {
	case model.ScanJobStatusPending, model.ScanJobStatusDone, model.ScanJobStatusFailed:
	default:
		writeError(w, http.StatusBadRequest, "unknown job status")
		return
	}
	s.registry.Publish(report)
	metrics.IncPushEvent(string(report.Status))
	w.WriteHeader(http.StatusAccepted)
}

// ---- helpers ----

// respond maps pipeline errors onto HTTP statuses and, on success, returns
// the fresh state snapshot so the client never needs a second round trip.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, s.pipeline(r).State())
		return
	}
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrWrongStage):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrSlotLimit),
		errors.Is(err, domain.ErrSlotMinimum),
		errors.Is(err, domain.ErrNoMedications),
		errors.Is(err, domain.ErrMissingName),
		errors.Is(err, domain.ErrEmptyExtraction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrAnalysisTimeout),
		errors.Is(err, domain.ErrJobFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func readImage(r *http.Request) ([]byte, string, error) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		return nil, "", errors.New("expected multipart form with an image file")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", errors.New("image file is required")
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
	if err != nil {
		return nil, "", errors.New("could not read image file")
	}
	return data, header.Filename, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
