package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"symptomguide/internal/assessment"
	"symptomguide/internal/inference"
	"symptomguide/internal/logging"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps orchestrator errors onto HTTP statuses. Fatal
// wiring problems never reach here; everything else is a client-visible
// condition.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		te      *assessment.TransitionError
		unavail *inference.UnavailableError
	)
	switch {
	case errors.Is(err, assessment.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "assessment not found")
	case errors.As(err, &te):
		writeError(w, http.StatusConflict, te.Error())
	case errors.Is(err, assessment.ErrCallInFlight):
		writeError(w, http.StatusConflict, "an inference call is already in progress for this assessment")
	case errors.Is(err, assessment.ErrStaleResult):
		writeError(w, http.StatusConflict, "assessment was reset while the request was processing")
	case errors.Is(err, assessment.ErrInvalidProfile),
		errors.Is(err, assessment.ErrInvalidAnswers),
		errors.Is(err, assessment.ErrNoImageData):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &unavail):
		writeError(w, http.StatusServiceUnavailable, "the assessment service is temporarily unavailable, please retry")
	default:
		logging.API("[%s] unexpected error: %v", reqID(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createRequest struct {
	Profile *assessment.UserProfile `json:"profile"`
}

// handleCreate allocates a session; when a profile rides along, it is
// submitted in the same request.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	sess := s.orch.Create()
	if req.Profile == nil {
		writeJSON(w, http.StatusCreated, sess)
		return
	}

	got, err := s.orch.SubmitProfile(r.Context(), sess.ID, *req.Profile)
	if err != nil {
		// The session exists; report its ID so the client can retry the
		// profile submission against it.
		w.Header().Set("Location", "/api/assessments/"+sess.ID)
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, got)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSubmitProfile(w http.ResponseWriter, r *http.Request) {
	var profile assessment.UserProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := s.orch.SubmitProfile(r.Context(), chi.URLParam(r, "id"), profile)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type imageRequest struct {
	ImageBase64 string `json:"image_base64"`
	MIMEType    string `json:"mime_type"`
}

func (s *Server) handleSubmitImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "image_base64 is not valid base64")
		return
	}
	if req.MIMEType == "" {
		req.MIMEType = "image/jpeg"
	}

	sess, err := s.orch.SubmitImage(r.Context(), chi.URLParam(r, "id"), data, req.MIMEType)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSkipImage(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.SkipImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type mismatchRequest struct {
	// "detected" continues with the image-detected condition, "reported"
	// keeps the original complaint.
	Proceed string `json:"proceed_with"`
}

func (s *Server) handleResolveMismatch(w http.ResponseWriter, r *http.Request) {
	var req mismatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var adopt bool
	switch req.Proceed {
	case "detected":
		adopt = true
	case "reported":
		adopt = false
	default:
		writeError(w, http.StatusBadRequest, `proceed_with must be "detected" or "reported"`)
		return
	}

	sess, err := s.orch.ResolveMismatch(r.Context(), chi.URLParam(r, "id"), adopt)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type answersRequest struct {
	Answers assessment.AnswerSet `json:"answers"`
}

func (s *Server) handleSubmitAnswers(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := s.orch.SubmitAnswers(r.Context(), chi.URLParam(r, "id"), req.Answers)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.Reset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
