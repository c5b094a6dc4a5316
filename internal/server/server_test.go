package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symptomguide/internal/assessment"
	"symptomguide/internal/inference"
)

// stubEngine serves canned results for the flow under test.
type stubEngine struct {
	necessity    assessment.ImageNecessity
	necessityErr error
	analysis     assessment.ImageAnalysisResult
	verdict      assessment.ConditionMatchVerdict
	questions    []assessment.Question
	questionsErr error
	rec          assessment.Recommendation
}

func (s *stubEngine) ImageNecessity(context.Context, assessment.UserProfile) (assessment.ImageNecessity, error) {
	return s.necessity, s.necessityErr
}

func (s *stubEngine) AnalyzeImage(context.Context, assessment.UserProfile, []byte, string) (assessment.ImageAnalysisResult, error) {
	return s.analysis, nil
}

func (s *stubEngine) MatchCondition(context.Context, assessment.UserProfile, assessment.ImageAnalysisResult) (assessment.ConditionMatchVerdict, error) {
	return s.verdict, nil
}

func (s *stubEngine) FollowUpQuestions(context.Context, assessment.UserProfile, *assessment.ImageAnalysisResult) ([]assessment.Question, error) {
	return s.questions, s.questionsErr
}

func (s *stubEngine) Recommend(context.Context, assessment.UserProfile, *assessment.ImageAnalysisResult, []assessment.Question, assessment.AnswerSet) (assessment.Recommendation, error) {
	return s.rec, nil
}

var stubQuestions = []assessment.Question{
	{ID: "q1", Prompt: "How long has this lasted?", Options: []string{"<1 day", ">1 day"}},
}

func newTestServer(engine assessment.Engine) *Server {
	return New(assessment.NewOrchestrator(engine, nil), Options{Addr: ":0"})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeSession(t *testing.T, w *httptest.ResponseRecorder) assessment.Session {
	t.Helper()
	var sess assessment.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	return sess
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&stubEngine{})
	w := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestFullFlowOverHTTP(t *testing.T) {
	engine := &stubEngine{
		necessity: assessment.ImageNecessity{RequiresImage: true, Reason: "visible condition"},
		analysis:  assessment.ImageAnalysisResult{BodyPart: "forearm", ConditionType: "contact dermatitis", Severity: assessment.SeverityMild},
		verdict:   assessment.ConditionMatchVerdict{Mismatch: false},
		questions: stubQuestions,
		rec:       assessment.Recommendation{Severity: assessment.SeverityMild},
	}
	srv := newTestServer(engine)
	h := srv.Handler()

	w := doJSON(t, h, http.MethodPost, "/api/assessments", map[string]interface{}{
		"profile": assessment.UserProfile{Age: 34, AgeUnit: assessment.AgeYears, Gender: "female", PrimaryComplaint: "itchy rash on forearm"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sess := decodeSession(t, w)
	assert.Equal(t, assessment.StateAwaitingImage, sess.State)

	img := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
	w = doJSON(t, h, http.MethodPost, "/api/assessments/"+sess.ID+"/image", map[string]string{"image_base64": img, "mime_type": "image/jpeg"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sess = decodeSession(t, w)
	assert.Equal(t, assessment.StateAwaitingQuestions, sess.State)

	w = doJSON(t, h, http.MethodPost, "/api/assessments/"+sess.ID+"/answers", map[string]interface{}{
		"answers": assessment.AnswerSet{"q1": "<1 day"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sess = decodeSession(t, w)
	assert.Equal(t, assessment.StateCompleted, sess.State)
	require.NotNil(t, sess.Recommendation)

	w = doJSON(t, h, http.MethodGet, "/api/assessments/"+sess.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateWithoutProfile(t *testing.T) {
	srv := newTestServer(&stubEngine{})
	w := doJSON(t, srv.Handler(), http.MethodPost, "/api/assessments", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	sess := decodeSession(t, w)
	assert.Equal(t, assessment.StateStart, sess.State)
	assert.NotEmpty(t, sess.ID)
}

func TestErrorMapping(t *testing.T) {
	t.Run("UnknownSessionIs404", func(t *testing.T) {
		srv := newTestServer(&stubEngine{})
		w := doJSON(t, srv.Handler(), http.MethodGet, "/api/assessments/nope", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("InvalidProfileIs400", func(t *testing.T) {
		srv := newTestServer(&stubEngine{})
		w := doJSON(t, srv.Handler(), http.MethodPost, "/api/assessments", map[string]interface{}{
			"profile": assessment.UserProfile{Age: 0, AgeUnit: assessment.AgeYears},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("WrongStateIs409", func(t *testing.T) {
		engine := &stubEngine{necessity: assessment.ImageNecessity{RequiresImage: true}}
		srv := newTestServer(engine)
		h := srv.Handler()

		w := doJSON(t, h, http.MethodPost, "/api/assessments", map[string]interface{}{
			"profile": assessment.UserProfile{Age: 30, AgeUnit: assessment.AgeYears, Gender: "male", PrimaryComplaint: "rash"},
		})
		require.Equal(t, http.StatusCreated, w.Code)
		sess := decodeSession(t, w)

		// Answers are not accepted while awaiting the image.
		w = doJSON(t, h, http.MethodPost, "/api/assessments/"+sess.ID+"/answers", map[string]interface{}{
			"answers": assessment.AnswerSet{"q1": "x"},
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("InferenceOutageIs503", func(t *testing.T) {
		engine := &stubEngine{
			necessityErr: &inference.UnavailableError{
				Operation: inference.OpImageNecessity,
				Attempts:  3,
				Last:      errors.New("provider down"),
			},
		}
		srv := newTestServer(engine)
		w := doJSON(t, srv.Handler(), http.MethodPost, "/api/assessments", map[string]interface{}{
			"profile": assessment.UserProfile{Age: 30, AgeUnit: assessment.AgeYears, Gender: "male", PrimaryComplaint: "rash"},
		})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		// The session survives for a retry.
		assert.NotEmpty(t, w.Header().Get("Location"))
	})

	t.Run("BadBase64Is400", func(t *testing.T) {
		srv := newTestServer(&stubEngine{})
		w := doJSON(t, srv.Handler(), http.MethodPost, "/api/assessments/whatever/image", map[string]string{"image_base64": "not-base64!!"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("BadMismatchChoiceIs400", func(t *testing.T) {
		srv := newTestServer(&stubEngine{})
		w := doJSON(t, srv.Handler(), http.MethodPost, "/api/assessments/whatever/mismatch", map[string]string{"proceed_with": "maybe"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMismatchFlowOverHTTP(t *testing.T) {
	engine := &stubEngine{
		necessity: assessment.ImageNecessity{RequiresImage: true},
		analysis:  assessment.ImageAnalysisResult{BodyPart: "foot", ConditionType: "fungal infection"},
		verdict:   assessment.ConditionMatchVerdict{Mismatch: true, Explanation: "different body part"},
		questions: stubQuestions,
	}
	srv := newTestServer(engine)
	h := srv.Handler()

	w := doJSON(t, h, http.MethodPost, "/api/assessments", map[string]interface{}{
		"profile": assessment.UserProfile{Age: 40, AgeUnit: assessment.AgeYears, Gender: "male", PrimaryComplaint: "headache"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	sess := decodeSession(t, w)

	img := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
	w = doJSON(t, h, http.MethodPost, "/api/assessments/"+sess.ID+"/image", map[string]string{"image_base64": img})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sess = decodeSession(t, w)
	require.Equal(t, assessment.StateAwaitingMismatch, sess.State)

	w = doJSON(t, h, http.MethodPost, "/api/assessments/"+sess.ID+"/mismatch", map[string]string{"proceed_with": "detected"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sess = decodeSession(t, w)
	assert.Equal(t, assessment.StateAwaitingQuestions, sess.State)
	assert.Equal(t, "fungal infection on foot", sess.Profile.PrimaryComplaint)
}

func TestResetOverHTTP(t *testing.T) {
	engine := &stubEngine{necessity: assessment.ImageNecessity{RequiresImage: true}}
	srv := newTestServer(engine)
	h := srv.Handler()

	w := doJSON(t, h, http.MethodPost, "/api/assessments", map[string]interface{}{
		"profile": assessment.UserProfile{Age: 40, AgeUnit: assessment.AgeYears, Gender: "male", PrimaryComplaint: "rash"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	sess := decodeSession(t, w)

	w = doJSON(t, h, http.MethodPost, "/api/assessments/"+sess.ID+"/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sess = decodeSession(t, w)
	assert.Equal(t, assessment.StateStart, sess.State)
	assert.Equal(t, 1, sess.Generation)
	assert.Nil(t, sess.Profile)
}
