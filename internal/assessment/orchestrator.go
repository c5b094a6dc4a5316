package assessment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"symptomguide/internal/logging"
)

var (
	// ErrSessionNotFound indicates an unknown session ID.
	ErrSessionNotFound = errors.New("assessment: session not found")

	// ErrCallInFlight indicates a mutating operation arrived while the
	// session already has an inference call running.
	ErrCallInFlight = errors.New("assessment: inference call already in flight for session")

	// ErrStaleResult indicates the session was reset while the call was in
	// flight; the result was discarded and the session is unchanged.
	ErrStaleResult = errors.New("assessment: session reset during call, result discarded")

	// ErrInvalidProfile indicates a profile submission that fails intake
	// validation.
	ErrInvalidProfile = errors.New("assessment: invalid profile")

	// ErrInvalidAnswers indicates an answer set that does not cover the
	// pending questions.
	ErrInvalidAnswers = errors.New("assessment: invalid answers")

	// ErrNoImageData indicates an image submission with an empty payload.
	ErrNoImageData = errors.New("assessment: empty image payload")
)

// TransitionError indicates an operation invoked from a state that does not
// permit it. The session is unchanged.
type TransitionError struct {
	SessionID string
	From      State
	Op        string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("assessment: operation %s not permitted in state %s (session %s)", e.Op, e.From, e.SessionID)
}

// SessionStore persists session snapshots. Persistence is best effort: a
// failing store never blocks a transition.
type SessionStore interface {
	Save(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

// ErrNotPersisted is returned by stores for unknown session IDs.
var ErrNotPersisted = errors.New("assessment: session not persisted")

type sessionEntry struct {
	session Session
	busy    bool
}

// Orchestrator owns every session and sequences the dependent inference
// calls of the assessment flow. All session mutation happens here, under
// the orchestrator's lock; engine calls run outside it with a generation
// check on completion.
type Orchestrator struct {
	mu       sync.Mutex
	engine   Engine
	store    SessionStore
	sessions map[string]*sessionEntry
	now      func() time.Time
}

// NewOrchestrator returns an orchestrator using the given engine. store may
// be nil to disable persistence.
func NewOrchestrator(engine Engine, store SessionStore) *Orchestrator {
	return &Orchestrator{
		engine:   engine,
		store:    store,
		sessions: make(map[string]*sessionEntry),
		now:      time.Now,
	}
}

// Create allocates a fresh session awaiting its profile submission.
func (o *Orchestrator) Create() Session {
	now := o.now()
	s := Session{
		ID:        uuid.NewString(),
		State:     StateStart,
		CreatedAt: now,
		UpdatedAt: now,
	}

	o.mu.Lock()
	o.sessions[s.ID] = &sessionEntry{session: s}
	o.mu.Unlock()

	logging.Assessment("session %s created", s.ID)
	return s
}

// Get returns a snapshot of the session, rehydrating from the store when
// it is not in memory.
func (o *Orchestrator) Get(ctx context.Context, id string) (Session, error) {
	o.mu.Lock()
	if entry, ok := o.sessions[id]; ok {
		snap := entry.session.Snapshot()
		o.mu.Unlock()
		return snap, nil
	}
	o.mu.Unlock()

	if o.store == nil {
		return Session{}, ErrSessionNotFound
	}
	s, err := o.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotPersisted) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if entry, ok := o.sessions[id]; ok {
		// Raced with another loader.
		return entry.session.Snapshot(), nil
	}
	o.sessions[id] = &sessionEntry{session: s}
	logging.AssessmentDebug("session %s rehydrated from store in state %s", id, s.State)
	return s.Snapshot(), nil
}

// beginCall validates the transition, marks the session busy, and returns
// the inputs the engine call needs. The returned generation gates the
// completion.
func (o *Orchestrator) beginCall(id, op string, allowed ...State) (Session, int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	entry, ok := o.sessions[id]
	if !ok {
		return Session{}, 0, ErrSessionNotFound
	}
	if entry.busy {
		return Session{}, 0, ErrCallInFlight
	}
	permitted := false
	for _, st := range allowed {
		if entry.session.State == st {
			permitted = true
			break
		}
	}
	if !permitted {
		return Session{}, 0, &TransitionError{SessionID: id, From: entry.session.State, Op: op}
	}

	entry.busy = true
	return entry.session.Snapshot(), entry.session.Generation, nil
}

// completeCall re-acquires the session after an engine call. If the
// generation moved the result is stale: the session is untouched and the
// busy flag is left to whoever owns the current generation. apply runs
// under the lock and must only mutate the entry's session; it is skipped
// when callErr is non-nil.
func (o *Orchestrator) completeCall(ctx context.Context, id string, gen int, callErr error, apply func(s *Session)) (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	entry, ok := o.sessions[id]
	if !ok || entry.session.Generation != gen {
		logging.Assessment("session %s: discarding stale result (generation moved past %d)", id, gen)
		return Session{}, ErrStaleResult
	}

	entry.busy = false
	if callErr != nil {
		logging.Assessment("session %s: call failed in state %s: %v", id, entry.session.State, callErr)
		return Session{}, callErr
	}

	apply(&entry.session)
	entry.session.UpdatedAt = o.now()
	snap := entry.session.Snapshot()
	o.persist(ctx, snap)
	return snap, nil
}

func (o *Orchestrator) persist(ctx context.Context, s Session) {
	if o.store == nil {
		return
	}
	if err := o.store.Save(ctx, s); err != nil {
		logging.Assessment("session %s: persistence failed: %v", s.ID, err)
	}
}

func validateProfile(p UserProfile) error {
	if p.Age <= 0 {
		return fmt.Errorf("%w: age must be positive", ErrInvalidProfile)
	}
	if p.AgeUnit != AgeYears && p.AgeUnit != AgeMonths {
		return fmt.Errorf("%w: age_unit must be years or months", ErrInvalidProfile)
	}
	if p.PrimaryComplaint == "" {
		return fmt.Errorf("%w: primary_complaint is required", ErrInvalidProfile)
	}
	return nil
}

// SubmitProfile attaches the patient profile and decides the next step.
// Red-flag complaints skip the image path deterministically; otherwise the
// image-need decision is delegated to inference. When no image is needed
// the follow-up questions are fetched in the same transition.
func (o *Orchestrator) SubmitProfile(ctx context.Context, id string, profile UserProfile) (Session, error) {
	if err := validateProfile(profile); err != nil {
		return Session{}, err
	}

	_, gen, err := o.beginCall(id, "submitProfile", StateStart)
	if err != nil {
		return Session{}, err
	}

	var (
		necessity ImageNecessity
		questions []Question
		callErr   error
	)
	if check := PerformSafetyCheck(profile.PrimaryComplaint, nil); check.RequiresImmediate {
		logging.Assessment("session %s: red flag in complaint, bypassing image decision", id)
		necessity = ImageNecessity{
			RequiresImage: false,
			Reason:        "Reported symptoms indicate urgent medical attention; visual assessment is skipped.",
			Urgency:       UrgencyEmergency,
		}
	} else {
		necessity, callErr = o.engine.ImageNecessity(ctx, profile)
	}
	if callErr == nil && !necessity.RequiresImage {
		questions, callErr = o.engine.FollowUpQuestions(ctx, profile, nil)
	}

	return o.completeCall(ctx, id, gen, callErr, func(s *Session) {
		p := profile
		s.Profile = &p
		n := necessity
		s.ImageNecessity = &n
		if necessity.RequiresImage {
			s.State = StateAwaitingImage
			logging.Assessment("session %s: image requested (%s)", id, necessity.Reason)
		} else {
			s.Questions = questions
			s.State = StateAwaitingQuestions
			logging.Assessment("session %s: %d follow-up questions, no image needed", id, len(questions))
		}
	})
}

// SubmitImage analyzes the photo and checks it against the reported
// complaint. A consistent image proceeds straight to follow-up questions;
// an inconsistent one parks the session awaiting the user's choice.
func (o *Orchestrator) SubmitImage(ctx context.Context, id string, imageData []byte, mime string) (Session, error) {
	if len(imageData) == 0 {
		return Session{}, ErrNoImageData
	}

	snap, gen, err := o.beginCall(id, "submitImage", StateAwaitingImage)
	if err != nil {
		return Session{}, err
	}
	profile := *snap.Profile

	var (
		verdict   ConditionMatchVerdict
		questions []Question
	)
	analysis, callErr := o.engine.AnalyzeImage(ctx, profile, imageData, mime)
	if callErr == nil {
		verdict, callErr = o.engine.MatchCondition(ctx, profile, analysis)
	}
	if callErr == nil && !verdict.Mismatch {
		questions, callErr = o.engine.FollowUpQuestions(ctx, profile, &analysis)
	}

	return o.completeCall(ctx, id, gen, callErr, func(s *Session) {
		a := analysis
		s.ImageAnalysis = &a
		if verdict.Mismatch {
			v := verdict
			s.Mismatch = &v
			s.State = StateAwaitingMismatch
			logging.Assessment("session %s: image/complaint mismatch: %s", id, verdict.Explanation)
		} else {
			s.Questions = questions
			s.State = StateAwaitingQuestions
			logging.Assessment("session %s: image consistent, %d follow-up questions", id, len(questions))
		}
	})
}

// SkipImage declines the image request and proceeds to follow-up questions
// on the reported complaint alone.
func (o *Orchestrator) SkipImage(ctx context.Context, id string) (Session, error) {
	snap, gen, err := o.beginCall(id, "skipImage", StateAwaitingImage)
	if err != nil {
		return Session{}, err
	}

	questions, callErr := o.engine.FollowUpQuestions(ctx, *snap.Profile, nil)

	return o.completeCall(ctx, id, gen, callErr, func(s *Session) {
		s.Questions = questions
		s.State = StateAwaitingQuestions
		logging.Assessment("session %s: image skipped, %d follow-up questions", id, len(questions))
	})
}

// ResolveMismatch applies the user's choice after an image/complaint
// mismatch. Adopting replaces the complaint with the image-detected
// condition and keeps the analysis; keeping the complaint discards the
// analysis. Either way the flow continues to follow-up questions.
func (o *Orchestrator) ResolveMismatch(ctx context.Context, id string, adoptDetected bool) (Session, error) {
	snap, gen, err := o.beginCall(id, "resolveMismatch", StateAwaitingMismatch)
	if err != nil {
		return Session{}, err
	}

	profile := *snap.Profile
	var analysis *ImageAnalysisResult
	if adoptDetected {
		profile.PrimaryComplaint = snap.ImageAnalysis.DetectedCondition()
		a := *snap.ImageAnalysis
		analysis = &a
	}

	questions, callErr := o.engine.FollowUpQuestions(ctx, profile, analysis)

	return o.completeCall(ctx, id, gen, callErr, func(s *Session) {
		if adoptDetected {
			s.Profile.PrimaryComplaint = profile.PrimaryComplaint
			logging.Assessment("session %s: adopted image-detected condition %q", id, profile.PrimaryComplaint)
		} else {
			s.ImageAnalysis = nil
			logging.Assessment("session %s: kept reported complaint, image findings discarded", id)
		}
		s.Mismatch = nil
		s.Questions = questions
		s.State = StateAwaitingQuestions
	})
}

// SubmitAnswers records the questionnaire answers and produces the final
// recommendation, with the pediatric gate and the deterministic red-flag
// scan applied on top of the model output.
func (o *Orchestrator) SubmitAnswers(ctx context.Context, id string, answers AnswerSet) (Session, error) {
	snap, gen, err := o.beginCall(id, "submitAnswers", StateAwaitingQuestions)
	if err != nil {
		return Session{}, err
	}
	if err := validateAnswers(snap.Questions, answers); err != nil {
		o.clearBusy(id, gen)
		return Session{}, err
	}

	profile := *snap.Profile
	rec, callErr := o.engine.Recommend(ctx, profile, snap.ImageAnalysis, snap.Questions, answers)
	if callErr == nil {
		var symptoms []string
		if snap.ImageAnalysis != nil {
			symptoms = snap.ImageAnalysis.VisibleSymptoms
		}
		ApplyPediatricGate(profile, &rec)
		ApplySafetyCheck(PerformSafetyCheck(profile.PrimaryComplaint, symptoms), &rec)
	}

	return o.completeCall(ctx, id, gen, callErr, func(s *Session) {
		s.Answers = answers
		r := rec
		s.Recommendation = &r
		s.State = StateCompleted
		logging.Assessment("session %s: completed, severity %s", id, rec.Severity)
	})
}

func validateAnswers(questions []Question, answers AnswerSet) error {
	if len(answers) == 0 {
		return fmt.Errorf("%w: no answers provided", ErrInvalidAnswers)
	}
	byID := make(map[string]Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	for id := range answers {
		if _, ok := byID[id]; !ok {
			return fmt.Errorf("%w: unknown question %q", ErrInvalidAnswers, id)
		}
	}
	for _, q := range questions {
		if _, ok := answers[q.ID]; !ok {
			return fmt.Errorf("%w: question %q unanswered", ErrInvalidAnswers, q.ID)
		}
	}
	return nil
}

func (o *Orchestrator) clearBusy(id string, gen int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if entry, ok := o.sessions[id]; ok && entry.session.Generation == gen {
		entry.busy = false
	}
}

// Reset returns the session to its initial state, clearing all accumulated
// results. Permitted from any state, including while a call is in flight:
// the generation bump makes the in-flight result stale on completion.
func (o *Orchestrator) Reset(ctx context.Context, id string) (Session, error) {
	o.mu.Lock()
	entry, ok := o.sessions[id]
	if !ok {
		o.mu.Unlock()
		return Session{}, ErrSessionNotFound
	}

	wasBusy := entry.busy
	entry.session = Session{
		ID:         entry.session.ID,
		Generation: entry.session.Generation + 1,
		State:      StateStart,
		CreatedAt:  entry.session.CreatedAt,
		UpdatedAt:  o.now(),
	}
	entry.busy = false
	snap := entry.session.Snapshot()
	o.mu.Unlock()

	if wasBusy {
		logging.Assessment("session %s: reset with call in flight, result will be discarded", id)
	} else {
		logging.Assessment("session %s: reset", id)
	}
	o.persist(ctx, snap)
	return snap, nil
}
