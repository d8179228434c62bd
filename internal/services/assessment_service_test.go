package services

import (
	"errors"
	"testing"
	"time"
)

type stubAssessmentStore struct {
	assessments map[string]*Assessment
	answers     map[string][]Answer
	results     map[string]*AssessmentResult
	putResults  int
}

func newStubAssessmentStore() *stubAssessmentStore {
	return &stubAssessmentStore{
		assessments: map[string]*Assessment{},
		answers:     map[string][]Answer{},
		results:     map[string]*AssessmentResult{},
	}
}

func (s *stubAssessmentStore) InsertAssessment(a *Assessment) (*Assessment, error) {
	copy := *a
	s.assessments[a.ID] = &copy
	return &copy, nil
}

func (s *stubAssessmentStore) GetAssessment(id string) (*Assessment, error) {
	if a, ok := s.assessments[id]; ok {
		copy := *a
		return &copy, nil
	}
	return nil, nil
}

func (s *stubAssessmentStore) GetAssessmentBySession(sessionID string) (*Assessment, error) {
	for _, a := range s.assessments {
		if a.SessionID == sessionID {
			copy := *a
			return &copy, nil
		}
	}
	return nil, nil
}

func (s *stubAssessmentStore) MarkCompleted(id string, at time.Time) (AssessmentState, error) {
	a, ok := s.assessments[id]
	if !ok {
		return AssessmentState{}, ErrAssessmentNotFound
	}
	a.State = a.State.Complete(at)
	return a.State, nil
}

func (s *stubAssessmentStore) MarkPaid(id, paymentReference string) (AssessmentState, error) {
	a, ok := s.assessments[id]
	if !ok {
		return AssessmentState{}, ErrAssessmentNotFound
	}
	a.State = a.State.MarkPaid(paymentReference)
	return a.State, nil
}

func (s *stubAssessmentStore) ListAnswers(assessmentID string) ([]Answer, error) {
	return append([]Answer(nil), s.answers[assessmentID]...), nil
}

func (s *stubAssessmentStore) UpsertAnswer(ans Answer) error {
	list := s.answers[ans.AssessmentID]
	for i := range list {
		if list[i].QuestionID == ans.QuestionID {
			list[i] = ans
			return nil
		}
	}
	s.answers[ans.AssessmentID] = append(list, ans)
	return nil
}

func (s *stubAssessmentStore) GetResult(assessmentID string) (*AssessmentResult, error) {
	if r, ok := s.results[assessmentID]; ok {
		copy := *r
		return &copy, nil
	}
	return nil, nil
}

func (s *stubAssessmentStore) PutResult(res *AssessmentResult) error {
	copy := *res
	s.results[res.AssessmentID] = &copy
	s.putResults++
	return nil
}

const testSession = "6f1c1d8e-4b7a-4c1e-9d2f-3a5b7c9d1e2f"

func newTestAssessmentService(t *testing.T) (*AssessmentService, *stubAssessmentStore) {
	t.Helper()
	store := newStubAssessmentStore()
	svc := NewAssessmentService(store, testCatalog(t))
	svc.now = func() time.Time { return time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC) }
	svc.idGen = func() string { return "A1" }
	return svc, store
}

// answerAll rates every question; rating picks the value per question.
func answerAll(t *testing.T, svc *AssessmentService, id string, rating func(q Question) int) {
	t.Helper()
	for _, q := range svc.Questions() {
		if err := svc.RecordAnswer(id, q.ID, rating(q)); err != nil {
			t.Fatalf("RecordAnswer(%d) error: %v", q.ID, err)
		}
	}
}

func TestCreateAssessmentReusesSession(t *testing.T) {
	svc, store := newTestAssessmentService(t)
	a, err := svc.CreateAssessment(testSession, "female", "me@example.com")
	if err != nil {
		t.Fatalf("CreateAssessment error: %v", err)
	}
	if a.ID != "A1" || a.Gender != GenderFemale || a.SessionID != testSession {
		t.Fatalf("unexpected assessment: %+v", a)
	}

	svc.idGen = func() string { return "A2" }
	again, err := svc.CreateAssessment(testSession, "male", "")
	if err != nil {
		t.Fatalf("CreateAssessment error: %v", err)
	}
	if again.ID != "A1" || again.Gender != GenderFemale {
		t.Fatalf("existing session should return the original assessment, got %+v", again)
	}
	if len(store.assessments) != 1 {
		t.Fatalf("assessments stored = %d, want 1", len(store.assessments))
	}
}

func TestCreateAssessmentValidation(t *testing.T) {
	svc, _ := newTestAssessmentService(t)
	if _, err := svc.CreateAssessment("", "other", ""); !errors.Is(err, ErrInvalidGender) {
		t.Fatalf("err = %v, want ErrInvalidGender", err)
	}
	if _, err := svc.CreateAssessment("not-a-uuid", "male", ""); !errors.Is(err, ErrInvalidSessionKey) {
		t.Fatalf("err = %v, want ErrInvalidSessionKey", err)
	}
	if _, err := svc.CreateAssessment("", "male", "not-an-email"); err == nil {
		t.Fatalf("expected invalid email error")
	}
	svc.sessionGen = func() string { return testSession }
	a, err := svc.CreateAssessment("", "male", "")
	if err != nil {
		t.Fatalf("CreateAssessment error: %v", err)
	}
	if a.SessionID != testSession {
		t.Fatalf("session = %q, want generated %q", a.SessionID, testSession)
	}
}

func TestRecordAnswerValidatesAndOverwrites(t *testing.T) {
	svc, store := newTestAssessmentService(t)
	a, _ := svc.CreateAssessment(testSession, "male", "")

	for _, r := range []int{0, 6, -1} {
		if err := svc.RecordAnswer(a.ID, 1, r); !errors.Is(err, ErrInvalidRating) {
			t.Fatalf("rating %d: err = %v, want ErrInvalidRating", r, err)
		}
	}
	if err := svc.RecordAnswer(a.ID, 999, 3); !errors.Is(err, ErrQuestionNotFound) {
		t.Fatalf("err = %v, want ErrQuestionNotFound", err)
	}
	if err := svc.RecordAnswer("missing", 1, 3); !errors.Is(err, ErrAssessmentNotFound) {
		t.Fatalf("err = %v, want ErrAssessmentNotFound", err)
	}

	if err := svc.RecordAnswer(a.ID, 4, 2); err != nil {
		t.Fatalf("RecordAnswer error: %v", err)
	}
	if err := svc.RecordAnswer(a.ID, 1, 5); err != nil {
		t.Fatalf("RecordAnswer error: %v", err)
	}
	if err := svc.RecordAnswer(a.ID, 4, 1); err != nil {
		t.Fatalf("RecordAnswer error: %v", err)
	}
	got := store.answers[a.ID]
	if len(got) != 2 {
		t.Fatalf("answers = %d, want 2", len(got))
	}
	if got[0].QuestionID != 4 || got[0].Rating != 1 || got[0].ArchetypeID != 2 {
		t.Fatalf("overwritten answer = %+v", got[0])
	}
	if store.assessments[a.ID].State.Completed {
		t.Fatalf("recording answers must not complete the assessment")
	}
}

func TestFinalizeRequiresAllAnswers(t *testing.T) {
	svc, store := newTestAssessmentService(t)
	a, _ := svc.CreateAssessment(testSession, "male", "")
	for _, q := range svc.Questions()[:QuestionCount-1] {
		if err := svc.RecordAnswer(a.ID, q.ID, 4); err != nil {
			t.Fatalf("RecordAnswer error: %v", err)
		}
	}
	if _, err := svc.Finalize(a.ID); !errors.Is(err, ErrIncompleteAssessment) {
		t.Fatalf("err = %v, want ErrIncompleteAssessment", err)
	}
	if store.putResults != 0 || store.assessments[a.ID].State.Completed {
		t.Fatalf("incomplete finalize must not write state")
	}
	if _, err := svc.Finalize("missing"); !errors.Is(err, ErrAssessmentNotFound) {
		t.Fatalf("err = %v, want ErrAssessmentNotFound", err)
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	svc, store := newTestAssessmentService(t)
	a, _ := svc.CreateAssessment(testSession, "female", "")
	answerAll(t, svc, a.ID, func(q Question) int { return (q.ArchetypeID % 5) + 1 })

	first, err := svc.Finalize(a.ID)
	if err != nil {
		t.Fatalf("Finalize error: %v", err)
	}
	if !first.State.Completed || first.State.CompletedAt == nil {
		t.Fatalf("finalize should complete: %+v", first.State)
	}
	if !store.assessments[a.ID].State.Completed {
		t.Fatalf("completed flag not persisted")
	}

	svc.now = func() time.Time { return time.Date(2026, 1, 8, 9, 0, 0, 0, time.UTC) }
	second, err := svc.Finalize(a.ID)
	if err != nil {
		t.Fatalf("second Finalize error: %v", err)
	}
	if first.Result.Scores != second.Result.Scores {
		t.Fatalf("recalculation changed encoded scores:\n%s\n%s", first.Result.Scores, second.Result.Scores)
	}
	if !second.Result.CalculatedAt.After(first.Result.CalculatedAt) {
		t.Fatalf("recalculation should refresh the timestamp")
	}
	if len(store.results) != 1 || store.putResults != 2 {
		t.Fatalf("results = %d (puts %d), want one replaced result", len(store.results), store.putResults)
	}
	if first.Result.PrimaryArchetypeID != 4 {
		t.Fatalf("primary = %d, want 4", first.Result.PrimaryArchetypeID)
	}
}

func TestFinalizeReflectsCorrectedAnswers(t *testing.T) {
	svc, _ := newTestAssessmentService(t)
	a, _ := svc.CreateAssessment(testSession, "male", "")
	answerAll(t, svc, a.ID, func(Question) int { return 3 })
	out, err := svc.Finalize(a.ID)
	if err != nil {
		t.Fatalf("Finalize error: %v", err)
	}
	if out.Result.PrimaryArchetypeID != 1 {
		t.Fatalf("all-tied primary = %d, want 1 (first grouped)", out.Result.PrimaryArchetypeID)
	}

	for _, q := range svc.Questions() {
		if q.ArchetypeID == 9 {
			if err := svc.RecordAnswer(a.ID, q.ID, 5); err != nil {
				t.Fatalf("RecordAnswer error: %v", err)
			}
		}
	}
	out, err = svc.Finalize(a.ID)
	if err != nil {
		t.Fatalf("Finalize error: %v", err)
	}
	if out.Result.PrimaryArchetypeID != 9 || out.Scores[0].DisplayName != "The Rebel" {
		t.Fatalf("primary after correction = %d (%s)", out.Result.PrimaryArchetypeID, out.Scores[0].DisplayName)
	}
}

func TestScoresRecomputesUnreadableCache(t *testing.T) {
	svc, store := newTestAssessmentService(t)
	a, _ := svc.CreateAssessment(testSession, "male", "")
	if _, err := svc.Scores(a.ID); !errors.Is(err, ErrIncompleteAssessment) {
		t.Fatalf("err = %v, want ErrIncompleteAssessment", err)
	}

	answerAll(t, svc, a.ID, func(q Question) int { return q.ArchetypeID%5 + 1 })
	if _, err := svc.Finalize(a.ID); err != nil {
		t.Fatalf("Finalize error: %v", err)
	}
	store.results[a.ID].Scores = `[{"archetype_id":1,`
	scores, err := svc.Scores(a.ID)
	if err != nil {
		t.Fatalf("Scores error: %v", err)
	}
	if len(scores) != 12 {
		t.Fatalf("scores = %d, want 12", len(scores))
	}
	if _, err := DecodeScores(store.results[a.ID].Scores); err != nil {
		t.Fatalf("cache was not rewritten: %v", err)
	}
}

func TestMarkPaidAndAuthorize(t *testing.T) {
	svc, _ := newTestAssessmentService(t)
	if _, err := svc.MarkPaid("missing", "PF-1"); !errors.Is(err, ErrAssessmentNotFound) {
		t.Fatalf("err = %v, want ErrAssessmentNotFound", err)
	}
	if err := svc.AuthorizeFullReport("missing"); !errors.Is(err, ErrAssessmentNotFound) {
		t.Fatalf("err = %v, want ErrAssessmentNotFound", err)
	}

	a, _ := svc.CreateAssessment(testSession, "male", "")
	state, err := svc.MarkPaid(a.ID, "PF-1")
	if err != nil {
		t.Fatalf("MarkPaid error: %v", err)
	}
	if !state.Paid || state.PaymentReference != "PF-1" {
		t.Fatalf("unexpected state: %+v", state)
	}
	if err := svc.AuthorizeFullReport(a.ID); !errors.Is(err, ErrReportNotUnlocked) {
		t.Fatalf("paid but incomplete: err = %v, want ErrReportNotUnlocked", err)
	}

	answerAll(t, svc, a.ID, func(Question) int { return 4 })
	if _, err := svc.Finalize(a.ID); err != nil {
		t.Fatalf("Finalize error: %v", err)
	}
	if err := svc.AuthorizeFullReport(a.ID); err != nil {
		t.Fatalf("AuthorizeFullReport error: %v", err)
	}
	got, _ := svc.GetAssessment(a.ID)
	if got.State.PaymentReference != "PF-1" {
		t.Fatalf("finalize dropped the payment reference: %+v", got.State)
	}
}

// payDuringFinalize confirms a payment from inside PutResult, which runs after
// Finalize has read the assessment and before it marks it completed.
type payDuringFinalize struct {
	*stubAssessmentStore
	svc *AssessmentService
	ref string
}

func (s *payDuringFinalize) PutResult(res *AssessmentResult) error {
	if s.ref != "" {
		ref := s.ref
		s.ref = ""
		if _, err := s.svc.MarkPaid(res.AssessmentID, ref); err != nil {
			return err
		}
	}
	return s.stubAssessmentStore.PutResult(res)
}

func TestFinalizeKeepsPaymentConfirmedMeanwhile(t *testing.T) {
	stub := newStubAssessmentStore()
	store := &payDuringFinalize{stubAssessmentStore: stub, ref: "PF-42"}
	svc := NewAssessmentService(store, testCatalog(t))
	svc.idGen = func() string { return "A1" }
	store.svc = svc

	a, err := svc.CreateAssessment(testSession, "male", "")
	if err != nil {
		t.Fatalf("CreateAssessment error: %v", err)
	}
	answerAll(t, svc, a.ID, func(Question) int { return 3 })
	out, err := svc.Finalize(a.ID)
	if err != nil {
		t.Fatalf("Finalize error: %v", err)
	}
	if !out.State.Paid || out.State.PaymentReference != "PF-42" {
		t.Fatalf("finalize outcome lost the payment: %+v", out.State)
	}
	stored := stub.assessments[a.ID].State
	if !stored.ReportUnlocked() || stored.PaymentReference != "PF-42" {
		t.Fatalf("stored state lost the payment: %+v", stored)
	}
	if err := svc.AuthorizeFullReport(a.ID); err != nil {
		t.Fatalf("AuthorizeFullReport error: %v", err)
	}
}
