package api

import (
	"sync"
	"time"

	"github.com/soaringjerry/archetypes/internal/services"
)

// memoryStore keeps assessments in process memory. Every method takes the
// lock, so answer and result writes are atomic per row.
type memoryStore struct {
	mu          sync.RWMutex
	assessments map[string]*services.Assessment
	bySession   map[string]string
	answers     map[string][]services.Answer
	results     map[string]*services.AssessmentResult
}

var _ services.AssessmentStore = (*memoryStore)(nil)

func newMemoryStore() *memoryStore {
	return &memoryStore{
		assessments: map[string]*services.Assessment{},
		bySession:   map[string]string{},
		answers:     map[string][]services.Answer{},
		results:     map[string]*services.AssessmentResult{},
	}
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() services.AssessmentStore { return newMemoryStore() }

func (s *memoryStore) InsertAssessment(a *services.Assessment) (*services.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bySession[a.SessionID]; ok {
		return nil, services.NewConflictError("session already has an assessment")
	}
	copy := *a
	s.assessments[a.ID] = &copy
	s.bySession[a.SessionID] = a.ID
	out := copy
	return &out, nil
}

func (s *memoryStore) GetAssessment(id string) (*services.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.assessments[id]; ok {
		copy := *a
		return &copy, nil
	}
	return nil, nil
}

func (s *memoryStore) GetAssessmentBySession(sessionID string) (*services.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySession[sessionID]
	if !ok {
		return nil, nil
	}
	copy := *s.assessments[id]
	return &copy, nil
}

func (s *memoryStore) MarkCompleted(id string, at time.Time) (services.AssessmentState, error) {
	return s.updateState(id, func(st services.AssessmentState) services.AssessmentState { return st.Complete(at) })
}

func (s *memoryStore) MarkPaid(id, paymentReference string) (services.AssessmentState, error) {
	return s.updateState(id, func(st services.AssessmentState) services.AssessmentState { return st.MarkPaid(paymentReference) })
}

// updateState applies a transition to the current stored state under the
// write lock.
func (s *memoryStore) updateState(id string, apply func(services.AssessmentState) services.AssessmentState) (services.AssessmentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assessments[id]
	if !ok {
		return services.AssessmentState{}, services.ErrAssessmentNotFound
	}
	a.State = apply(a.State)
	return a.State, nil
}

func (s *memoryStore) ListAnswers(assessmentID string) ([]services.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]services.Answer(nil), s.answers[assessmentID]...), nil
}

// UpsertAnswer replaces in place, so an overwritten answer keeps its
// original position.
func (s *memoryStore) UpsertAnswer(ans services.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
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

func (s *memoryStore) GetResult(assessmentID string) (*services.AssessmentResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.results[assessmentID]; ok {
		copy := *r
		return &copy, nil
	}
	return nil, nil
}

func (s *memoryStore) PutResult(res *services.AssessmentResult) error {
	if res == nil {
		return services.NewInvalidError("result required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *res
	s.results[res.AssessmentID] = &copy
	return nil
}
