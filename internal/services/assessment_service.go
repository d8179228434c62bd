package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// AssessmentStore abstracts persistence for assessments, answers and cached
// results. Lookups return (nil, nil) when nothing matches.
//
// UpsertAnswer must be atomic per (assessment, question) with last write
// winning, and must keep an overwritten answer in its original position in
// ListAnswers. PutResult must replace any previous result for the assessment.
//
// MarkCompleted and MarkPaid each touch only their own fields, atomically, and
// return the state as stored afterwards, so a payment and a finalize that
// overlap never undo each other. Both return ErrAssessmentNotFound for an
// unknown id.
type AssessmentStore interface {
	InsertAssessment(a *Assessment) (*Assessment, error)
	GetAssessment(id string) (*Assessment, error)
	GetAssessmentBySession(sessionID string) (*Assessment, error)
	MarkCompleted(id string, at time.Time) (AssessmentState, error)
	MarkPaid(id, paymentReference string) (AssessmentState, error)
	ListAnswers(assessmentID string) ([]Answer, error)
	UpsertAnswer(ans Answer) error
	GetResult(assessmentID string) (*AssessmentResult, error)
	PutResult(res *AssessmentResult) error
}

// FinalizeOutcome is what a successful Finalize produced.
type FinalizeOutcome struct {
	Result *AssessmentResult
	Scores []ArchetypeScore
	State  AssessmentState
}

type AssessmentService struct {
	store      AssessmentStore
	catalog    *Catalog
	validate   *validator.Validate
	now        func() time.Time
	idGen      func() string
	sessionGen func() string
}

func NewAssessmentService(store AssessmentStore, catalog *Catalog) *AssessmentService {
	return &AssessmentService{
		store:      store,
		catalog:    catalog,
		validate:   validator.New(),
		now:        func() time.Time { return time.Now().UTC() },
		idGen:      func() string { return shortID(12) },
		sessionGen: uuid.NewString,
	}
}

func shortID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

func (s *AssessmentService) Catalog() *Catalog { return s.catalog }

// Questions lists the form in display order.
func (s *AssessmentService) Questions() []Question {
	return s.catalog.Questions()
}

// CreateAssessment starts an assessment for a session. When the session
// already has one it is returned unchanged; in particular its gender is kept.
// An empty sessionID gets a fresh UUID.
func (s *AssessmentService) CreateAssessment(sessionID, gender, email string) (*Assessment, error) {
	g, err := ParseGender(gender)
	if err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if err := s.validate.Var(email, "omitempty,email"); err != nil {
		return nil, NewInvalidError("invalid email address")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = s.sessionGen()
	} else {
		parsed, err := uuid.Parse(sessionID)
		if err != nil {
			return nil, ErrInvalidSessionKey
		}
		sessionID = parsed.String()
	}

	existing, err := s.store.GetAssessmentBySession(sessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	a := &Assessment{
		ID:        s.idGen(),
		SessionID: sessionID,
		Gender:    g,
		Email:     email,
		CreatedAt: s.now(),
	}
	stored, err := s.store.InsertAssessment(a)
	if err != nil {
		// a concurrent create for the same session may have won
		if again, gerr := s.store.GetAssessmentBySession(sessionID); gerr == nil && again != nil {
			return again, nil
		}
		return nil, err
	}
	if stored != nil {
		a = stored
	}
	return a, nil
}

func (s *AssessmentService) GetAssessment(id string) (*Assessment, error) {
	a, err := s.store.GetAssessment(id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAssessmentNotFound
	}
	return a, nil
}

func (s *AssessmentService) GetAssessmentBySession(sessionID string) (*Assessment, error) {
	a, err := s.store.GetAssessmentBySession(sessionID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAssessmentNotFound
	}
	return a, nil
}

// RecordAnswer stores a rating, replacing any earlier rating for the same
// question. It has no effect on completion.
func (s *AssessmentService) RecordAnswer(assessmentID string, questionID, rating int) error {
	if rating < MinRating || rating > MaxRating {
		return ErrInvalidRating
	}
	q := s.catalog.Question(questionID)
	if q == nil {
		return ErrQuestionNotFound
	}
	if _, err := s.GetAssessment(assessmentID); err != nil {
		return err
	}
	return s.store.UpsertAnswer(Answer{
		AssessmentID: assessmentID,
		QuestionID:   questionID,
		ArchetypeID:  q.ArchetypeID,
		Rating:       rating,
	})
}

// Finalize scores a complete assessment, replaces its cached result and marks
// it completed. Finalizing again recomputes from the current answers.
func (s *AssessmentService) Finalize(assessmentID string) (*FinalizeOutcome, error) {
	a, err := s.GetAssessment(assessmentID)
	if err != nil {
		return nil, err
	}
	answers, err := s.store.ListAnswers(assessmentID)
	if err != nil {
		return nil, err
	}
	if len(answers) != QuestionCount {
		return nil, ErrIncompleteAssessment
	}

	profile, err := ComputeProfile(RatedAnswers(answers), s.catalog, a.Gender)
	if err != nil {
		return nil, err
	}
	text, err := EncodeScores(profile.Scores)
	if err != nil {
		return nil, err
	}
	now := s.now()
	res := &AssessmentResult{
		AssessmentID:         assessmentID,
		Scores:               text,
		PrimaryArchetypeID:   profile.PrimaryArchetypeID,
		SecondaryArchetypeID: profile.SecondaryArchetypeID,
		ShadowArchetypeID:    profile.ShadowArchetypeID,
		CalculatedAt:         now,
	}
	if err := s.store.PutResult(res); err != nil {
		return nil, err
	}
	state, err := s.store.MarkCompleted(assessmentID, now)
	if err != nil {
		return nil, fmt.Errorf("mark completed: %w", err)
	}
	return &FinalizeOutcome{Result: res, Scores: profile.Scores, State: state}, nil
}

// Scores returns the cached ranked profile. A missing or unreadable cache
// entry is recomputed, which requires a complete answer set.
func (s *AssessmentService) Scores(assessmentID string) ([]ArchetypeScore, error) {
	if _, err := s.GetAssessment(assessmentID); err != nil {
		return nil, err
	}
	res, err := s.store.GetResult(assessmentID)
	if err != nil {
		return nil, err
	}
	if res != nil {
		scores, err := DecodeScores(res.Scores)
		if err == nil {
			return scores, nil
		}
		if !errors.Is(err, ErrDecode) {
			return nil, err
		}
	}
	out, err := s.Finalize(assessmentID)
	if err != nil {
		return nil, err
	}
	return out.Scores, nil
}

// MarkPaid records a confirmed payment against an assessment.
func (s *AssessmentService) MarkPaid(assessmentID, paymentReference string) (AssessmentState, error) {
	if _, err := s.GetAssessment(assessmentID); err != nil {
		return AssessmentState{}, err
	}
	state, err := s.store.MarkPaid(assessmentID, paymentReference)
	if err != nil {
		return AssessmentState{}, fmt.Errorf("mark paid: %w", err)
	}
	return state, nil
}

// AuthorizeFullReport gates detailed report content. It returns nil only for
// an assessment that is both completed and paid.
func (s *AssessmentService) AuthorizeFullReport(assessmentID string) error {
	a, err := s.GetAssessment(assessmentID)
	if err != nil {
		return err
	}
	if !a.State.ReportUnlocked() {
		return ErrReportNotUnlocked
	}
	return nil
}
