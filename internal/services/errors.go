package services

import "errors"

type ErrorCode string

const (
	ErrorInvalid      ErrorCode = "invalid"
	ErrorForbidden    ErrorCode = "forbidden"
	ErrorNotFound     ErrorCode = "not_found"
	ErrorConflict     ErrorCode = "conflict"
	ErrorUnauthorized ErrorCode = "unauthorized"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error   { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

var (
	// ErrInvalidRating rejects ratings outside the 1..5 Likert range.
	ErrInvalidRating = NewInvalidError("rating must be between 1 and 5")
	// ErrInvalidGender rejects gender values other than male or female.
	ErrInvalidGender = NewInvalidError("gender must be male or female")
	// ErrNoAnswers is returned when the scoring engine is handed nothing to score.
	ErrNoAnswers = NewInvalidError("no answers to score")
	// ErrQuestionNotFound flags an answer for a question outside the catalog.
	ErrQuestionNotFound = NewInvalidError("question not found")
	// ErrInvalidSessionKey flags a payment notification whose custom_str1 is not a session key.
	ErrInvalidSessionKey = NewInvalidError("invalid session id")
	// ErrIncompleteAssessment is returned until every question has an answer.
	ErrIncompleteAssessment = NewConflictError("all questions must be answered before calculating results")
	// ErrInvalidSignature rejects payment notifications that fail signature verification.
	ErrInvalidSignature = NewUnauthorizedError("invalid signature")
	// ErrReportNotUnlocked is a policy rejection: the report needs a completed and paid assessment.
	ErrReportNotUnlocked = NewForbiddenError("full report not purchased")
	// ErrAssessmentNotFound is a lookup failure, distinct from ErrReportNotUnlocked.
	ErrAssessmentNotFound = NewNotFoundError("assessment not found")

	// ErrDecode marks a cached result that could not be read back. Callers treat it as a cache miss.
	ErrDecode = errors.New("decode cached result")
)
