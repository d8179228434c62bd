package services

import "time"

// AssessmentState is the mutable part of an assessment. Transitions return a
// new value; the caller decides when to persist it.
//
// Created and answering-in-progress are not stored: an assessment is in
// progress until Complete is applied. Paid may be applied before or after
// completion; the report unlocks once both hold.
type AssessmentState struct {
	Completed        bool
	CompletedAt      *time.Time
	Paid             bool
	PaymentReference string
}

// Complete marks the state completed at the given time. Completing again
// refreshes the timestamp.
func (s AssessmentState) Complete(at time.Time) AssessmentState {
	s.Completed = true
	s.CompletedAt = &at
	return s
}

// MarkPaid records a confirmed payment.
func (s AssessmentState) MarkPaid(reference string) AssessmentState {
	s.Paid = true
	s.PaymentReference = reference
	return s
}

// ReportUnlocked reports whether the full report may be shown.
func (s AssessmentState) ReportUnlocked() bool {
	return s.Completed && s.Paid
}
