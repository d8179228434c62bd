package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/soaringjerry/archetypes/internal/services"
)

// SQLiteStore persists assessments, answers and cached results.
// Upserts rely on ON CONFLICT so each row write is atomic.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

var _ services.AssessmentStore = (*SQLiteStore)(nil)

func NewSQLiteStore(db *sql.DB, logger *zap.Logger) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db, log: logger.Named("sqlite")}, nil
}

func contextBg() context.Context { return context.Background() }

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func toNullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func toNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func toNullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func fromNullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func (s *SQLiteStore) InsertAssessment(a *services.Assessment) (*services.Assessment, error) {
	if a == nil || a.ID == "" || a.SessionID == "" {
		return nil, services.NewInvalidError("assessment id and session required")
	}
	_, err := s.db.ExecContext(contextBg(), `INSERT INTO assessments
      (id, session_id, gender, email, created_at, completed, completed_at, paid, payment_reference)
      VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SessionID, string(a.Gender), toNullString(a.Email), a.CreatedAt.UTC().Format(time.RFC3339Nano),
		boolToInt64(a.State.Completed), toNullTime(a.State.CompletedAt),
		boolToInt64(a.State.Paid), toNullString(a.State.PaymentReference))
	if err != nil {
		return nil, fmt.Errorf("insert assessment: %w", err)
	}
	return s.GetAssessment(a.ID)
}

const assessmentColumns = `id, session_id, gender, email, created_at, completed, completed_at, paid, payment_reference`

func (s *SQLiteStore) GetAssessment(id string) (*services.Assessment, error) {
	row := s.db.QueryRowContext(contextBg(), `SELECT `+assessmentColumns+` FROM assessments WHERE id = ?`, id)
	return scanAssessment(row)
}

func (s *SQLiteStore) GetAssessmentBySession(sessionID string) (*services.Assessment, error) {
	row := s.db.QueryRowContext(contextBg(), `SELECT `+assessmentColumns+` FROM assessments WHERE session_id = ?`, sessionID)
	return scanAssessment(row)
}

func scanAssessment(row *sql.Row) (*services.Assessment, error) {
	var (
		a                  services.Assessment
		gender, created    string
		email, completedAt sql.NullString
		paymentRef         sql.NullString
		completed, paid    int64
	)
	if err := row.Scan(&a.ID, &a.SessionID, &gender, &email, &created, &completed, &completedAt, &paid, &paymentRef); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan assessment: %w", err)
	}
	a.Gender = services.Gender(gender)
	a.Email = email.String
	t, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = t
	a.State = services.AssessmentState{
		Completed:        completed != 0,
		Paid:             paid != 0,
		PaymentReference: paymentRef.String,
	}
	if completedAt.Valid {
		ct, err := parseTime(completedAt.String)
		if err != nil {
			return nil, err
		}
		a.State.CompletedAt = &ct
	}
	return &a, nil
}

// MarkCompleted sets the completion flag and time in one statement and leaves
// the payment columns alone.
func (s *SQLiteStore) MarkCompleted(id string, at time.Time) (services.AssessmentState, error) {
	return s.updateState(`UPDATE assessments SET completed = 1, completed_at = ?
      WHERE id = ?`, at.UTC().Format(time.RFC3339Nano), id)
}

// MarkPaid sets the payment flag and reference in one statement and leaves
// the completion columns alone.
func (s *SQLiteStore) MarkPaid(id, paymentReference string) (services.AssessmentState, error) {
	return s.updateState(`UPDATE assessments SET paid = 1, payment_reference = ?
      WHERE id = ?`, toNullString(paymentReference), id)
}

func (s *SQLiteStore) updateState(stmt string, args ...any) (services.AssessmentState, error) {
	row := s.db.QueryRowContext(contextBg(), stmt+`
      RETURNING completed, completed_at, paid, payment_reference`, args...)
	var (
		completed, paid int64
		completedAt     sql.NullString
		paymentRef      sql.NullString
	)
	if err := row.Scan(&completed, &completedAt, &paid, &paymentRef); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return services.AssessmentState{}, services.ErrAssessmentNotFound
		}
		return services.AssessmentState{}, fmt.Errorf("update assessment state: %w", err)
	}
	state := services.AssessmentState{
		Completed:        completed != 0,
		Paid:             paid != 0,
		PaymentReference: paymentRef.String,
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return services.AssessmentState{}, err
		}
		state.CompletedAt = &t
	}
	return state, nil
}

// ListAnswers returns answers in the order they were first recorded.
func (s *SQLiteStore) ListAnswers(assessmentID string) ([]services.Answer, error) {
	rows, err := s.db.QueryContext(contextBg(), `SELECT assessment_id, question_id, archetype_id, rating
      FROM answers WHERE assessment_id = ? ORDER BY id ASC`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.log.Warn("close answer rows", zap.Error(cerr))
		}
	}()
	var out []services.Answer
	for rows.Next() {
		var a services.Answer
		if err := rows.Scan(&a.AssessmentID, &a.QuestionID, &a.ArchetypeID, &a.Rating); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) UpsertAnswer(ans services.Answer) error {
	_, err := s.db.ExecContext(contextBg(), `INSERT INTO answers (assessment_id, question_id, archetype_id, rating)
      VALUES (?, ?, ?, ?)
      ON CONFLICT(assessment_id, question_id) DO UPDATE SET rating = excluded.rating, archetype_id = excluded.archetype_id`,
		ans.AssessmentID, ans.QuestionID, ans.ArchetypeID, ans.Rating)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetResult(assessmentID string) (*services.AssessmentResult, error) {
	row := s.db.QueryRowContext(contextBg(), `SELECT assessment_id, scores, primary_archetype_id,
      secondary_archetype_id, shadow_archetype_id, calculated_at FROM results WHERE assessment_id = ?`, assessmentID)
	var (
		r                 services.AssessmentResult
		secondary, shadow sql.NullInt64
		calculated        string
	)
	if err := row.Scan(&r.AssessmentID, &r.Scores, &r.PrimaryArchetypeID, &secondary, &shadow, &calculated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan result: %w", err)
	}
	r.SecondaryArchetypeID = fromNullInt(secondary)
	r.ShadowArchetypeID = fromNullInt(shadow)
	t, err := parseTime(calculated)
	if err != nil {
		return nil, err
	}
	r.CalculatedAt = t
	return &r, nil
}

// PutResult replaces the cached result for an assessment in one statement.
func (s *SQLiteStore) PutResult(res *services.AssessmentResult) error {
	if res == nil {
		return services.NewInvalidError("result required")
	}
	_, err := s.db.ExecContext(contextBg(), `INSERT INTO results
      (assessment_id, scores, primary_archetype_id, secondary_archetype_id, shadow_archetype_id, calculated_at)
      VALUES (?, ?, ?, ?, ?, ?)
      ON CONFLICT(assessment_id) DO UPDATE SET
        scores = excluded.scores,
        primary_archetype_id = excluded.primary_archetype_id,
        secondary_archetype_id = excluded.secondary_archetype_id,
        shadow_archetype_id = excluded.shadow_archetype_id,
        calculated_at = excluded.calculated_at`,
		res.AssessmentID, res.Scores, res.PrimaryArchetypeID,
		toNullInt(res.SecondaryArchetypeID), toNullInt(res.ShadowArchetypeID),
		res.CalculatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("put result: %w", err)
	}
	return nil
}
