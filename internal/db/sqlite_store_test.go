package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/soaringjerry/archetypes/internal/services"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	conn, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	applied, err := RunMigrations(conn, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, []string{"0001_init.sql"}, applied)

	store, err := NewSQLiteStore(conn, zaptest.NewLogger(t))
	require.NoError(t, err)
	return store
}

func insertAssessment(t *testing.T, s *SQLiteStore, id, session string) *services.Assessment {
	t.Helper()
	a, err := s.InsertAssessment(&services.Assessment{
		ID:        id,
		SessionID: session,
		Gender:    services.GenderFemale,
		Email:     "x@example.com",
		CreatedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return a
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	conn, err := Open(":memory:")
	require.NoError(t, err)
	defer conn.Close()

	first, err := RunMigrations(conn, "", nil)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := RunMigrations(conn, "", nil)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestAssessmentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	a := insertAssessment(t, s, "A1", "sess-1")
	assert.Equal(t, services.GenderFemale, a.Gender)
	assert.Equal(t, "x@example.com", a.Email)
	assert.False(t, a.State.Completed)

	bySession, err := s.GetAssessmentBySession("sess-1")
	require.NoError(t, err)
	require.NotNil(t, bySession)
	assert.Equal(t, "A1", bySession.ID)

	missing, err := s.GetAssessment("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = s.InsertAssessment(&services.Assessment{ID: "A2", SessionID: "sess-1", Gender: services.GenderMale, CreatedAt: time.Now()})
	assert.Error(t, err, "session ids are unique")
}

func TestStateUpdatesAreFieldScoped(t *testing.T) {
	s := newTestStore(t)
	insertAssessment(t, s, "A1", "sess-1")

	paid, err := s.MarkPaid("A1", "PF-1")
	require.NoError(t, err)
	assert.True(t, paid.Paid)
	assert.False(t, paid.Completed)

	at := time.Date(2024, 5, 2, 10, 30, 0, 0, time.UTC)
	done, err := s.MarkCompleted("A1", at)
	require.NoError(t, err)
	assert.True(t, done.ReportUnlocked(), "completion must not clear the payment")
	assert.Equal(t, "PF-1", done.PaymentReference)

	// completing again refreshes the time only
	later := at.Add(time.Hour)
	again, err := s.MarkCompleted("A1", later)
	require.NoError(t, err)
	assert.True(t, again.Paid)

	got, err := s.GetAssessment("A1")
	require.NoError(t, err)
	assert.Equal(t, services.GenderFemale, got.Gender)
	assert.True(t, got.State.ReportUnlocked())
	assert.Equal(t, "PF-1", got.State.PaymentReference)
	require.NotNil(t, got.State.CompletedAt)
	assert.True(t, got.State.CompletedAt.Equal(later))

	_, err = s.MarkPaid("missing", "PF-2")
	assert.ErrorIs(t, err, services.ErrAssessmentNotFound)
	_, err = s.MarkCompleted("missing", at)
	assert.ErrorIs(t, err, services.ErrAssessmentNotFound)
}

func TestUpsertAnswerKeepsFirstOrder(t *testing.T) {
	s := newTestStore(t)
	insertAssessment(t, s, "A1", "sess-1")

	require.NoError(t, s.UpsertAnswer(services.Answer{AssessmentID: "A1", QuestionID: 7, ArchetypeID: 3, Rating: 2}))
	require.NoError(t, s.UpsertAnswer(services.Answer{AssessmentID: "A1", QuestionID: 1, ArchetypeID: 1, Rating: 4}))
	require.NoError(t, s.UpsertAnswer(services.Answer{AssessmentID: "A1", QuestionID: 7, ArchetypeID: 3, Rating: 5}))

	answers, err := s.ListAnswers("A1")
	require.NoError(t, err)
	require.Len(t, answers, 2)
	assert.Equal(t, services.Answer{AssessmentID: "A1", QuestionID: 7, ArchetypeID: 3, Rating: 5}, answers[0])
	assert.Equal(t, 1, answers[1].QuestionID)

	err = s.UpsertAnswer(services.Answer{AssessmentID: "A1", QuestionID: 2, ArchetypeID: 1, Rating: 9})
	assert.Error(t, err, "rating check constraint")
}

func TestPutResultReplaces(t *testing.T) {
	s := newTestStore(t)
	insertAssessment(t, s, "A1", "sess-1")

	none, err := s.GetResult("A1")
	require.NoError(t, err)
	assert.Nil(t, none)

	secondary := 4
	first := &services.AssessmentResult{
		AssessmentID:         "A1",
		Scores:               `[{"archetype_id":1,"rank":1}]`,
		PrimaryArchetypeID:   1,
		SecondaryArchetypeID: &secondary,
		CalculatedAt:         time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.PutResult(first))

	second := *first
	second.Scores = `[{"archetype_id":2,"rank":1}]`
	second.PrimaryArchetypeID = 2
	second.SecondaryArchetypeID = nil
	require.NoError(t, s.PutResult(&second))

	got, err := s.GetResult("A1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.PrimaryArchetypeID)
	assert.Equal(t, second.Scores, got.Scores)
	assert.Nil(t, got.SecondaryArchetypeID)
	assert.Nil(t, got.ShadowArchetypeID)
}

func TestServiceFlowOnSQLite(t *testing.T) {
	s := newTestStore(t)
	catalog, err := services.DefaultCatalog()
	require.NoError(t, err)
	svc := services.NewAssessmentService(s, catalog)

	a, err := svc.CreateAssessment("", "male", "")
	require.NoError(t, err)
	for _, q := range svc.Questions() {
		rating := 3
		if q.ArchetypeID == 9 {
			rating = 5
		}
		require.NoError(t, svc.RecordAnswer(a.ID, q.ID, rating))
	}
	out, err := svc.Finalize(a.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, out.Result.PrimaryArchetypeID)
	assert.True(t, out.State.Completed)

	scores, err := svc.Scores(a.ID)
	require.NoError(t, err)
	require.Len(t, scores, services.QuestionCount/services.QuestionsPerArchetype)
	assert.Equal(t, "The Rebel", scores[0].DisplayName)
}
