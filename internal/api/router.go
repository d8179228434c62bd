package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/soaringjerry/archetypes/internal/middleware"
	"github.com/soaringjerry/archetypes/internal/services"
)

const maxBodyBytes = 64 << 10

type Router struct {
	assessments *services.AssessmentService
	payments    *services.PaymentService
	reports     *services.ReportService
	sessions    *middleware.Sessions
	log         *zap.Logger
}

func NewRouter(assessments *services.AssessmentService, payments *services.PaymentService, reports *services.ReportService, sessions *middleware.Sessions, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		assessments: assessments,
		payments:    payments,
		reports:     reports,
		sessions:    sessions,
		log:         logger,
	}
}

func (rt *Router) Register(mux *http.ServeMux) {
	scoped := func(h http.HandlerFunc) http.Handler { return middleware.RequireSession(h) }

	mux.HandleFunc("GET /health", rt.handleHealth)
	mux.HandleFunc("GET /api/questions", rt.handleQuestions)
	mux.HandleFunc("POST /api/assessments", rt.handleCreateAssessment)
	mux.Handle("PUT /api/assessments/{id}/answers/{question_id}", scoped(rt.handleAnswer))
	mux.Handle("POST /api/assessments/{id}/finalize", scoped(rt.handleFinalize))
	mux.Handle("GET /api/assessments/{id}/summary", scoped(rt.handleSummary))
	mux.Handle("POST /api/assessments/{id}/checkout", scoped(rt.handleCheckout))
	mux.Handle("GET /api/assessments/{id}/report", scoped(rt.handleReport))
	mux.HandleFunc("POST /api/payfast/notify", rt.handleNotify)
}

// Handler returns the full middleware chain around a fresh mux.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	rt.Register(mux)
	var h http.Handler = mux
	h = rt.sessions.WithSession(h)
	h = middleware.ResponseHeaders(h)
	h = middleware.RequestLog(rt.log)(h)
	return h
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func statusFor(code services.ErrorCode) int {
	switch code {
	case services.ErrorInvalid, services.ErrorUnauthorized:
		return http.StatusBadRequest
	case services.ErrorForbidden:
		return http.StatusForbidden
	case services.ErrorNotFound:
		return http.StatusNotFound
	case services.ErrorConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (rt *Router) writeServiceError(w http.ResponseWriter, err error) {
	if se, ok := services.AsServiceError(err); ok {
		writeError(w, statusFor(se.Code), se.Message)
		return
	}
	rt.log.Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

// decodeOptionalBody is decodeBody for routes where an empty body means
// defaults. Chunked requests have no length, so emptiness shows up as EOF.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) handleQuestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"questions": rt.assessments.Questions()})
}

type assessmentView struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	Gender      string     `json:"gender"`
	Email       string     `json:"email,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Paid        bool       `json:"paid"`
}

func viewOf(a *services.Assessment) assessmentView {
	return assessmentView{
		ID:          a.ID,
		SessionID:   a.SessionID,
		Gender:      string(a.Gender),
		Email:       a.Email,
		CreatedAt:   a.CreatedAt,
		Completed:   a.State.Completed,
		CompletedAt: a.State.CompletedAt,
		Paid:        a.State.Paid,
	}
}

// POST /api/assessments {session_id?, gender, email?}
func (rt *Router) handleCreateAssessment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Gender    string `json:"gender"`
		Email     string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	a, err := rt.assessments.CreateAssessment(req.SessionID, req.Gender, req.Email)
	if err != nil {
		rt.writeServiceError(w, err)
		return
	}
	tok, err := rt.sessions.Sign(a.ID, a.SessionID)
	if err != nil {
		rt.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"assessment": viewOf(a), "token": tok})
}

// PUT /api/assessments/{id}/answers/{question_id} {rating}
func (rt *Router) handleAnswer(w http.ResponseWriter, r *http.Request) {
	qid, err := strconv.Atoi(r.PathValue("question_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid question id")
		return
	}
	var req struct {
		Rating int `json:"rating"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := rt.assessments.RecordAnswer(r.PathValue("id"), qid, req.Rating); err != nil {
		rt.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/assessments/{id}/finalize
func (rt *Router) handleFinalize(w http.ResponseWriter, r *http.Request) {
	out, err := rt.assessments.Finalize(r.PathValue("id"))
	if err != nil {
		rt.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"assessment_id":          out.Result.AssessmentID,
		"primary_archetype_id":   out.Result.PrimaryArchetypeID,
		"secondary_archetype_id": out.Result.SecondaryArchetypeID,
		"shadow_archetype_id":    out.Result.ShadowArchetypeID,
		"calculated_at":          out.Result.CalculatedAt,
		"scores":                 out.Scores,
	})
}

// GET /api/assessments/{id}/summary
func (rt *Router) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := rt.reports.Summary(r.PathValue("id"))
	if err != nil {
		rt.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// POST /api/assessments/{id}/checkout {return_url?, cancel_url?, notify_url?}
func (rt *Router) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReturnURL string `json:"return_url"`
		CancelURL string `json:"cancel_url"`
		NotifyURL string `json:"notify_url"`
	}
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	a, err := rt.assessments.GetAssessment(r.PathValue("id"))
	if err != nil {
		rt.writeServiceError(w, err)
		return
	}
	form, err := rt.payments.Checkout(a.SessionID, services.CheckoutURLs{
		ReturnURL: req.ReturnURL,
		CancelURL: req.CancelURL,
		NotifyURL: req.NotifyURL,
	})
	if err != nil {
		rt.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// GET /api/assessments/{id}/report
func (rt *Router) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := rt.reports.FullReport(r.PathValue("id"))
	if err != nil {
		rt.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// POST /api/payfast/notify, form-encoded. The gateway only reads the status
// code; bodies are plain text.
func (rt *Router) handleNotify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		rt.log.Warn("payfast notification unreadable", zap.Error(err))
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	fields := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	log := rt.log.With(
		zap.String("payment_status", fields["payment_status"]),
		zap.String("session_id", fields["custom_str1"]),
		zap.String("pf_payment_id", fields["pf_payment_id"]),
	)
	log.Info("payfast notification received")

	out, err := rt.payments.HandleNotification(fields)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrInvalidSignature):
		log.Warn("payfast notification signature invalid")
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	case errors.Is(err, services.ErrInvalidSessionKey):
		log.Warn("payfast notification session key invalid")
		http.Error(w, "invalid session", http.StatusBadRequest)
		return
	case errors.Is(err, services.ErrAssessmentNotFound):
		log.Warn("payfast notification for unknown assessment")
		http.Error(w, "assessment not found", http.StatusNotFound)
		return
	default:
		log.Error("payfast notification failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !out.Applied {
		log.Info("payfast payment not complete")
	} else {
		log.Info("payfast payment applied", zap.String("assessment_id", out.AssessmentID))
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(strings.ToLower(http.StatusText(http.StatusOK))))
}
