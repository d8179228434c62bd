package services

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// PaymentStatusComplete is the only payment_status that unlocks a report.
const PaymentStatusComplete = "COMPLETE"

const (
	reportItemName = "Full Archetype Report"
)

// PayFastSettings holds the merchant account used for checkout.
type PayFastSettings struct {
	MerchantID  string
	MerchantKey string
	Passphrase  string
	ProcessURL  string
	ReturnURL   string
	CancelURL   string
	NotifyURL   string
	// PlusForSpace switches signature encoding of spaces from %20 to +.
	PlusForSpace bool
}

type PricingSettings struct {
	FullReportPrice float64
	Currency        string
}

// CheckoutURLs overrides the configured redirect and callback URLs. Empty
// fields fall back to PayFastSettings.
type CheckoutURLs struct {
	ReturnURL string
	CancelURL string
	NotifyURL string
}

type FormField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CheckoutForm is the set of hidden fields posted to the gateway, in the
// order the gateway documents them, ending with the signature. Amount and
// Currency are for display; the gateway reads the amount field.
type CheckoutForm struct {
	Action   string      `json:"action"`
	Amount   string      `json:"amount"`
	Currency string      `json:"currency"`
	Fields   []FormField `json:"fields"`
}

// Values returns the form as a map, signature included.
func (f *CheckoutForm) Values() map[string]string {
	out := make(map[string]string, len(f.Fields))
	for _, fld := range f.Fields {
		out[fld.Name] = fld.Value
	}
	return out
}

// NotificationOutcome describes how an inbound notification was handled.
// Applied is false when the payment is not complete yet; that is not an error.
type NotificationOutcome struct {
	Applied          bool
	PaymentStatus    string
	SessionID        string
	AssessmentID     string
	PaymentReference string
	State            AssessmentState
}

type PaymentService struct {
	assessments *AssessmentService
	settings    PayFastSettings
	pricing     PricingSettings
	signer      Signer
}

func NewPaymentService(assessments *AssessmentService, settings PayFastSettings, pricing PricingSettings) *PaymentService {
	return &PaymentService{
		assessments: assessments,
		settings:    settings,
		pricing:     pricing,
		signer:      Signer{Passphrase: settings.Passphrase, PlusForSpace: settings.PlusForSpace},
	}
}

func (s *PaymentService) Signer() Signer { return s.signer }

// Checkout builds the signed gateway form for an assessment's session.
func (s *PaymentService) Checkout(sessionID string, urls CheckoutURLs) (*CheckoutForm, error) {
	a, err := s.assessments.GetAssessmentBySession(sessionID)
	if err != nil {
		return nil, err
	}
	fields := []FormField{
		{"merchant_id", s.settings.MerchantID},
		{"merchant_key", s.settings.MerchantKey},
		{"return_url", firstNonEmpty(urls.ReturnURL, s.settings.ReturnURL)},
		{"cancel_url", firstNonEmpty(urls.CancelURL, s.settings.CancelURL)},
		{"notify_url", firstNonEmpty(urls.NotifyURL, s.settings.NotifyURL)},
		{"amount", FormatAmount(s.pricing.FullReportPrice)},
		{"item_name", reportItemName},
		{"item_description", "Complete archetype analysis for assessment " + a.SessionID},
		{"email_address", a.Email},
		{"custom_str1", a.SessionID},
	}
	form := &CheckoutForm{
		Action:   s.settings.ProcessURL,
		Amount:   FormatAmount(s.pricing.FullReportPrice),
		Currency: s.pricing.Currency,
		Fields:   fields,
	}
	form.Fields = append(form.Fields, FormField{SignatureField, s.signer.Sign(form.Values())})
	return form, nil
}

// HandleNotification validates a gateway notification and, for a complete
// payment, unlocks the assessment named by custom_str1. Nothing changes when
// the signature is invalid.
func (s *PaymentService) HandleNotification(fields map[string]string) (*NotificationOutcome, error) {
	if !s.signer.Verify(fields) {
		return nil, ErrInvalidSignature
	}
	out := &NotificationOutcome{PaymentStatus: fields["payment_status"]}
	if out.PaymentStatus != PaymentStatusComplete {
		return out, nil
	}
	sessionID, err := uuid.Parse(strings.TrimSpace(fields["custom_str1"]))
	if err != nil {
		return nil, ErrInvalidSessionKey
	}
	out.SessionID = sessionID.String()
	out.PaymentReference = fields["pf_payment_id"]

	a, err := s.assessments.GetAssessmentBySession(out.SessionID)
	if err != nil {
		return nil, err
	}
	out.AssessmentID = a.ID
	state, err := s.assessments.MarkPaid(a.ID, out.PaymentReference)
	if err != nil {
		return nil, err
	}
	out.Applied = true
	out.State = state
	return out, nil
}

// FormatAmount renders a price with exactly two decimals, as the gateway expects.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
