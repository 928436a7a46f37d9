// Package simulator provides the deterministic carrier simulator used in
// sandbox mode. Real insurer networks are unreachable from development and
// test environments, so every rail adjudicates against this simulator
// instead; the outcome is a pure function of the claim amount.
package simulator

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/claim"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/shared"
)

// Trigger digits: the final two fractional-cent digits of the claim amount
// select the outcome. Identical across rails so a tester can steer any rail
// with the amount alone; only the detail payload is rail-specific.
const (
	digitsPaid          = 0  // .00
	digitsInfoRequested = 13 // .13
	digitsDenied        = 99 // .99
)

// Outcome is one simulated adjudication result.
type Outcome struct {
	Status  connector.RailStatus
	Message string
	Detail  json.RawMessage
	Payment *connector.PaymentInfo
}

// Simulator produces deterministic adjudication outcomes.
type Simulator struct {
	clock shared.Clock
}

// New creates a simulator on the given clock.
func New(clock shared.Clock) *Simulator {
	return &Simulator{clock: clock}
}

// Adjudicate returns the simulated outcome for the claim on the given rail.
// Pure apart from reading the clock: same claim, same digits, same outcome.
func (s *Simulator) Adjudicate(rail connector.Rail, c *claim.Claim) *Outcome {
	now := s.clock.Now()

	switch claim.FractionalCents(c.Amount) {
	case digitsPaid:
		return s.paid(c, now)
	case digitsInfoRequested:
		return s.infoRequested(rail, now)
	case digitsDenied:
		return s.denied(rail)
	default:
		return s.pending(rail)
	}
}

type paidDetail struct {
	PaidAmount      string `json:"paidAmount"`
	PaymentDate     string `json:"paymentDate"`
	ReferenceNumber string `json:"referenceNumber"`
}

func (s *Simulator) paid(c *claim.Claim, now time.Time) *Outcome {
	paymentDate := now.AddDate(0, 0, 2)
	ref := ReferenceNumber(c.ID)

	detail, _ := json.Marshal(paidDetail{
		PaidAmount:      claim.FormatAmount(c.Amount),
		PaymentDate:     paymentDate.Format("2006-01-02"),
		ReferenceNumber: ref,
	})

	return &Outcome{
		Status:  connector.RailStatusPaid,
		Message: "claim paid in full",
		Detail:  detail,
		Payment: &connector.PaymentInfo{
			Amount:          claim.FormatAmount(c.Amount),
			PaymentDate:     paymentDate,
			ReferenceNumber: ref,
		},
	}
}

type infoRequestDetail struct {
	RequiredInfo []string `json:"requiredInfo"`
	DueDate      string   `json:"dueDate"`
}

func (s *Simulator) infoRequested(rail connector.Rail, now time.Time) *Outcome {
	var required []string
	days := 14
	switch rail {
	case connector.RailCDAnet:
		required = []string{"pre-treatment radiograph", "periodontal chart"}
	case connector.RailEClaims:
		required = []string{"coordination of benefits statement"}
		days = 10
	case connector.RailPortal:
		required = []string{"itemized treatment record"}
	}

	detail, _ := json.Marshal(infoRequestDetail{
		RequiredInfo: required,
		DueDate:      now.AddDate(0, 0, days).Format("2006-01-02"),
	})

	return &Outcome{
		Status:  connector.RailStatusInfoRequested,
		Message: "additional information requested",
		Detail:  detail,
	}
}

type deniedDetail struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

func (s *Simulator) denied(rail connector.Rail) *Outcome {
	var code, reason string
	switch rail {
	case connector.RailCDAnet:
		code, reason = "CD-99", "fee exceeds plan maximum"
	case connector.RailEClaims:
		code, reason = "E-DUP", "duplicate or ineligible service"
	case connector.RailPortal:
		code, reason = "PRT-REJ", "rejected during manual review"
	}

	detail, _ := json.Marshal(deniedDetail{Code: code, Reason: reason})

	return &Outcome{
		Status:  connector.RailStatusDenied,
		Message: reason,
		Detail:  detail,
	}
}

type pendingDetail struct {
	EstimatedDays int `json:"estimatedDays"`
}

func (s *Simulator) pending(rail connector.Rail) *Outcome {
	days := 7
	switch rail {
	case connector.RailCDAnet:
		days = 3
	case connector.RailEClaims:
		days = 2
	case connector.RailPortal:
		days = 7
	}

	detail, _ := json.Marshal(pendingDetail{EstimatedDays: days})

	return &Outcome{
		Status:  connector.RailStatusPending,
		Message: "claim is in the adjudication queue",
		Detail:  detail,
	}
}

// ReferenceNumber derives the carrier's payment reference from the claim
// id. Deterministic so repeated adjudications of the same claim agree.
func ReferenceNumber(claimID string) string {
	compact := strings.ReplaceAll(claimID, "-", "")
	if len(compact) > 10 {
		compact = compact[:10]
	}
	return "RA-" + strings.ToUpper(compact)
}
