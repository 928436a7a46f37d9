package claim

import (
	"time"

	"github.com/shopspring/decimal"
)

// Claim represents an insurance claim tracked by the hub.
type Claim struct {
	ID              string          `json:"id"`
	OrgID           string          `json:"orgId"`
	PatientID       string          `json:"patientId"`
	ProviderID      string          `json:"providerId"`
	InsurerID       string          `json:"insurerId"`
	Amount          decimal.Decimal `json:"amount"`
	Status          Status          `json:"status"`
	Rail            string          `json:"rail,omitempty"`
	ExternalID      string          `json:"externalId,omitempty"`
	ReferenceNumber string          `json:"referenceNumber,omitempty"`
	Codes           []ServiceCode   `json:"codes,omitempty"`
	Diagnosis       []string        `json:"diagnosis,omitempty"`
	Version         int             `json:"version"`
	SubmittedAt     *time.Time      `json:"submittedAt,omitempty"`
	LastSyncAt      *time.Time      `json:"lastSyncAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// ServiceCode is one billed line item on a claim.
type ServiceCode struct {
	Code        string          `json:"code"`
	Description string          `json:"description,omitempty"`
	Fee         decimal.Decimal `json:"fee"`
	Tooth       string          `json:"tooth,omitempty"`
	Surface     string          `json:"surface,omitempty"`
}

// New creates a draft claim.
func New(id, orgID, patientID, providerID, insurerID string, amount decimal.Decimal, now time.Time) *Claim {
	return &Claim{
		ID:         id,
		OrgID:      orgID,
		PatientID:  patientID,
		ProviderID: providerID,
		InsurerID:  insurerID,
		Amount:     amount,
		Status:     StatusDraft,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// MarkSubmitted records a successful handoff to a rail.
func (c *Claim) MarkSubmitted(rail, externalID string, now time.Time) {
	c.Status = StatusSubmitted
	c.Rail = rail
	c.ExternalID = externalID
	c.SubmittedAt = &now
	c.LastSyncAt = &now
	c.UpdatedAt = now
	c.Version++
}

// ApplyStatus records a reconciled status from the rail. Returns false when
// the status machine forbids the transition; the caller keeps the claim
// untouched in that case.
func (c *Claim) ApplyStatus(next Status, now time.Time) bool {
	if next == c.Status {
		c.LastSyncAt = &now
		c.UpdatedAt = now
		c.Version++
		return true
	}
	if !c.Status.CanTransitionTo(next) {
		return false
	}
	c.Status = next
	c.LastSyncAt = &now
	c.UpdatedAt = now
	c.Version++
	return true
}

// SetReferenceNumber records the rail's own reference for the claim.
func (c *Claim) SetReferenceNumber(ref string, now time.Time) {
	c.ReferenceNumber = ref
	c.UpdatedAt = now
	c.Version++
}

// IsTerminal returns true if the claim reached a terminal status.
func (c *Claim) IsTerminal() bool {
	return c.Status.IsTerminal()
}

// IsInFlight returns true if a submission is outstanding on some rail.
func (c *Claim) IsInFlight() bool {
	return c.Status.IsInFlight()
}

// Patient holds the subscriber details a rail payload needs.
type Patient struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"orgId"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	DateOfBirth time.Time `json:"dateOfBirth,omitempty"`
	Gender      string    `json:"gender,omitempty"`
	MemberID    string    `json:"memberId,omitempty"`
	GroupNumber string    `json:"groupNumber,omitempty"`
}

// Provider holds the treating provider details a rail payload needs.
type Provider struct {
	ID            string `json:"id"`
	OrgID         string `json:"orgId"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	LicenseNumber string `json:"licenseNumber,omitempty"`
	NPI           string `json:"npi,omitempty"`
	Specialty     string `json:"specialty,omitempty"`
}

// Remittance records payment information reconciled from a rail.
type Remittance struct {
	ID              string          `json:"id"`
	ClaimID         string          `json:"claimId"`
	Rail            string          `json:"rail"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentDate     time.Time       `json:"paymentDate"`
	ReferenceNumber string          `json:"referenceNumber,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}
