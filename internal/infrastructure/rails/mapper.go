// Package rails implements the adjudication rail connectors and the
// payload mapping they share.
package rails

import (
	"encoding/json"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/claim"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
)

// Payload is the rail-neutral submission document. Field order is fixed,
// dates are YYYYMMDD and amounts carry exactly two decimals, so encoding
// the same bundle twice yields identical bytes.
type Payload struct {
	Rail           string     `json:"rail"`
	ClaimReference string     `json:"claimReference"`
	OfficeSequence string     `json:"officeSequence,omitempty"`
	InsurerID      string     `json:"insurerId"`
	Subscriber     Subscriber `json:"subscriber"`
	Provider       Treating   `json:"provider"`
	TotalFee       string     `json:"totalFee"`
	LineItems      []LineItem `json:"lineItems"`
	Diagnosis      []string   `json:"diagnosis,omitempty"`
}

// Subscriber is the patient block of a payload.
type Subscriber struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	Gender      string `json:"gender"`
	MemberID    string `json:"memberId,omitempty"`
	GroupNumber string `json:"groupNumber,omitempty"`
}

// Treating is the provider block of a payload.
type Treating struct {
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	LicenseNumber string `json:"licenseNumber,omitempty"`
	NPI           string `json:"npi,omitempty"`
	Specialty     string `json:"specialty,omitempty"`
}

// LineItem is one billed service line.
type LineItem struct {
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
	Fee         string `json:"fee"`
	Tooth       string `json:"tooth,omitempty"`
	Surface     string `json:"surface,omitempty"`
}

const dateLayout = "20060102"

// BuildPayload maps a bundle onto the rail payload. Pure: absent optionals
// get defaults instead of errors. An empty gender maps to "unspecified", a
// zero date of birth to an empty string, and an empty code list to a single
// synthesized GENERAL line carrying the full claim amount. officeSequence
// comes from the org's connector settings and may be empty.
func BuildPayload(rail connector.Rail, officeSequence string, b connector.Bundle) *Payload {
	p := &Payload{
		Rail:           rail.String(),
		ClaimReference: b.Claim.ID,
		OfficeSequence: officeSequence,
		InsurerID:      b.Claim.InsurerID,
		TotalFee:       claim.FormatAmount(b.Claim.Amount),
		Diagnosis:      append([]string(nil), b.Claim.Diagnosis...),
	}

	if b.Patient != nil {
		p.Subscriber = Subscriber{
			FirstName:   b.Patient.FirstName,
			LastName:    b.Patient.LastName,
			Gender:      b.Patient.Gender,
			MemberID:    b.Patient.MemberID,
			GroupNumber: b.Patient.GroupNumber,
		}
		if !b.Patient.DateOfBirth.IsZero() {
			p.Subscriber.DateOfBirth = b.Patient.DateOfBirth.Format(dateLayout)
		}
	}
	if p.Subscriber.Gender == "" {
		p.Subscriber.Gender = "unspecified"
	}

	if b.Provider != nil {
		p.Provider = Treating{
			FirstName:     b.Provider.FirstName,
			LastName:      b.Provider.LastName,
			LicenseNumber: b.Provider.LicenseNumber,
			NPI:           b.Provider.NPI,
			Specialty:     b.Provider.Specialty,
		}
	}

	for _, code := range b.Claim.Codes {
		p.LineItems = append(p.LineItems, LineItem{
			Code:        code.Code,
			Description: code.Description,
			Fee:         claim.FormatAmount(code.Fee),
			Tooth:       code.Tooth,
			Surface:     code.Surface,
		})
	}
	if len(p.LineItems) == 0 {
		p.LineItems = []LineItem{{
			Code:        "GENERAL",
			Description: "general services",
			Fee:         claim.FormatAmount(b.Claim.Amount),
		}}
	}

	return p
}

// Encode renders the payload as canonical JSON bytes.
func (p *Payload) Encode() ([]byte, error) {
	return json.Marshal(p)
}
