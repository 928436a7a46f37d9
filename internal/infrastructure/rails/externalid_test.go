package rails

import (
	"errors"
	"strings"
	"testing"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
)

func TestExternalIDRoundTrip(t *testing.T) {
	claimID := "11111111-2222-3333-4444-555555555555"

	for _, rail := range connector.Rails() {
		id := ExternalID(rail, claimID)

		got, err := ParseExternalID(rail, id)
		if err != nil {
			t.Errorf("rail %s: parse %q: %v", rail, id, err)
			continue
		}
		if got != claimID {
			t.Errorf("rail %s: recovered %q, want %q", rail, got, claimID)
		}
	}
}

func TestExternalIDDeterministic(t *testing.T) {
	a := ExternalID(connector.RailCDAnet, "claim-1")
	b := ExternalID(connector.RailCDAnet, "claim-1")
	if a != b {
		t.Errorf("ids differ for same claim: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "CDN-claim-1-") {
		t.Errorf("unexpected id shape %q", a)
	}
}

func TestExternalIDDiffersAcrossRails(t *testing.T) {
	cdanet := ExternalID(connector.RailCDAnet, "claim-1")
	eclaims := ExternalID(connector.RailEClaims, "claim-1")
	if cdanet == eclaims {
		t.Error("different rails should mint different ids")
	}
}

func TestParseExternalIDRejectsForeign(t *testing.T) {
	id := ExternalID(connector.RailCDAnet, "claim-1")

	if _, err := ParseExternalID(connector.RailEClaims, id); !errors.Is(err, connector.ErrForeignExternalID) {
		t.Errorf("cdanet id parsed on eclaims: %v", err)
	}
}

func TestParseExternalIDRejectsTampering(t *testing.T) {
	id := ExternalID(connector.RailCDAnet, "claim-1")
	tampered := strings.Replace(id, "claim-1", "claim-2", 1)

	if _, err := ParseExternalID(connector.RailCDAnet, tampered); !errors.Is(err, connector.ErrForeignExternalID) {
		t.Errorf("tampered id should fail digest check: %v", err)
	}

	if _, err := ParseExternalID(connector.RailCDAnet, "CDN-"); !errors.Is(err, connector.ErrForeignExternalID) {
		t.Errorf("truncated id should fail: %v", err)
	}
	if _, err := ParseExternalID(connector.RailCDAnet, "garbage"); !errors.Is(err, connector.ErrForeignExternalID) {
		t.Errorf("garbage should fail: %v", err)
	}
}
