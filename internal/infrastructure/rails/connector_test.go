package rails

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/claim"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/simulator"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/shared"
)

type fakeClaimReader struct {
	claims map[string]*claim.Claim
}

func (f *fakeClaimReader) GetClaim(_ context.Context, id string) (*claim.Claim, error) {
	c, ok := f.claims[id]
	if !ok {
		return nil, claim.ErrNotFound
	}
	return c, nil
}

func noSleep(context.Context) error { return nil }

func sandboxDeps(reader *fakeClaimReader) Deps {
	clock := shared.NewManualClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return Deps{
		Config: &connector.Config{OrgID: "org-1", Rail: connector.RailCDAnet, Enabled: true, Mode: connector.ModeSandbox},
		Sim:    simulator.New(clock),
		Claims: reader,
		Clock:  clock,
		Sleep:  noSleep,
	}
}

func TestValidateIdempotent(t *testing.T) {
	conn := NewCDAnet(sandboxDeps(&fakeClaimReader{}))
	b := fullBundle("125.00")

	for i := 0; i < 3; i++ {
		if err := conn.Validate(context.Background(), b); err != nil {
			t.Fatalf("run %d: valid bundle rejected: %v", i, err)
		}
	}

	b.Provider.LicenseNumber = ""
	var firstErr error
	for i := 0; i < 3; i++ {
		err := conn.Validate(context.Background(), b)
		if err == nil {
			t.Fatalf("run %d: invalid bundle accepted", i)
		}
		if firstErr == nil {
			firstErr = err
		} else if err.Error() != firstErr.Error() {
			t.Errorf("run %d: verdict changed: %v vs %v", i, err, firstErr)
		}
	}
}

func TestValidateRailRules(t *testing.T) {
	ctx := context.Background()

	t.Run("cdanet requires license and dob", func(t *testing.T) {
		conn := NewCDAnet(sandboxDeps(&fakeClaimReader{}))

		b := fullBundle("125.00")
		b.Provider.LicenseNumber = ""
		var ve *connector.ValidationError
		if err := conn.Validate(ctx, b); !errors.As(err, &ve) || ve.Field != "provider.licenseNumber" {
			t.Errorf("expected license validation error, got %v", err)
		}

		b = fullBundle("125.00")
		b.Patient.DateOfBirth = time.Time{}
		if err := conn.Validate(ctx, b); !errors.As(err, &ve) || ve.Field != "patient.dateOfBirth" {
			t.Errorf("expected dob validation error, got %v", err)
		}
	})

	t.Run("eclaims requires member id", func(t *testing.T) {
		conn := NewEClaims(sandboxDeps(&fakeClaimReader{}))

		b := fullBundle("125.00")
		b.Patient.MemberID = ""
		var ve *connector.ValidationError
		if err := conn.Validate(ctx, b); !errors.As(err, &ve) || ve.Field != "patient.memberId" {
			t.Errorf("expected member id validation error, got %v", err)
		}
	})

	t.Run("portal accepts minimal bundle", func(t *testing.T) {
		conn := NewPortal(sandboxDeps(&fakeClaimReader{}))

		b := fullBundle("125.00")
		b.Provider.LicenseNumber = ""
		b.Patient.MemberID = ""
		b.Patient.DateOfBirth = time.Time{}
		if err := conn.Validate(ctx, b); err != nil {
			t.Errorf("portal should accept minimal bundle: %v", err)
		}
	})

	t.Run("common rules apply everywhere", func(t *testing.T) {
		for _, conn := range []connector.Connector{
			NewCDAnet(sandboxDeps(&fakeClaimReader{})),
			NewEClaims(sandboxDeps(&fakeClaimReader{})),
			NewPortal(sandboxDeps(&fakeClaimReader{})),
		} {
			b := fullBundle("-5.00")
			var ve *connector.ValidationError
			if err := conn.Validate(ctx, b); !errors.As(err, &ve) || ve.Field != "amount" {
				t.Errorf("rail %s: expected amount validation error, got %v", conn.Rail(), err)
			}
		}
	})
}

func TestSubmitThenPollIsConsistent(t *testing.T) {
	reader := &fakeClaimReader{claims: map[string]*claim.Claim{}}
	conn := NewCDAnet(sandboxDeps(reader))

	b := fullBundle("125.00")
	reader.claims[b.Claim.ID] = b.Claim

	res, err := conn.Submit(context.Background(), b)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.ExternalID == "" {
		t.Fatal("submit should return an external id")
	}
	if res.Status != connector.RailStatusPaid {
		t.Errorf("125.00 should adjudicate paid, got %s", res.Status)
	}

	// Polling immediately with the returned id never fails to find the claim.
	poll, err := conn.PollStatus(context.Background(), res.ExternalID)
	if err != nil {
		t.Fatalf("poll right after submit: %v", err)
	}
	if poll.Status != connector.RailStatusPaid {
		t.Errorf("poll status = %s, want paid", poll.Status)
	}
	if poll.Payment == nil || poll.Payment.Amount != "125.00" {
		t.Error("paid poll should carry the original amount")
	}
}

func TestSubmitOutcomesAcrossRails(t *testing.T) {
	tests := []struct {
		amount string
		want   connector.RailStatus
	}{
		{"125.00", connector.RailStatusPaid},
		{"87.13", connector.RailStatusInfoRequested},
		{"149.99", connector.RailStatusDenied},
		{"55.55", connector.RailStatusPending},
	}

	build := []func(Deps) connector.Connector{
		func(d Deps) connector.Connector { return NewCDAnet(d) },
		func(d Deps) connector.Connector { return NewEClaims(d) },
		func(d Deps) connector.Connector { return NewPortal(d) },
	}

	for _, mk := range build {
		for _, tt := range tests {
			reader := &fakeClaimReader{claims: map[string]*claim.Claim{}}
			conn := mk(sandboxDeps(reader))

			b := fullBundle(tt.amount)
			reader.claims[b.Claim.ID] = b.Claim

			res, err := conn.Submit(context.Background(), b)
			if err != nil {
				t.Fatalf("rail %s amount %s: %v", conn.Rail(), tt.amount, err)
			}
			if res.Status != tt.want {
				t.Errorf("rail %s amount %s: got %s, want %s", conn.Rail(), tt.amount, res.Status, tt.want)
			}
		}
	}
}

func TestLiveModeFailsLoudly(t *testing.T) {
	d := sandboxDeps(&fakeClaimReader{})
	d.Config = &connector.Config{OrgID: "org-1", Rail: connector.RailCDAnet, Enabled: true, Mode: connector.ModeLive}
	conn := NewCDAnet(d)

	b := fullBundle("125.00")

	if _, err := conn.Submit(context.Background(), b); !errors.Is(err, connector.ErrNotImplemented) {
		t.Errorf("live submit should return ErrNotImplemented, got %v", err)
	}

	id := ExternalID(connector.RailCDAnet, b.Claim.ID)
	if _, err := conn.PollStatus(context.Background(), id); !errors.Is(err, connector.ErrNotImplemented) {
		t.Errorf("live poll should return ErrNotImplemented, got %v", err)
	}

	// Validation stays available in live mode: it is pure.
	if err := conn.Validate(context.Background(), b); err != nil {
		t.Errorf("live validate should work: %v", err)
	}
}

func TestPollStatusRejectsForeignID(t *testing.T) {
	conn := NewEClaims(sandboxDeps(&fakeClaimReader{}))

	foreign := ExternalID(connector.RailCDAnet, "claim-1")
	if _, err := conn.PollStatus(context.Background(), foreign); !errors.Is(err, connector.ErrForeignExternalID) {
		t.Errorf("expected ErrForeignExternalID, got %v", err)
	}
}

func TestPollStatusUnknownClaim(t *testing.T) {
	conn := NewPortal(sandboxDeps(&fakeClaimReader{claims: map[string]*claim.Claim{}}))

	id := ExternalID(connector.RailPortal, "missing-claim")
	if _, err := conn.PollStatus(context.Background(), id); !errors.Is(err, claim.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSubmitCancelledContext(t *testing.T) {
	d := sandboxDeps(&fakeClaimReader{})
	d.Sleep = carrierLatency

	conn := NewCDAnet(d)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := conn.Submit(ctx, fullBundle("125.00"))
	var ne *connector.NetworkError
	if !errors.As(err, &ne) {
		t.Errorf("cancelled submit should report a network error, got %v", err)
	}
}
