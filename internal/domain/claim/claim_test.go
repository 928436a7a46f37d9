package claim

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFractionalCents(t *testing.T) {
	tests := []struct {
		amount string
		want   int
	}{
		{"125.00", 0},
		{"87.13", 13},
		{"149.99", 99},
		{"0.99", 99},
		{"1000.00", 0},
		{"55.50", 50},
		{"42", 0},
		{"19.01", 1},
	}

	for _, tt := range tests {
		d, err := ParseAmount(tt.amount)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", tt.amount, err)
		}
		if got := FractionalCents(d); got != tt.want {
			t.Errorf("FractionalCents(%s) = %d, want %d", tt.amount, got, tt.want)
		}
	}
}

func TestParseAmountRejectsGarbage(t *testing.T) {
	if _, err := ParseAmount("not-money"); err == nil {
		t.Error("expected error for non-numeric amount")
	}
}

func TestFormatAmount(t *testing.T) {
	d, _ := ParseAmount("125")
	if got := FormatAmount(d); got != "125.00" {
		t.Errorf("FormatAmount(125) = %q, want %q", got, "125.00")
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusDraft, StatusSubmitted, true},
		{StatusDraft, StatusPaid, false},
		{StatusSubmitted, StatusPending, true},
		{StatusSubmitted, StatusPaid, true},
		{StatusSubmitted, StatusDenied, true},
		{StatusPending, StatusInfoRequested, true},
		{StatusInfoRequested, StatusApproved, true},
		{StatusApproved, StatusPaid, true},
		{StatusApproved, StatusPending, false},
		{StatusPaid, StatusDenied, false},
		{StatusDenied, StatusSubmitted, false},
		{StatusPending, StatusError, true},
		{StatusError, StatusSubmitted, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusPaid, StatusDenied, StatusError} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusDraft, StatusSubmitted, StatusPending, StatusInfoRequested, StatusApproved} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestMarkSubmittedBumpsVersion(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := New("c-1", "org-1", "p-1", "pr-1", "ins-1", decimal.RequireFromString("125.00"), now)

	if c.Version != 1 {
		t.Fatalf("expected version 1, got %d", c.Version)
	}
	if c.Status != StatusDraft {
		t.Fatalf("expected draft status, got %s", c.Status)
	}

	c.MarkSubmitted("cdanet", "CDN-c-1-abc123", now)

	if c.Status != StatusSubmitted {
		t.Errorf("expected submitted, got %s", c.Status)
	}
	if c.Version != 2 {
		t.Errorf("expected version 2, got %d", c.Version)
	}
	if c.ExternalID != "CDN-c-1-abc123" {
		t.Errorf("external id not recorded: %q", c.ExternalID)
	}
	if c.SubmittedAt == nil || !c.SubmittedAt.Equal(now) {
		t.Error("submittedAt not recorded")
	}
}

func TestApplyStatusRejectsIllegalMove(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := New("c-1", "org-1", "p-1", "pr-1", "ins-1", decimal.RequireFromString("87.13"), now)
	c.MarkSubmitted("eclaims", "ECL-c-1-abc123", now)
	versionBefore := c.Version

	if ok := c.ApplyStatus(StatusPaid, now.Add(time.Minute)); !ok {
		t.Fatal("submitted -> paid should be allowed")
	}
	if c.Version != versionBefore+1 {
		t.Errorf("expected version bump to %d, got %d", versionBefore+1, c.Version)
	}

	// Terminal claims never move again.
	if ok := c.ApplyStatus(StatusPending, now.Add(2*time.Minute)); ok {
		t.Error("paid -> pending should be rejected")
	}
	if c.Status != StatusPaid {
		t.Errorf("status should stay paid, got %s", c.Status)
	}
}

func TestApplyStatusSameStatusRefreshesSync(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := New("c-1", "org-1", "p-1", "pr-1", "ins-1", decimal.RequireFromString("55.55"), now)
	c.MarkSubmitted("cdanet", "CDN-c-1-abc123", now)

	later := now.Add(10 * time.Minute)
	if ok := c.ApplyStatus(StatusSubmitted, later); !ok {
		t.Fatal("re-observing the same status should succeed")
	}
	if c.LastSyncAt == nil || !c.LastSyncAt.Equal(later) {
		t.Error("lastSyncAt should advance on re-observation")
	}
}
