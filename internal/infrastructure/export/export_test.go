package export

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/claim"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/store"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/shared"
)

func readRows[T any](t *testing.T, path string) []T {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open parquet: %v", err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[T](f)
	defer reader.Close()

	rows := make([]T, reader.NumRows())
	if len(rows) == 0 {
		return nil
	}
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		t.Fatalf("read parquet: %v", err)
	}
	return rows[:n]
}

func TestExportRemittances(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	base := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	amountA, err := claim.ParseAmount("125.00")
	if err != nil {
		t.Fatalf("parse amount: %v", err)
	}
	amountB, err := claim.ParseAmount("87.13")
	if err != nil {
		t.Fatalf("parse amount: %v", err)
	}

	remits := []*claim.Remittance{
		{
			ID:              "rem-1",
			ClaimID:         "claim-a",
			Rail:            "cdanet",
			Amount:          amountA,
			PaymentDate:     base.AddDate(0, 0, 2),
			ReferenceNumber: "RA-CLAIMA1234",
			CreatedAt:       base,
		},
		{
			ID:          "rem-2",
			ClaimID:     "claim-b",
			Rail:        "eclaims",
			Amount:      amountB,
			PaymentDate: base.AddDate(0, 0, 3),
			CreatedAt:   base.Add(time.Minute),
		},
	}
	for _, r := range remits {
		if err := s.AppendRemittance(ctx, r); err != nil {
			t.Fatalf("append remittance: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "remittances.parquet")
	n, err := Remittances(ctx, s, path)
	if err != nil {
		t.Fatalf("export remittances: %v", err)
	}
	if n != 2 {
		t.Fatalf("exported %d rows, want 2", n)
	}

	rows := readRows[RemittanceRow](t, path)
	if len(rows) != 2 {
		t.Fatalf("read %d rows, want 2", len(rows))
	}
	if rows[0].ID != "rem-1" || rows[1].ID != "rem-2" {
		t.Fatalf("rows out of order: %q, %q", rows[0].ID, rows[1].ID)
	}
	if rows[0].Amount != "125" && rows[0].Amount != "125.00" {
		t.Fatalf("amount = %q", rows[0].Amount)
	}
	if rows[1].Amount != "87.13" {
		t.Fatalf("amount = %q, want 87.13", rows[1].Amount)
	}
	if rows[0].PaymentDate != "2026-05-06" {
		t.Fatalf("payment date = %q, want 2026-05-06", rows[0].PaymentDate)
	}
	if rows[0].ReferenceNumber != "RA-CLAIMA1234" {
		t.Fatalf("reference = %q", rows[0].ReferenceNumber)
	}
	if rows[1].ReferenceNumber != "" {
		t.Fatalf("reference = %q, want empty", rows[1].ReferenceNumber)
	}
}

func TestExportEvents(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	base := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	detail, err := json.Marshal(map[string]string{"referenceNumber": "RA-CLAIMA1234"})
	if err != nil {
		t.Fatalf("marshal detail: %v", err)
	}

	events := []*connector.Event{
		{
			ID:        shared.NewEventID(base),
			ClaimID:   "claim-a",
			Rail:      connector.RailCDAnet,
			Kind:      connector.EventKindSubmit,
			Status:    connector.RailStatusProcessing,
			Message:   "submitted to carrier",
			CreatedAt: base,
		},
		{
			ID:        shared.NewEventID(base.Add(time.Minute)),
			ClaimID:   "claim-a",
			Rail:      connector.RailCDAnet,
			Kind:      connector.EventKindPoll,
			Status:    connector.RailStatusPaid,
			Detail:    detail,
			CreatedAt: base.Add(time.Minute),
		},
	}
	for _, e := range events {
		if err := s.AppendEvent(ctx, e); err != nil {
			t.Fatalf("append event: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "events.parquet")
	n, err := Events(ctx, s, path)
	if err != nil {
		t.Fatalf("export events: %v", err)
	}
	if n != 2 {
		t.Fatalf("exported %d rows, want 2", n)
	}

	rows := readRows[EventRow](t, path)
	if len(rows) != 2 {
		t.Fatalf("read %d rows, want 2", len(rows))
	}
	if rows[0].Kind != "submit" || rows[1].Kind != "poll" {
		t.Fatalf("kinds = %q, %q", rows[0].Kind, rows[1].Kind)
	}
	if rows[1].Status != "paid" {
		t.Fatalf("status = %q, want paid", rows[1].Status)
	}
	if rows[0].Detail != "" {
		t.Fatalf("detail = %q, want empty", rows[0].Detail)
	}

	var decoded map[string]string
	if err := json.Unmarshal([]byte(rows[1].Detail), &decoded); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if decoded["referenceNumber"] != "RA-CLAIMA1234" {
		t.Fatalf("reference = %q", decoded["referenceNumber"])
	}
	if rows[0].CreatedAt != base.Format(time.RFC3339Nano) {
		t.Fatalf("created at = %q, want %q", rows[0].CreatedAt, base.Format(time.RFC3339Nano))
	}
}

func TestExportEmptyStoreWritesValidFile(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	path := filepath.Join(t.TempDir(), "empty.parquet")
	n, err := Remittances(ctx, s, path)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if n != 0 {
		t.Fatalf("exported %d rows, want 0", n)
	}

	rows := readRows[RemittanceRow](t, path)
	if len(rows) != 0 {
		t.Fatalf("read %d rows from empty export", len(rows))
	}
}
