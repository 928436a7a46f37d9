// Package export writes connector audit data to parquet files for
// offline analysis. Remittances and connector events flatten into one
// row type each; amounts stay decimal strings so nothing loses cents on
// the way out.
package export

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/claim"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/store"
)

// RemittanceRow is the flattened parquet schema for a remittance.
type RemittanceRow struct {
	ID              string `parquet:"id"`
	ClaimID         string `parquet:"claim_id"`
	Rail            string `parquet:"rail"`
	Amount          string `parquet:"amount"`
	PaymentDate     string `parquet:"payment_date"`
	ReferenceNumber string `parquet:"reference_number"`
	CreatedAt       string `parquet:"created_at"`
}

// EventRow is the flattened parquet schema for a connector event.
type EventRow struct {
	ID        string `parquet:"id"`
	ClaimID   string `parquet:"claim_id"`
	Rail      string `parquet:"rail"`
	Kind      string `parquet:"kind"`
	Status    string `parquet:"status"`
	Message   string `parquet:"message"`
	Detail    string `parquet:"detail"`
	CreatedAt string `parquet:"created_at"`
}

// Stores is the slice of the store the exporter reads from.
type Stores interface {
	store.EventStore
	store.RemittanceStore
}

// Remittances writes every stored remittance to a parquet file at path
// and returns the row count.
func Remittances(ctx context.Context, s Stores, path string) (int, error) {
	remits, err := s.ListRemittances(ctx)
	if err != nil {
		return 0, fmt.Errorf("list remittances: %w", err)
	}

	rows := make([]RemittanceRow, 0, len(remits))
	for _, r := range remits {
		rows = append(rows, remittanceRow(r))
	}
	return writeRows(path, rows)
}

// Events writes every stored connector event to a parquet file at path
// and returns the row count.
func Events(ctx context.Context, s Stores, path string) (int, error) {
	events, err := s.ListEvents(ctx)
	if err != nil {
		return 0, fmt.Errorf("list events: %w", err)
	}

	rows := make([]EventRow, 0, len(events))
	for _, e := range events {
		rows = append(rows, eventRow(e))
	}
	return writeRows(path, rows)
}

func remittanceRow(r *claim.Remittance) RemittanceRow {
	return RemittanceRow{
		ID:              r.ID,
		ClaimID:         r.ClaimID,
		Rail:            r.Rail,
		Amount:          r.Amount.String(),
		PaymentDate:     r.PaymentDate.UTC().Format(time.DateOnly),
		ReferenceNumber: r.ReferenceNumber,
		CreatedAt:       r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func eventRow(e *connector.Event) EventRow {
	return EventRow{
		ID:        e.ID,
		ClaimID:   e.ClaimID,
		Rail:      string(e.Rail),
		Kind:      string(e.Kind),
		Status:    string(e.Status),
		Message:   e.Message,
		Detail:    string(e.Detail),
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func writeRows[T any](path string, rows []T) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}

	w := parquet.NewGenericWriter[T](f,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.PageBufferSize(8*1024),
		parquet.WriteBufferSize(16*1024*1024),
		parquet.DataPageStatistics(true),
		parquet.CreatedBy("claimshub", "1.0", ""),
	)

	written := 0
	if len(rows) > 0 {
		n, err := w.Write(rows)
		written = n
		if err != nil {
			w.Close()
			f.Close()
			return written, fmt.Errorf("write rows: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		f.Close()
		return written, fmt.Errorf("close writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return written, fmt.Errorf("close %s: %w", path, err)
	}
	return written, nil
}
