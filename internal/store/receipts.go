package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Receipt is one journal row describing a note committed to the ledger.
// The journal is an audit trail; it is never consulted for skip decisions.
type Receipt struct {
	RecordID    string
	GroupID     string
	NoteID      string
	TxHash      string
	URI         string
	RunID       string
	PublishedAt time.Time
}

func (d *DB) AppendReceipt(ctx context.Context, r Receipt) error {
	publishedAt := r.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = d.now()
	}

	_, err := sq.Insert("receipts").
		Columns("record_id", "group_id", "note_id", "tx_hash", "uri", "run_id", "published_at").
		Values(r.RecordID, r.GroupID, r.NoteID, r.TxHash, r.URI, r.RunID, publishedAt.UnixMilli()).
		RunWith(d.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("append receipt %s: %w", r.RecordID, err)
	}
	return nil
}

// RecentReceipts returns up to limit receipts, newest first.
func (d *DB) RecentReceipts(ctx context.Context, limit int) ([]Receipt, error) {
	q := sq.Select("record_id", "group_id", "note_id", "tx_hash", "uri", "run_id", "published_at").
		From("receipts").
		OrderBy("published_at DESC", "rowid DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	rows, err := q.RunWith(d.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}
	defer rows.Close()

	var receipts []Receipt
	for rows.Next() {
		var r Receipt
		var ms int64
		if err := rows.Scan(&r.RecordID, &r.GroupID, &r.NoteID, &r.TxHash, &r.URI, &r.RunID, &ms); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		r.PublishedAt = time.UnixMilli(ms)
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

func (d *DB) ReceiptCount(ctx context.Context) (int, error) {
	var n int
	err := sq.Select("COUNT(*)").
		From("receipts").
		RunWith(d.db).
		QueryRowContext(ctx).
		Scan(&n)
	return n, err
}
