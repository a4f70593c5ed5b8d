package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"receiptledger/internal/indexer/models"
	ledger "receiptledger/internal/ledger/models"
	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
	"receiptledger/pkg/platform/sentinel"
	txcontext "receiptledger/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// Postgres stores views in the indexer_* tables. Commit locks the checkpoint
// row so concurrent consumers cannot apply the same sequence twice.
type Postgres struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, timeout: defaultTxTimeout}
}

func (p *Postgres) Checkpoint(ctx context.Context) (uint64, error) {
	var seq int64
	err := p.db.QueryRowContext(ctx, `SELECT last_sequence FROM indexer_checkpoint WHERE id = 1`).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read checkpoint: %w", err)
	}
	return uint64(seq), nil
}

const receiptViewColumns = `id, issuer, recipient, vendor_name, description, amount::TEXT, document_ref,
	transaction_date, requested_at, deadline, status, origin, rejection_reason, dispute_reason,
	last_actor, last_event_id, last_sequence, updated_at`

func (p *Postgres) Receipt(ctx context.Context, id domain.ReceiptID) (*models.ReceiptView, error) {
	row := txcontext.ExecutorFrom(ctx, p.db).QueryRowContext(ctx,
		`SELECT `+receiptViewColumns+` FROM indexer_receipts WHERE id = $1`, int64(id))
	v, err := scanReceiptView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return v, err
}

func (p *Postgres) Business(ctx context.Context, owner domain.Account) (*models.BusinessView, error) {
	var (
		v    models.BusinessView
		seq  int64
		addr string
	)
	err := txcontext.ExecutorFrom(ctx, p.db).QueryRowContext(ctx, `
		SELECT owner, name, description, is_active, is_verified, registered_at, last_sequence, updated_at
		FROM indexer_businesses WHERE owner = $1
	`, owner.Key()).Scan(&addr, &v.Name, &v.Description, &v.IsActive, &v.IsVerified, &v.RegisteredAt, &seq, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read business view: %w", err)
	}
	if v.Owner, err = domain.ParseAccount(addr); err != nil {
		return nil, fmt.Errorf("decode owner: %w", err)
	}
	v.LastSequence = uint64(seq)
	return &v, nil
}

// Commit applies c and advances the checkpoint in one transaction.
func (p *Postgres) Commit(ctx context.Context, c *models.Changes) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin indexer tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO indexer_checkpoint (id, last_sequence, updated_at) VALUES (1, 0, now())
		ON CONFLICT (id) DO NOTHING
	`); err != nil {
		return fmt.Errorf("init checkpoint: %w", err)
	}
	var current int64
	if err := tx.QueryRowContext(ctx, `SELECT last_sequence FROM indexer_checkpoint WHERE id = 1 FOR UPDATE`).Scan(&current); err != nil {
		return fmt.Errorf("lock checkpoint: %w", err)
	}
	switch {
	case c.Sequence <= uint64(current):
		return sentinel.ErrAlreadyUsed
	case c.Sequence != uint64(current)+1:
		return sentinel.ErrOutOfOrder
	}

	if r := c.Receipt; r != nil {
		if err := upsertReceipt(ctx, tx, r); err != nil {
			return err
		}
	}
	if b := c.Business; b != nil {
		if err := upsertBusiness(ctx, tx, b); err != nil {
			return err
		}
	}
	if a := c.Activity; a != nil {
		if err := insertActivity(ctx, tx, a); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE indexer_checkpoint SET last_sequence = $1, updated_at = now() WHERE id = 1
	`, int64(c.Sequence)); err != nil {
		return fmt.Errorf("advance checkpoint: %w", err)
	}
	if err := tx.Commit(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "indexer transaction timed out")
		}
		return fmt.Errorf("commit indexer tx: %w", err)
	}
	return nil
}

func upsertReceipt(ctx context.Context, tx *sql.Tx, r *models.ReceiptView) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO indexer_receipts (`+receiptViewColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			rejection_reason = EXCLUDED.rejection_reason,
			dispute_reason = EXCLUDED.dispute_reason,
			last_actor = EXCLUDED.last_actor,
			last_event_id = EXCLUDED.last_event_id,
			last_sequence = EXCLUDED.last_sequence,
			updated_at = EXCLUDED.updated_at
		WHERE indexer_receipts.last_sequence < EXCLUDED.last_sequence
	`,
		int64(r.ID), r.Issuer.Key(), r.Recipient.Key(), r.VendorName, r.Description, r.Amount.String(), r.DocumentRef,
		r.TransactionDate, r.RequestedAt, r.Deadline, int16(r.Status), string(r.Origin), r.RejectionReason, r.DisputeReason,
		r.LastActor.Key(), r.LastEventID, int64(r.LastSequence), r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert receipt view: %w", err)
	}
	return nil
}

func upsertBusiness(ctx context.Context, tx *sql.Tx, b *models.BusinessView) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO indexer_businesses (owner, name, description, is_active, is_verified, registered_at, last_sequence, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (owner) DO UPDATE SET
			is_active = EXCLUDED.is_active,
			is_verified = EXCLUDED.is_verified,
			last_sequence = EXCLUDED.last_sequence,
			updated_at = EXCLUDED.updated_at
		WHERE indexer_businesses.last_sequence < EXCLUDED.last_sequence
	`, b.Owner.Key(), b.Name, b.Description, b.IsActive, b.IsVerified, b.RegisteredAt, int64(b.LastSequence), b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert business view: %w", err)
	}
	return nil
}

func insertActivity(ctx context.Context, tx *sql.Tx, a *models.Activity) error {
	var receiptID sql.NullInt64
	if !a.ReceiptID.IsNil() {
		receiptID = sql.NullInt64{Int64: int64(a.ReceiptID), Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO indexer_activity (event_id, sequence, kind, receipt_id, business, actor, counterparty, reason, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING
	`, a.EventID, int64(a.Sequence), string(a.Kind), receiptID, accountKey(a.Business), a.Actor.Key(),
		accountKey(a.Counterparty), a.Reason, a.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// ReceiptsByParty lists views where account is the given party, in id order.
func (p *Postgres) ReceiptsByParty(ctx context.Context, party ledger.Party, account domain.Account) ([]*models.ReceiptView, error) {
	var column string
	switch party {
	case ledger.PartyRecipient:
		column = "recipient"
	case ledger.PartyIssuer:
		column = "issuer"
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown party")
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT `+receiptViewColumns+` FROM indexer_receipts WHERE `+column+` = $1 ORDER BY id`, account.Key())
	if err != nil {
		return nil, fmt.Errorf("query receipt views: %w", err)
	}
	defer rows.Close()

	out := []*models.ReceiptView{}
	for rows.Next() {
		v, err := scanReceiptView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipt views: %w", err)
	}
	return out, nil
}

// ReceiptActivity lists the events indexed for a receipt, in sequence order.
func (p *Postgres) ReceiptActivity(ctx context.Context, id domain.ReceiptID) ([]*models.Activity, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT event_id, sequence, kind, business, actor, counterparty, reason, occurred_at
		FROM indexer_activity WHERE receipt_id = $1 ORDER BY sequence
	`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	out := []*models.Activity{}
	for rows.Next() {
		var (
			a                            models.Activity
			seq                          int64
			kind                         string
			business, actor, counterpart string
		)
		if err := rows.Scan(&a.EventID, &seq, &kind, &business, &actor, &counterpart, &a.Reason, &a.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.ReceiptID = id
		a.Sequence = uint64(seq)
		a.Kind = ledger.EventKind(kind)
		a.Business = optionalAccount(business)
		a.Actor = optionalAccount(actor)
		a.Counterparty = optionalAccount(counterpart)
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceiptView(row rowScanner) (*models.ReceiptView, error) {
	var (
		v                            models.ReceiptView
		id, seq                      int64
		issuer, recipient, lastActor string
		amount, origin               string
		status                       int16
		lastEventID                  uuid.UUID
	)
	err := row.Scan(&id, &issuer, &recipient, &v.VendorName, &v.Description, &amount, &v.DocumentRef,
		&v.TransactionDate, &v.RequestedAt, &v.Deadline, &status, &origin, &v.RejectionReason, &v.DisputeReason,
		&lastActor, &lastEventID, &seq, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan receipt view: %w", err)
	}
	v.ID = domain.ReceiptID(id)
	v.Status = ledger.Status(status)
	v.Origin = ledger.Origin(origin)
	v.LastEventID = lastEventID
	v.LastSequence = uint64(seq)
	v.LastActor = optionalAccount(lastActor)
	if v.Issuer, err = domain.ParseAccount(issuer); err != nil {
		return nil, fmt.Errorf("decode issuer: %w", err)
	}
	if v.Recipient, err = domain.ParseAccount(recipient); err != nil {
		return nil, fmt.Errorf("decode recipient: %w", err)
	}
	if v.Amount, err = domain.ParseAmount(amount); err != nil {
		return nil, fmt.Errorf("decode amount: %w", err)
	}
	return &v, nil
}

func accountKey(a domain.Account) string {
	if a.IsZero() {
		return ""
	}
	return a.Key()
}

func optionalAccount(s string) domain.Account {
	a, err := domain.ParseAccount(s)
	if err != nil {
		return domain.Account{}
	}
	return a
}
