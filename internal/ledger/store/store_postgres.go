package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"receiptledger/internal/ledger/models"
	"receiptledger/internal/ledger/ports"
	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
	"receiptledger/pkg/platform/sentinel"
	txcontext "receiptledger/pkg/platform/tx"
)

const (
	defaultTxTimeout = 5 * time.Second

	// ledgerLockKey serializes every ledger write across processes.
	ledgerLockKey = 0x52454345495054

	uniqueViolation = "23505"
)

// Postgres is the durable ledger backend. Writers serialize on a transaction-scoped
// advisory lock; readers never block on it.
type Postgres struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgres wraps an open database. Call Bootstrap once before serving.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, timeout: defaultTxTimeout}
}

// Bootstrap creates the governance record with owner as owner and first
// verifier, unless governance already exists.
func (p *Postgres) Bootstrap(ctx context.Context, owner domain.Account, now time.Time) error {
	return p.RunInTx(ctx, func(ctx context.Context, _ ports.Stores) error {
		exec := txcontext.ExecutorFrom(ctx, p.db)
		res, err := exec.ExecContext(ctx, `
			INSERT INTO ledger_governance (id, owner, updated_at)
			VALUES (1, $1, $2)
			ON CONFLICT (id) DO NOTHING
		`, owner.Key(), now)
		if err != nil {
			return fmt.Errorf("insert governance: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		if _, err := exec.ExecContext(ctx, `
			INSERT INTO ledger_verifiers (account, added_at) VALUES ($1, $2)
			ON CONFLICT (account) DO NOTHING
		`, owner.Key(), now); err != nil {
			return fmt.Errorf("insert owner verifier: %w", err)
		}
		return nil
	})
}

// RunInTx opens a transaction, takes the ledger lock and runs fn. The
// transaction commits only if fn succeeds.
func (p *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context, stores ports.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, ledgerLockKey); err != nil {
		return fmt.Errorf("acquire ledger lock: %w", err)
	}

	if err := fn(txcontext.WithTx(ctx, tx), p.Stores()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "ledger transaction timed out")
		}
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

// Stores returns stores that join the transaction carried by ctx, if any.
func (p *Postgres) Stores() ports.Stores {
	return ports.Stores{
		Businesses: &pgBusinesses{p},
		Receipts:   &pgReceipts{p},
		Governance: &pgGovernance{p},
		Events:     &pgEvents{p},
	}
}

func (p *Postgres) execer(ctx context.Context) txcontext.Executor {
	return txcontext.ExecutorFrom(ctx, p.db)
}

type pgBusinesses struct{ p *Postgres }

func (s *pgBusinesses) Create(ctx context.Context, b *models.Business) error {
	_, err := s.p.execer(ctx).ExecContext(ctx, `
		INSERT INTO businesses (owner, name, description, is_active, is_verified, registered_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, b.Owner.Key(), b.Name, b.Description, b.IsActive, b.IsVerified, b.RegisteredAt, b.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert business: %w", err)
	}
	return nil
}

func (s *pgBusinesses) FindByOwner(ctx context.Context, owner domain.Account) (*models.Business, error) {
	var (
		b        models.Business
		ownerKey string
	)
	err := s.p.execer(ctx).QueryRowContext(ctx, `
		SELECT owner, name, description, is_active, is_verified, registered_at, updated_at
		FROM businesses WHERE owner = $1
	`, owner.Key()).Scan(&ownerKey, &b.Name, &b.Description, &b.IsActive, &b.IsVerified, &b.RegisteredAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find business: %w", err)
	}
	if b.Owner, err = domain.ParseAccount(ownerKey); err != nil {
		return nil, fmt.Errorf("decode business owner: %w", err)
	}
	return &b, nil
}

func (s *pgBusinesses) Update(ctx context.Context, b *models.Business) error {
	res, err := s.p.execer(ctx).ExecContext(ctx, `
		UPDATE businesses
		SET name = $2, description = $3, is_active = $4, is_verified = $5, updated_at = $6
		WHERE owner = $1
	`, b.Owner.Key(), b.Name, b.Description, b.IsActive, b.IsVerified, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update business: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type pgReceipts struct{ p *Postgres }

const receiptColumns = `id, issuer, recipient, vendor_name, description, amount::TEXT, document_ref,
	transaction_date, requested_at, deadline, status, origin, rejection_reason, dispute_reason, updated_at`

func (s *pgReceipts) NextID(ctx context.Context) (domain.ReceiptID, error) {
	var next uint64
	if err := s.p.execer(ctx).QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM receipts`).Scan(&next); err != nil {
		return 0, fmt.Errorf("next receipt id: %w", err)
	}
	return domain.ReceiptID(next), nil
}

func (s *pgReceipts) Create(ctx context.Context, r *models.Receipt) error {
	_, err := s.p.execer(ctx).ExecContext(ctx, `
		INSERT INTO receipts (`+receiptColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		int64(r.ID), r.Issuer.Key(), r.Recipient.Key(), r.VendorName, r.Description, r.Amount.String(), r.DocumentRef,
		r.TransactionDate, r.RequestedAt, r.Deadline, int16(r.Status), string(r.Origin), r.RejectionReason, r.DisputeReason, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

func (s *pgReceipts) FindByID(ctx context.Context, id domain.ReceiptID) (*models.Receipt, error) {
	row := s.p.execer(ctx).QueryRowContext(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE id = $1`, int64(id))
	r, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *pgReceipts) Update(ctx context.Context, r *models.Receipt) error {
	res, err := s.p.execer(ctx).ExecContext(ctx, `
		UPDATE receipts
		SET status = $2, rejection_reason = $3, dispute_reason = $4, updated_at = $5
		WHERE id = $1
	`, int64(r.ID), int16(r.Status), r.RejectionReason, r.DisputeReason, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update receipt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *pgReceipts) ListIDs(ctx context.Context, party models.Party, account domain.Account) ([]domain.ReceiptID, error) {
	var query string
	switch party {
	case models.PartyRecipient:
		query = `SELECT id FROM receipts WHERE recipient = $1 ORDER BY id`
	case models.PartyIssuer:
		query = `SELECT id FROM receipts WHERE issuer = $1 ORDER BY id`
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown party")
	}
	return s.queryIDs(ctx, query, account.Key())
}

func (s *pgReceipts) PendingIDs(ctx context.Context, issuer domain.Account) ([]domain.ReceiptID, error) {
	return s.queryIDs(ctx, `SELECT id FROM receipts WHERE issuer = $1 AND status = $2 ORDER BY id`,
		issuer.Key(), int16(models.StatusRequested))
}

func (s *pgReceipts) Count(ctx context.Context) (uint64, error) {
	var n uint64
	if err := s.p.execer(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM receipts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count receipts: %w", err)
	}
	return n, nil
}

func (s *pgReceipts) queryIDs(ctx context.Context, query string, args ...any) ([]domain.ReceiptID, error) {
	rows, err := s.p.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query receipt ids: %w", err)
	}
	defer rows.Close()

	var ids []domain.ReceiptID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan receipt id: %w", err)
		}
		ids = append(ids, domain.ReceiptID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipt ids: %w", err)
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*models.Receipt, error) {
	var (
		r                 models.Receipt
		id                int64
		issuer, recipient string
		amount, origin    string
		status            int16
	)
	err := row.Scan(&id, &issuer, &recipient, &r.VendorName, &r.Description, &amount, &r.DocumentRef,
		&r.TransactionDate, &r.RequestedAt, &r.Deadline, &status, &origin, &r.RejectionReason, &r.DisputeReason, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan receipt: %w", err)
	}
	r.ID = domain.ReceiptID(id)
	r.Status = models.Status(status)
	r.Origin = models.Origin(origin)
	if r.Issuer, err = domain.ParseAccount(issuer); err != nil {
		return nil, fmt.Errorf("decode issuer: %w", err)
	}
	if r.Recipient, err = domain.ParseAccount(recipient); err != nil {
		return nil, fmt.Errorf("decode recipient: %w", err)
	}
	if r.Amount, err = domain.ParseAmount(amount); err != nil {
		return nil, fmt.Errorf("decode amount: %w", err)
	}
	return &r, nil
}

type pgGovernance struct{ p *Postgres }

func (s *pgGovernance) Load(ctx context.Context) (*models.Governance, error) {
	exec := s.p.execer(ctx)
	var (
		ownerKey string
		g        models.Governance
	)
	err := exec.QueryRowContext(ctx, `SELECT owner, updated_at FROM ledger_governance WHERE id = 1`).Scan(&ownerKey, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load governance: %w", err)
	}
	if g.Owner, err = domain.ParseAccount(ownerKey); err != nil {
		return nil, fmt.Errorf("decode owner: %w", err)
	}

	rows, err := exec.QueryContext(ctx, `SELECT account, added_at FROM ledger_verifiers`)
	if err != nil {
		return nil, fmt.Errorf("load verifiers: %w", err)
	}
	defer rows.Close()

	g.Verifiers = make(map[domain.Account]time.Time)
	for rows.Next() {
		var (
			key   string
			added time.Time
		)
		if err := rows.Scan(&key, &added); err != nil {
			return nil, fmt.Errorf("scan verifier: %w", err)
		}
		a, err := domain.ParseAccount(key)
		if err != nil {
			return nil, fmt.Errorf("decode verifier: %w", err)
		}
		g.Verifiers[a] = added
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verifiers: %w", err)
	}
	return &g, nil
}

// Save replaces the stored governance with g.
func (s *pgGovernance) Save(ctx context.Context, g *models.Governance) error {
	exec := s.p.execer(ctx)
	if _, err := exec.ExecContext(ctx, `
		INSERT INTO ledger_governance (id, owner, updated_at) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET owner = EXCLUDED.owner, updated_at = EXCLUDED.updated_at
	`, g.Owner.Key(), g.UpdatedAt); err != nil {
		return fmt.Errorf("save governance: %w", err)
	}

	keys := make([]string, 0, len(g.Verifiers))
	for a, added := range g.Verifiers {
		keys = append(keys, a.Key())
		if _, err := exec.ExecContext(ctx, `
			INSERT INTO ledger_verifiers (account, added_at) VALUES ($1, $2)
			ON CONFLICT (account) DO NOTHING
		`, a.Key(), added); err != nil {
			return fmt.Errorf("save verifier: %w", err)
		}
	}
	if _, err := exec.ExecContext(ctx, `DELETE FROM ledger_verifiers WHERE NOT (account = ANY($1))`, pq.Array(keys)); err != nil {
		return fmt.Errorf("prune verifiers: %w", err)
	}
	return nil
}

type pgEvents struct{ p *Postgres }

func (s *pgEvents) Append(ctx context.Context, ev *models.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	// Sequences are allocated under the ledger lock so they never skip, even
	// when a transaction rolls back.
	var seq int64
	err = s.p.execer(ctx).QueryRowContext(ctx, `
		INSERT INTO ledger_events (sequence, id, kind, payload, created_at)
		SELECT COALESCE(MAX(sequence), 0) + 1, $1, $2, $3, $4 FROM ledger_events
		RETURNING sequence
	`, ev.ID, string(ev.Kind), payload, ev.Timestamp).Scan(&seq)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	ev.Sequence = uint64(seq)
	return nil
}

// Unpublished returns events not yet relayed, in sequence order.
func (p *Postgres) Unpublished(ctx context.Context, limit int) ([]*models.Event, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT sequence, id, payload FROM ledger_events
		WHERE published_at IS NULL
		ORDER BY sequence
		LIMIT NULLIF($1, 0)
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unpublished events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var (
			seq     int64
			id      uuid.UUID
			payload []byte
		)
		if err := rows.Scan(&seq, &id, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var ev models.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", id, err)
		}
		ev.ID = id
		ev.Sequence = uint64(seq)
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// MarkPublished stamps every event up to through.
func (p *Postgres) MarkPublished(ctx context.Context, through uint64) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE ledger_events SET published_at = $2
		WHERE sequence <= $1 AND published_at IS NULL
	`, int64(through), time.Now())
	if err != nil {
		return fmt.Errorf("mark events published: %w", err)
	}
	return nil
}
