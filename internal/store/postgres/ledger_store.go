package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Emmyhack/Ahorro/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for unique constraint hits.
const uniqueViolation = "23505"

// LedgerStore implements domain.LedgerStore using PostgreSQL. Each Apply*
// method runs in a single SQL transaction so the ledger never exposes a
// half-applied mutation.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

func (s *LedgerStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// ApplyContribution inserts the contribution and accrues its skim to the
// group's insurance pool in one transaction. The unique key on
// (group_id, cycle, member) turns a concurrent duplicate into
// domain.ErrDuplicateContribution.
func (s *LedgerStore) ApplyContribution(ctx context.Context, c domain.Contribution) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		const insert = `
			INSERT INTO contributions (id, group_id, member, cycle, amount, skim, net, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

		if _, err := tx.Exec(ctx, insert,
			c.ID, c.GroupID, c.Member, c.Cycle, c.Amount, c.Skim, c.Net, c.CreatedAt,
		); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return domain.ErrDuplicateContribution
			}
			return fmt.Errorf("postgres: insert contribution for %s: %w", c.Member, err)
		}

		const accrue = `
			UPDATE thrift_groups
			SET insurance_pool = insurance_pool + $2, updated_at = NOW()
			WHERE id = $1`
		if _, err := tx.Exec(ctx, accrue, c.GroupID, c.Skim); err != nil {
			return fmt.Errorf("postgres: accrue skim for group %s: %w", c.GroupID, err)
		}
		return nil
	})
}

// ApplyAdvance commits a cycle disbursement: payout row, cycle index,
// insurance coverage deduction, new debts, recipient debt repayments,
// and close-on-wrap.
func (s *LedgerStore) ApplyAdvance(ctx context.Context, adv domain.Advancement) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		status := domain.GroupStatusActive
		if adv.Closed {
			status = domain.GroupStatusClosed
		}

		const update = `
			UPDATE thrift_groups
			SET current_cycle_index = $2, status = $3,
			    insurance_pool = insurance_pool - $4,
			    cycle_started_at = NOW(), updated_at = NOW()
			WHERE id = $1`
		tag, err := tx.Exec(ctx, update, adv.GroupID, adv.NextIndex, string(status), adv.Coverage)
		if err != nil {
			return fmt.Errorf("postgres: advance group %s: %w", adv.GroupID, err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}

		const payout = `
			INSERT INTO payouts (group_id, cycle, recipient, amount, coverage)
			VALUES ($1, $2, $3, $4, $5)`
		if _, err := tx.Exec(ctx, payout,
			adv.GroupID, adv.Cycle, adv.Recipient, adv.Disbursed, adv.Coverage,
		); err != nil {
			return fmt.Errorf("postgres: record payout for group %s cycle %d: %w", adv.GroupID, adv.Cycle, err)
		}

		const debt = `
			INSERT INTO member_debts (id, group_id, member, cycle, recipient, shortfall, covered, outstanding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		for _, d := range adv.NewDebts {
			if _, err := tx.Exec(ctx, debt,
				d.ID, d.GroupID, d.Member, d.Cycle, d.Recipient, d.Shortfall, d.Covered, d.Outstanding,
			); err != nil {
				return fmt.Errorf("postgres: record debt for %s: %w", d.Member, err)
			}
		}

		const repay = `
			UPDATE member_debts
			SET covered = covered + $2, outstanding = outstanding - $2, updated_at = NOW()
			WHERE id = $1 AND outstanding >= $2`
		for _, rp := range adv.Repayments {
			tag, err := tx.Exec(ctx, repay, rp.DebtID, rp.Amount)
			if err != nil {
				return fmt.Errorf("postgres: repay debt %s: %w", rp.DebtID, err)
			}
			if tag.RowsAffected() == 0 {
				return domain.ErrNoDebtRecorded
			}
		}
		return nil
	})
}

// MarkDefault flags a member as defaulted for the given cycle.
func (s *LedgerStore) MarkDefault(ctx context.Context, groupID string, cycle int, member string) error {
	const query = `
		INSERT INTO cycle_defaults (group_id, cycle, member)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`
	if _, err := s.pool.Exec(ctx, query, groupID, cycle, member); err != nil {
		return fmt.Errorf("postgres: mark default %s in group %s: %w", member, groupID, err)
	}
	return nil
}

// ApplyClaim pays down a debt from the insurance pool in one transaction.
func (s *LedgerStore) ApplyClaim(ctx context.Context, debtID string, paid int64) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		const payDebt = `
			UPDATE member_debts
			SET covered = covered + $2, outstanding = outstanding - $2, updated_at = NOW()
			WHERE id = $1 AND outstanding >= $2
			RETURNING group_id`
		var groupID string
		if err := tx.QueryRow(ctx, payDebt, debtID, paid).Scan(&groupID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNoDebtRecorded
			}
			return fmt.Errorf("postgres: pay debt %s: %w", debtID, err)
		}

		const drainPool = `
			UPDATE thrift_groups
			SET insurance_pool = insurance_pool - $2, updated_at = NOW()
			WHERE id = $1`
		if _, err := tx.Exec(ctx, drainPool, groupID, paid); err != nil {
			return fmt.Errorf("postgres: drain insurance pool for group %s: %w", groupID, err)
		}
		return nil
	})
}

// ApplyTermination zeroes the insurance pool and closes the group.
func (s *LedgerStore) ApplyTermination(ctx context.Context, groupID string) error {
	const query = `
		UPDATE thrift_groups
		SET status = $2, insurance_pool = 0, updated_at = NOW()
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, groupID, string(domain.GroupStatusClosed))
	if err != nil {
		return fmt.Errorf("postgres: terminate group %s: %w", groupID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListContributions returns a group's contributions for one cycle. A
// negative cycle returns all cycles, oldest first.
func (s *LedgerStore) ListContributions(ctx context.Context, groupID string, cycle int) ([]domain.Contribution, error) {
	query := `SELECT id, group_id, member, cycle, amount, skim, net, created_at
		FROM contributions WHERE group_id = $1`
	args := []any{groupID}
	if cycle >= 0 {
		query += ` AND cycle = $2`
		args = append(args, cycle)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list contributions for group %s: %w", groupID, err)
	}
	defer rows.Close()

	var out []domain.Contribution
	for rows.Next() {
		var c domain.Contribution
		if err := rows.Scan(&c.ID, &c.GroupID, &c.Member, &c.Cycle, &c.Amount, &c.Skim, &c.Net, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan contribution: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list contributions rows: %w", err)
	}
	return out, nil
}

// CollectedNet returns the sum of net contributions for the given cycle.
func (s *LedgerStore) CollectedNet(ctx context.Context, groupID string, cycle int) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(net), 0) FROM contributions WHERE group_id = $1 AND cycle = $2`,
		groupID, cycle,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("postgres: collected net for group %s cycle %d: %w", groupID, cycle, err)
	}
	return total, nil
}

// ListDebts returns every debt recorded against a group, oldest first.
func (s *LedgerStore) ListDebts(ctx context.Context, groupID string) ([]domain.MemberDebt, error) {
	const query = `
		SELECT id, group_id, member, cycle, recipient, shortfall, covered, outstanding, created_at, updated_at
		FROM member_debts WHERE group_id = $1 ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list debts for group %s: %w", groupID, err)
	}
	defer rows.Close()

	var out []domain.MemberDebt
	for rows.Next() {
		var d domain.MemberDebt
		if err := rows.Scan(&d.ID, &d.GroupID, &d.Member, &d.Cycle, &d.Recipient,
			&d.Shortfall, &d.Covered, &d.Outstanding, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan debt: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list debts rows: %w", err)
	}
	return out, nil
}

// OldestOpenDebt returns the member's oldest debt that still has an
// outstanding balance.
func (s *LedgerStore) OldestOpenDebt(ctx context.Context, groupID, member string) (domain.MemberDebt, error) {
	const query = `
		SELECT id, group_id, member, cycle, recipient, shortfall, covered, outstanding, created_at, updated_at
		FROM member_debts
		WHERE group_id = $1 AND member = $2 AND outstanding > 0
		ORDER BY created_at ASC
		LIMIT 1`

	var d domain.MemberDebt
	err := s.pool.QueryRow(ctx, query, groupID, member).Scan(
		&d.ID, &d.GroupID, &d.Member, &d.Cycle, &d.Recipient,
		&d.Shortfall, &d.Covered, &d.Outstanding, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MemberDebt{}, domain.ErrNoDebtRecorded
		}
		return domain.MemberDebt{}, fmt.Errorf("postgres: oldest open debt for %s: %w", member, err)
	}
	return d, nil
}

// MemberTotals assembles the per-member running figures for a group.
func (s *LedgerStore) MemberTotals(ctx context.Context, groupID string) ([]domain.MemberTotals, error) {
	var order []string
	var currentIndex int
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT cycle_order, current_cycle_index, status FROM thrift_groups WHERE id = $1`,
		groupID,
	).Scan(&order, &currentIndex, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: member totals group row %s: %w", groupID, err)
	}

	contributed := make(map[string]int64, len(order))
	rows, err := s.pool.Query(ctx,
		`SELECT member, COALESCE(SUM(amount), 0) FROM contributions WHERE group_id = $1 GROUP BY member`,
		groupID)
	if err != nil {
		return nil, fmt.Errorf("postgres: member totals contributions %s: %w", groupID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var m string
		var sum int64
		if err := rows.Scan(&m, &sum); err != nil {
			return nil, fmt.Errorf("postgres: scan member total: %w", err)
		}
		contributed[m] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: member totals rows: %w", err)
	}

	received := make(map[string]bool)
	prows, err := s.pool.Query(ctx,
		`SELECT recipient FROM payouts WHERE group_id = $1`, groupID)
	if err != nil {
		return nil, fmt.Errorf("postgres: member totals payouts %s: %w", groupID, err)
	}
	defer prows.Close()
	for prows.Next() {
		var m string
		if err := prows.Scan(&m); err != nil {
			return nil, fmt.Errorf("postgres: scan payout recipient: %w", err)
		}
		received[m] = true
	}
	if err := prows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: member totals payout rows: %w", err)
	}

	debts := make(map[string]int64)
	drows, err := s.pool.Query(ctx,
		`SELECT member, COALESCE(SUM(outstanding), 0) FROM member_debts WHERE group_id = $1 GROUP BY member`,
		groupID)
	if err != nil {
		return nil, fmt.Errorf("postgres: member totals debts %s: %w", groupID, err)
	}
	defer drows.Close()
	for drows.Next() {
		var m string
		var sum int64
		if err := drows.Scan(&m, &sum); err != nil {
			return nil, fmt.Errorf("postgres: scan member debt total: %w", err)
		}
		debts[m] = sum
	}
	if err := drows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: member totals debt rows: %w", err)
	}

	totals := make([]domain.MemberTotals, 0, len(order))
	for _, m := range order {
		totals = append(totals, domain.MemberTotals{
			Member:            m,
			TotalContributed:  contributed[m],
			HasReceivedPayout: received[m],
			DebtOutstanding:   debts[m],
		})
	}
	return totals, nil
}

// Compile-time interface check.
var _ domain.LedgerStore = (*LedgerStore)(nil)
