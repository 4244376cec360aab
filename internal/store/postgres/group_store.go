package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Emmyhack/Ahorro/internal/domain"
)

// GroupStore implements domain.GroupStore using PostgreSQL.
type GroupStore struct {
	pool *pgxpool.Pool
}

// NewGroupStore creates a GroupStore backed by the given connection pool.
func NewGroupStore(pool *pgxpool.Pool) *GroupStore {
	return &GroupStore{pool: pool}
}

const groupCols = `id, authority, model_type, insurance_bps, cycle_order,
	contribution_amount, current_cycle_index, insurance_pool,
	group_vault, insurance_vault, status, debt_policy,
	grace_window_seconds, cycle_started_at, created_at, updated_at`

// Create inserts a new group row.
func (s *GroupStore) Create(ctx context.Context, g domain.ThriftGroup) error {
	const query = `
		INSERT INTO thrift_groups (
			id, authority, model_type, insurance_bps, cycle_order,
			contribution_amount, current_cycle_index, insurance_pool,
			group_vault, insurance_vault, status, debt_policy,
			grace_window_seconds, cycle_started_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12,
			$13, $14, $15, NOW()
		)`

	_, err := s.pool.Exec(ctx, query,
		g.ID, g.Authority, string(g.ModelType), g.InsuranceBps, g.CycleOrder,
		g.ContributionAmount, g.CurrentCycleIndex, g.InsurancePool,
		g.GroupVault, g.InsuranceVault, string(g.Status), string(g.DebtPolicy),
		int64(g.GraceWindow/time.Second), g.CycleStartedAt, g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create group %s: %w", g.ID, err)
	}
	return nil
}

func scanGroup(row pgx.Row) (domain.ThriftGroup, error) {
	var g domain.ThriftGroup
	var status, model, policy string
	var graceSeconds int64
	err := row.Scan(
		&g.ID, &g.Authority, &model, &g.InsuranceBps, &g.CycleOrder,
		&g.ContributionAmount, &g.CurrentCycleIndex, &g.InsurancePool,
		&g.GroupVault, &g.InsuranceVault, &status, &policy,
		&graceSeconds, &g.CycleStartedAt, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return domain.ThriftGroup{}, err
	}
	g.ModelType = domain.ModelType(model)
	g.Status = domain.GroupStatus(status)
	g.DebtPolicy = domain.DebtPolicy(policy)
	g.GraceWindow = time.Duration(graceSeconds) * time.Second
	return g, nil
}

// Get retrieves a group with its current-cycle Paid and Defaulted sets.
func (s *GroupStore) Get(ctx context.Context, id string) (domain.ThriftGroup, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+groupCols+` FROM thrift_groups WHERE id = $1`, id)
	g, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ThriftGroup{}, domain.ErrNotFound
		}
		return domain.ThriftGroup{}, fmt.Errorf("postgres: get group %s: %w", id, err)
	}

	g.Paid = make(map[string]bool, len(g.CycleOrder))
	g.Defaulted = make(map[string]bool)

	rows, err := s.pool.Query(ctx,
		`SELECT member FROM contributions WHERE group_id = $1 AND cycle = $2`,
		id, g.CurrentCycleIndex)
	if err != nil {
		return domain.ThriftGroup{}, fmt.Errorf("postgres: get group %s paid set: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return domain.ThriftGroup{}, fmt.Errorf("postgres: scan paid member: %w", err)
		}
		g.Paid[m] = true
	}
	if err := rows.Err(); err != nil {
		return domain.ThriftGroup{}, fmt.Errorf("postgres: get group %s paid rows: %w", id, err)
	}

	drows, err := s.pool.Query(ctx,
		`SELECT member FROM cycle_defaults WHERE group_id = $1 AND cycle = $2`,
		id, g.CurrentCycleIndex)
	if err != nil {
		return domain.ThriftGroup{}, fmt.Errorf("postgres: get group %s default set: %w", id, err)
	}
	defer drows.Close()
	for drows.Next() {
		var m string
		if err := drows.Scan(&m); err != nil {
			return domain.ThriftGroup{}, fmt.Errorf("postgres: scan defaulted member: %w", err)
		}
		g.Defaulted[m] = true
	}
	if err := drows.Err(); err != nil {
		return domain.ThriftGroup{}, fmt.Errorf("postgres: get group %s default rows: %w", id, err)
	}

	return g, nil
}

// Activate records provisioned vault handles and flips forming to active.
func (s *GroupStore) Activate(ctx context.Context, id, groupVault, insuranceVault string) error {
	const query = `
		UPDATE thrift_groups
		SET group_vault = $2, insurance_vault = $3, status = $4,
		    cycle_started_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $5`

	tag, err := s.pool.Exec(ctx, query, id, groupVault, insuranceVault,
		string(domain.GroupStatusActive), string(domain.GroupStatusForming))
	if err != nil {
		return fmt.Errorf("postgres: activate group %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a group row. Only used to roll back a failed provision.
func (s *GroupStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM thrift_groups WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete group %s: %w", id, err)
	}
	return nil
}

// SetStatus updates the group lifecycle state.
func (s *GroupStore) SetStatus(ctx context.Context, id string, status domain.GroupStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE thrift_groups SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, string(status))
	if err != nil {
		return fmt.Errorf("postgres: set group %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns groups with pagination and optional status filtering.
func (s *GroupStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.ThriftGroup, error) {
	query := `SELECT ` + groupCols + ` FROM thrift_groups`
	args := []any{}
	argIdx := 1

	if opts.Status != "" {
		query += fmt.Sprintf(" WHERE status = $%d", argIdx)
		args = append(args, string(opts.Status))
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list groups: %w", err)
	}
	defer rows.Close()

	var groups []domain.ThriftGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list groups rows: %w", err)
	}
	return groups, nil
}

// Compile-time interface check.
var _ domain.GroupStore = (*GroupStore)(nil)
