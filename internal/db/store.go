package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bookbalance/backend/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) InsertAccounts(ctx context.Context, accounts []models.Account) (int64, error) {
	rows := make([][]any, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, []any{
			a.ID, a.Name, a.IsCustomer, a.ARR.String(), a.ATR.String(), a.Pipeline.String(),
			a.CRECount, a.Territory, a.Geo, a.OwnerID, a.ParentID, a.CreatedAt, a.OwnerChangeDate,
			string(a.Tier), a.IsStrategic, a.PEFirmProtected, a.ExcludeFromReassignment,
		})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"accounts"}, []string{
		"id", "name", "is_customer", "arr", "atr", "pipeline",
		"cre_count", "territory", "geo", "owner_id", "parent_id", "created_at", "owner_change_date",
		"tier", "is_strategic", "pe_firm_protected", "exclude_from_reassignment",
	}, pgx.CopyFromRows(rows))
}

func (s *Store) InsertReps(ctx context.Context, reps []models.SalesRep) (int64, error) {
	rows := make([][]any, 0, len(reps))
	for _, r := range reps {
		rows = append(rows, []any{
			r.RepID, r.Name, r.Region, r.IsActive, r.IncludeInAssignments,
			r.IsStrategicRep, r.IsRenewalSpecialist, r.Team, r.Tier, r.UpdatedAt,
		})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"reps"}, []string{
		"rep_id", "name", "region", "is_active", "include_in_assignments",
		"is_strategic_rep", "is_renewal_specialist", "team", "tier", "updated_at",
	}, pgx.CopyFromRows(rows))
}

const accountColumns = `id, name, is_customer, arr::text, atr::text, pipeline::text,
	cre_count, territory, geo, owner_id, parent_id, created_at, owner_change_date,
	tier, is_strategic, pe_firm_protected, exclude_from_reassignment`

func scanAccount(row pgx.Row) (models.Account, error) {
	var a models.Account
	var arr, atr, pipeline string
	var tier string
	if err := row.Scan(
		&a.ID, &a.Name, &a.IsCustomer, &arr, &atr, &pipeline,
		&a.CRECount, &a.Territory, &a.Geo, &a.OwnerID, &a.ParentID, &a.CreatedAt, &a.OwnerChangeDate,
		&tier, &a.IsStrategic, &a.PEFirmProtected, &a.ExcludeFromReassignment,
	); err != nil {
		return models.Account{}, err
	}
	var err error
	if a.ARR, err = decimal.NewFromString(arr); err != nil {
		return models.Account{}, err
	}
	if a.ATR, err = decimal.NewFromString(atr); err != nil {
		return models.Account{}, err
	}
	if a.Pipeline, err = decimal.NewFromString(pipeline); err != nil {
		return models.Account{}, err
	}
	a.Tier = models.AccountTier(tier)
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context, territory, tier, q string, limit, offset int) ([]models.Account, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + accountColumns + ` FROM accounts`
	var args []any
	var wheres []string
	if territory != "" {
		args = append(args, territory)
		wheres = append(wheres, fmt.Sprintf("territory = $%d", len(args)))
	}
	if tier != "" {
		args = append(args, tier)
		wheres = append(wheres, fmt.Sprintf("tier = $%d", len(args)))
	}
	if q != "" {
		args = append(args, "%"+q+"%")
		wheres = append(wheres, fmt.Sprintf("(name ILIKE $%d OR id ILIKE $%d)", len(args), len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAccountsForRun loads the full static snapshot for one book in a
// stable order; the engine's tie-breaks depend on it.
func (s *Store) GetAccountsForRun(ctx context.Context, isCustomer bool) ([]models.Account, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE is_customer = $1 ORDER BY created_at ASC, id ASC`, isCustomer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetAccount(ctx context.Context, id string) (models.Account, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (s *Store) ListReps(ctx context.Context, region, team string) ([]models.SalesRep, error) {
	query := `SELECT rep_id, name, region, is_active, include_in_assignments,
		is_strategic_rep, is_renewal_specialist, team, tier, updated_at FROM reps`
	var args []any
	var wheres []string
	if region != "" {
		args = append(args, region)
		wheres = append(wheres, fmt.Sprintf("region = $%d", len(args)))
	}
	if team != "" {
		args = append(args, team)
		wheres = append(wheres, fmt.Sprintf("team = $%d", len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY rep_id ASC"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SalesRep
	for rows.Next() {
		var r models.SalesRep
		if err := rows.Scan(
			&r.RepID, &r.Name, &r.Region, &r.IsActive, &r.IncludeInAssignments,
			&r.IsStrategicRep, &r.IsRenewalSpecialist, &r.Team, &r.Tier, &r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UpsertProposal(ctx context.Context, tx pgx.Tx, p models.Proposal) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO proposals (id, account_id, proposed_owner_id, proposed_owner_name, assignment_type, rationale, score, conflict_flag, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (account_id) DO UPDATE SET
			proposed_owner_id = EXCLUDED.proposed_owner_id,
			proposed_owner_name = EXCLUDED.proposed_owner_name,
			assignment_type = EXCLUDED.assignment_type,
			rationale = EXCLUDED.rationale,
			score = EXCLUDED.score,
			conflict_flag = EXCLUDED.conflict_flag,
			created_at = EXCLUDED.created_at
	`, p.ID, p.AccountID, p.ProposedOwnerID, p.ProposedOwnerName, string(p.AssignmentType), p.Rationale, p.Score, p.ConflictFlag, p.CreatedAt)
	return err
}

func (s *Store) ListProposals(ctx context.Context, assignmentType string, limit, offset int) ([]models.Proposal, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, account_id, proposed_owner_id, proposed_owner_name, assignment_type, rationale, score, conflict_flag, created_at FROM proposals`
	var args []any
	if assignmentType != "" {
		args = append(args, assignmentType)
		query += " WHERE assignment_type = $1"
	}
	query += " ORDER BY created_at ASC, account_id ASC LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Proposal
	for rows.Next() {
		var p models.Proposal
		var assignmentTypeVal string
		if err := rows.Scan(&p.ID, &p.AccountID, &p.ProposedOwnerID, &p.ProposedOwnerName, &assignmentTypeVal, &p.Rationale, &p.Score, &p.ConflictFlag, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.AssignmentType = models.AssignmentType(assignmentTypeVal)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetProposalByAccount(ctx context.Context, accountID string) (models.Proposal, error) {
	row := s.Pool.QueryRow(ctx, `SELECT id, account_id, proposed_owner_id, proposed_owner_name, assignment_type, rationale, score, conflict_flag, created_at FROM proposals WHERE account_id = $1`, accountID)
	var p models.Proposal
	var assignmentTypeVal string
	if err := row.Scan(&p.ID, &p.AccountID, &p.ProposedOwnerID, &p.ProposedOwnerName, &assignmentTypeVal, &p.Rationale, &p.Score, &p.ConflictFlag, &p.CreatedAt); err != nil {
		return models.Proposal{}, err
	}
	p.AssignmentType = models.AssignmentType(assignmentTypeVal)
	return p, nil
}

// ReplaceProposals swaps out a book's proposals atomically with the
// run's output.
func (s *Store) ReplaceProposals(ctx context.Context, assignmentType string, proposals []models.Proposal) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM proposals WHERE assignment_type = $1`, assignmentType); err != nil {
			return err
		}
		for _, p := range proposals {
			if err := s.UpsertProposal(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReassignProposal points an existing proposal at a different rep.
func (s *Store) ReassignProposal(ctx context.Context, accountID, repID, repName, rationale, conflictFlag string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE proposals
		SET proposed_owner_id = $1, proposed_owner_name = $2, rationale = $3, conflict_flag = $4, created_at = NOW()
		WHERE account_id = $5
	`, repID, repName, rationale, conflictFlag, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *Store) CreateRun(ctx context.Context, id, status string) error {
	_, err := s.Pool.Exec(ctx, `INSERT INTO runs (id, status, started_at) VALUES ($1, $2, NOW())`, id, status)
	return err
}

func (s *Store) FinishRun(ctx context.Context, runID string, status string, summary []byte) error {
	_, err := s.Pool.Exec(ctx, `UPDATE runs SET status = $1, summary = $2, finished_at = NOW() WHERE id = $3`, status, summary, runID)
	return err
}

func (s *Store) GetLatestRun(ctx context.Context) (models.Run, error) {
	row := s.Pool.QueryRow(ctx, `SELECT id, started_at, finished_at, status, summary FROM runs ORDER BY started_at DESC LIMIT 1`)
	var r models.Run
	if err := row.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status, &r.Summary); err != nil {
		return models.Run{}, err
	}
	return r, nil
}

// HasRunningRun reports whether a run started within the lookback is
// still unfinished. Used to keep scheduled runs from stacking up.
func (s *Store) HasRunningRun(ctx context.Context, lookback time.Duration) (bool, error) {
	var count int
	err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM runs WHERE finished_at IS NULL AND started_at > NOW() - make_interval(secs => $1)`, lookback.Seconds()).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) TruncateAll(ctx context.Context) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `TRUNCATE accounts, reps, proposals`)
		return err
	})
}
