package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"collabberry-rounds/internal/domain"
)

// PostgresRoundsRepository 考核轮次Repository实现
type PostgresRoundsRepository struct {
	db *sql.DB
}

// NewPostgresRoundsRepository 创建轮次Repository
func NewPostgresRoundsRepository(db *sql.DB) *PostgresRoundsRepository {
	return &PostgresRoundsRepository{db: db}
}

// 确保实现了接口
var _ RoundsRepository = (*PostgresRoundsRepository)(nil)

const roundColumns = `
	round_id::text,
	org_id::text,
	round_number,
	start_date,
	end_date,
	compensation_cycle_start_date,
	compensation_cycle_end_date,
	is_completed,
	tx_hash,
	created_at
`

func scanRound(row interface{ Scan(...any) error }) (*domain.Round, error) {
	var round domain.Round
	err := row.Scan(
		&round.RoundID,
		&round.OrgID,
		&round.RoundNumber,
		&round.StartDate,
		&round.EndDate,
		&round.CompensationCycleStartDate,
		&round.CompensationCycleEndDate,
		&round.IsCompleted,
		&round.TxHash,
		&round.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &round, nil
}

// GetRound 获取轮次
func (r *PostgresRoundsRepository) GetRound(ctx context.Context, roundID string) (*domain.Round, error) {
	if roundID == "" {
		return nil, fmt.Errorf("round %w", ErrNotFound)
	}

	query := `SELECT ` + roundColumns + ` FROM rounds WHERE round_id = $1`

	round, err := scanRound(r.db.QueryRowContext(ctx, query, roundID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("round %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return round, nil
}

// GetRoundWithAssessments 获取轮次并加载其全部考核记录
func (r *PostgresRoundsRepository) GetRoundWithAssessments(ctx context.Context, roundID string) (*domain.Round, error) {
	round, err := r.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT
			assessment_id::text,
			round_id::text,
			assessor_id::text,
			assessed_id::text,
			culture_score,
			work_score,
			feedback_positive,
			feedback_negative,
			created_at
		FROM assessments
		WHERE round_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to load round assessments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a domain.Assessment
		if err := rows.Scan(
			&a.AssessmentID,
			&a.RoundID,
			&a.AssessorID,
			&a.AssessedID,
			&a.CultureScore,
			&a.WorkScore,
			&a.FeedbackPositive,
			&a.FeedbackNegative,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		round.Assessments = append(round.Assessments, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assessments: %w", err)
	}
	return round, nil
}

// ListByOrganization 查询组织的全部轮次（按序号倒序）
func (r *PostgresRoundsRepository) ListByOrganization(ctx context.Context, orgID string) ([]*domain.Round, error) {
	if orgID == "" {
		return []*domain.Round{}, nil
	}

	query := `
		SELECT ` + roundColumns + `
		FROM rounds
		WHERE org_id = $1
		ORDER BY round_number DESC
	`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	defer rows.Close()

	var rounds []*domain.Round
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, round)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rounds: %w", err)
	}
	return rounds, nil
}

// GetActiveRound 获取组织当前进行中的轮次，没有则返回 nil
func (r *PostgresRoundsRepository) GetActiveRound(ctx context.Context, orgID string, now time.Time) (*domain.Round, error) {
	if orgID == "" {
		return nil, nil
	}

	query := `
		SELECT ` + roundColumns + `
		FROM rounds
		WHERE org_id = $1
		  AND is_completed = false
		  AND start_date <= $2
		  AND end_date >= $2
		ORDER BY round_number DESC
		LIMIT 1
	`

	round, err := scanRound(r.db.QueryRowContext(ctx, query, orgID, now))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active round: %w", err)
	}
	return round, nil
}

// HasOpenRound 组织是否存在未完成的轮次
func (r *PostgresRoundsRepository) HasOpenRound(ctx context.Context, orgID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM rounds WHERE org_id = $1 AND is_completed = false)`,
		orgID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check open round: %w", err)
	}
	return exists, nil
}

// CountByOrganization 组织历史轮次总数
func (r *PostgresRoundsRepository) CountByOrganization(ctx context.Context, orgID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rounds WHERE org_id = $1`, orgID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rounds: %w", err)
	}
	return count, nil
}

// ListEndedUncompleted 查询已过结束时间但未完成的轮次
func (r *PostgresRoundsRepository) ListEndedUncompleted(ctx context.Context, now time.Time) ([]*domain.Round, error) {
	query := `
		SELECT ` + roundColumns + `
		FROM rounds
		WHERE is_completed = false
		  AND end_date <= $1
		ORDER BY end_date
	`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list ended rounds: %w", err)
	}
	defer rows.Close()

	var rounds []*domain.Round
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, round)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rounds: %w", err)
	}
	return rounds, nil
}

// CreateRound 创建轮次
func (r *PostgresRoundsRepository) CreateRound(ctx context.Context, round *domain.Round) (string, error) {
	if round.OrgID == "" {
		return "", fmt.Errorf("org_id is required")
	}

	query := `
		INSERT INTO rounds (
			org_id,
			round_number,
			start_date,
			end_date,
			compensation_cycle_start_date,
			compensation_cycle_end_date,
			is_completed
		) VALUES ($1, $2, $3, $4, $5, $6, false)
		RETURNING round_id::text
	`

	var roundID string
	err := r.db.QueryRowContext(ctx, query,
		round.OrgID,
		round.RoundNumber,
		round.StartDate,
		round.EndDate,
		round.CompensationCycleStartDate,
		round.CompensationCycleEndDate,
	).Scan(&roundID)
	if err != nil {
		return "", fmt.Errorf("failed to create round: %w", err)
	}
	return roundID, nil
}

// UpdateRound 编辑轮次窗口（仅未完成的轮次）
func (r *PostgresRoundsRepository) UpdateRound(ctx context.Context, roundID string, patch *RoundPatch) error {
	if roundID == "" {
		return fmt.Errorf("round_id is required")
	}
	if patch == nil || (patch.StartDate == nil && patch.EndDate == nil) {
		return nil
	}

	set := []string{}
	args := []any{roundID}
	argN := 2

	if patch.StartDate != nil {
		set = append(set, fmt.Sprintf("start_date = $%d", argN))
		args = append(args, *patch.StartDate)
		argN++
	}
	if patch.EndDate != nil {
		set = append(set, fmt.Sprintf("end_date = $%d", argN))
		args = append(args, *patch.EndDate)
		argN++
	}

	query := `UPDATE rounds SET ` + strings.Join(set, ", ") + ` WHERE round_id = $1 AND is_completed = false`

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update round: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("round %w", ErrNotFound)
	}
	return nil
}

// MarkCompleted 标记轮次完成（单向）
func (r *PostgresRoundsRepository) MarkCompleted(ctx context.Context, roundID string) error {
	if roundID == "" {
		return fmt.Errorf("round_id is required")
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE rounds SET is_completed = true WHERE round_id = $1 AND is_completed = false`,
		roundID)
	if err != nil {
		return fmt.Errorf("failed to mark round completed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("round %w", ErrNotFound)
	}
	return nil
}

// SetTxHash 补录铸币交易哈希，仅在尚未设置时生效
func (r *PostgresRoundsRepository) SetTxHash(ctx context.Context, roundID, txHash string) error {
	if roundID == "" || txHash == "" {
		return fmt.Errorf("round_id and tx_hash are required")
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE rounds SET tx_hash = $2 WHERE round_id = $1 AND tx_hash IS NULL`,
		roundID, txHash)
	if err != nil {
		return fmt.Errorf("failed to set tx hash: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: tx hash already set or round missing", ErrDuplicate)
	}
	return nil
}
