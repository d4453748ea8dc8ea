package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"collabberry-rounds/internal/domain"
)

// PostgresCompensationsRepository 轮次薪酬结果Repository实现
type PostgresCompensationsRepository struct {
	db *sql.DB
}

// NewPostgresCompensationsRepository 创建薪酬结果Repository
func NewPostgresCompensationsRepository(db *sql.DB) *PostgresCompensationsRepository {
	return &PostgresCompensationsRepository{db: db}
}

// 确保实现了接口
var _ CompensationsRepository = (*PostgresCompensationsRepository)(nil)

// ListByRound 查询轮次的全部薪酬结果
func (r *PostgresCompensationsRepository) ListByRound(ctx context.Context, roundID string) ([]*domain.ContributorRoundCompensation, error) {
	if roundID == "" {
		return []*domain.ContributorRoundCompensation{}, nil
	}

	query := `
		SELECT
			compensation_id::text,
			round_id::text,
			contributor_id::text,
			cultural_score,
			work_score,
			agreement_commitment,
			agreement_market_rate,
			agreement_fiat_requested,
			fiat,
			tp,
			created_at
		FROM contributor_round_compensations
		WHERE round_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list compensations: %w", err)
	}
	defer rows.Close()

	var comps []*domain.ContributorRoundCompensation
	for rows.Next() {
		var c domain.ContributorRoundCompensation
		if err := rows.Scan(
			&c.CompensationID,
			&c.RoundID,
			&c.ContributorID,
			&c.CulturalScore,
			&c.WorkScore,
			&c.AgreementCommitment,
			&c.AgreementMarketRate,
			&c.AgreementFiatRequested,
			&c.Fiat,
			&c.TP,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan compensation: %w", err)
		}
		comps = append(comps, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate compensations: %w", err)
	}
	return comps, nil
}

// CreateCompensation 写入一条薪酬结果
func (r *PostgresCompensationsRepository) CreateCompensation(ctx context.Context, c *domain.ContributorRoundCompensation) (string, error) {
	if c.RoundID == "" || c.ContributorID == "" {
		return "", fmt.Errorf("round_id and contributor_id are required")
	}

	query := `
		INSERT INTO contributor_round_compensations (
			round_id,
			contributor_id,
			cultural_score,
			work_score,
			agreement_commitment,
			agreement_market_rate,
			agreement_fiat_requested,
			fiat,
			tp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING compensation_id::text
	`

	var compensationID string
	err := r.db.QueryRowContext(ctx, query,
		c.RoundID,
		c.ContributorID,
		c.CulturalScore,
		c.WorkScore,
		c.AgreementCommitment,
		c.AgreementMarketRate,
		c.AgreementFiatRequested,
		c.Fiat,
		c.TP,
	).Scan(&compensationID)
	if err != nil {
		// (round_id, contributor_id) 唯一：同一轮次不会写两份
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return "", fmt.Errorf("%w: compensation for this contributor already exists", ErrDuplicate)
		}
		return "", fmt.Errorf("failed to create compensation: %w", err)
	}
	return compensationID, nil
}
