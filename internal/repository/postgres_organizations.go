package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"collabberry-rounds/internal/domain"
)

// PostgresOrganizationsRepository 组织Repository实现
type PostgresOrganizationsRepository struct {
	db *sql.DB
}

// NewPostgresOrganizationsRepository 创建组织Repository
func NewPostgresOrganizationsRepository(db *sql.DB) *PostgresOrganizationsRepository {
	return &PostgresOrganizationsRepository{db: db}
}

// 确保实现了接口
var _ OrganizationsRepository = (*PostgresOrganizationsRepository)(nil)

const organizationColumns = `
	org_id::text,
	name,
	logo,
	par,
	compensation_period,
	compensation_start_day,
	assessment_duration_in_days,
	assessment_start_delay_in_days,
	total_funds,
	team_points_contract_address,
	chain_id,
	created_at
`

func scanOrganization(row interface{ Scan(...any) error }) (*domain.Organization, error) {
	var org domain.Organization
	err := row.Scan(
		&org.OrgID,
		&org.Name,
		&org.Logo,
		&org.PAR,
		&org.CompensationPeriod,
		&org.CompensationStartDay,
		&org.AssessmentDurationInDays,
		&org.AssessmentStartDelayInDays,
		&org.TotalFunds,
		&org.TeamPointsContractAddress,
		&org.ChainID,
		&org.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// GetOrganization 获取组织
func (r *PostgresOrganizationsRepository) GetOrganization(ctx context.Context, orgID string) (*domain.Organization, error) {
	if orgID == "" {
		return nil, fmt.Errorf("organization %w", ErrNotFound)
	}

	query := `
		SELECT ` + organizationColumns + `
		FROM organizations
		WHERE org_id = $1
	`

	org, err := scanOrganization(r.db.QueryRowContext(ctx, query, orgID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("organization %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// ListConfigured 查询薪酬周期配置完整的组织
func (r *PostgresOrganizationsRepository) ListConfigured(ctx context.Context) ([]*domain.Organization, error) {
	query := `
		SELECT ` + organizationColumns + `
		FROM organizations
		WHERE compensation_period IS NOT NULL
		  AND compensation_start_day IS NOT NULL
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*domain.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate organizations: %w", err)
	}
	return orgs, nil
}

// AdvanceCompensationStartDay 推进组织的周期锚点日
func (r *PostgresOrganizationsRepository) AdvanceCompensationStartDay(ctx context.Context, orgID string, next time.Time) error {
	if orgID == "" {
		return fmt.Errorf("org_id is required")
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE organizations SET compensation_start_day = $2 WHERE org_id = $1`,
		orgID, next)
	if err != nil {
		return fmt.Errorf("failed to advance compensation start day: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("organization %w", ErrNotFound)
	}
	return nil
}

// SetTotalFunds 更新组织可用资金
func (r *PostgresOrganizationsRepository) SetTotalFunds(ctx context.Context, orgID string, funds float64) error {
	if orgID == "" {
		return fmt.Errorf("org_id is required")
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE organizations SET total_funds = $2 WHERE org_id = $1`,
		orgID, funds)
	if err != nil {
		return fmt.Errorf("failed to set total funds: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("organization %w", ErrNotFound)
	}
	return nil
}
