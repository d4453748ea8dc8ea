package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"collabberry-rounds/internal/domain"
)

// PostgresUsersRepository 用户Repository实现
// 所有查询 LEFT JOIN agreements，协议随用户一起返回
type PostgresUsersRepository struct {
	db *sql.DB
}

// NewPostgresUsersRepository 创建用户Repository
func NewPostgresUsersRepository(db *sql.DB) *PostgresUsersRepository {
	return &PostgresUsersRepository{db: db}
}

// 确保实现了接口
var _ UsersRepository = (*PostgresUsersRepository)(nil)

const userWithAgreementQuery = `
	SELECT
		u.user_id::text,
		u.wallet_address,
		u.username,
		u.email,
		u.profile_picture,
		u.org_id::text,
		u.is_admin,
		u.created_at,
		a.agreement_id::text,
		a.org_id::text,
		a.role_name,
		a.responsibilities,
		a.market_rate,
		a.fiat_requested,
		a.commitment,
		a.created_at
	FROM users u
	LEFT JOIN agreements a ON a.user_id = u.user_id
`

func scanUserWithAgreement(row interface{ Scan(...any) error }) (*domain.User, error) {
	var user domain.User
	var orgID sql.NullString

	var agreementID, agreementOrgID, roleName, responsibilities sql.NullString
	var marketRate, fiatRequested sql.NullFloat64
	var commitment sql.NullInt32
	var agreementCreatedAt sql.NullTime

	err := row.Scan(
		&user.UserID,
		&user.WalletAddress,
		&user.Username,
		&user.Email,
		&user.ProfilePicture,
		&orgID,
		&user.IsAdmin,
		&user.CreatedAt,
		&agreementID,
		&agreementOrgID,
		&roleName,
		&responsibilities,
		&marketRate,
		&fiatRequested,
		&commitment,
		&agreementCreatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.OrgID = orgID
	if agreementID.Valid {
		user.Agreement = &domain.Agreement{
			AgreementID:      agreementID.String,
			UserID:           user.UserID,
			OrgID:            agreementOrgID.String,
			RoleName:         roleName.String,
			Responsibilities: responsibilities.String,
			MarketRate:       marketRate.Float64,
			FiatRequested:    fiatRequested.Float64,
			Commitment:       int(commitment.Int32),
			CreatedAt:        agreementCreatedAt.Time,
		}
	}
	return &user, nil
}

// GetUser 按 ID 获取用户
func (r *PostgresUsersRepository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("user %w", ErrNotFound)
	}

	query := userWithAgreementQuery + ` WHERE u.user_id = $1`

	user, err := scanUserWithAgreement(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByWalletAddress 按钱包地址获取用户
func (r *PostgresUsersRepository) GetByWalletAddress(ctx context.Context, walletAddress string) (*domain.User, error) {
	if walletAddress == "" {
		return nil, fmt.Errorf("user %w", ErrNotFound)
	}

	// 地址入库时已小写，这里再归一化一次防御大小写混用的调用方
	query := userWithAgreementQuery + ` WHERE u.wallet_address = $1`

	user, err := scanUserWithAgreement(r.db.QueryRowContext(ctx, query, strings.ToLower(walletAddress)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by wallet: %w", err)
	}
	return user, nil
}

// ListByOrganization 查询组织的全部贡献者
func (r *PostgresUsersRepository) ListByOrganization(ctx context.Context, orgID string) ([]*domain.User, error) {
	if orgID == "" {
		return []*domain.User{}, nil
	}

	query := userWithAgreementQuery + ` WHERE u.org_id = $1 ORDER BY u.created_at`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUserWithAgreement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}
