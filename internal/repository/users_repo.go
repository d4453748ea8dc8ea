package repository

import (
	"context"

	"collabberry-rounds/internal/domain"
)

// UsersRepository 用户Repository接口
// 查询结果都带协议关联（Agreement），没有协议时为 nil
type UsersRepository interface {
	// GetUser 按 ID 获取用户
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// GetByWalletAddress 按钱包地址获取用户（地址比较不区分大小写）
	GetByWalletAddress(ctx context.Context, walletAddress string) (*domain.User, error)

	// ListByOrganization 查询组织的全部贡献者
	ListByOrganization(ctx context.Context, orgID string) ([]*domain.User, error)
}
