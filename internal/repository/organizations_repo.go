package repository

import (
	"context"
	"time"

	"collabberry-rounds/internal/domain"
)

// OrganizationsRepository 组织Repository接口
type OrganizationsRepository interface {
	// GetOrganization 获取组织
	GetOrganization(ctx context.Context, orgID string) (*domain.Organization, error)

	// ListConfigured 查询薪酬周期配置完整的组织
	// （compensation_period 与 compensation_start_day 都非空）
	ListConfigured(ctx context.Context) ([]*domain.Organization, error)

	// AdvanceCompensationStartDay 推进组织的周期锚点日
	// （轮次创建后调用，保证同一周期不重复建轮）
	AdvanceCompensationStartDay(ctx context.Context, orgID string, next time.Time) error

	// SetTotalFunds 更新组织可用资金
	SetTotalFunds(ctx context.Context, orgID string, funds float64) error
}
