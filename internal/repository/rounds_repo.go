package repository

import (
	"context"
	"time"

	"collabberry-rounds/internal/domain"
)

// RoundPatch 轮次可编辑字段（nil 表示不更新）
type RoundPatch struct {
	StartDate *time.Time
	EndDate   *time.Time
}

// RoundsRepository 考核轮次Repository接口
type RoundsRepository interface {
	// GetRound 获取轮次
	GetRound(ctx context.Context, roundID string) (*domain.Round, error)

	// GetRoundWithAssessments 获取轮次并加载其全部考核记录
	GetRoundWithAssessments(ctx context.Context, roundID string) (*domain.Round, error)

	// ListByOrganization 查询组织的全部轮次（按序号倒序）
	ListByOrganization(ctx context.Context, orgID string) ([]*domain.Round, error)

	// GetActiveRound 获取组织当前进行中的轮次
	// （start <= now <= end 且未完成），没有则返回 nil
	GetActiveRound(ctx context.Context, orgID string, now time.Time) (*domain.Round, error)

	// HasOpenRound 组织是否存在未完成的轮次（进行中或未开始）
	HasOpenRound(ctx context.Context, orgID string) (bool, error)

	// CountByOrganization 组织历史轮次总数（用于递增序号）
	CountByOrganization(ctx context.Context, orgID string) (int, error)

	// ListEndedUncompleted 查询已过结束时间但未完成的轮次
	ListEndedUncompleted(ctx context.Context, now time.Time) ([]*domain.Round, error)

	// CreateRound 创建轮次
	CreateRound(ctx context.Context, round *domain.Round) (string, error)

	// UpdateRound 编辑轮次窗口（仅未完成的轮次）
	UpdateRound(ctx context.Context, roundID string, patch *RoundPatch) error

	// MarkCompleted 标记轮次完成（单向）
	MarkCompleted(ctx context.Context, roundID string) error

	// SetTxHash 补录铸币交易哈希，仅在尚未设置时生效
	SetTxHash(ctx context.Context, roundID, txHash string) error
}
