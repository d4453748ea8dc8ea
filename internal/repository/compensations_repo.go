package repository

import (
	"context"

	"collabberry-rounds/internal/domain"
)

// CompensationsRepository 轮次薪酬结果Repository接口
// 记录只增不改：完成任务按 (round, contributor) 写一次快照
type CompensationsRepository interface {
	// ListByRound 查询轮次的全部薪酬结果
	ListByRound(ctx context.Context, roundID string) ([]*domain.ContributorRoundCompensation, error)

	// CreateCompensation 写入一条薪酬结果
	CreateCompensation(ctx context.Context, c *domain.ContributorRoundCompensation) (string, error)
}
