package repository

import (
	"context"

	"collabberry-rounds/internal/domain"
)

// AssessmentFilters 考核记录查询过滤器
type AssessmentFilters struct {
	AssessorID string // 评价人ID
	AssessedID string // 被评价人ID
}

// AssessmentPatch 考核记录可编辑字段（nil 表示不更新）
type AssessmentPatch struct {
	CultureScore     *int32
	WorkScore        *int32
	FeedbackPositive *string
	FeedbackNegative *string
}

// AssessmentsRepository 考核记录Repository接口
type AssessmentsRepository interface {
	// GetAssessment 获取考核记录
	GetAssessment(ctx context.Context, assessmentID string) (*domain.Assessment, error)

	// ListByRound 查询轮次内的考核记录（支持按评价人/被评价人过滤）
	ListByRound(ctx context.Context, roundID string, filters *AssessmentFilters) ([]*domain.Assessment, error)

	// Exists (round, assessor, assessed) 三元组是否已有记录
	Exists(ctx context.Context, roundID, assessorID, assessedID string) (bool, error)

	// CreateAssessment 创建考核记录。
	// 并发双写由 DB 唯一约束兜底，冲突时返回错误
	CreateAssessment(ctx context.Context, a *domain.Assessment) (string, error)

	// UpdateAssessment 编辑考核记录
	UpdateAssessment(ctx context.Context, assessmentID string, patch *AssessmentPatch) error
}
