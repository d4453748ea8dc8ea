package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"collabberry-rounds/internal/domain"
	"collabberry-rounds/internal/repository"
)

// AssessmentService 考核提交服务接口
type AssessmentService interface {
	// AddAssessment 提交考核（同步路径，典型错误走 errors.go 的哨兵）
	AddAssessment(ctx context.Context, assessorWallet string, req AddAssessmentRequest) (*domain.Assessment, error)

	// EditAssessment 编辑考核，只允许改当前进行中轮次里的记录
	EditAssessment(ctx context.Context, assessorWallet, assessmentID string, req EditAssessmentRequest) (*domain.Assessment, error)

	// GetAssessments 查询轮次内的考核记录
	GetAssessments(ctx context.Context, roundID, assessorID, assessedID string) ([]*domain.Assessment, error)
}

// AddAssessmentRequest 提交考核请求
type AddAssessmentRequest struct {
	AssessedID       string // 必填：被评价人
	CultureScore     *int32 // 可选 0-10，缺省不等于 0
	WorkScore        *int32 // 可选 0-10
	FeedbackPositive string
	FeedbackNegative string
}

// EditAssessmentRequest 编辑考核请求（nil 字段不更新）
type EditAssessmentRequest struct {
	CultureScore     *int32
	WorkScore        *int32
	FeedbackPositive *string
	FeedbackNegative *string
}

// assessmentService 实现
type assessmentService struct {
	users       repository.UsersRepository
	rounds      repository.RoundsRepository
	assessments repository.AssessmentsRepository
	logger      *zap.Logger

	// 时钟注入，测试时固定
	now func() time.Time
}

// NewAssessmentService 创建考核提交服务
func NewAssessmentService(
	users repository.UsersRepository,
	rounds repository.RoundsRepository,
	assessments repository.AssessmentsRepository,
	logger *zap.Logger,
) AssessmentService {
	return &assessmentService{
		users:       users,
		rounds:      rounds,
		assessments: assessments,
		logger:      logger,
		now:         time.Now,
	}
}

func validScore(s *int32) bool {
	return s == nil || (*s >= 0 && *s <= 10)
}

// AddAssessment 提交考核
func (s *assessmentService) AddAssessment(ctx context.Context, assessorWallet string, req AddAssessmentRequest) (*domain.Assessment, error) {
	if !validScore(req.CultureScore) || !validScore(req.WorkScore) {
		return nil, ErrInvalidScore
	}

	assessor, err := s.users.GetByWalletAddress(ctx, assessorWallet)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !assessor.OrgID.Valid {
		return nil, ErrNoOrganization
	}

	round, err := s.rounds.GetActiveRound(ctx, assessor.OrgID.String, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if round == nil {
		return nil, ErrNoActiveRound
	}

	exists, err := s.assessments.Exists(ctx, round.RoundID, assessor.UserID, req.AssessedID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateAssessment
	}

	assessed, err := s.users.GetUser(ctx, req.AssessedID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !assessed.OrgID.Valid || assessed.OrgID.String != assessor.OrgID.String {
		return nil, ErrCrossOrgAssessment
	}

	assessment := &domain.Assessment{
		RoundID:          round.RoundID,
		AssessorID:       assessor.UserID,
		AssessedID:       assessed.UserID,
		CultureScore:     toNullInt32(req.CultureScore),
		WorkScore:        toNullInt32(req.WorkScore),
		FeedbackPositive: req.FeedbackPositive,
		FeedbackNegative: req.FeedbackNegative,
	}

	assessmentID, err := s.assessments.CreateAssessment(ctx, assessment)
	if err != nil {
		// 并发双写：应用层检查通过但 DB 唯一约束拦下
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateAssessment
		}
		return nil, err
	}
	assessment.AssessmentID = assessmentID

	s.logger.Info("Assessment submitted",
		zap.String("round_id", round.RoundID),
		zap.String("assessor_id", assessor.UserID),
		zap.String("assessed_id", assessed.UserID),
	)
	return assessment, nil
}

// EditAssessment 编辑考核
func (s *assessmentService) EditAssessment(ctx context.Context, assessorWallet, assessmentID string, req EditAssessmentRequest) (*domain.Assessment, error) {
	if !validScore(req.CultureScore) || !validScore(req.WorkScore) {
		return nil, ErrInvalidScore
	}

	assessor, err := s.users.GetByWalletAddress(ctx, assessorWallet)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !assessor.OrgID.Valid {
		return nil, ErrNoOrganization
	}

	assessment, err := s.assessments.GetAssessment(ctx, assessmentID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if assessment.AssessorID != assessor.UserID {
		// 只有本人能改自己的考核
		return nil, fmt.Errorf("assessment %w", ErrNotFound)
	}

	round, err := s.rounds.GetActiveRound(ctx, assessor.OrgID.String, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if round == nil {
		return nil, ErrNoActiveRound
	}
	if assessment.RoundID != round.RoundID {
		// 轮次已经翻篇：历史考核不可改
		return nil, ErrRoundCompleted
	}

	patch := &repository.AssessmentPatch{
		CultureScore:     req.CultureScore,
		WorkScore:        req.WorkScore,
		FeedbackPositive: req.FeedbackPositive,
		FeedbackNegative: req.FeedbackNegative,
	}
	if err := s.assessments.UpdateAssessment(ctx, assessmentID, patch); err != nil {
		return nil, mapRepoError(err)
	}

	updated, err := s.assessments.GetAssessment(ctx, assessmentID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	s.logger.Info("Assessment updated",
		zap.String("assessment_id", assessmentID),
		zap.String("round_id", round.RoundID),
	)
	return updated, nil
}

// GetAssessments 查询轮次内的考核记录
func (s *assessmentService) GetAssessments(ctx context.Context, roundID, assessorID, assessedID string) ([]*domain.Assessment, error) {
	if _, err := s.rounds.GetRound(ctx, roundID); err != nil {
		return nil, mapRepoError(err)
	}
	filters := &repository.AssessmentFilters{
		AssessorID: assessorID,
		AssessedID: assessedID,
	}
	list, err := s.assessments.ListByRound(ctx, roundID, filters)
	if err != nil {
		return nil, err
	}
	return list, nil
}

func toNullInt32(v *int32) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Valid: true, Int32: *v}
}

// mapRepoError Repository 哨兵 → 业务哨兵
func mapRepoError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, err)
	}
	return err
}
