package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"collabberry-rounds/internal/domain"
	"collabberry-rounds/internal/repository"
)

// CurrentRoundResponse 当前轮次查询结果。
// Round 可能为 nil（组织没有未完成轮次）
type CurrentRoundResponse struct {
	Status domain.RoundStatus
	Round  *domain.Round
}

// RoundService 轮次查询与管理服务接口
type RoundService interface {
	// GetRounds 组织全部轮次（序号倒序）
	GetRounds(ctx context.Context, orgID string) ([]*domain.Round, error)

	// GetRoundByID 轮次详情，带全部考核记录
	GetRoundByID(ctx context.Context, roundID string) (*domain.Round, error)

	// GetCurrentRound 组织最新未完成轮次及其状态。
	// 没有则 Status=completed 的不算，返回 Round=nil
	GetCurrentRound(ctx context.Context, orgID string) (*CurrentRoundResponse, error)

	// GetRoundCompensations 轮次薪酬结果（完成后才有数据）
	GetRoundCompensations(ctx context.Context, roundID string) ([]*domain.ContributorRoundCompensation, error)

	// EditRound 管理员调整考核窗口，仅未完成轮次
	EditRound(ctx context.Context, roundID string, startDate, endDate *time.Time) (*domain.Round, error)

	// RemindToAssess 给未完成考核的贡献者发提醒。
	// all=true 提醒所有未交齐的人，否则只提醒 userIDs
	RemindToAssess(ctx context.Context, roundID string, all bool, userIDs []string) error

	// AddTokenMintTx 补录链上铸币交易哈希（轮次完成后一次性）
	AddTokenMintTx(ctx context.Context, roundID, txHash string) error
}

// roundService 实现
type roundService struct {
	orgs     repository.OrganizationsRepository
	rounds   repository.RoundsRepository
	users    repository.UsersRepository
	comps    repository.CompensationsRepository
	notifier Notifier
	logger   *zap.Logger

	// 时钟注入，测试时固定
	now func() time.Time
}

// NewRoundService 创建轮次查询与管理服务
func NewRoundService(
	orgs repository.OrganizationsRepository,
	rounds repository.RoundsRepository,
	users repository.UsersRepository,
	comps repository.CompensationsRepository,
	notifier Notifier,
	logger *zap.Logger,
) RoundService {
	return &roundService{
		orgs:     orgs,
		rounds:   rounds,
		users:    users,
		comps:    comps,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *roundService) GetRounds(ctx context.Context, orgID string) ([]*domain.Round, error) {
	if _, err := s.orgs.GetOrganization(ctx, orgID); err != nil {
		return nil, mapRepoError(err)
	}
	return s.rounds.ListByOrganization(ctx, orgID)
}

func (s *roundService) GetRoundByID(ctx context.Context, roundID string) (*domain.Round, error) {
	round, err := s.rounds.GetRoundWithAssessments(ctx, roundID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return round, nil
}

func (s *roundService) GetCurrentRound(ctx context.Context, orgID string) (*CurrentRoundResponse, error) {
	if _, err := s.orgs.GetOrganization(ctx, orgID); err != nil {
		return nil, mapRepoError(err)
	}

	rounds, err := s.rounds.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	// 列表按序号倒序：第一个未完成的就是当前/下一个轮次
	for _, round := range rounds {
		if round.IsCompleted {
			continue
		}
		return &CurrentRoundResponse{Status: round.Status(now), Round: round}, nil
	}
	return &CurrentRoundResponse{Status: domain.RoundCompleted, Round: nil}, nil
}

func (s *roundService) GetRoundCompensations(ctx context.Context, roundID string) ([]*domain.ContributorRoundCompensation, error) {
	if _, err := s.rounds.GetRound(ctx, roundID); err != nil {
		return nil, mapRepoError(err)
	}
	return s.comps.ListByRound(ctx, roundID)
}

func (s *roundService) EditRound(ctx context.Context, roundID string, startDate, endDate *time.Time) (*domain.Round, error) {
	round, err := s.rounds.GetRound(ctx, roundID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if round.IsCompleted {
		return nil, ErrRoundCompleted
	}

	patch := &repository.RoundPatch{StartDate: startDate, EndDate: endDate}
	if err := s.rounds.UpdateRound(ctx, roundID, patch); err != nil {
		return nil, mapRepoError(err)
	}

	updated, err := s.rounds.GetRound(ctx, roundID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	s.logger.Info("Round window updated",
		zap.String("round_id", roundID),
		zap.Time("start_date", updated.StartDate),
		zap.Time("end_date", updated.EndDate),
	)
	return updated, nil
}

func (s *roundService) RemindToAssess(ctx context.Context, roundID string, all bool, userIDs []string) error {
	round, err := s.rounds.GetRoundWithAssessments(ctx, roundID)
	if err != nil {
		return mapRepoError(err)
	}
	if round.IsCompleted {
		return ErrRoundCompleted
	}

	org, err := s.orgs.GetOrganization(ctx, round.OrgID)
	if err != nil {
		return mapRepoError(err)
	}
	contributors, err := s.users.ListByOrganization(ctx, round.OrgID)
	if err != nil {
		return err
	}

	var targets []*domain.User
	if all {
		targets = pendingAssessors(round, contributors)
	} else {
		wanted := make(map[string]bool, len(userIDs))
		for _, id := range userIDs {
			wanted[id] = true
		}
		for _, u := range contributors {
			if wanted[u.UserID] {
				targets = append(targets, u)
			}
		}
	}

	for _, u := range targets {
		if !u.Email.Valid || u.Email.String == "" {
			continue
		}
		s.notifier.SendAssessmentReminder(ctx, u.Email.String, u.Username, org.Name)
	}

	s.logger.Info("Assessment reminders dispatched",
		zap.String("round_id", roundID),
		zap.Int("targets", len(targets)),
		zap.Bool("all", all),
	)
	return nil
}

// pendingAssessors 还没评完所有同事的贡献者
func pendingAssessors(round *domain.Round, contributors []*domain.User) []*domain.User {
	authored := make(map[string]int)
	for _, a := range round.Assessments {
		authored[a.AssessorID]++
	}

	expected := len(contributors) - 1
	if expected <= 0 {
		return nil
	}

	var pending []*domain.User
	for _, u := range contributors {
		if authored[u.UserID] < expected {
			pending = append(pending, u)
		}
	}
	return pending
}

func (s *roundService) AddTokenMintTx(ctx context.Context, roundID, txHash string) error {
	round, err := s.rounds.GetRound(ctx, roundID)
	if err != nil {
		return mapRepoError(err)
	}
	if !round.IsCompleted {
		return ErrRoundNotCompleted
	}

	if err := s.rounds.SetTxHash(ctx, roundID, txHash); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrRoundCompleted
		}
		return err
	}

	s.logger.Info("Token mint tx recorded",
		zap.String("round_id", roundID),
		zap.String("tx_hash", txHash),
	)
	return nil
}
