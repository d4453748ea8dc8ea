package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"collabberry-rounds/internal/cycle"
	"collabberry-rounds/internal/domain"
	"collabberry-rounds/internal/repository"
	"collabberry-rounds/internal/store"
)

// createRoundsLockKey 多实例部署时的任务互斥锁
const createRoundsLockKey = "rounds:create:lock"

// RoundScheduler 轮次创建批处理。
// 每次调用无状态：所有组织状态都从 Repository 现取。
// 建轮后推进组织锚点日，同一周期内重复调用不会重复建轮
type RoundScheduler struct {
	orgs     repository.OrganizationsRepository
	rounds   repository.RoundsRepository
	users    repository.UsersRepository
	notifier Notifier
	kv       store.KV
	logger   *zap.Logger

	lookaheadDays int
	lockTTL       time.Duration

	// 时钟注入，测试时固定
	now func() time.Time
}

// NewRoundScheduler 创建轮次调度器
func NewRoundScheduler(
	orgs repository.OrganizationsRepository,
	rounds repository.RoundsRepository,
	users repository.UsersRepository,
	notifier Notifier,
	kv store.KV,
	logger *zap.Logger,
	lookaheadDays int,
	lockTTL time.Duration,
) *RoundScheduler {
	if lookaheadDays <= 0 {
		lookaheadDays = 7
	}
	return &RoundScheduler{
		orgs:          orgs,
		rounds:        rounds,
		users:         users,
		notifier:      notifier,
		kv:            kv,
		logger:        logger,
		lookaheadDays: lookaheadDays,
		lockTTL:       lockTTL,
		now:           time.Now,
	}
}

// Run 定时轮询入口。退出条件只有 ctx 取消
func (s *RoundScheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Starting round scheduler",
		zap.Duration("interval", interval),
		zap.Int("lookahead_days", s.lookaheadDays),
	)

	// 启动先跑一次，弥补停摆期间积压的周期
	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *RoundScheduler) runOnce(ctx context.Context) {
	if s.kv != nil {
		ok, err := s.kv.Acquire(ctx, createRoundsLockKey, s.lockTTL)
		if err != nil {
			s.logger.Error("Failed to acquire create-rounds lock", zap.Error(err))
			return
		}
		if !ok {
			s.logger.Debug("Create-rounds lock held elsewhere, skipping run")
			return
		}
		defer func() {
			if err := s.kv.Release(ctx, createRoundsLockKey); err != nil {
				s.logger.Warn("Failed to release create-rounds lock", zap.Error(err))
			}
		}()
	}

	if err := s.CreateRounds(ctx); err != nil {
		s.logger.Error("Create-rounds run failed", zap.Error(err))
	}
}

// CreateRounds 为所有满足条件的组织创建下一轮次。
// 单个组织失败只记日志，不阻塞其他组织
func (s *RoundScheduler) CreateRounds(ctx context.Context) error {
	orgs, err := s.orgs.ListConfigured(ctx)
	if err != nil {
		return err
	}

	s.logger.Info("Evaluating organizations for round creation", zap.Int("count", len(orgs)))

	for _, org := range orgs {
		if err := s.CreateRoundForOrganization(ctx, org); err != nil {
			s.logger.Error("Failed to create round for organization",
				zap.String("org_id", org.OrgID),
				zap.String("org_name", org.Name),
				zap.Error(err),
			)
		}
	}
	return nil
}

// CreateRoundForOrganization 为单个组织评估并创建轮次。
// 不满足条件（已有未完成轮次 / 开始日不在提前量窗口内）时静默跳过
func (s *RoundScheduler) CreateRoundForOrganization(ctx context.Context, org *domain.Organization) error {
	if !org.CompensationConfigured() {
		return nil
	}

	hasOpen, err := s.rounds.HasOpenRound(ctx, org.OrgID)
	if err != nil {
		return err
	}
	if hasOpen {
		// 已有进行中/未开始的轮次：本周期已经建过
		return nil
	}

	now := s.now().UTC()
	anchor := org.CompensationStartDay.Time

	startDate, err := cycle.RoundStartTime(org.Period(), anchor, org.AssessmentStartDelayInDays, now)
	if err != nil {
		return err
	}

	// 只在 [now, now+lookahead] 内建轮：太远的周期留给后续运行
	windowEnd := now.AddDate(0, 0, s.lookaheadDays)
	if startDate.After(windowEnd) {
		s.logger.Debug("Round start outside lookahead window, skipping",
			zap.String("org_id", org.OrgID),
			zap.Time("start_date", startDate),
			zap.Time("window_end", windowEnd),
		)
		return nil
	}

	endDate := cycle.RoundEndTime(startDate, org.AssessmentDurationInDays)

	nextCycleStart, err := cycle.NextCycleStart(anchor, org.Period())
	if err != nil {
		return err
	}

	count, err := s.rounds.CountByOrganization(ctx, org.OrgID)
	if err != nil {
		return err
	}

	round := &domain.Round{
		OrgID:                      org.OrgID,
		RoundNumber:                count + 1,
		StartDate:                  startDate,
		EndDate:                    endDate,
		CompensationCycleStartDate: cycle.BeginningOfDay(anchor),
		CompensationCycleEndDate:   nextCycleStart,
	}

	roundID, err := s.rounds.CreateRound(ctx, round)
	if err != nil {
		return err
	}

	// 锚点推进和建轮是两次写：中间崩溃会在下次运行重放本周期，
	// 但 HasOpenRound 检查会把重复建轮拦下来
	if err := s.orgs.AdvanceCompensationStartDay(ctx, org.OrgID, nextCycleStart); err != nil {
		return err
	}

	s.logger.Info("Round created",
		zap.String("org_id", org.OrgID),
		zap.String("org_name", org.Name),
		zap.String("round_id", roundID),
		zap.Int("round_number", round.RoundNumber),
		zap.Time("start_date", startDate),
		zap.Time("end_date", endDate),
	)

	s.notifyRoundStarted(ctx, org)
	return nil
}

// notifyRoundStarted 给组织全部贡献者发轮次开始通知（尽力而为）
func (s *RoundScheduler) notifyRoundStarted(ctx context.Context, org *domain.Organization) {
	users, err := s.users.ListByOrganization(ctx, org.OrgID)
	if err != nil {
		s.logger.Warn("Failed to load contributors for notification",
			zap.String("org_id", org.OrgID),
			zap.Error(err),
		)
		return
	}
	for _, u := range users {
		if !u.Email.Valid || u.Email.String == "" {
			continue
		}
		s.notifier.SendRoundStarted(ctx, u.Email.String, u.Username, org.Name)
	}
}
