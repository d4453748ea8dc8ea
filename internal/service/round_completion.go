package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"collabberry-rounds/internal/domain"
	"collabberry-rounds/internal/repository"
	"collabberry-rounds/internal/store"
)

// completeRoundsLockKey 多实例部署时的任务互斥锁
const completeRoundsLockKey = "rounds:complete:lock"

// neutralScore SAM 调节的中性分基准：平均分等于它时薪酬不增不减。
// 取 3 沿用既有口径（0-10 分制下并非几何中点），改动需要产品侧确认
const neutralScore = 3.0

// RoundCompleter 轮次完成批处理：聚合评分、算薪酬、落快照、扣资金、封轮次
type RoundCompleter struct {
	orgs   repository.OrganizationsRepository
	rounds repository.RoundsRepository
	users  repository.UsersRepository
	comps  repository.CompensationsRepository
	kv     store.KV
	logger *zap.Logger

	lockTTL time.Duration

	// 时钟注入，测试时固定
	now func() time.Time
}

// NewRoundCompleter 创建轮次完成引擎
func NewRoundCompleter(
	orgs repository.OrganizationsRepository,
	rounds repository.RoundsRepository,
	users repository.UsersRepository,
	comps repository.CompensationsRepository,
	kv store.KV,
	logger *zap.Logger,
	lockTTL time.Duration,
) *RoundCompleter {
	return &RoundCompleter{
		orgs:    orgs,
		rounds:  rounds,
		users:   users,
		comps:   comps,
		kv:      kv,
		logger:  logger,
		lockTTL: lockTTL,
		now:     time.Now,
	}
}

// Run 定时轮询入口
func (s *RoundCompleter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Starting round completer", zap.Duration("interval", interval))

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

func (s *RoundCompleter) runOnce(ctx context.Context) {
	if s.kv != nil {
		ok, err := s.kv.Acquire(ctx, completeRoundsLockKey, s.lockTTL)
		if err != nil {
			s.logger.Error("Failed to acquire complete-rounds lock", zap.Error(err))
			return
		}
		if !ok {
			s.logger.Debug("Complete-rounds lock held elsewhere, skipping run")
			return
		}
		defer func() {
			if err := s.kv.Release(ctx, completeRoundsLockKey); err != nil {
				s.logger.Warn("Failed to release complete-rounds lock", zap.Error(err))
			}
		}()
	}

	if err := s.CompleteRounds(ctx); err != nil {
		s.logger.Error("Complete-rounds run failed", zap.Error(err))
	}
}

// CompleteRounds 结算所有已过结束时间的未完成轮次。
// 单个轮次失败只记日志，不阻塞其他轮次
func (s *RoundCompleter) CompleteRounds(ctx context.Context) error {
	rounds, err := s.rounds.ListEndedUncompleted(ctx, s.now().UTC())
	if err != nil {
		return err
	}

	s.logger.Info("Completing ended rounds", zap.Int("count", len(rounds)))

	for _, round := range rounds {
		if err := s.completeRound(ctx, round); err != nil {
			s.logger.Error("Failed to complete round",
				zap.String("round_id", round.RoundID),
				zap.String("org_id", round.OrgID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// scoreAccumulator 单个被评价人的评分聚合。
// 文化分和工作分分开计数：缺省/零分不进分子也不进分母
type scoreAccumulator struct {
	cultureTotal float64
	cultureCount int
	workTotal    float64
	workCount    int
}

func (a *scoreAccumulator) add(assessment *domain.Assessment) {
	if assessment.CultureScore.Valid && assessment.CultureScore.Int32 > 0 {
		a.cultureTotal += float64(assessment.CultureScore.Int32)
		a.cultureCount++
	}
	if assessment.WorkScore.Valid && assessment.WorkScore.Int32 > 0 {
		a.workTotal += float64(assessment.WorkScore.Int32)
		a.workCount++
	}
}

func (a *scoreAccumulator) culturalScore() float64 {
	if a.cultureCount == 0 {
		return 0
	}
	return a.cultureTotal / float64(a.cultureCount)
}

func (a *scoreAccumulator) workScore() float64 {
	if a.workCount == 0 {
		return 0
	}
	return a.workTotal / float64(a.workCount)
}

// finalScore 两类分的均值；只有一类有值时就取那一类
func (a *scoreAccumulator) finalScore() float64 {
	switch {
	case a.cultureCount > 0 && a.workCount > 0:
		return (a.culturalScore() + a.workScore()) / 2
	case a.cultureCount > 0:
		return a.culturalScore()
	case a.workCount > 0:
		return a.workScore()
	default:
		return 0
	}
}

func (s *RoundCompleter) completeRound(ctx context.Context, round *domain.Round) error {
	org, err := s.orgs.GetOrganization(ctx, round.OrgID)
	if err != nil {
		return err
	}

	full, err := s.rounds.GetRoundWithAssessments(ctx, round.RoundID)
	if err != nil {
		return err
	}

	contributors, err := s.users.ListByOrganization(ctx, round.OrgID)
	if err != nil {
		return err
	}
	byID := make(map[string]*domain.User, len(contributors))
	for _, u := range contributors {
		byID[u.UserID] = u
	}

	// 按被评价人聚合。没收到任何考核的贡献者不产生薪酬记录
	scores := map[string]*scoreAccumulator{}
	for _, a := range full.Assessments {
		acc := scores[a.AssessedID]
		if acc == nil {
			acc = &scoreAccumulator{}
			scores[a.AssessedID] = acc
		}
		acc.add(a)
	}

	var fiatTotal float64
	for assessedID, acc := range scores {
		contributor := byID[assessedID]
		comp := s.computeCompensation(org, round.RoundID, assessedID, contributor, acc)
		if _, err := s.comps.CreateCompensation(ctx, comp); err != nil {
			return err
		}
		fiatTotal += comp.Fiat
	}

	// 资金扣减沿用既有口径：余额为 0 时静默跳过，不报资金不足。
	// 只在日志里暴露缺口
	if fiatTotal > 0 && org.TotalFunds > 0 {
		remaining := org.TotalFunds - fiatTotal
		if remaining < 0 {
			s.logger.Warn("Round fiat payouts exceed organization funds",
				zap.String("org_id", org.OrgID),
				zap.String("round_id", round.RoundID),
				zap.Float64("total_funds", org.TotalFunds),
				zap.Float64("fiat_total", fiatTotal),
			)
			remaining = 0
		}
		if err := s.orgs.SetTotalFunds(ctx, org.OrgID, round2(remaining)); err != nil {
			return err
		}
	}

	if err := s.rounds.MarkCompleted(ctx, round.RoundID); err != nil {
		return err
	}

	s.logger.Info("Round completed",
		zap.String("round_id", round.RoundID),
		zap.String("org_id", org.OrgID),
		zap.Int("contributors_paid", len(scores)),
		zap.Float64("fiat_total", round2(fiatTotal)),
	)
	return nil
}

// computeCompensation 把聚合评分折算成 fiat/tp 拆分，带协议快照。
// 协议缺失时所有输入按 0 处理（防御性钳制），仍然落一条零值快照
func (s *RoundCompleter) computeCompensation(
	org *domain.Organization,
	roundID, contributorID string,
	contributor *domain.User,
	acc *scoreAccumulator,
) *domain.ContributorRoundCompensation {
	var commitment, marketRate, fiatRequested float64
	if contributor != nil && contributor.Agreement != nil {
		commitment = float64(contributor.Agreement.Commitment)
		marketRate = contributor.Agreement.MarketRate
		fiatRequested = contributor.Agreement.FiatRequested
	} else {
		s.logger.Warn("Contributor has no agreement, compensation clamped to zero",
			zap.String("round_id", roundID),
			zap.String("contributor_id", contributorID),
		)
	}

	final := acc.finalScore()
	baseSalary := commitment / 100 * marketRate

	// SAM：中性分不增不减，上下波动以 par/2 个百分点封顶
	sam := (final - neutralScore) * (float64(org.PAR) / 100 / 2)
	totalComp := baseSalary * (1 + sam)

	fiat := math.Min(fiatRequested, totalComp)
	tp := math.Max(0, totalComp-fiatRequested)

	return &domain.ContributorRoundCompensation{
		RoundID:                roundID,
		ContributorID:          contributorID,
		CulturalScore:          acc.culturalScore(),
		WorkScore:              acc.workScore(),
		AgreementCommitment:    commitment,
		AgreementMarketRate:    marketRate,
		AgreementFiatRequested: fiatRequested,
		Fiat:                   round2(clampNaN(fiat)),
		TP:                     round2(clampNaN(tp)),
	}
}

// clampNaN 协议数据缺失导致的 NaN 按 0 处理
func clampNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// round2 保留 2 位小数
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
