package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"collabberry-rounds/internal/domain"
)

// MemoryRoundsRepo 内存实现。
// 考核记录加载依赖注入的 AssessmentsRepository（与 Postgres 实现的 JOIN 对应）
type MemoryRoundsRepo struct {
	mu     sync.RWMutex
	rounds map[string]*domain.Round

	assessments AssessmentsRepository // 可为 nil，GetRoundWithAssessments 会跳过加载
}

func NewMemoryRoundsRepo(assessments AssessmentsRepository) *MemoryRoundsRepo {
	return &MemoryRoundsRepo{
		rounds:      map[string]*domain.Round{},
		assessments: assessments,
	}
}

// 确保实现了接口
var _ RoundsRepository = (*MemoryRoundsRepo)(nil)

// Put 直接写入一条轮次（测试播种用）
func (r *MemoryRoundsRepo) Put(round *domain.Round) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if round.RoundID == "" {
		round.RoundID = uuid.NewString()
	}
	cp := *round
	cp.Assessments = nil
	r.rounds[round.RoundID] = &cp
	return round.RoundID
}

func (r *MemoryRoundsRepo) GetRound(_ context.Context, roundID string) (*domain.Round, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	round, ok := r.rounds[roundID]
	if !ok {
		return nil, fmt.Errorf("round %w", ErrNotFound)
	}
	cp := *round
	return &cp, nil
}

func (r *MemoryRoundsRepo) GetRoundWithAssessments(ctx context.Context, roundID string) (*domain.Round, error) {
	round, err := r.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if r.assessments != nil {
		list, err := r.assessments.ListByRound(ctx, roundID, nil)
		if err != nil {
			return nil, err
		}
		round.Assessments = list
	}
	return round, nil
}

func (r *MemoryRoundsRepo) ListByOrganization(_ context.Context, orgID string) ([]*domain.Round, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var rounds []*domain.Round
	for _, round := range r.rounds {
		if round.OrgID == orgID {
			cp := *round
			rounds = append(rounds, &cp)
		}
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i].RoundNumber > rounds[j].RoundNumber })
	return rounds, nil
}

func (r *MemoryRoundsRepo) GetActiveRound(_ context.Context, orgID string, now time.Time) (*domain.Round, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var active *domain.Round
	for _, round := range r.rounds {
		if round.OrgID != orgID || round.IsCompleted {
			continue
		}
		if round.StartDate.After(now) || round.EndDate.Before(now) {
			continue
		}
		if active == nil || round.RoundNumber > active.RoundNumber {
			active = round
		}
	}
	if active == nil {
		return nil, nil
	}
	cp := *active
	return &cp, nil
}

func (r *MemoryRoundsRepo) HasOpenRound(_ context.Context, orgID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, round := range r.rounds {
		if round.OrgID == orgID && !round.IsCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRoundsRepo) CountByOrganization(_ context.Context, orgID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, round := range r.rounds {
		if round.OrgID == orgID {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRoundsRepo) ListEndedUncompleted(_ context.Context, now time.Time) ([]*domain.Round, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var rounds []*domain.Round
	for _, round := range r.rounds {
		if !round.IsCompleted && !round.EndDate.After(now) {
			cp := *round
			rounds = append(rounds, &cp)
		}
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i].EndDate.Before(rounds[j].EndDate) })
	return rounds, nil
}

func (r *MemoryRoundsRepo) CreateRound(_ context.Context, round *domain.Round) (string, error) {
	if round.OrgID == "" {
		return "", fmt.Errorf("org_id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *round
	cp.RoundID = uuid.NewString()
	cp.Assessments = nil
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.rounds[cp.RoundID] = &cp
	return cp.RoundID, nil
}

func (r *MemoryRoundsRepo) UpdateRound(_ context.Context, roundID string, patch *RoundPatch) error {
	if patch == nil || (patch.StartDate == nil && patch.EndDate == nil) {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	round, ok := r.rounds[roundID]
	if !ok || round.IsCompleted {
		return fmt.Errorf("round %w", ErrNotFound)
	}
	if patch.StartDate != nil {
		round.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		round.EndDate = *patch.EndDate
	}
	return nil
}

func (r *MemoryRoundsRepo) MarkCompleted(_ context.Context, roundID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	round, ok := r.rounds[roundID]
	if !ok || round.IsCompleted {
		return fmt.Errorf("round %w", ErrNotFound)
	}
	round.IsCompleted = true
	return nil
}

func (r *MemoryRoundsRepo) SetTxHash(_ context.Context, roundID, txHash string) error {
	if roundID == "" || txHash == "" {
		return fmt.Errorf("round_id and tx_hash are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	round, ok := r.rounds[roundID]
	if !ok || round.TxHash.Valid {
		return fmt.Errorf("%w: tx hash already set or round missing", ErrDuplicate)
	}
	round.TxHash.Valid = true
	round.TxHash.String = txHash
	return nil
}
