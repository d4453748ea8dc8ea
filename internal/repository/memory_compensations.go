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

// MemoryCompensationsRepo 内存实现。
// (round, contributor) 冲突返回 ErrDuplicate，与 DB 唯一约束对应
type MemoryCompensationsRepo struct {
	mu    sync.RWMutex
	comps map[string]*domain.ContributorRoundCompensation
}

func NewMemoryCompensationsRepo() *MemoryCompensationsRepo {
	return &MemoryCompensationsRepo{comps: map[string]*domain.ContributorRoundCompensation{}}
}

// 确保实现了接口
var _ CompensationsRepository = (*MemoryCompensationsRepo)(nil)

func (r *MemoryCompensationsRepo) ListByRound(_ context.Context, roundID string) ([]*domain.ContributorRoundCompensation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []*domain.ContributorRoundCompensation
	for _, c := range r.comps {
		if c.RoundID == roundID {
			cp := *c
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ContributorID < list[j].ContributorID })
	return list, nil
}

func (r *MemoryCompensationsRepo) CreateCompensation(_ context.Context, c *domain.ContributorRoundCompensation) (string, error) {
	if c.RoundID == "" || c.ContributorID == "" {
		return "", fmt.Errorf("round_id and contributor_id are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.comps {
		if existing.RoundID == c.RoundID && existing.ContributorID == c.ContributorID {
			return "", fmt.Errorf("%w: compensation for this contributor already exists", ErrDuplicate)
		}
	}
	cp := *c
	cp.CompensationID = uuid.NewString()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.comps[cp.CompensationID] = &cp
	return cp.CompensationID, nil
}
