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

// MemoryAssessmentsRepo 内存实现。
// 与 Postgres 的唯一约束对应：(round, assessor, assessed) 冲突返回 ErrDuplicate
type MemoryAssessmentsRepo struct {
	mu          sync.RWMutex
	assessments map[string]*domain.Assessment
}

func NewMemoryAssessmentsRepo() *MemoryAssessmentsRepo {
	return &MemoryAssessmentsRepo{assessments: map[string]*domain.Assessment{}}
}

// 确保实现了接口
var _ AssessmentsRepository = (*MemoryAssessmentsRepo)(nil)

func (r *MemoryAssessmentsRepo) GetAssessment(_ context.Context, assessmentID string) (*domain.Assessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assessments[assessmentID]
	if !ok {
		return nil, fmt.Errorf("assessment %w", ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryAssessmentsRepo) ListByRound(_ context.Context, roundID string, filters *AssessmentFilters) ([]*domain.Assessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []*domain.Assessment
	for _, a := range r.assessments {
		if a.RoundID != roundID {
			continue
		}
		if filters != nil {
			if filters.AssessorID != "" && a.AssessorID != filters.AssessorID {
				continue
			}
			if filters.AssessedID != "" && a.AssessedID != filters.AssessedID {
				continue
			}
		}
		cp := *a
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (r *MemoryAssessmentsRepo) Exists(_ context.Context, roundID, assessorID, assessedID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(roundID, assessorID, assessedID) != nil, nil
}

func (r *MemoryAssessmentsRepo) lookup(roundID, assessorID, assessedID string) *domain.Assessment {
	for _, a := range r.assessments {
		if a.RoundID == roundID && a.AssessorID == assessorID && a.AssessedID == assessedID {
			return a
		}
	}
	return nil
}

func (r *MemoryAssessmentsRepo) CreateAssessment(_ context.Context, a *domain.Assessment) (string, error) {
	if a.RoundID == "" || a.AssessorID == "" || a.AssessedID == "" {
		return "", fmt.Errorf("round_id, assessor_id and assessed_id are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lookup(a.RoundID, a.AssessorID, a.AssessedID) != nil {
		return "", fmt.Errorf("%w: assessment for this pair already exists", ErrDuplicate)
	}
	cp := *a
	cp.AssessmentID = uuid.NewString()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.assessments[cp.AssessmentID] = &cp
	return cp.AssessmentID, nil
}

func (r *MemoryAssessmentsRepo) UpdateAssessment(_ context.Context, assessmentID string, patch *AssessmentPatch) error {
	if patch == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assessments[assessmentID]
	if !ok {
		return fmt.Errorf("assessment %w", ErrNotFound)
	}
	if patch.CultureScore != nil {
		a.CultureScore.Valid = true
		a.CultureScore.Int32 = *patch.CultureScore
	}
	if patch.WorkScore != nil {
		a.WorkScore.Valid = true
		a.WorkScore.Int32 = *patch.WorkScore
	}
	if patch.FeedbackPositive != nil {
		a.FeedbackPositive = *patch.FeedbackPositive
	}
	if patch.FeedbackNegative != nil {
		a.FeedbackNegative = *patch.FeedbackNegative
	}
	return nil
}
