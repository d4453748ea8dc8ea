package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"collabberry-rounds/internal/domain"
)

// MemoryOrganizationsRepo 内存实现：DB 未就绪时的联测与单元测试用
type MemoryOrganizationsRepo struct {
	mu   sync.RWMutex
	orgs map[string]*domain.Organization
}

func NewMemoryOrganizationsRepo() *MemoryOrganizationsRepo {
	return &MemoryOrganizationsRepo{orgs: map[string]*domain.Organization{}}
}

// 确保实现了接口
var _ OrganizationsRepository = (*MemoryOrganizationsRepo)(nil)

// Put 直接写入一条组织（测试播种用）
func (r *MemoryOrganizationsRepo) Put(org *domain.Organization) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if org.OrgID == "" {
		org.OrgID = uuid.NewString()
	}
	cp := *org
	r.orgs[org.OrgID] = &cp
	return org.OrgID
}

func (r *MemoryOrganizationsRepo) GetOrganization(_ context.Context, orgID string) (*domain.Organization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	org, ok := r.orgs[orgID]
	if !ok {
		return nil, fmt.Errorf("organization %w", ErrNotFound)
	}
	cp := *org
	return &cp, nil
}

func (r *MemoryOrganizationsRepo) ListConfigured(_ context.Context) ([]*domain.Organization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var orgs []*domain.Organization
	for _, org := range r.orgs {
		if org.CompensationConfigured() {
			cp := *org
			orgs = append(orgs, &cp)
		}
	}
	return orgs, nil
}

func (r *MemoryOrganizationsRepo) AdvanceCompensationStartDay(_ context.Context, orgID string, next time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	org, ok := r.orgs[orgID]
	if !ok {
		return fmt.Errorf("organization %w", ErrNotFound)
	}
	org.CompensationStartDay.Valid = true
	org.CompensationStartDay.Time = next
	return nil
}

func (r *MemoryOrganizationsRepo) SetTotalFunds(_ context.Context, orgID string, funds float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	org, ok := r.orgs[orgID]
	if !ok {
		return fmt.Errorf("organization %w", ErrNotFound)
	}
	org.TotalFunds = funds
	return nil
}
