package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"collabberry-rounds/internal/domain"
)

// MemoryUsersRepo 内存实现
type MemoryUsersRepo struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

func NewMemoryUsersRepo() *MemoryUsersRepo {
	return &MemoryUsersRepo{users: map[string]*domain.User{}}
}

// 确保实现了接口
var _ UsersRepository = (*MemoryUsersRepo)(nil)

// Put 直接写入一条用户（测试播种用），地址归一化为小写
func (r *MemoryUsersRepo) Put(user *domain.User) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.UserID == "" {
		user.UserID = uuid.NewString()
	}
	user.WalletAddress = strings.ToLower(user.WalletAddress)
	cp := *user
	if user.Agreement != nil {
		agr := *user.Agreement
		if agr.AgreementID == "" {
			agr.AgreementID = uuid.NewString()
		}
		agr.UserID = user.UserID
		cp.Agreement = &agr
	}
	r.users[user.UserID] = &cp
	return user.UserID
}

func copyUser(u *domain.User) *domain.User {
	cp := *u
	if u.Agreement != nil {
		agr := *u.Agreement
		cp.Agreement = &agr
	}
	return &cp
}

func (r *MemoryUsersRepo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %w", ErrNotFound)
	}
	return copyUser(user), nil
}

func (r *MemoryUsersRepo) GetByWalletAddress(_ context.Context, walletAddress string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallet := strings.ToLower(walletAddress)
	for _, user := range r.users {
		if user.WalletAddress == wallet {
			return copyUser(user), nil
		}
	}
	return nil, fmt.Errorf("user %w", ErrNotFound)
}

func (r *MemoryUsersRepo) ListByOrganization(_ context.Context, orgID string) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var users []*domain.User
	for _, user := range r.users {
		if user.OrgID.Valid && user.OrgID.String == orgID {
			users = append(users, copyUser(user))
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users, nil
}
