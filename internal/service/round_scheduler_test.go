package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"collabberry-rounds/internal/cycle"
	"collabberry-rounds/internal/domain"
	"collabberry-rounds/internal/repository"
)

func newTestScheduler(orgs *repository.MemoryOrganizationsRepo, rounds *repository.MemoryRoundsRepo, users *repository.MemoryUsersRepo, now time.Time) *RoundScheduler {
	s := NewRoundScheduler(orgs, rounds, users, NoopNotifier{}, nil, zap.NewNop(), 7, 10*time.Minute)
	s.now = func() time.Time { return now }
	return s
}

func seedConfiguredOrg(orgs *repository.MemoryOrganizationsRepo, period cycle.Period, anchor time.Time) *domain.Organization {
	org := &domain.Organization{
		Name:                       "Berry Labs",
		PAR:                        20,
		CompensationPeriod:         sql.NullInt32{Valid: true, Int32: int32(period)},
		CompensationStartDay:       sql.NullTime{Valid: true, Time: anchor},
		AssessmentDurationInDays:   7,
		AssessmentStartDelayInDays: 0,
	}
	orgs.Put(org)
	return org
}

func TestCreateRoundForOrganization(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("creates round when cycle start is within lookahead window", func(t *testing.T) {
		orgs := repository.NewMemoryOrganizationsRepo()
		assessments := repository.NewMemoryAssessmentsRepo()
		rounds := repository.NewMemoryRoundsRepo(assessments)
		users := repository.NewMemoryUsersRepo()

		anchor := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
		org := seedConfiguredOrg(orgs, cycle.Weekly, anchor)

		s := newTestScheduler(orgs, rounds, users, now)
		require.NoError(t, s.CreateRoundForOrganization(ctx, org))

		list, err := rounds.ListByOrganization(ctx, org.OrgID)
		require.NoError(t, err)
		require.Len(t, list, 1)

		round := list[0]
		assert.Equal(t, 1, round.RoundNumber)
		// 锚点 3/5 + 1 周 = 3/12，在 7 天窗口内
		assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), round.StartDate)
		assert.Equal(t, time.Date(2026, 3, 19, 23, 59, 0, 0, time.UTC), round.EndDate)
		assert.Equal(t, anchor, round.CompensationCycleStartDate)
		assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), round.CompensationCycleEndDate)
		assert.False(t, round.IsCompleted)

		// 锚点推进到下个周期
		updated, err := orgs.GetOrganization(ctx, org.OrgID)
		require.NoError(t, err)
		assert.Equal(t, round.CompensationCycleEndDate, updated.CompensationStartDay.Time)
	})

	t.Run("clamps start date to today when anchor lags behind", func(t *testing.T) {
		orgs := repository.NewMemoryOrganizationsRepo()
		assessments := repository.NewMemoryAssessmentsRepo()
		rounds := repository.NewMemoryRoundsRepo(assessments)
		users := repository.NewMemoryUsersRepo()

		// 锚点远在过去：计算出的开始时间早于今天，应钳制到今天零点
		anchor := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		org := seedConfiguredOrg(orgs, cycle.Weekly, anchor)

		s := newTestScheduler(orgs, rounds, users, now)
		require.NoError(t, s.CreateRoundForOrganization(ctx, org))

		list, err := rounds.ListByOrganization(ctx, org.OrgID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), list[0].StartDate)
	})

	t.Run("skips organization with an open round", func(t *testing.T) {
		orgs := repository.NewMemoryOrganizationsRepo()
		assessments := repository.NewMemoryAssessmentsRepo()
		rounds := repository.NewMemoryRoundsRepo(assessments)
		users := repository.NewMemoryUsersRepo()

		org := seedConfiguredOrg(orgs, cycle.Weekly, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
		rounds.Put(&domain.Round{
			OrgID:       org.OrgID,
			RoundNumber: 1,
			StartDate:   now.AddDate(0, 0, -1),
			EndDate:     now.AddDate(0, 0, 6),
		})

		s := newTestScheduler(orgs, rounds, users, now)
		require.NoError(t, s.CreateRoundForOrganization(ctx, org))

		count, err := rounds.CountByOrganization(ctx, org.OrgID)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "no second round while one is open")
	})

	t.Run("skips organization whose cycle start is beyond the lookahead window", func(t *testing.T) {
		orgs := repository.NewMemoryOrganizationsRepo()
		assessments := repository.NewMemoryAssessmentsRepo()
		rounds := repository.NewMemoryRoundsRepo(assessments)
		users := repository.NewMemoryUsersRepo()

		// 月周期，锚点 3/9：下一轮 4/9，远超 7 天窗口
		org := seedConfiguredOrg(orgs, cycle.Monthly, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC))

		s := newTestScheduler(orgs, rounds, users, now)
		require.NoError(t, s.CreateRoundForOrganization(ctx, org))

		count, err := rounds.CountByOrganization(ctx, org.OrgID)
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		// 窗口外不建轮也不推进锚点
		updated, err := orgs.GetOrganization(ctx, org.OrgID)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), updated.CompensationStartDay.Time)
	})

	t.Run("skips unconfigured organization", func(t *testing.T) {
		orgs := repository.NewMemoryOrganizationsRepo()
		assessments := repository.NewMemoryAssessmentsRepo()
		rounds := repository.NewMemoryRoundsRepo(assessments)
		users := repository.NewMemoryUsersRepo()

		org := &domain.Organization{Name: "Unconfigured", PAR: 20}
		orgs.Put(org)

		s := newTestScheduler(orgs, rounds, users, now)
		require.NoError(t, s.CreateRoundForOrganization(ctx, org))

		count, err := rounds.CountByOrganization(ctx, org.OrgID)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("round numbers increment per organization", func(t *testing.T) {
		orgs := repository.NewMemoryOrganizationsRepo()
		assessments := repository.NewMemoryAssessmentsRepo()
		rounds := repository.NewMemoryRoundsRepo(assessments)
		users := repository.NewMemoryUsersRepo()

		org := seedConfiguredOrg(orgs, cycle.Weekly, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
		rounds.Put(&domain.Round{
			OrgID:       org.OrgID,
			RoundNumber: 1,
			StartDate:   now.AddDate(0, 0, -20),
			EndDate:     now.AddDate(0, 0, -13),
			IsCompleted: true,
		})

		s := newTestScheduler(orgs, rounds, users, now)
		require.NoError(t, s.CreateRoundForOrganization(ctx, org))

		list, err := rounds.ListByOrganization(ctx, org.OrgID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, 2, list[0].RoundNumber)
	})
}

func TestCreateRoundsIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	orgs := repository.NewMemoryOrganizationsRepo()
	assessments := repository.NewMemoryAssessmentsRepo()
	rounds := repository.NewMemoryRoundsRepo(assessments)
	users := repository.NewMemoryUsersRepo()

	// 周期值非法的组织会失败，但不应阻塞其他组织
	bad := &domain.Organization{
		Name:                 "Bad Period",
		PAR:                  20,
		CompensationPeriod:   sql.NullInt32{Valid: true, Int32: 99},
		CompensationStartDay: sql.NullTime{Valid: true, Time: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)},
	}
	orgs.Put(bad)
	good := seedConfiguredOrg(orgs, cycle.Weekly, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))

	s := newTestScheduler(orgs, rounds, users, now)
	require.NoError(t, s.CreateRounds(ctx))

	goodCount, err := rounds.CountByOrganization(ctx, good.OrgID)
	require.NoError(t, err)
	assert.Equal(t, 1, goodCount)

	badCount, err := rounds.CountByOrganization(ctx, bad.OrgID)
	require.NoError(t, err)
	assert.Equal(t, 0, badCount)
}
