package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"collabberry-rounds/internal/domain"
	"collabberry-rounds/internal/repository"
)

type completionFixture struct {
	orgs        *repository.MemoryOrganizationsRepo
	users       *repository.MemoryUsersRepo
	rounds      *repository.MemoryRoundsRepo
	assessments *repository.MemoryAssessmentsRepo
	comps       *repository.MemoryCompensationsRepo
	completer   *RoundCompleter
}

func newCompletionFixture(now time.Time) *completionFixture {
	f := &completionFixture{
		orgs:        repository.NewMemoryOrganizationsRepo(),
		users:       repository.NewMemoryUsersRepo(),
		assessments: repository.NewMemoryAssessmentsRepo(),
		comps:       repository.NewMemoryCompensationsRepo(),
	}
	f.rounds = repository.NewMemoryRoundsRepo(f.assessments)
	f.completer = NewRoundCompleter(f.orgs, f.rounds, f.users, f.comps, nil, zap.NewNop(), 10*time.Minute)
	f.completer.now = func() time.Time { return now }
	return f
}

func (f *completionFixture) seedOrg(par int, funds float64) *domain.Organization {
	org := &domain.Organization{Name: "Berry Labs", PAR: par, TotalFunds: funds}
	f.orgs.Put(org)
	return org
}

func (f *completionFixture) seedContributor(orgID string, commitment int, marketRate, fiatRequested float64) *domain.User {
	user := &domain.User{
		Username:      "contributor",
		WalletAddress: "0x" + uuid.NewString(),
		OrgID:         sql.NullString{Valid: true, String: orgID},
		Agreement: &domain.Agreement{
			OrgID:         orgID,
			Commitment:    commitment,
			MarketRate:    marketRate,
			FiatRequested: fiatRequested,
		},
	}
	f.users.Put(user)
	return user
}

func (f *completionFixture) seedEndedRound(orgID string, now time.Time) *domain.Round {
	round := &domain.Round{
		OrgID:       orgID,
		RoundNumber: 1,
		StartDate:   now.AddDate(0, 0, -8),
		EndDate:     now.AddDate(0, 0, -1),
	}
	f.rounds.Put(round)
	return round
}

func (f *completionFixture) seedAssessment(t *testing.T, roundID, assessorID, assessedID string, culture, work int32) {
	t.Helper()
	_, err := f.assessments.CreateAssessment(context.Background(), &domain.Assessment{
		RoundID:      roundID,
		AssessorID:   assessorID,
		AssessedID:   assessedID,
		CultureScore: sql.NullInt32{Valid: true, Int32: culture},
		WorkScore:    sql.NullInt32{Valid: true, Int32: work},
	})
	require.NoError(t, err)
}

func findCompensation(t *testing.T, comps []*domain.ContributorRoundCompensation, contributorID string) *domain.ContributorRoundCompensation {
	t.Helper()
	for _, c := range comps {
		if c.ContributorID == contributorID {
			return c
		}
	}
	t.Fatalf("no compensation for contributor %s", contributorID)
	return nil
}

func TestCompleteRounds(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)

	t.Run("splits compensation into fiat and team points", func(t *testing.T) {
		f := newCompletionFixture(now)
		org := f.seedOrg(20, 10000)
		// commitment 100%、市场价 1000、要求法币 1000
		alice := f.seedContributor(org.OrgID, 100, 1000, 1000)
		bob := f.seedContributor(org.OrgID, 100, 1000, 1000)
		round := f.seedEndedRound(org.OrgID, now)

		// alice 平均分 8：sam = (8-3)*(20/100/2) = 0.5 → total 1500
		f.seedAssessment(t, round.RoundID, bob.UserID, alice.UserID, 8, 8)
		// bob 平均分 3（中性）：total = base = 1000
		f.seedAssessment(t, round.RoundID, alice.UserID, bob.UserID, 3, 3)

		require.NoError(t, f.completer.CompleteRounds(ctx))

		comps, err := f.comps.ListByRound(ctx, round.RoundID)
		require.NoError(t, err)
		require.Len(t, comps, 2)

		ac := findCompensation(t, comps, alice.UserID)
		assert.Equal(t, 1000.0, ac.Fiat)
		assert.Equal(t, 500.0, ac.TP)
		assert.Equal(t, 8.0, ac.CulturalScore)
		assert.Equal(t, 8.0, ac.WorkScore)

		bc := findCompensation(t, comps, bob.UserID)
		assert.Equal(t, 1000.0, bc.Fiat)
		assert.Equal(t, 0.0, bc.TP)

		// 轮次封口，资金扣减
		completed, err := f.rounds.GetRound(ctx, round.RoundID)
		require.NoError(t, err)
		assert.True(t, completed.IsCompleted)

		updatedOrg, err := f.orgs.GetOrganization(ctx, org.OrgID)
		require.NoError(t, err)
		assert.Equal(t, 8000.0, updatedOrg.TotalFunds)
	})

	t.Run("zero and missing scores are excluded from averages", func(t *testing.T) {
		f := newCompletionFixture(now)
		org := f.seedOrg(20, 0)
		alice := f.seedContributor(org.OrgID, 100, 1000, 1000)
		bob := f.seedContributor(org.OrgID, 100, 1000, 1000)
		carol := f.seedContributor(org.OrgID, 100, 1000, 1000)
		round := f.seedEndedRound(org.OrgID, now)

		// bob 给 alice 打 8/8，carol 给 alice 打 0/缺省：后者不进分母
		f.seedAssessment(t, round.RoundID, bob.UserID, alice.UserID, 8, 8)
		_, err := f.assessments.CreateAssessment(ctx, &domain.Assessment{
			RoundID:      round.RoundID,
			AssessorID:   carol.UserID,
			AssessedID:   alice.UserID,
			CultureScore: sql.NullInt32{Valid: true, Int32: 0},
		})
		require.NoError(t, err)

		require.NoError(t, f.completer.CompleteRounds(ctx))

		comps, err := f.comps.ListByRound(ctx, round.RoundID)
		require.NoError(t, err)

		ac := findCompensation(t, comps, alice.UserID)
		assert.Equal(t, 8.0, ac.CulturalScore)
		assert.Equal(t, 8.0, ac.WorkScore)
	})

	t.Run("contributor without assessments gets no compensation row", func(t *testing.T) {
		f := newCompletionFixture(now)
		org := f.seedOrg(20, 0)
		alice := f.seedContributor(org.OrgID, 100, 1000, 1000)
		bob := f.seedContributor(org.OrgID, 100, 1000, 1000)
		round := f.seedEndedRound(org.OrgID, now)

		f.seedAssessment(t, round.RoundID, bob.UserID, alice.UserID, 5, 5)

		require.NoError(t, f.completer.CompleteRounds(ctx))

		comps, err := f.comps.ListByRound(ctx, round.RoundID)
		require.NoError(t, err)
		require.Len(t, comps, 1)
		assert.Equal(t, alice.UserID, comps[0].ContributorID)
	})

	t.Run("contributor without agreement gets a zero snapshot", func(t *testing.T) {
		f := newCompletionFixture(now)
		org := f.seedOrg(20, 0)
		alice := &domain.User{
			Username:      "no-agreement",
			WalletAddress: "0xnoagreement",
			OrgID:         sql.NullString{Valid: true, String: org.OrgID},
		}
		f.users.Put(alice)
		bob := f.seedContributor(org.OrgID, 100, 1000, 1000)
		round := f.seedEndedRound(org.OrgID, now)

		f.seedAssessment(t, round.RoundID, bob.UserID, alice.UserID, 9, 9)

		require.NoError(t, f.completer.CompleteRounds(ctx))

		comps, err := f.comps.ListByRound(ctx, round.RoundID)
		require.NoError(t, err)

		ac := findCompensation(t, comps, alice.UserID)
		assert.Equal(t, 0.0, ac.Fiat)
		assert.Equal(t, 0.0, ac.TP)
		assert.Equal(t, 9.0, ac.CulturalScore)
	})

	t.Run("funds untouched when organization balance is zero", func(t *testing.T) {
		f := newCompletionFixture(now)
		org := f.seedOrg(20, 0)
		alice := f.seedContributor(org.OrgID, 100, 1000, 1000)
		bob := f.seedContributor(org.OrgID, 100, 1000, 1000)
		round := f.seedEndedRound(org.OrgID, now)

		f.seedAssessment(t, round.RoundID, bob.UserID, alice.UserID, 8, 8)

		require.NoError(t, f.completer.CompleteRounds(ctx))

		updatedOrg, err := f.orgs.GetOrganization(ctx, org.OrgID)
		require.NoError(t, err)
		assert.Equal(t, 0.0, updatedOrg.TotalFunds)

		completed, err := f.rounds.GetRound(ctx, round.RoundID)
		require.NoError(t, err)
		assert.True(t, completed.IsCompleted)
	})

	t.Run("funds clamp at zero when payouts exceed balance", func(t *testing.T) {
		f := newCompletionFixture(now)
		org := f.seedOrg(20, 500)
		alice := f.seedContributor(org.OrgID, 100, 1000, 1000)
		bob := f.seedContributor(org.OrgID, 100, 1000, 1000)
		round := f.seedEndedRound(org.OrgID, now)

		f.seedAssessment(t, round.RoundID, bob.UserID, alice.UserID, 8, 8)

		require.NoError(t, f.completer.CompleteRounds(ctx))

		updatedOrg, err := f.orgs.GetOrganization(ctx, org.OrgID)
		require.NoError(t, err)
		assert.Equal(t, 0.0, updatedOrg.TotalFunds)
	})

	t.Run("rounds still inside their window are left alone", func(t *testing.T) {
		f := newCompletionFixture(now)
		org := f.seedOrg(20, 0)
		round := &domain.Round{
			OrgID:       org.OrgID,
			RoundNumber: 1,
			StartDate:   now.AddDate(0, 0, -2),
			EndDate:     now.AddDate(0, 0, 5),
		}
		f.rounds.Put(round)

		require.NoError(t, f.completer.CompleteRounds(ctx))

		current, err := f.rounds.GetRound(ctx, round.RoundID)
		require.NoError(t, err)
		assert.False(t, current.IsCompleted)
	})
}

func TestScoreAccumulator(t *testing.T) {
	t.Run("final score averages both kinds", func(t *testing.T) {
		acc := &scoreAccumulator{}
		acc.add(&domain.Assessment{
			CultureScore: sql.NullInt32{Valid: true, Int32: 6},
			WorkScore:    sql.NullInt32{Valid: true, Int32: 10},
		})
		assert.Equal(t, 8.0, acc.finalScore())
	})

	t.Run("single-sided scores fall back to the present kind", func(t *testing.T) {
		acc := &scoreAccumulator{}
		acc.add(&domain.Assessment{WorkScore: sql.NullInt32{Valid: true, Int32: 7}})
		assert.Equal(t, 7.0, acc.finalScore())
		assert.Equal(t, 0.0, acc.culturalScore())
	})

	t.Run("no usable scores yields zero", func(t *testing.T) {
		acc := &scoreAccumulator{}
		acc.add(&domain.Assessment{CultureScore: sql.NullInt32{Valid: true, Int32: 0}})
		assert.Equal(t, 0.0, acc.finalScore())
	})
}
