package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"collabberry-rounds/internal/domain"
	"collabberry-rounds/internal/repository"
)

// recordingNotifier 记录收件人，测试用
type recordingNotifier struct {
	mu        sync.Mutex
	reminders []string
	started   []string
}

func (n *recordingNotifier) SendRoundStarted(_ context.Context, email, _, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.started = append(n.started, email)
}

func (n *recordingNotifier) SendAssessmentReminder(_ context.Context, email, _, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reminders = append(n.reminders, email)
}

type roundServiceFixture struct {
	orgs        *repository.MemoryOrganizationsRepo
	users       *repository.MemoryUsersRepo
	rounds      *repository.MemoryRoundsRepo
	assessments *repository.MemoryAssessmentsRepo
	comps       *repository.MemoryCompensationsRepo
	notifier    *recordingNotifier
	svc         RoundService

	orgID string
}

func newRoundServiceFixture(now time.Time) *roundServiceFixture {
	f := &roundServiceFixture{
		orgs:        repository.NewMemoryOrganizationsRepo(),
		users:       repository.NewMemoryUsersRepo(),
		assessments: repository.NewMemoryAssessmentsRepo(),
		comps:       repository.NewMemoryCompensationsRepo(),
		notifier:    &recordingNotifier{},
	}
	f.rounds = repository.NewMemoryRoundsRepo(f.assessments)

	svc := NewRoundService(f.orgs, f.rounds, f.users, f.comps, f.notifier, zap.NewNop())
	svc.(*roundService).now = func() time.Time { return now }
	f.svc = svc

	f.orgID = f.orgs.Put(&domain.Organization{Name: "Berry Labs", PAR: 20})
	return f
}

func (f *roundServiceFixture) seedMember(username, wallet, email string) *domain.User {
	u := &domain.User{
		Username:      username,
		WalletAddress: wallet,
		OrgID:         sql.NullString{Valid: true, String: f.orgID},
	}
	if email != "" {
		u.Email = sql.NullString{Valid: true, String: email}
	}
	f.users.Put(u)
	return u
}

func TestGetCurrentRound(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("in-progress round", func(t *testing.T) {
		f := newRoundServiceFixture(now)
		roundID := f.rounds.Put(&domain.Round{
			OrgID:       f.orgID,
			RoundNumber: 1,
			StartDate:   now.AddDate(0, 0, -1),
			EndDate:     now.AddDate(0, 0, 6),
		})

		current, err := f.svc.GetCurrentRound(ctx, f.orgID)
		require.NoError(t, err)
		assert.Equal(t, domain.RoundInProgress, current.Status)
		require.NotNil(t, current.Round)
		assert.Equal(t, roundID, current.Round.RoundID)
	})

	t.Run("upcoming round reports not_started", func(t *testing.T) {
		f := newRoundServiceFixture(now)
		f.rounds.Put(&domain.Round{
			OrgID:       f.orgID,
			RoundNumber: 1,
			StartDate:   now.AddDate(0, 0, 2),
			EndDate:     now.AddDate(0, 0, 9),
		})

		current, err := f.svc.GetCurrentRound(ctx, f.orgID)
		require.NoError(t, err)
		assert.Equal(t, domain.RoundNotStarted, current.Status)
		assert.NotNil(t, current.Round)
	})

	t.Run("no uncompleted rounds", func(t *testing.T) {
		f := newRoundServiceFixture(now)
		f.rounds.Put(&domain.Round{
			OrgID:       f.orgID,
			RoundNumber: 1,
			StartDate:   now.AddDate(0, 0, -20),
			EndDate:     now.AddDate(0, 0, -13),
			IsCompleted: true,
		})

		current, err := f.svc.GetCurrentRound(ctx, f.orgID)
		require.NoError(t, err)
		assert.Equal(t, domain.RoundCompleted, current.Status)
		assert.Nil(t, current.Round)
	})

	t.Run("unknown organization", func(t *testing.T) {
		f := newRoundServiceFixture(now)
		_, err := f.svc.GetCurrentRound(ctx, "99999999-9999-9999-9999-999999999999")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestEditRound(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("adjusts the assessment window", func(t *testing.T) {
		f := newRoundServiceFixture(now)
		roundID := f.rounds.Put(&domain.Round{
			OrgID:       f.orgID,
			RoundNumber: 1,
			StartDate:   now.AddDate(0, 0, -1),
			EndDate:     now.AddDate(0, 0, 6),
		})

		newEnd := now.AddDate(0, 0, 10)
		updated, err := f.svc.EditRound(ctx, roundID, nil, &newEnd)
		require.NoError(t, err)
		assert.Equal(t, newEnd, updated.EndDate)
		assert.Equal(t, now.AddDate(0, 0, -1), updated.StartDate, "start untouched")
	})

	t.Run("rejects completed round", func(t *testing.T) {
		f := newRoundServiceFixture(now)
		roundID := f.rounds.Put(&domain.Round{
			OrgID:       f.orgID,
			RoundNumber: 1,
			StartDate:   now.AddDate(0, 0, -10),
			EndDate:     now.AddDate(0, 0, -3),
			IsCompleted: true,
		})

		newEnd := now.AddDate(0, 0, 10)
		_, err := f.svc.EditRound(ctx, roundID, nil, &newEnd)
		assert.ErrorIs(t, err, ErrRoundCompleted)
	})
}

func TestRemindToAssess(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	seedRound := func(f *roundServiceFixture) string {
		return f.rounds.Put(&domain.Round{
			OrgID:       f.orgID,
			RoundNumber: 1,
			StartDate:   now.AddDate(0, 0, -1),
			EndDate:     now.AddDate(0, 0, 6),
		})
	}

	t.Run("all=true targets contributors with pending assessments", func(t *testing.T) {
		f := newRoundServiceFixture(now)
		alice := f.seedMember("alice", "0xa1", "alice@berry.xyz")
		bob := f.seedMember("bob", "0xb1", "bob@berry.xyz")
		carol := f.seedMember("carol", "0xc1", "carol@berry.xyz")
		roundID := seedRound(f)

		// alice 评完了两位同事；bob 只评了一位；carol 没评
		_, err := f.assessments.CreateAssessment(ctx, &domain.Assessment{
			RoundID: roundID, AssessorID: alice.UserID, AssessedID: bob.UserID,
			CultureScore: sql.NullInt32{Valid: true, Int32: 5},
		})
		require.NoError(t, err)
		_, err = f.assessments.CreateAssessment(ctx, &domain.Assessment{
			RoundID: roundID, AssessorID: alice.UserID, AssessedID: carol.UserID,
			CultureScore: sql.NullInt32{Valid: true, Int32: 6},
		})
		require.NoError(t, err)
		_, err = f.assessments.CreateAssessment(ctx, &domain.Assessment{
			RoundID: roundID, AssessorID: bob.UserID, AssessedID: carol.UserID,
			CultureScore: sql.NullInt32{Valid: true, Int32: 7},
		})
		require.NoError(t, err)

		require.NoError(t, f.svc.RemindToAssess(ctx, roundID, true, nil))

		assert.ElementsMatch(t, []string{"bob@berry.xyz", "carol@berry.xyz"}, f.notifier.reminders)
	})

	t.Run("explicit user list", func(t *testing.T) {
		f := newRoundServiceFixture(now)
		f.seedMember("alice", "0xa2", "alice@berry.xyz")
		bob := f.seedMember("bob", "0xb2", "bob@berry.xyz")
		roundID := seedRound(f)

		require.NoError(t, f.svc.RemindToAssess(ctx, roundID, false, []string{bob.UserID}))
		assert.Equal(t, []string{"bob@berry.xyz"}, f.notifier.reminders)
	})

	t.Run("contributors without email are skipped", func(t *testing.T) {
		f := newRoundServiceFixture(now)
		f.seedMember("alice", "0xa3", "")
		f.seedMember("bob", "0xb3", "bob@berry.xyz")
		roundID := seedRound(f)

		require.NoError(t, f.svc.RemindToAssess(ctx, roundID, true, nil))
		assert.Equal(t, []string{"bob@berry.xyz"}, f.notifier.reminders)
	})

	t.Run("rejects completed round", func(t *testing.T) {
		f := newRoundServiceFixture(now)
		roundID := f.rounds.Put(&domain.Round{
			OrgID:       f.orgID,
			RoundNumber: 1,
			StartDate:   now.AddDate(0, 0, -10),
			EndDate:     now.AddDate(0, 0, -3),
			IsCompleted: true,
		})

		err := f.svc.RemindToAssess(ctx, roundID, true, nil)
		assert.ErrorIs(t, err, ErrRoundCompleted)
	})
}

func TestAddTokenMintTx(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("records hash on a completed round once", func(t *testing.T) {
		f := newRoundServiceFixture(now)
		roundID := f.rounds.Put(&domain.Round{
			OrgID:       f.orgID,
			RoundNumber: 1,
			StartDate:   now.AddDate(0, 0, -10),
			EndDate:     now.AddDate(0, 0, -3),
			IsCompleted: true,
		})

		require.NoError(t, f.svc.AddTokenMintTx(ctx, roundID, "0xdeadbeef"))

		round, err := f.rounds.GetRound(ctx, roundID)
		require.NoError(t, err)
		assert.Equal(t, "0xdeadbeef", round.TxHash.String)

		// 二次写被拒，原哈希不变
		err = f.svc.AddTokenMintTx(ctx, roundID, "0xcafebabe")
		assert.Error(t, err)
		round, err = f.rounds.GetRound(ctx, roundID)
		require.NoError(t, err)
		assert.Equal(t, "0xdeadbeef", round.TxHash.String)
	})

	t.Run("rejects uncompleted round", func(t *testing.T) {
		f := newRoundServiceFixture(now)
		roundID := f.rounds.Put(&domain.Round{
			OrgID:       f.orgID,
			RoundNumber: 1,
			StartDate:   now.AddDate(0, 0, -1),
			EndDate:     now.AddDate(0, 0, 6),
		})

		err := f.svc.AddTokenMintTx(ctx, roundID, "0xdeadbeef")
		assert.ErrorIs(t, err, ErrRoundNotCompleted)
	})
}

func TestGetRounds(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	f := newRoundServiceFixture(now)
	for i := 1; i <= 3; i++ {
		f.rounds.Put(&domain.Round{
			OrgID:       f.orgID,
			RoundNumber: i,
			StartDate:   now.AddDate(0, 0, -7*(4-i)),
			EndDate:     now.AddDate(0, 0, -7*(4-i)+6),
			IsCompleted: i < 3,
		})
	}

	rounds, err := f.svc.GetRounds(ctx, f.orgID)
	require.NoError(t, err)
	require.Len(t, rounds, 3)
	assert.Equal(t, 3, rounds[0].RoundNumber, "newest first")

	_, err = f.svc.GetRounds(ctx, "99999999-9999-9999-9999-999999999999")
	assert.ErrorIs(t, err, ErrNotFound)
}
