package cycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utcDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("weekly")
	require.NoError(t, err)
	assert.Equal(t, Weekly, p)

	p, err = ParsePeriod("quarterly")
	require.NoError(t, err)
	assert.Equal(t, Quarterly, p)

	_, err = ParsePeriod("fortnightly")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestRoundStartTime_Weekly(t *testing.T) {
	now := utcDate(2024, time.March, 1)
	anchor := utcDate(2024, time.March, 4)

	start, err := RoundStartTime(Weekly, anchor, 0, now)
	require.NoError(t, err)
	assert.Equal(t, utcDate(2024, time.March, 11), start)

	// 开始延迟天数叠加在周期之后
	start, err = RoundStartTime(Weekly, anchor, 2, now)
	require.NoError(t, err)
	assert.Equal(t, utcDate(2024, time.March, 13), start)
}

func TestRoundStartTime_Biweekly(t *testing.T) {
	now := utcDate(2024, time.March, 1)
	anchor := utcDate(2024, time.March, 4)

	start, err := RoundStartTime(Biweekly, anchor, 1, now)
	require.NoError(t, err)
	assert.Equal(t, utcDate(2024, time.March, 19), start)
}

func TestRoundStartTime_MonthlyCalendarArithmetic(t *testing.T) {
	now := utcDate(2024, time.January, 1)

	// 月度周期按日历月推进，不是固定 30 天
	start, err := RoundStartTime(Monthly, utcDate(2024, time.January, 15), 0, now)
	require.NoError(t, err)
	assert.Equal(t, utcDate(2024, time.February, 15), start)

	// 季度同理
	start, err = RoundStartTime(Quarterly, utcDate(2024, time.January, 15), 3, now)
	require.NoError(t, err)
	assert.Equal(t, utcDate(2024, time.April, 18), start)
}

func TestRoundStartTime_ClampsToToday(t *testing.T) {
	// 锚点远在过去（调度长期停摆）：收敛到今天零点而不是过去的日期
	now := time.Date(2024, time.June, 10, 15, 30, 0, 0, time.UTC)
	anchor := utcDate(2023, time.January, 2)

	start, err := RoundStartTime(Weekly, anchor, 0, now)
	require.NoError(t, err)
	assert.Equal(t, utcDate(2024, time.June, 10), start)
}

func TestRoundStartTime_InvalidPeriod(t *testing.T) {
	_, err := RoundStartTime(Period(9), utcDate(2024, time.March, 4), 0, utcDate(2024, time.March, 1))
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestRoundEndTime(t *testing.T) {
	start := utcDate(2024, time.March, 11)
	end := RoundEndTime(start, 5)

	// 固定在结束日 23:59:00 UTC
	assert.Equal(t, time.Date(2024, time.March, 16, 23, 59, 0, 0, time.UTC), end)
	assert.True(t, end.After(start))

	// 纯按天数推进，跨月不受月长影响
	end = RoundEndTime(utcDate(2024, time.January, 30), 3)
	assert.Equal(t, time.Date(2024, time.February, 2, 23, 59, 0, 0, time.UTC), end)

	// duration = 0 仍然 >= start（当天 23:59）
	end = RoundEndTime(start, 0)
	assert.False(t, end.Before(start))
}

func TestNextCycleStart_AdvancesExactlyOnePeriod(t *testing.T) {
	anchor := utcDate(2024, time.March, 4)

	cases := []struct {
		period Period
		want   time.Time
	}{
		{Weekly, utcDate(2024, time.March, 11)},
		{Biweekly, utcDate(2024, time.March, 18)},
		{Monthly, utcDate(2024, time.April, 4)},
		{Quarterly, utcDate(2024, time.June, 4)},
	}
	for _, tc := range cases {
		got, err := NextCycleStart(anchor, tc.period)
		require.NoError(t, err, tc.period.String())
		assert.Equal(t, tc.want, got, tc.period.String())
		assert.True(t, got.After(anchor), tc.period.String())
	}
}

func TestNextCycleStart_TwiceEqualsTwoPeriods(t *testing.T) {
	anchor := utcDate(2024, time.January, 31)

	for _, p := range []Period{Weekly, Biweekly, Monthly, Quarterly} {
		once, err := NextCycleStart(anchor, p)
		require.NoError(t, err)
		twice, err := NextCycleStart(once, p)
		require.NoError(t, err)

		var want time.Time
		switch p {
		case Weekly:
			want = anchor.AddDate(0, 0, 14)
		case Biweekly:
			want = anchor.AddDate(0, 0, 28)
		case Monthly:
			want = anchor.AddDate(0, 1, 0).AddDate(0, 1, 0)
		case Quarterly:
			want = anchor.AddDate(0, 3, 0).AddDate(0, 3, 0)
		}
		assert.Equal(t, want, twice, p.String())
	}
}

func TestNextCycleStart_InvalidPeriod(t *testing.T) {
	_, err := NextCycleStart(utcDate(2024, time.March, 4), Period(0))
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestDayBoundaries(t *testing.T) {
	at := time.Date(2024, time.March, 11, 13, 45, 12, 0, time.UTC)

	begin := BeginningOfDay(at)
	assert.Equal(t, utcDate(2024, time.March, 11), begin)

	end := EndOfDay(at)
	assert.Equal(t, 23, end.Hour())
	assert.Equal(t, 59, end.Minute())
	assert.Equal(t, 59, end.Second())
	assert.True(t, end.After(begin))
	assert.Equal(t, begin.AddDate(0, 0, 1).Add(-time.Millisecond), end)
}
