// Package cycle 薪酬周期与考核轮次的日期推算（纯函数，全部按 UTC 天粒度）
package cycle

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPeriod 未知的薪酬周期类型
var ErrInvalidPeriod = errors.New("invalid compensation period")

// Period 薪酬周期类型
type Period int

const (
	Weekly    Period = 1
	Biweekly  Period = 2
	Monthly   Period = 3
	Quarterly Period = 4
)

func (p Period) String() string {
	switch p {
	case Weekly:
		return "weekly"
	case Biweekly:
		return "biweekly"
	case Monthly:
		return "monthly"
	case Quarterly:
		return "quarterly"
	default:
		return fmt.Sprintf("period(%d)", int(p))
	}
}

// Valid 周期值是否合法
func (p Period) Valid() bool {
	return p >= Weekly && p <= Quarterly
}

// ParsePeriod 解析周期名称（"weekly"/"biweekly"/"monthly"/"quarterly"）
func ParsePeriod(s string) (Period, error) {
	switch s {
	case "weekly":
		return Weekly, nil
	case "biweekly":
		return Biweekly, nil
	case "monthly":
		return Monthly, nil
	case "quarterly":
		return Quarterly, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
}

// RoundStartTime 计算下一个考核轮次的开始时间：
// 周期锚点日 + 一个完整周期 + 开始延迟天数。
// 结果早于今天（调度停摆/时钟漂移）时收敛到今天零点。
func RoundStartTime(period Period, cycleAnchor time.Time, startDelayDays int, now time.Time) (time.Time, error) {
	start := BeginningOfDay(cycleAnchor)

	switch period {
	case Weekly:
		start = start.AddDate(0, 0, 7+startDelayDays)
	case Biweekly:
		start = start.AddDate(0, 0, 14+startDelayDays)
	case Monthly:
		start = start.AddDate(0, 1, 0).AddDate(0, 0, startDelayDays)
	case Quarterly:
		start = start.AddDate(0, 3, 0).AddDate(0, 0, startDelayDays)
	default:
		return time.Time{}, fmt.Errorf("%w: %d", ErrInvalidPeriod, int(period))
	}

	if today := BeginningOfDay(now); start.Before(today) {
		return today, nil
	}
	return start, nil
}

// RoundEndTime 计算轮次结束时间：开始日 + 考核时长（天），
// 固定为当天 23:59:00 UTC，保证"今天结束"覆盖整个当天。
func RoundEndTime(start time.Time, assessmentDurationDays int) time.Time {
	end := start.UTC().AddDate(0, 0, assessmentDurationDays)
	return time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 0, 0, time.UTC)
}

// NextCycleStart 锚点日前进一个完整周期（不含延迟）。
// 轮次创建后把组织锚点推进到这里，同一周期不会重复建轮。
func NextCycleStart(anchor time.Time, period Period) (time.Time, error) {
	next := BeginningOfDay(anchor)

	switch period {
	case Weekly:
		next = next.AddDate(0, 0, 7)
	case Biweekly:
		next = next.AddDate(0, 0, 14)
	case Monthly:
		next = next.AddDate(0, 1, 0)
	case Quarterly:
		next = next.AddDate(0, 3, 0)
	default:
		return time.Time{}, fmt.Errorf("%w: %d", ErrInvalidPeriod, int(period))
	}

	return next, nil
}

// BeginningOfDay 当天 00:00:00.000 UTC
func BeginningOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay 当天 23:59:59.999 UTC
func EndOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), time.UTC)
}
