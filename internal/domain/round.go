package domain

import (
	"database/sql"
	"time"
)

// RoundStatus 轮次状态（由时间推导，isCompleted 除外）
type RoundStatus string

const (
	RoundNotStarted RoundStatus = "not_started"
	RoundInProgress RoundStatus = "in_progress"
	RoundCompleted  RoundStatus = "completed"
	// RoundEnded 窗口已过但完成任务还没跑到
	RoundEnded RoundStatus = "ended"
)

// Round 考核轮次领域模型（对应 rounds 表）
// 嵌套在薪酬周期内的考核窗口；isCompleted 单向 false→true，
// 只由完成任务翻转
type Round struct {
	// 主键
	RoundID string `db:"round_id"` // UUID, PRIMARY KEY

	// 组织
	OrgID string `db:"org_id"` // UUID, NOT NULL, FK to organizations

	// 组织内递增序号
	RoundNumber int `db:"round_number"` // NOT NULL

	// 考核窗口
	StartDate time.Time `db:"start_date"` // NOT NULL
	EndDate   time.Time `db:"end_date"`   // NOT NULL, 固定 23:59:00 UTC

	// 所属薪酬周期边界（比考核窗口长）
	CompensationCycleStartDate time.Time `db:"compensation_cycle_start_date"` // NOT NULL
	CompensationCycleEndDate   time.Time `db:"compensation_cycle_end_date"`   // NOT NULL

	// 完成标记
	IsCompleted bool `db:"is_completed"` // NOT NULL, DEFAULT false

	// 链上铸币交易哈希（铸币发生后补录一次）
	TxHash sql.NullString `db:"tx_hash"` // nullable

	CreatedAt time.Time `db:"created_at"`

	// 关联加载（非表字段）
	Assessments []*Assessment `db:"-"`
}

// Status 按给定时间推导轮次状态
func (r *Round) Status(now time.Time) RoundStatus {
	if r.IsCompleted {
		return RoundCompleted
	}
	if now.Before(r.StartDate) {
		return RoundNotStarted
	}
	if now.After(r.EndDate) {
		return RoundEnded
	}
	return RoundInProgress
}

// Active 窗口内且未完成（可提交考核）
func (r *Round) Active(now time.Time) bool {
	return r.Status(now) == RoundInProgress
}
