package domain

import (
	"database/sql"
	"time"
)

// Assessment 同事互评记录（对应 assessments 表）
// (round, assessor, assessed) 三元组唯一，由 DB 唯一约束兜底
type Assessment struct {
	// 主键
	AssessmentID string `db:"assessment_id"` // UUID, PRIMARY KEY

	// 所属轮次
	RoundID string `db:"round_id"` // UUID, NOT NULL, FK to rounds

	// 评价人 / 被评价人（必须同组织）
	AssessorID string `db:"assessor_id"` // UUID, NOT NULL, FK to users
	AssessedID string `db:"assessed_id"` // UUID, NOT NULL, FK to users

	// 评分 0-10，允许缺省。缺省不等于 0 分：
	// 聚合时不计入分母
	CultureScore sql.NullInt32 `db:"culture_score"` // nullable
	WorkScore    sql.NullInt32 `db:"work_score"`    // nullable

	// 文字反馈
	FeedbackPositive string `db:"feedback_positive"`
	FeedbackNegative string `db:"feedback_negative"`

	CreatedAt time.Time `db:"created_at"`
}
