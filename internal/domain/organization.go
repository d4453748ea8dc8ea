package domain

import (
	"database/sql"
	"time"

	"collabberry-rounds/internal/cycle"
)

// Organization 组织领域模型（对应 organizations 表）
type Organization struct {
	// 主键
	OrgID string `db:"org_id"` // UUID, PRIMARY KEY

	// 基本信息
	Name string         `db:"name"` // NOT NULL, UNIQUE
	Logo sql.NullString `db:"logo"` // nullable

	// 绩效调节范围（Performance Adjustment Range），百分比 1-100
	PAR int `db:"par"` // NOT NULL, DEFAULT 20

	// 薪酬周期配置。两个字段要么都设置要么都为空：
	// 配置不完整的组织不参与轮次创建
	CompensationPeriod   sql.NullInt32 `db:"compensation_period"`    // nullable (1=weekly..4=quarterly)
	CompensationStartDay sql.NullTime  `db:"compensation_start_day"` // nullable, 当前周期锚点日

	// 考核窗口参数
	AssessmentDurationInDays   int `db:"assessment_duration_in_days"`    // NOT NULL, DEFAULT 7
	AssessmentStartDelayInDays int `db:"assessment_start_delay_in_days"` // NOT NULL, DEFAULT 0

	// 可用法币资金，轮次完成时扣减
	TotalFunds float64 `db:"total_funds"` // NOT NULL, DEFAULT 0

	// 链上团队积分合约（铸币在链上完成，这里只存引用）
	TeamPointsContractAddress sql.NullString `db:"team_points_contract_address"` // nullable
	ChainID                   sql.NullInt64  `db:"chain_id"`                     // nullable

	CreatedAt time.Time `db:"created_at"`
}

// CompensationConfigured 薪酬周期是否已配置完整
func (o *Organization) CompensationConfigured() bool {
	return o.CompensationPeriod.Valid && o.CompensationStartDay.Valid
}

// Period 薪酬周期类型（CompensationConfigured 为 true 时才有意义）
func (o *Organization) Period() cycle.Period {
	return cycle.Period(o.CompensationPeriod.Int32)
}
