package domain

import "time"

// ContributorRoundCompensation 贡献者单轮薪酬结果
// （对应 contributor_round_compensations 表）
// 完成任务按 (round, contributor) 只写一次，之后不再修改；
// 协议字段是计算时点的快照，协议后续变更不影响历史轮次
type ContributorRoundCompensation struct {
	// 主键
	CompensationID string `db:"compensation_id"` // UUID, PRIMARY KEY

	// 轮次与贡献者
	RoundID       string `db:"round_id"`       // UUID, NOT NULL, FK to rounds
	ContributorID string `db:"contributor_id"` // UUID, NOT NULL, FK to users

	// 同事评分均值（缺省分不计入分母）
	CulturalScore float64 `db:"cultural_score"`
	WorkScore     float64 `db:"work_score"`

	// 协议快照
	AgreementCommitment    float64 `db:"agreement_commitment"`
	AgreementMarketRate    float64 `db:"agreement_market_rate"`
	AgreementFiatRequested float64 `db:"agreement_fiat_requested"`

	// 计算结果：法币部分 + 团队积分部分，各保留 2 位小数
	Fiat float64 `db:"fiat"`
	TP   float64 `db:"tp"`

	CreatedAt time.Time `db:"created_at"`
}
