package domain

import (
	"database/sql"
	"time"
)

// User 贡献者领域模型（对应 users 表）
// 一个用户最多属于一个组织，最多持有一份协议
type User struct {
	// 主键
	UserID string `db:"user_id"` // UUID, PRIMARY KEY

	// 钱包地址，全小写存储，唯一（登录身份由网关的签名校验保证）
	WalletAddress string `db:"wallet_address"` // NOT NULL, UNIQUE

	// 基本信息
	Username       string         `db:"username"` // NOT NULL
	Email          sql.NullString `db:"email"`    // nullable
	ProfilePicture sql.NullString `db:"profile_picture"`

	// 组织归属
	OrgID   sql.NullString `db:"org_id"`   // nullable, FK to organizations
	IsAdmin bool           `db:"is_admin"` // NOT NULL, DEFAULT false

	CreatedAt time.Time `db:"created_at"`

	// 关联加载（非表字段）：该用户的协议，没有则为 nil。
	// 没有协议的贡献者无法参与薪酬计算
	Agreement *Agreement `db:"-"`
}

// Agreement 贡献者与组织的协议（对应 agreements 表）
type Agreement struct {
	AgreementID string `db:"agreement_id"` // UUID, PRIMARY KEY
	UserID      string `db:"user_id"`      // NOT NULL, UNIQUE, FK to users
	OrgID       string `db:"org_id"`       // NOT NULL, FK to organizations

	RoleName         string `db:"role_name"`
	Responsibilities string `db:"responsibilities"`

	// 薪酬计算输入
	MarketRate    float64 `db:"market_rate"`    // 市场价（每周期）
	FiatRequested float64 `db:"fiat_requested"` // 期望的法币部分
	Commitment    int     `db:"commitment"`     // 投入度百分比 1-100

	CreatedAt time.Time `db:"created_at"`
}
