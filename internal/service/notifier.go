package service

import (
	"context"

	"go.uber.org/zap"
)

// Notifier 通知端口：轮次开始 / 考核提醒。
// 实现必须自己吞掉错误（只记日志），调用方不等待也不回滚
type Notifier interface {
	SendRoundStarted(ctx context.Context, email, username, orgName string)
	SendAssessmentReminder(ctx context.Context, email, username, orgName string)
}

// NoopNotifier 未配置邮件中继时的空实现
type NoopNotifier struct {
	Logger *zap.Logger // 可为 nil
}

var _ Notifier = NoopNotifier{}

func (n NoopNotifier) SendRoundStarted(_ context.Context, email, _, orgName string) {
	if n.Logger == nil {
		return
	}
	n.Logger.Debug("Email relay disabled, skipping round-started notification",
		zap.String("email", email),
		zap.String("org_name", orgName),
	)
}

func (n NoopNotifier) SendAssessmentReminder(_ context.Context, email, _, orgName string) {
	if n.Logger == nil {
		return
	}
	n.Logger.Debug("Email relay disabled, skipping assessment reminder",
		zap.String("email", email),
		zap.String("org_name", orgName),
	)
}
