package service

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"collabberry-rounds/internal/config"
)

// 邮件模板名，中继服务侧维护模板内容
const (
	templateRoundStarted       = "round_started"
	templateAssessmentReminder = "assessment_reminder"
)

// emailSendRequest 中继服务 /api/v1/send 请求体
type emailSendRequest struct {
	From      string            `json:"from"`
	To        string            `json:"to"`
	Subject   string            `json:"subject"`
	Template  string            `json:"template"`
	Variables map[string]string `json:"variables"`
}

// emailSendResponse 中继服务响应
type emailSendResponse struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
}

// EmailRelayNotifier 通过 HTTP 邮件中继发通知。
// 发送失败只记日志：通知不是核心不变量，不能拖垮轮次创建/提醒
type EmailRelayNotifier struct {
	httpClient *resty.Client
	from       string
	logger     *zap.Logger
}

// NewEmailRelayNotifier 创建邮件中继客户端
func NewEmailRelayNotifier(cfg config.EmailConfig, logger *zap.Logger) *EmailRelayNotifier {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &EmailRelayNotifier{
		httpClient: client,
		from:       cfg.From,
		logger:     logger,
	}
}

var _ Notifier = (*EmailRelayNotifier)(nil)

func (n *EmailRelayNotifier) SendRoundStarted(ctx context.Context, email, username, orgName string) {
	n.send(ctx, email, "🌟 New Round Started! Time to Assess Your Peers 🌟", templateRoundStarted, map[string]string{
		"contributor_name":  username,
		"organization_name": orgName,
	})
}

func (n *EmailRelayNotifier) SendAssessmentReminder(ctx context.Context, email, username, orgName string) {
	n.send(ctx, email, "🔔 Reminder: Complete Your Assessments 🔔", templateAssessmentReminder, map[string]string{
		"contributor_name":  username,
		"organization_name": orgName,
	})
}

func (n *EmailRelayNotifier) send(ctx context.Context, to, subject, template string, variables map[string]string) {
	if to == "" {
		return
	}

	request := emailSendRequest{
		From:      n.from,
		To:        to,
		Subject:   subject,
		Template:  template,
		Variables: variables,
	}

	var response emailSendResponse
	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		Post("/api/v1/send")

	if err != nil {
		n.logger.Error("Email relay call failed",
			zap.Error(err),
			zap.String("template", template),
			zap.String("to", to),
		)
		return
	}
	if resp.StatusCode() >= 300 {
		n.logger.Error("Email relay returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("msg", response.Msg),
			zap.String("template", template),
			zap.String("to", to),
		)
		return
	}

	n.logger.Debug("Notification email sent",
		zap.String("template", template),
		zap.String("to", to),
	)
}
