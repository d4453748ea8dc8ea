package service

import "errors"

// 请求路径的业务错误。HTTP 层据此选状态码，
// 批处理任务只记日志不向外抛
var (
	// ErrNotFound 组织/用户/轮次/考核记录不存在
	ErrNotFound = errors.New("not found")

	// ErrNoActiveRound 组织当前没有进行中的考核轮次
	ErrNoActiveRound = errors.New("no active round")

	// ErrDuplicateAssessment 同一轮次内对同一人重复考核
	ErrDuplicateAssessment = errors.New("assessment already submitted for this contributor in the current round")

	// ErrCrossOrgAssessment 评价人与被评价人不在同一组织
	ErrCrossOrgAssessment = errors.New("assessor and assessed belong to different organizations")

	// ErrRoundCompleted 轮次已完成，不可再修改
	ErrRoundCompleted = errors.New("round is already completed")

	// ErrRoundNotCompleted 轮次未完成（铸币哈希只在完成后补录）
	ErrRoundNotCompleted = errors.New("round is not completed yet")

	// ErrInvalidScore 评分超出 0-10
	ErrInvalidScore = errors.New("score must be between 0 and 10")

	// ErrNoOrganization 用户不属于任何组织
	ErrNoOrganization = errors.New("user does not belong to an organization")
)
