package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"collabberry-rounds/internal/domain"
	"collabberry-rounds/internal/repository"
	"collabberry-rounds/internal/service"
)

// RoundsHandler 轮次/考核/薪酬 API
type RoundsHandler struct {
	rounds      service.RoundService
	assessments service.AssessmentService
	salary      *service.SalaryDatasetService
	users       repository.UsersRepository
	logger      *zap.Logger
}

func NewRoundsHandler(
	rounds service.RoundService,
	assessments service.AssessmentService,
	salary *service.SalaryDatasetService,
	users repository.UsersRepository,
	logger *zap.Logger,
) *RoundsHandler {
	return &RoundsHandler{
		rounds:      rounds,
		assessments: assessments,
		salary:      salary,
		users:       users,
		logger:      logger,
	}
}

// roundResponse Round 的 JSON 视图
type roundResponse struct {
	ID                         string               `json:"id"`
	OrganizationID             string               `json:"organizationId"`
	RoundNumber                int                  `json:"roundNumber"`
	Status                     string               `json:"status"`
	StartDate                  time.Time            `json:"startDate"`
	EndDate                    time.Time            `json:"endDate"`
	CompensationCycleStartDate time.Time            `json:"compensationCycleStartDate"`
	CompensationCycleEndDate   time.Time            `json:"compensationCycleEndDate"`
	IsCompleted                bool                 `json:"isCompleted"`
	TxHash                     string               `json:"txHash,omitempty"`
	Assessments                []assessmentResponse `json:"assessments,omitempty"`
}

type assessmentResponse struct {
	ID               string `json:"id"`
	RoundID          string `json:"roundId"`
	AssessorID       string `json:"assessorId"`
	AssessedID       string `json:"assessedId"`
	CultureScore     *int32 `json:"cultureScore"`
	WorkScore        *int32 `json:"workScore"`
	FeedbackPositive string `json:"feedbackPositive,omitempty"`
	FeedbackNegative string `json:"feedbackNegative,omitempty"`
}

type compensationResponse struct {
	ContributorID string  `json:"contributorId"`
	CulturalScore float64 `json:"culturalScore"`
	WorkScore     float64 `json:"workScore"`
	Commitment    float64 `json:"commitment"`
	MarketRate    float64 `json:"marketRate"`
	FiatRequested float64 `json:"fiatRequested"`
	Fiat          float64 `json:"fiat"`
	TP            float64 `json:"tp"`
}

func toRoundResponse(round *domain.Round, now time.Time) roundResponse {
	resp := roundResponse{
		ID:                         round.RoundID,
		OrganizationID:             round.OrgID,
		RoundNumber:                round.RoundNumber,
		Status:                     string(round.Status(now)),
		StartDate:                  round.StartDate,
		EndDate:                    round.EndDate,
		CompensationCycleStartDate: round.CompensationCycleStartDate,
		CompensationCycleEndDate:   round.CompensationCycleEndDate,
		IsCompleted:                round.IsCompleted,
	}
	if round.TxHash.Valid {
		resp.TxHash = round.TxHash.String
	}
	for _, a := range round.Assessments {
		resp.Assessments = append(resp.Assessments, toAssessmentResponse(a))
	}
	return resp
}

func toAssessmentResponse(a *domain.Assessment) assessmentResponse {
	resp := assessmentResponse{
		ID:               a.AssessmentID,
		RoundID:          a.RoundID,
		AssessorID:       a.AssessorID,
		AssessedID:       a.AssessedID,
		FeedbackPositive: a.FeedbackPositive,
		FeedbackNegative: a.FeedbackNegative,
	}
	if a.CultureScore.Valid {
		v := a.CultureScore.Int32
		resp.CultureScore = &v
	}
	if a.WorkScore.Valid {
		v := a.WorkScore.Int32
		resp.WorkScore = &v
	}
	return resp
}

// caller 从身份头解析当前用户。失败时已写响应，调用方直接 return
func (h *RoundsHandler) caller(ctx context.Context, w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	wallet := walletAddress(r)
	if wallet == "" {
		writeJSON(w, http.StatusUnauthorized, Fail("missing wallet identity"))
		return nil, false
	}
	user, err := h.users.GetByWalletAddress(ctx, wallet)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusUnauthorized, Fail("unknown wallet"))
			return nil, false
		}
		h.logger.Error("Failed to resolve caller", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
		return nil, false
	}
	return user, true
}

// callerOrg caller 且要求已加入组织
func (h *RoundsHandler) callerOrg(ctx context.Context, w http.ResponseWriter, r *http.Request) (*domain.User, string, bool) {
	user, ok := h.caller(ctx, w, r)
	if !ok {
		return nil, "", false
	}
	if !user.OrgID.Valid {
		writeJSON(w, http.StatusForbidden, Fail("user has no organization"))
		return nil, "", false
	}
	return user, user.OrgID.String, true
}

// GET /comp/api/v1/rounds
func (h *RoundsHandler) GetRounds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, orgID, ok := h.callerOrg(ctx, w, r)
	if !ok {
		return
	}

	rounds, err := h.rounds.GetRounds(ctx, orgID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	now := time.Now().UTC()
	resp := make([]roundResponse, 0, len(rounds))
	for _, round := range rounds {
		resp = append(resp, toRoundResponse(round, now))
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// GET /comp/api/v1/rounds/current
func (h *RoundsHandler) GetCurrentRound(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, orgID, ok := h.callerOrg(ctx, w, r)
	if !ok {
		return
	}

	current, err := h.rounds.GetCurrentRound(ctx, orgID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	type currentRoundResponse struct {
		Status string         `json:"status"`
		Round  *roundResponse `json:"round"`
	}
	resp := currentRoundResponse{Status: string(current.Status)}
	if current.Round != nil {
		rr := toRoundResponse(current.Round, time.Now().UTC())
		resp.Round = &rr
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// GET /comp/api/v1/rounds/{id}
func (h *RoundsHandler) GetRoundByID(w http.ResponseWriter, r *http.Request, roundID string) {
	ctx := r.Context()
	if _, ok := h.caller(ctx, w, r); !ok {
		return
	}

	round, err := h.rounds.GetRoundByID(ctx, roundID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(toRoundResponse(round, time.Now().UTC())))
}

// PUT /comp/api/v1/rounds/{id}
// body: { startDate?, endDate? } (RFC 3339)，仅管理员
func (h *RoundsHandler) EditRound(w http.ResponseWriter, r *http.Request, roundID string) {
	ctx := r.Context()
	user, ok := h.caller(ctx, w, r)
	if !ok {
		return
	}
	if !user.IsAdmin {
		writeJSON(w, http.StatusForbidden, Fail("admin only"))
		return
	}

	var body struct {
		StartDate *time.Time `json:"startDate"`
		EndDate   *time.Time `json:"endDate"`
	}
	if err := readBodyJSON(r, 1<<16, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	round, err := h.rounds.EditRound(ctx, roundID, body.StartDate, body.EndDate)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(toRoundResponse(round, time.Now().UTC())))
}

// POST /comp/api/v1/rounds/assess
// body: { assessedId, cultureScore?, workScore?, feedbackPositive?, feedbackNegative? }
func (h *RoundsHandler) AddAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wallet := walletAddress(r)
	if wallet == "" {
		writeJSON(w, http.StatusUnauthorized, Fail("missing wallet identity"))
		return
	}

	var body struct {
		AssessedID       string `json:"assessedId"`
		CultureScore     *int32 `json:"cultureScore"`
		WorkScore        *int32 `json:"workScore"`
		FeedbackPositive string `json:"feedbackPositive"`
		FeedbackNegative string `json:"feedbackNegative"`
	}
	if err := readBodyJSON(r, 1<<18, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if body.AssessedID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("assessedId is required"))
		return
	}

	assessment, err := h.assessments.AddAssessment(ctx, wallet, service.AddAssessmentRequest{
		AssessedID:       body.AssessedID,
		CultureScore:     body.CultureScore,
		WorkScore:        body.WorkScore,
		FeedbackPositive: body.FeedbackPositive,
		FeedbackNegative: body.FeedbackNegative,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(toAssessmentResponse(assessment)))
}

// PUT /comp/api/v1/assessments/{id}
func (h *RoundsHandler) EditAssessment(w http.ResponseWriter, r *http.Request, assessmentID string) {
	ctx := r.Context()
	wallet := walletAddress(r)
	if wallet == "" {
		writeJSON(w, http.StatusUnauthorized, Fail("missing wallet identity"))
		return
	}

	var body struct {
		CultureScore     *int32  `json:"cultureScore"`
		WorkScore        *int32  `json:"workScore"`
		FeedbackPositive *string `json:"feedbackPositive"`
		FeedbackNegative *string `json:"feedbackNegative"`
	}
	if err := readBodyJSON(r, 1<<18, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	assessment, err := h.assessments.EditAssessment(ctx, wallet, assessmentID, service.EditAssessmentRequest{
		CultureScore:     body.CultureScore,
		WorkScore:        body.WorkScore,
		FeedbackPositive: body.FeedbackPositive,
		FeedbackNegative: body.FeedbackNegative,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(toAssessmentResponse(assessment)))
}

// GET /comp/api/v1/rounds/{id}/assessments?assessorId=&assessedId=
func (h *RoundsHandler) GetAssessments(w http.ResponseWriter, r *http.Request, roundID string) {
	ctx := r.Context()
	if _, ok := h.caller(ctx, w, r); !ok {
		return
	}

	list, err := h.assessments.GetAssessments(ctx, roundID,
		r.URL.Query().Get("assessorId"),
		r.URL.Query().Get("assessedId"),
	)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := make([]assessmentResponse, 0, len(list))
	for _, a := range list {
		resp = append(resp, toAssessmentResponse(a))
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// GET /comp/api/v1/rounds/{id}/compensations
func (h *RoundsHandler) GetCompensations(w http.ResponseWriter, r *http.Request, roundID string) {
	ctx := r.Context()
	if _, ok := h.caller(ctx, w, r); !ok {
		return
	}

	comps, err := h.rounds.GetRoundCompensations(ctx, roundID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := make([]compensationResponse, 0, len(comps))
	for _, c := range comps {
		resp = append(resp, compensationResponse{
			ContributorID: c.ContributorID,
			CulturalScore: c.CulturalScore,
			WorkScore:     c.WorkScore,
			Commitment:    c.AgreementCommitment,
			MarketRate:    c.AgreementMarketRate,
			FiatRequested: c.AgreementFiatRequested,
			Fiat:          c.Fiat,
			TP:            c.TP,
		})
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// POST /comp/api/v1/rounds/{id}/remind
// body: { all?, userIds? }，仅管理员
func (h *RoundsHandler) Remind(w http.ResponseWriter, r *http.Request, roundID string) {
	ctx := r.Context()
	user, ok := h.caller(ctx, w, r)
	if !ok {
		return
	}
	if !user.IsAdmin {
		writeJSON(w, http.StatusForbidden, Fail("admin only"))
		return
	}

	var body struct {
		All     bool     `json:"all"`
		UserIDs []string `json:"userIds"`
	}
	if err := readBodyJSON(r, 1<<18, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if !body.All && len(body.UserIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, Fail("userIds is required unless all=true"))
		return
	}

	if err := h.rounds.RemindToAssess(ctx, roundID, body.All, body.UserIDs); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "sent"}))
}

// POST /comp/api/v1/rounds/{id}/tx-hash
// body: { txHash }，仅管理员，轮次完成后一次性
func (h *RoundsHandler) AddTxHash(w http.ResponseWriter, r *http.Request, roundID string) {
	ctx := r.Context()
	user, ok := h.caller(ctx, w, r)
	if !ok {
		return
	}
	if !user.IsAdmin {
		writeJSON(w, http.StatusForbidden, Fail("admin only"))
		return
	}

	var body struct {
		TxHash string `json:"txHash"`
	}
	if err := readBodyJSON(r, 1<<16, &body); err != nil || body.TxHash == "" {
		writeJSON(w, http.StatusBadRequest, Fail("txHash is required"))
		return
	}

	if err := h.rounds.AddTokenMintTx(ctx, roundID, body.TxHash); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"txHash": body.TxHash}))
}

// GET /comp/api/v1/salary/market-rate?role=&seniority=&area=
func (h *RoundsHandler) MarketRate(w http.ResponseWriter, r *http.Request) {
	if h.salary == nil {
		writeJSON(w, http.StatusNotFound, Fail("salary dataset not configured"))
		return
	}

	result, err := h.salary.MarketRate(r.Context(), service.MarketRateQuery{
		Role:      r.URL.Query().Get("role"),
		Seniority: r.URL.Query().Get("seniority"),
		Area:      r.URL.Query().Get("area"),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// writeServiceError 业务哨兵 → HTTP 状态码 + Fail 信封
func (h *RoundsHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeJSON(w, http.StatusNotFound, Fail(err.Error()))
	case errors.Is(err, service.ErrNoActiveRound):
		writeJSON(w, http.StatusConflict, Fail("no active assessment round"))
	case errors.Is(err, service.ErrDuplicateAssessment):
		writeJSON(w, http.StatusConflict, Fail("assessment already submitted for this contributor"))
	case errors.Is(err, service.ErrCrossOrgAssessment):
		writeJSON(w, http.StatusForbidden, Fail("assessed contributor belongs to another organization"))
	case errors.Is(err, service.ErrRoundCompleted):
		writeJSON(w, http.StatusConflict, Fail("round is already completed"))
	case errors.Is(err, service.ErrRoundNotCompleted):
		writeJSON(w, http.StatusConflict, Fail("round is not completed yet"))
	case errors.Is(err, service.ErrInvalidScore):
		writeJSON(w, http.StatusBadRequest, Fail("scores must be between 0 and 10"))
	case errors.Is(err, service.ErrNoOrganization):
		writeJSON(w, http.StatusForbidden, Fail("user has no organization"))
	default:
		h.logger.Error("Unhandled service error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
	}
}
