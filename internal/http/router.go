package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterRoundsRoutes 注册薪酬轮次相关路由
func (r *Router) RegisterRoundsRoutes(h *RoundsHandler) {
	// 集合级路由
	r.Handle("/comp/api/v1/rounds", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetRounds(w, req)
	})

	r.Handle("/comp/api/v1/rounds/current", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetCurrentRound(w, req)
	})

	r.Handle("/comp/api/v1/rounds/assess", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.AddAssessment(w, req)
	})

	// rounds/{id} 及其子资源
	r.Handle("/comp/api/v1/rounds/", func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, "/comp/api/v1/rounds/")
		parts := strings.Split(strings.Trim(rest, "/"), "/")
		if len(parts) == 0 || parts[0] == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		roundID := parts[0]

		switch {
		case len(parts) == 1 && req.Method == http.MethodGet:
			h.GetRoundByID(w, req, roundID)
		case len(parts) == 1 && req.Method == http.MethodPut:
			h.EditRound(w, req, roundID)
		case len(parts) == 2 && parts[1] == "assessments" && req.Method == http.MethodGet:
			h.GetAssessments(w, req, roundID)
		case len(parts) == 2 && parts[1] == "compensations" && req.Method == http.MethodGet:
			h.GetCompensations(w, req, roundID)
		case len(parts) == 2 && parts[1] == "remind" && req.Method == http.MethodPost:
			h.Remind(w, req, roundID)
		case len(parts) == 2 && parts[1] == "tx-hash" && req.Method == http.MethodPost:
			h.AddTxHash(w, req, roundID)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	// assessments/{id}
	r.Handle("/comp/api/v1/assessments/", func(w http.ResponseWriter, req *http.Request) {
		id := strings.TrimPrefix(req.URL.Path, "/comp/api/v1/assessments/")
		if id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.EditAssessment(w, req, id)
	})

	// 市场薪资基准
	r.Handle("/comp/api/v1/salary/market-rate", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.MarketRate(w, req)
	})
}
