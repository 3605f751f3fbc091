package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const (
	dischargesPrefix    = "/ward/api/v1/discharges/"
	notificationsPrefix = "/ward/api/v1/notifications/"
)

// Router 使用标准库 http.ServeMux
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

// RegisterDischargeRoutes 注册出院审批路由
func (r *Router) RegisterDischargeRoutes(h *DischargeHandler) {
	// list
	r.Handle("/ward/api/v1/discharges/pending", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ListPending(w, req)
	})

	// export
	r.Handle("/ward/api/v1/discharges/pending/export", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ExportPending(w, req)
	})

	// {patient_id}/decision
	r.Handle(dischargesPrefix, func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, dischargesPrefix)
		patientID, action, ok := strings.Cut(rest, "/")
		if !ok || patientID == "" || action != "decision" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Decide(w, req, patientID)
	})

	// notifications for the calling staff member
	r.Handle("/ward/api/v1/notifications", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ListNotifications(w, req)
	})

	// notifications/{id}/read
	r.Handle(notificationsPrefix, func(w http.ResponseWriter, req *http.Request) {
		id, action, ok := strings.Cut(strings.TrimPrefix(req.URL.Path, notificationsPrefix), "/")
		if !ok || id == "" || action != "read" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.MarkNotificationRead(w, req, id)
	})
}

func (r *Router) RegisterHealthRoutes(h *HealthHandler) {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Check(w, req)
	})
}
