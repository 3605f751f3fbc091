package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"ward-discharge/internal/domain"
	"ward-discharge/internal/models"
	"ward-discharge/internal/service"

	"go.uber.org/zap"
)

// DischargeHandler 出院审批 API
type DischargeHandler struct {
	svc             service.DischargeService
	decisionTimeout time.Duration
	logger          *zap.Logger
}

func NewDischargeHandler(svc service.DischargeService, decisionTimeout time.Duration, logger *zap.Logger) *DischargeHandler {
	if decisionTimeout <= 0 {
		decisionTimeout = 10 * time.Second
	}
	return &DischargeHandler{svc: svc, decisionTimeout: decisionTimeout, logger: logger}
}

// GET /ward/api/v1/discharges/pending
func (h *DischargeHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.ListPendingDischarges(r.Context())
	if err != nil {
		writeDecisionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(toPendingList(resp)))
}

// GET /ward/api/v1/discharges/pending/export
func (h *DischargeHandler) ExportPending(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.ListPendingDischarges(r.Context())
	if err != nil {
		writeDecisionError(w, err)
		return
	}

	data, err := GeneratePendingDischargeExport(toPendingList(resp).Items)
	if err != nil {
		h.logger.Error("GeneratePendingDischargeExport failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to generate export"))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=pending-discharges.xlsx")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// POST /ward/api/v1/discharges/{patient_id}/decision
// headers: X-User-Id (required), X-User-Name, X-User-Surname
// body: {"action":"approve"|"reject","reason":"..."}
func (h *DischargeHandler) Decide(w http.ResponseWriter, r *http.Request, patientID string) {
	actor, ok := staffFromHeaders(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Unauthorized("missing staff identity"))
		return
	}

	var body models.DecisionRequest
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.decisionTimeout)
	defer cancel()

	resp, err := h.svc.DecideDischarge(ctx, service.DecideDischargeRequest{
		PatientID: patientID,
		Action:    domain.DecisionAction(body.Action),
		Reason:    body.Reason,
		Actor:     actor,
	})
	if err != nil {
		writeDecisionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, OkMessage(resp.Message, models.DecisionResult{
		PatientID:       resp.PatientID,
		Status:          string(resp.NewStatus),
		AdmissionClosed: resp.AdmissionClosed,
		NotificationID:  resp.NotificationID,
	}))
}

// GET /ward/api/v1/notifications?unread=true
// Always the caller's own notifications; a recipient_id naming someone else is refused.
func (h *DischargeHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := staffFromHeaders(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Unauthorized("missing staff identity"))
		return
	}
	if rid := strings.TrimSpace(r.URL.Query().Get("recipient_id")); rid != "" && rid != actor.ID {
		writeJSON(w, http.StatusOK, Warn("Notifications can only be listed for yourself."))
		return
	}

	list, err := h.svc.ListNotifications(r.Context(), actor.ID, queryBool(r, "unread"))
	if err != nil {
		writeDecisionError(w, err)
		return
	}

	out := make([]models.NotificationDTO, 0, len(list))
	for _, n := range list {
		out = append(out, models.NotificationDTO{
			ID:          n.ID,
			RecipientID: n.RecipientID,
			SenderID:    n.SenderID,
			SenderName:  n.SenderName,
			Title:       n.Title,
			Message:     n.Message,
			Type:        n.Type,
			CreatedAt:   n.CreatedAt,
			Read:        n.Read,
		})
	}
	writeJSON(w, http.StatusOK, Ok(out))
}

// POST /ward/api/v1/notifications/{id}/read
func (h *DischargeHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request, notificationID string) {
	actor, ok := staffFromHeaders(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Unauthorized("missing staff identity"))
		return
	}
	if err := h.svc.MarkNotificationRead(r.Context(), actor.ID, notificationID); err != nil {
		writeDecisionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OkMessage[any]("Notification marked as read.", nil))
}

func writeDecisionError(w http.ResponseWriter, err error) {
	msg := domain.UserMessage(err)
	switch domain.KindOf(err) {
	case domain.KindValidation:
		writeJSON(w, http.StatusOK, Warn(msg))
	case domain.KindConflict:
		writeJSON(w, http.StatusOK, Conflict(msg))
	default:
		writeJSON(w, http.StatusOK, Fail(msg))
	}
}

func toPendingList(resp *service.ListPendingDischargesResponse) models.PendingDischargeList {
	items := make([]models.PendingDischargeDTO, 0, len(resp.Items))
	for _, it := range resp.Items {
		p := it.Patient
		dto := models.PendingDischargeDTO{
			PatientID:            p.ID,
			Name:                 p.Name,
			Surname:              p.Surname,
			HospitalNumber:       p.HospitalNumber,
			Status:               string(p.Status),
			TotalBill:            p.Financials.TotalBill,
			AmountPaid:           p.Financials.AmountPaid,
			Balance:              p.Financials.Balance,
			CanApprove:           it.CanApprove,
			ApproveBlockedReason: it.ApproveBlockedReason,
		}
		if p.Location != nil {
			dto.WardID = p.Location.WardID
			dto.WardName = p.Location.WardName
			dto.BedNumber = p.Location.BedNumber
		}
		if p.PendingRequesterID != nil {
			dto.DischargeRequesterID = *p.PendingRequesterID
		}
		items = append(items, dto)
	}
	return models.PendingDischargeList{Items: items, Total: resp.Total}
}
