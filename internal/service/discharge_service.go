package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ward-discharge/internal/domain"
	"ward-discharge/internal/events"
	"ward-discharge/internal/repository"

	"go.uber.org/zap"
)

// DischargeService 出院审批服务接口
type DischargeService interface {
	// ListPendingDischarges 查询所有待出院患者
	ListPendingDischarges(ctx context.Context) (*ListPendingDischargesResponse, error)
	// DecideDischarge 审批（approve / reject）一个待出院患者
	DecideDischarge(ctx context.Context, req DecideDischargeRequest) (*DecideDischargeResponse, error)
	// ListNotifications 查询某个员工的通知
	ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]*domain.Notification, error)
	// MarkNotificationRead 标记通知已读（仅限收件人本人）
	MarkNotificationRead(ctx context.Context, recipientID, notificationID string) error
}

// DecisionLocker is implemented by store.DecisionLock.
type DecisionLocker interface {
	Acquire(ctx context.Context, patientID string) (release func(), acquired bool)
}

type dischargeService struct {
	patientsRepo      repository.PatientsRepository
	notificationsRepo repository.NotificationsRepository
	lock              DecisionLocker
	publisher         events.Publisher
	logger            *zap.Logger
	now               func() time.Time
}

// NewDischargeService 创建出院审批服务
// lock and publisher may be nil.
func NewDischargeService(
	patientsRepo repository.PatientsRepository,
	notificationsRepo repository.NotificationsRepository,
	lock DecisionLocker,
	publisher events.Publisher,
	logger *zap.Logger,
) DischargeService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &dischargeService{
		patientsRepo:      patientsRepo,
		notificationsRepo: notificationsRepo,
		lock:              lock,
		publisher:         publisher,
		logger:            logger,
		now:               time.Now,
	}
}

// PendingDischargeItem 待出院列表项
type PendingDischargeItem struct {
	Patient              *domain.Patient
	CanApprove           bool
	ApproveBlockedReason string
}

// ListPendingDischargesResponse 待出院列表响应
type ListPendingDischargesResponse struct {
	Items []PendingDischargeItem
	Total int
}

// DecideDischargeRequest 审批请求
type DecideDischargeRequest struct {
	PatientID string
	Action    domain.DecisionAction
	Reason    string // reject 必填
	Actor     domain.StaffIdentity
}

// DecideDischargeResponse 审批响应
type DecideDischargeResponse struct {
	PatientID       string
	NewStatus       domain.PatientStatus
	Message         string
	AdmissionClosed bool
	NotificationID  string
}

func (s *dischargeService) ListPendingDischarges(ctx context.Context) (*ListPendingDischargesResponse, error) {
	patients, err := s.patientsRepo.ListPendingDischarge(ctx)
	if err != nil {
		s.logger.Error("failed to list pending discharges", zap.Error(err))
		return nil, domain.FetchError(domain.MsgFetchFailed, err)
	}

	items := make([]PendingDischargeItem, 0, len(patients))
	for _, p := range patients {
		item := PendingDischargeItem{Patient: p, CanApprove: domain.CanApprove(p)}
		if !item.CanApprove {
			item.ApproveBlockedReason = domain.MsgOutstandingBalance
		}
		items = append(items, item)
	}
	return &ListPendingDischargesResponse{Items: items, Total: len(items)}, nil
}

func (s *dischargeService) DecideDischarge(ctx context.Context, req DecideDischargeRequest) (*DecideDischargeResponse, error) {
	// 1. 参数校验（不访问存储）
	reason := strings.TrimSpace(req.Reason)
	if req.PatientID == "" {
		return nil, domain.ValidationError("patient_id is required")
	}
	if !req.Action.Valid() {
		return nil, domain.ValidationError(fmt.Sprintf("invalid action %q", req.Action))
	}
	if req.Actor.ID == "" {
		return nil, domain.ValidationError("acting staff identity is required")
	}
	if req.Action == domain.ActionReject && reason == "" {
		return nil, domain.ValidationError(domain.MsgReasonRequired)
	}

	// 2. 同一患者同时只处理一个决策
	if s.lock != nil {
		release, ok := s.lock.Acquire(ctx, req.PatientID)
		if !ok {
			return nil, domain.ConflictError(domain.MsgDecisionInFlight, nil)
		}
		defer release()
	}

	// 3. 读取最新患者文档
	patient, err := s.patientsRepo.GetPatient(ctx, req.PatientID)
	if err != nil {
		if errors.Is(err, repository.ErrPatientNotFound) {
			return nil, domain.ConflictError(domain.MsgAlreadyDecided, err)
		}
		s.logger.Error("failed to load patient", zap.String("patient_id", req.PatientID), zap.Error(err))
		return nil, domain.FetchError("Failed to load patient.", err)
	}
	if patient.Status != domain.StatusPendingDischarge {
		return nil, domain.ConflictError(domain.MsgAlreadyDecided,
			fmt.Errorf("patient %s is %s", patient.ID, patient.Status))
	}

	// 4. 余额校验（approve）
	if req.Action == domain.ActionApprove && !domain.CanApprove(patient) {
		return nil, domain.ValidationError(domain.MsgOutstandingBalance)
	}

	// 5. 构建写集合
	plan, err := s.buildPlan(ctx, patient, req.Action, reason, req.Actor)
	if err != nil {
		return nil, err
	}

	// 6. 原子提交
	if err := s.patientsRepo.ApplyDischargePlan(ctx, plan); err != nil {
		if errors.Is(err, repository.ErrWriteConflict) || errors.Is(err, repository.ErrPatientNotFound) {
			s.logger.Info("discharge decision lost a race",
				zap.String("patient_id", patient.ID),
				zap.Error(err),
			)
			return nil, domain.ConflictError(domain.MsgAlreadyDecided, err)
		}
		s.logger.Error("failed to commit discharge decision",
			zap.String("patient_id", patient.ID),
			zap.String("action", string(req.Action)),
			zap.Error(err),
		)
		return nil, domain.CommitError(err)
	}

	resp := &DecideDischargeResponse{
		PatientID:       patient.ID,
		NewStatus:       plan.NewStatus,
		Message:         fmt.Sprintf("Patient status updated to %s.", plan.NewStatus),
		AdmissionClosed: plan.CloseAdmission != nil,
	}
	if plan.Notification != nil {
		resp.NotificationID = plan.Notification.ID
	}

	s.logger.Info("discharge decision committed",
		zap.String("patient_id", patient.ID),
		zap.String("action", string(req.Action)),
		zap.String("new_status", string(plan.NewStatus)),
		zap.String("actor_id", req.Actor.ID),
		zap.Bool("admission_closed", resp.AdmissionClosed),
	)

	s.publish(ctx, patient, req, reason, resp)
	return resp, nil
}

// buildPlan assembles the write set. Approve closes the open admission; reject notifies the requester.
func (s *dischargeService) buildPlan(
	ctx context.Context,
	patient *domain.Patient,
	action domain.DecisionAction,
	reason string,
	actor domain.StaffIdentity,
) (*domain.DischargePlan, error) {
	plan := &domain.DischargePlan{
		PatientID:      patient.ID,
		ExpectedStatus: domain.StatusPendingDischarge,
		NewStatus:      action.TargetStatus(),
	}

	switch action {
	case domain.ActionApprove:
		plan.ClearLocation = true
		rec, err := s.locateOpenAdmission(ctx, patient.ID)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			plan.CloseAdmission = &domain.AdmissionClosure{
				RecordID:         rec.ID,
				DischargedByID:   actor.ID,
				DischargedByName: actor.FullName(),
			}
		}

	case domain.ActionReject:
		if patient.PendingRequesterID != nil && *patient.PendingRequesterID != "" {
			plan.Notification = &domain.Notification{
				RecipientID: *patient.PendingRequesterID,
				SenderID:    actor.ID,
				SenderName:  actor.FullName(),
				Title:       domain.DischargeRejectedTitle,
				Message:     domain.DischargeRejectedMessage(patient, reason),
				Type:        domain.NotificationTypeSystemAlert,
			}
		}
	}
	return plan, nil
}

// locateOpenAdmission returns the newest admission record if it is still open.
// A patient without history, or whose newest stay is already closed, yields nil.
func (s *dischargeService) locateOpenAdmission(ctx context.Context, patientID string) (*domain.AdmissionRecord, error) {
	rec, err := s.patientsRepo.LatestAdmissionRecord(ctx, patientID)
	if err != nil {
		s.logger.Error("failed to locate admission record", zap.String("patient_id", patientID), zap.Error(err))
		return nil, domain.FetchError("Failed to load admission history.", err)
	}
	if rec == nil {
		s.logger.Warn("no admission record found, discharging without closing a stay",
			zap.String("patient_id", patientID))
		return nil, nil
	}
	if !rec.Open() {
		s.logger.Info("latest admission already closed",
			zap.String("patient_id", patientID),
			zap.String("record_id", rec.ID))
		return nil, nil
	}
	return rec, nil
}

func (s *dischargeService) publish(
	ctx context.Context,
	patient *domain.Patient,
	req DecideDischargeRequest,
	reason string,
	resp *DecideDischargeResponse,
) {
	evt := &domain.DischargeDecidedEvent{
		PatientID:       patient.ID,
		HospitalNumber:  patient.HospitalNumber,
		Decision:        req.Action,
		NewStatus:       resp.NewStatus,
		ActorID:         req.Actor.ID,
		ActorName:       req.Actor.FullName(),
		AdmissionClosed: resp.AdmissionClosed,
		NotificationID:  resp.NotificationID,
		DecidedAt:       s.now().UTC(),
	}
	if req.Action == domain.ActionReject {
		evt.Reason = reason
	}
	if patient.Location != nil {
		evt.WardID = patient.Location.WardID
		evt.BedNumber = patient.Location.BedNumber
	}
	if err := s.publisher.PublishDischargeDecided(ctx, evt); err != nil {
		s.logger.Warn("failed to publish discharge event",
			zap.String("patient_id", patient.ID),
			zap.Error(err),
		)
	}
}

func (s *dischargeService) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]*domain.Notification, error) {
	if recipientID == "" {
		return nil, domain.ValidationError("recipient_id is required")
	}
	list, err := s.notificationsRepo.ListNotifications(ctx, recipientID, unreadOnly)
	if err != nil {
		return nil, domain.FetchError("Failed to fetch notifications.", err)
	}
	return list, nil
}

func (s *dischargeService) MarkNotificationRead(ctx context.Context, recipientID, notificationID string) error {
	if recipientID == "" || notificationID == "" {
		return domain.ValidationError("recipient_id and notification_id are required")
	}
	if err := s.notificationsRepo.MarkNotificationRead(ctx, recipientID, notificationID); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return domain.ValidationError("Notification not found.")
		}
		s.logger.Error("failed to mark notification read",
			zap.String("notification_id", notificationID),
			zap.Error(err),
		)
		return domain.CommitError(err)
	}
	return nil
}
