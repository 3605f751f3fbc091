package repository

import (
	"context"
	"ward-discharge/internal/domain"
)

// PatientsRepository 患者 Repository 接口
// 只负责文档读写；审批规则在 service 层
type PatientsRepository interface {
	// ListPendingDischarge returns every patient whose status is PendingDischarge, in store order.
	ListPendingDischarge(ctx context.Context) ([]*domain.Patient, error)
	GetPatient(ctx context.Context, patientID string) (*domain.Patient, error)

	// LatestAdmissionRecord returns the newest admission by admissionDate, or nil when the patient has none.
	LatestAdmissionRecord(ctx context.Context, patientID string) (*domain.AdmissionRecord, error)

	// ApplyDischargePlan commits the whole plan in one atomic write.
	ApplyDischargePlan(ctx context.Context, plan *domain.DischargePlan) error

	// seeding / admin
	UpsertPatient(ctx context.Context, p *domain.Patient) error
	AddAdmissionRecord(ctx context.Context, r *domain.AdmissionRecord) (string, error)
}

// NotificationsRepository 通知 Repository 接口
type NotificationsRepository interface {
	ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]*domain.Notification, error)
	MarkNotificationRead(ctx context.Context, recipientID, notificationID string) error
}
