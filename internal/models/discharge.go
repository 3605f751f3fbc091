package models

import "time"

// PendingDischargeDTO 待出院卡片（HTTP / 控制台共用）
type PendingDischargeDTO struct {
	PatientID            string  `json:"patient_id"`
	Name                 string  `json:"name"`
	Surname              string  `json:"surname"`
	HospitalNumber       string  `json:"hospital_number"`
	Status               string  `json:"status"`
	WardID               string  `json:"ward_id,omitempty"`
	WardName             string  `json:"ward_name,omitempty"`
	BedNumber            string  `json:"bed_number,omitempty"`
	TotalBill            float64 `json:"total_bill"`
	AmountPaid           float64 `json:"amount_paid"`
	Balance              float64 `json:"balance"`
	DischargeRequesterID string  `json:"discharge_requester_id,omitempty"`
	CanApprove           bool    `json:"can_approve"`
	ApproveBlockedReason string  `json:"approve_blocked_reason,omitempty"`
}

// PendingDischargeList GET /ward/api/v1/discharges/pending
type PendingDischargeList struct {
	Items []PendingDischargeDTO `json:"items"`
	Total int                   `json:"total"`
}

// DecisionRequest POST /ward/api/v1/discharges/{patient_id}/decision
type DecisionRequest struct {
	Action string `json:"action"` // "approve" | "reject"
	Reason string `json:"reason,omitempty"`
}

// DecisionResult decision outcome
type DecisionResult struct {
	PatientID       string `json:"patient_id"`
	Status          string `json:"status"`
	AdmissionClosed bool   `json:"admission_closed"`
	NotificationID  string `json:"notification_id,omitempty"`
}

// NotificationDTO 通知
type NotificationDTO struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	SenderID    string    `json:"sender_id"`
	SenderName  string    `json:"sender_name"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"created_at"`
	Read        bool      `json:"read"`
}
