package domain

import (
	"strings"
	"time"
)

// DecisionAction 出院审批动作
type DecisionAction string

const (
	ActionApprove DecisionAction = "approve"
	ActionReject  DecisionAction = "reject"
)

func (a DecisionAction) Valid() bool {
	return a == ActionApprove || a == ActionReject
}

// TargetStatus is the status a patient moves to once the decision commits.
func (a DecisionAction) TargetStatus() PatientStatus {
	if a == ActionApprove {
		return StatusDischarged
	}
	return StatusAdmitted
}

// StaffIdentity 当前操作人员
type StaffIdentity struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
}

func (s StaffIdentity) FullName() string {
	return strings.TrimSpace(s.Name + " " + s.Surname)
}

// AdmissionClosure closes the open admission record on approve.
type AdmissionClosure struct {
	RecordID         string
	DischargedByID   string
	DischargedByName string
}

// DischargePlan is the complete write set for one decision. It is applied atomically or not at all.
type DischargePlan struct {
	PatientID      string
	ExpectedStatus PatientStatus
	NewStatus      PatientStatus
	ClearLocation  bool
	CloseAdmission *AdmissionClosure
	Notification   *Notification
}

// DischargeDecidedEvent is published after a decision commits.
type DischargeDecidedEvent struct {
	PatientID       string         `json:"patient_id"`
	HospitalNumber  string         `json:"hospital_number"`
	Decision        DecisionAction `json:"decision"`
	NewStatus       PatientStatus  `json:"new_status"`
	ActorID         string         `json:"actor_id"`
	ActorName       string         `json:"actor_name"`
	Reason          string         `json:"reason,omitempty"`
	WardID          string         `json:"ward_id,omitempty"`
	BedNumber       string         `json:"bed_number,omitempty"`
	AdmissionClosed bool           `json:"admission_closed"`
	NotificationID  string         `json:"notification_id,omitempty"`
	DecidedAt       time.Time      `json:"decided_at"`
}
