package domain

import (
	"fmt"
	"time"
)

const (
	NotificationTypeSystemAlert = "system_alert"

	DischargeRejectedTitle = "Discharge Request Disapproved"
)

// Notification 站内通知
type Notification struct {
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

// DischargeRejectedMessage is the body sent back to the staff member whose request was turned down.
func DischargeRejectedMessage(p *Patient, reason string) string {
	return fmt.Sprintf("The discharge request for patient %s (%s) was disapproved. Reason: %s",
		p.FullName(), p.HospitalNumber, reason)
}
