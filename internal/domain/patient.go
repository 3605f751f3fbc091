package domain

import "strings"

// PatientStatus 患者住院状态
type PatientStatus string

const (
	StatusAdmitted         PatientStatus = "Admitted"
	StatusPendingDischarge PatientStatus = "PendingDischarge"
	StatusDischarged       PatientStatus = "Discharged"
)

func (s PatientStatus) Valid() bool {
	switch s {
	case StatusAdmitted, StatusPendingDischarge, StatusDischarged:
		return true
	}
	return false
}

// WardBed is the patient's current ward placement. All three parts are present or none is.
type WardBed struct {
	WardID    string `json:"ward_id"`
	WardName  string `json:"ward_name"`
	BedNumber string `json:"bed_number"`
}

// Financials is read from the patient document. The repository derives Balance only when the stored value is missing.
type Financials struct {
	TotalBill  float64 `json:"total_bill"`
	AmountPaid float64 `json:"amount_paid"`
	Balance    float64 `json:"balance"`
}

// Patient 患者
type Patient struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Surname        string        `json:"surname"`
	HospitalNumber string        `json:"hospital_number"`
	Status         PatientStatus `json:"status"`
	Location       *WardBed      `json:"location,omitempty"`
	Financials     Financials    `json:"financials"`

	// PendingRequesterID is the staff member who requested discharge; nil when absent.
	PendingRequesterID *string `json:"pending_requester_id,omitempty"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.Name + " " + p.Surname)
}

// CanApprove reports whether a discharge may be approved: no outstanding balance.
// Credit (negative balance) is allowed.
func CanApprove(p *Patient) bool {
	return p.Financials.Balance <= 0
}
