package domain

import "time"

// AdmissionRecord 住院记录（patients/{id}/admissionHistory）
type AdmissionRecord struct {
	ID               string     `json:"id"`
	PatientID        string     `json:"patient_id"`
	AdmissionDate    time.Time  `json:"admission_date"`
	DischargeDate    *time.Time `json:"discharge_date,omitempty"`
	DischargedByID   string     `json:"discharged_by_id,omitempty"`
	DischargedByName string     `json:"discharged_by_name,omitempty"`
}

// Open reports whether the stay has not been closed yet.
func (r *AdmissionRecord) Open() bool {
	return r.DischargeDate == nil
}
