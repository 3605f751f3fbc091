package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"ward-discharge/internal/docstore"
	"ward-discharge/internal/domain"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	// ErrWriteConflict means a precondition on the write set no longer held.
	ErrWriteConflict = errors.New("write conflict")

	ErrNotificationNotFound = errors.New("notification not found")
)

const (
	collPatients        = "patients"
	collNotifications   = "notifications"
	subAdmissionHistory = "admissionHistory"
	fieldName           = "name"
	fieldSurname        = "surname"
	fieldHospitalNumber = "hospitalNumber"
	fieldStatus         = "status"
	fieldWardID         = "currentWardId"
	fieldWardName       = "currentWardName"
	fieldBedNumber      = "currentBedNumber"
	fieldFinancials     = "financials"
	fieldTotalBill      = "totalBill"
	fieldAmountPaid     = "amountPaid"
	fieldBalance        = "balance"
	fieldRequesterID    = "dischargeRequesterId"
	fieldAdmissionDate  = "admissionDate"
	fieldDischargeDate  = "dischargeDate"
	fieldDischargedByID = "dischargedById"
	fieldDischargedBy   = "dischargedByName"
	fieldRecipientID    = "recipientId"
	fieldSenderID       = "senderId"
	fieldSenderName     = "senderName"
	fieldTitle          = "title"
	fieldMessage        = "message"
	fieldType           = "type"
	fieldCreatedAt      = "createdAt"
	fieldRead           = "read"
)

// DocPatientsRepo implements PatientsRepository and NotificationsRepository on a document store.
type DocPatientsRepo struct {
	store docstore.Store
}

var (
	_ PatientsRepository      = (*DocPatientsRepo)(nil)
	_ NotificationsRepository = (*DocPatientsRepo)(nil)
)

func NewDocPatientsRepo(store docstore.Store) *DocPatientsRepo {
	return &DocPatientsRepo{store: store}
}

func patientRef(id string) docstore.Ref { return docstore.Doc(collPatients, id) }

func admissionCollection(patientID string) string {
	return patientRef(patientID).Sub(subAdmissionHistory)
}

func (r *DocPatientsRepo) ListPendingDischarge(ctx context.Context) ([]*domain.Patient, error) {
	docs, err := r.store.QueryByField(ctx, collPatients, fieldStatus, string(domain.StatusPendingDischarge))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending discharges: %w", err)
	}
	out := make([]*domain.Patient, 0, len(docs))
	for _, d := range docs {
		out = append(out, decodePatient(d))
	}
	return out, nil
}

func (r *DocPatientsRepo) GetPatient(ctx context.Context, patientID string) (*domain.Patient, error) {
	doc, err := r.store.Get(ctx, patientRef(patientID))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPatientNotFound, patientID)
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return decodePatient(*doc), nil
}

func (r *DocPatientsRepo) LatestAdmissionRecord(ctx context.Context, patientID string) (*domain.AdmissionRecord, error) {
	docs, err := r.store.QueryOrderedLimit(ctx, admissionCollection(patientID), fieldAdmissionDate, true, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to query admission history: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return decodeAdmission(patientID, docs[0]), nil
}

func (r *DocPatientsRepo) ApplyDischargePlan(ctx context.Context, plan *domain.DischargePlan) error {
	if plan == nil || plan.PatientID == "" {
		return fmt.Errorf("discharge plan requires a patient id")
	}

	patientFields := docstore.Fields{
		fieldStatus:      string(plan.NewStatus),
		fieldRequesterID: docstore.DeleteField,
	}
	if plan.ClearLocation {
		patientFields[fieldWardID] = docstore.DeleteField
		patientFields[fieldWardName] = docstore.DeleteField
		patientFields[fieldBedNumber] = docstore.DeleteField
	}
	var pre []docstore.Precondition
	if plan.ExpectedStatus != "" {
		pre = append(pre, docstore.FieldEquals(fieldStatus, string(plan.ExpectedStatus)))
	}
	ops := []docstore.WriteOp{docstore.Update(patientRef(plan.PatientID), patientFields, pre...)}

	if c := plan.CloseAdmission; c != nil {
		ops = append(ops, docstore.Update(
			docstore.Doc(admissionCollection(plan.PatientID), c.RecordID),
			docstore.Fields{
				fieldDischargeDate:  docstore.ServerTimestamp,
				fieldDischargedByID: c.DischargedByID,
				fieldDischargedBy:   c.DischargedByName,
			},
			docstore.FieldAbsent(fieldDischargeDate),
		))
	}

	if n := plan.Notification; n != nil {
		if n.ID == "" {
			n.ID = r.store.NewID()
		}
		ops = append(ops, docstore.Create(docstore.Doc(collNotifications, n.ID), docstore.Fields{
			fieldRecipientID: n.RecipientID,
			fieldSenderID:    n.SenderID,
			fieldSenderName:  n.SenderName,
			fieldTitle:       n.Title,
			fieldMessage:     n.Message,
			fieldType:        n.Type,
			fieldCreatedAt:   docstore.ServerTimestamp,
			fieldRead:        false,
		}))
	}

	if err := r.store.AtomicWrite(ctx, ops); err != nil {
		if errors.Is(err, docstore.ErrPreconditionFailed) {
			return fmt.Errorf("%w: %v", ErrWriteConflict, err)
		}
		if errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrPatientNotFound, err)
		}
		return fmt.Errorf("failed to apply discharge plan for %s: %w", plan.PatientID, err)
	}
	return nil
}

func (r *DocPatientsRepo) UpsertPatient(ctx context.Context, p *domain.Patient) error {
	if !p.Status.Valid() {
		return fmt.Errorf("invalid patient status %q", p.Status)
	}
	if p.ID == "" {
		p.ID = r.store.NewID()
	}
	if err := r.store.AtomicWrite(ctx, []docstore.WriteOp{docstore.Set(patientRef(p.ID), encodePatient(p))}); err != nil {
		return fmt.Errorf("failed to upsert patient: %w", err)
	}
	return nil
}

func (r *DocPatientsRepo) AddAdmissionRecord(ctx context.Context, rec *domain.AdmissionRecord) (string, error) {
	if rec.PatientID == "" {
		return "", fmt.Errorf("admission record requires a patient id")
	}
	if rec.ID == "" {
		rec.ID = r.store.NewID()
	}
	fields := docstore.Fields{fieldAdmissionDate: rec.AdmissionDate}
	if rec.DischargeDate != nil {
		fields[fieldDischargeDate] = *rec.DischargeDate
		fields[fieldDischargedByID] = rec.DischargedByID
		fields[fieldDischargedBy] = rec.DischargedByName
	}
	ref := docstore.Doc(admissionCollection(rec.PatientID), rec.ID)
	if err := r.store.AtomicWrite(ctx, []docstore.WriteOp{docstore.Set(ref, fields)}); err != nil {
		return "", fmt.Errorf("failed to add admission record: %w", err)
	}
	return rec.ID, nil
}

func (r *DocPatientsRepo) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]*domain.Notification, error) {
	docs, err := r.store.QueryByField(ctx, collNotifications, fieldRecipientID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	out := make([]*domain.Notification, 0, len(docs))
	for _, d := range docs {
		n := decodeNotification(d)
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// MarkNotificationRead only touches a notification addressed to recipientID.
func (r *DocPatientsRepo) MarkNotificationRead(ctx context.Context, recipientID, notificationID string) error {
	err := r.store.AtomicWrite(ctx, []docstore.WriteOp{
		docstore.Update(
			docstore.Doc(collNotifications, notificationID),
			docstore.Fields{fieldRead: true},
			docstore.FieldEquals(fieldRecipientID, recipientID),
		),
	})
	if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrPreconditionFailed) {
		return fmt.Errorf("%w: %s", ErrNotificationNotFound, notificationID)
	}
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

func encodePatient(p *domain.Patient) docstore.Fields {
	f := docstore.Fields{
		fieldName:           p.Name,
		fieldSurname:        p.Surname,
		fieldHospitalNumber: p.HospitalNumber,
		fieldStatus:         string(p.Status),
		fieldFinancials: map[string]any{
			fieldTotalBill:  p.Financials.TotalBill,
			fieldAmountPaid: p.Financials.AmountPaid,
			fieldBalance:    p.Financials.Balance,
		},
	}
	if p.Location != nil {
		f[fieldWardID] = p.Location.WardID
		f[fieldWardName] = p.Location.WardName
		f[fieldBedNumber] = p.Location.BedNumber
	}
	if p.PendingRequesterID != nil {
		f[fieldRequesterID] = *p.PendingRequesterID
	}
	return f
}

func decodePatient(d docstore.Document) *domain.Patient {
	f := d.Fields
	p := &domain.Patient{
		ID:             d.Ref.ID,
		Name:           asString(f[fieldName]),
		Surname:        asString(f[fieldSurname]),
		HospitalNumber: asString(f[fieldHospitalNumber]),
		Status:         domain.PatientStatus(asString(f[fieldStatus])),
	}

	_, hasWard := f[fieldWardID]
	_, hasWardName := f[fieldWardName]
	_, hasBed := f[fieldBedNumber]
	if hasWard || hasWardName || hasBed {
		p.Location = &domain.WardBed{
			WardID:    asString(f[fieldWardID]),
			WardName:  asString(f[fieldWardName]),
			BedNumber: asString(f[fieldBedNumber]),
		}
	}

	if fin, ok := asMap(f[fieldFinancials]); ok {
		p.Financials.TotalBill, _ = asFloat(fin[fieldTotalBill])
		p.Financials.AmountPaid, _ = asFloat(fin[fieldAmountPaid])
		if bal, ok := asFloat(fin[fieldBalance]); ok {
			p.Financials.Balance = bal
		} else {
			p.Financials.Balance = p.Financials.TotalBill - p.Financials.AmountPaid
		}
	}

	if req := asString(f[fieldRequesterID]); req != "" {
		p.PendingRequesterID = &req
	}
	return p
}

func decodeAdmission(patientID string, d docstore.Document) *domain.AdmissionRecord {
	rec := &domain.AdmissionRecord{
		ID:               d.Ref.ID,
		PatientID:        patientID,
		DischargedByID:   asString(d.Fields[fieldDischargedByID]),
		DischargedByName: asString(d.Fields[fieldDischargedBy]),
	}
	rec.AdmissionDate, _ = asTime(d.Fields[fieldAdmissionDate])
	if t, ok := asTime(d.Fields[fieldDischargeDate]); ok {
		rec.DischargeDate = &t
	}
	return rec
}

func decodeNotification(d docstore.Document) *domain.Notification {
	f := d.Fields
	n := &domain.Notification{
		ID:          d.Ref.ID,
		RecipientID: asString(f[fieldRecipientID]),
		SenderID:    asString(f[fieldSenderID]),
		SenderName:  asString(f[fieldSenderName]),
		Title:       asString(f[fieldTitle]),
		Message:     asString(f[fieldMessage]),
		Type:        asString(f[fieldType]),
	}
	n.CreatedAt, _ = asTime(f[fieldCreatedAt])
	n.Read, _ = f[fieldRead].(bool)
	return n
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case docstore.Fields:
		return m, true
	}
	return nil, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// asTime accepts native times from the memory store and encoded strings from PostgreSQL.
func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}
