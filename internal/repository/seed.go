package repository

import (
	"context"
	"fmt"
	"time"

	"ward-discharge/internal/domain"
)

// DemoRequesterID is the staff id that raised the seeded discharge requests.
const DemoRequesterID = "staff-nurse-001"

// SeedDemoWard loads a small ward for local runs on the memory store.
func SeedDemoWard(ctx context.Context, repo PatientsRepository, now time.Time) error {
	requester := DemoRequesterID
	admitted := now.Add(-72 * time.Hour)

	patients := []*domain.Patient{
		{
			ID: "demo-p001", Name: "Amara", Surname: "Osei", HospitalNumber: "HN-10231",
			Status:             domain.StatusPendingDischarge,
			Location:           &domain.WardBed{WardID: "ward-a", WardName: "Ward A", BedNumber: "A-04"},
			Financials:         domain.Financials{TotalBill: 1800, AmountPaid: 1800, Balance: 0},
			PendingRequesterID: &requester,
		},
		{
			ID: "demo-p002", Name: "Jonas", Surname: "Berg", HospitalNumber: "HN-10244",
			Status:             domain.StatusPendingDischarge,
			Location:           &domain.WardBed{WardID: "ward-a", WardName: "Ward A", BedNumber: "A-07"},
			Financials:         domain.Financials{TotalBill: 2400, AmountPaid: 1900, Balance: 500},
			PendingRequesterID: &requester,
		},
		{
			ID: "demo-p003", Name: "Li", Surname: "Wei", HospitalNumber: "HN-10257",
			Status:     domain.StatusPendingDischarge,
			Location:   &domain.WardBed{WardID: "ward-b", WardName: "Ward B", BedNumber: "B-01"},
			Financials: domain.Financials{TotalBill: 900, AmountPaid: 1000, Balance: -100},
		},
		{
			ID: "demo-p004", Name: "Rosa", Surname: "Diaz", HospitalNumber: "HN-10262",
			Status:     domain.StatusAdmitted,
			Location:   &domain.WardBed{WardID: "ward-b", WardName: "Ward B", BedNumber: "B-03"},
			Financials: domain.Financials{TotalBill: 300, AmountPaid: 0, Balance: 300},
		},
	}

	for _, p := range patients {
		if err := repo.UpsertPatient(ctx, p); err != nil {
			return fmt.Errorf("seed patient %s: %w", p.ID, err)
		}
		if _, err := repo.AddAdmissionRecord(ctx, &domain.AdmissionRecord{
			ID:            p.ID + "-adm-1",
			PatientID:     p.ID,
			AdmissionDate: admitted,
		}); err != nil {
			return fmt.Errorf("seed admission %s: %w", p.ID, err)
		}
	}
	return nil
}
