package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMemory(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	err := s.AtomicWrite(context.Background(), []WriteOp{
		Set(Doc("patients", "p1"), Fields{"name": "Ann", "status": "PendingDischarge", "currentWardId": "w1"}),
		Set(Doc("patients", "p2"), Fields{"name": "Bo", "status": "Admitted"}),
		Set(Doc("patients", "p3"), Fields{"name": "Cy", "status": "PendingDischarge"}),
	})
	require.NoError(t, err)
	return s
}

func TestMemoryStore_QueryByField(t *testing.T) {
	s := seedMemory(t)

	docs, err := s.QueryByField(context.Background(), "patients", "status", "PendingDischarge")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "p1", docs[0].Ref.ID)
	assert.Equal(t, "p3", docs[1].Ref.ID)

	none, err := s.QueryByField(context.Background(), "wards", "status", "x")
	require.NoError(t, err)
	assert.Empty(t, none)
}

type customStatus string

func TestMemoryStore_QueryByField_NormalizesStringKinds(t *testing.T) {
	s := seedMemory(t)

	docs, err := s.QueryByField(context.Background(), "patients", "status", customStatus("Admitted"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "p2", docs[0].Ref.ID)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := seedMemory(t)
	ctx := context.Background()

	doc, err := s.Get(ctx, Doc("patients", "p1"))
	require.NoError(t, err)
	doc.Fields["name"] = "mutated"

	again, err := s.Get(ctx, Doc("patients", "p1"))
	require.NoError(t, err)
	assert.Equal(t, "Ann", again.Fields["name"])

	_, err = s.Get(ctx, Doc("patients", "missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_QueryOrderedLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	coll := Doc("patients", "p1").Sub("admissionHistory")
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.AtomicWrite(ctx, []WriteOp{
		Set(Doc(coll, "a1"), Fields{"admissionDate": base}),
		Set(Doc(coll, "a3"), Fields{"admissionDate": base.Add(48 * time.Hour)}),
		Set(Doc(coll, "a2"), Fields{"admissionDate": base.Add(24 * time.Hour)}),
		Set(Doc(coll, "nodate"), Fields{"note": "legacy"}),
	}))

	latest, err := s.QueryOrderedLimit(ctx, coll, "admissionDate", true, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "a3", latest[0].Ref.ID)

	all, err := s.QueryOrderedLimit(ctx, coll, "admissionDate", false, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a1", "a2", "a3"}, []string{all[0].Ref.ID, all[1].Ref.ID, all[2].Ref.ID})
}

func TestMemoryStore_UpdateTransforms(t *testing.T) {
	fixed := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	s := seedMemory(t).WithClock(func() time.Time { return fixed })
	ctx := context.Background()

	err := s.AtomicWrite(ctx, []WriteOp{
		Update(Doc("patients", "p1"), Fields{
			"status":        "Discharged",
			"currentWardId": DeleteField,
			"dischargedAt":  ServerTimestamp,
		}, FieldEquals("status", "PendingDischarge")),
	})
	require.NoError(t, err)

	doc, err := s.Get(ctx, Doc("patients", "p1"))
	require.NoError(t, err)
	assert.Equal(t, "Discharged", doc.Fields["status"])
	assert.NotContains(t, doc.Fields, "currentWardId")
	assert.Equal(t, fixed, doc.Fields["dischargedAt"])
	assert.Equal(t, "Ann", doc.Fields["name"])
}

func TestMemoryStore_PreconditionFailureAppliesNothing(t *testing.T) {
	s := seedMemory(t)
	ctx := context.Background()

	err := s.AtomicWrite(ctx, []WriteOp{
		Set(Doc("notifications", "n1"), Fields{"title": "x"}),
		Update(Doc("patients", "p2"), Fields{"status": "Discharged"}, FieldEquals("status", "PendingDischarge")),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPreconditionFailed))

	_, err = s.Get(ctx, Doc("notifications", "n1"))
	assert.ErrorIs(t, err, ErrNotFound)
	doc, err := s.Get(ctx, Doc("patients", "p2"))
	require.NoError(t, err)
	assert.Equal(t, "Admitted", doc.Fields["status"])
}

func TestMemoryStore_MidBatchMissRollsBack(t *testing.T) {
	s := seedMemory(t)
	ctx := context.Background()

	err := s.AtomicWrite(ctx, []WriteOp{
		Update(Doc("patients", "p1"), Fields{"status": "Discharged"}),
		Update(Doc("patients", "ghost"), Fields{"status": "Discharged"}),
	})
	assert.ErrorIs(t, err, ErrNotFound)

	doc, err := s.Get(ctx, Doc("patients", "p1"))
	require.NoError(t, err)
	assert.Equal(t, "PendingDischarge", doc.Fields["status"])
}

func TestMemoryStore_FieldAbsentPrecondition(t *testing.T) {
	s := seedMemory(t)
	ctx := context.Background()

	err := s.AtomicWrite(ctx, []WriteOp{
		Update(Doc("patients", "p1"), Fields{"closed": true}, FieldAbsent("currentWardId")),
	})
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	err = s.AtomicWrite(ctx, []WriteOp{
		Update(Doc("patients", "p2"), Fields{"closed": true}, FieldAbsent("currentWardId")),
	})
	assert.NoError(t, err)
}

func TestMemoryStore_CreateRejectsExisting(t *testing.T) {
	s := seedMemory(t)

	err := s.AtomicWrite(context.Background(), []WriteOp{
		Create(Doc("patients", "p1"), Fields{"name": "dup"}),
	})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestMemoryStore_RejectsPreconditionOnSet(t *testing.T) {
	s := NewMemoryStore()
	op := Set(Doc("patients", "p1"), Fields{})
	op.Preconditions = []Precondition{FieldEquals("status", "x")}

	err := s.AtomicWrite(context.Background(), []WriteOp{op})
	assert.Error(t, err)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := seedMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.AtomicWrite(ctx, []WriteOp{Update(Doc("patients", "p1"), Fields{"status": "Admitted"})})
	assert.ErrorIs(t, err, context.Canceled)
}
