package docstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresStore) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresStore(db)
}

func TestPostgresStore_EnsureSchema(t *testing.T) {
	db, mock, s := setupMockStore(t)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS documents`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	db, mock, s := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT data FROM documents`).
		WithArgs("patients", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).
			AddRow([]byte(`{"name":"Ann","financials":{"balance":0}}`)))

	doc, err := s.Get(context.Background(), Doc("patients", "p1"))
	require.NoError(t, err)
	assert.Equal(t, "Ann", doc.Fields["name"])
	fin, ok := doc.Fields["financials"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(0), fin["balance"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	db, mock, s := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT data FROM documents`).
		WithArgs("patients", "missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), Doc("patients", "missing"))
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryByField(t *testing.T) {
	db, mock, s := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT doc_id, data FROM documents`).
		WithArgs("patients", "status", "PendingDischarge").
		WillReturnRows(sqlmock.NewRows([]string{"doc_id", "data"}).
			AddRow("p1", []byte(`{"status":"PendingDischarge"}`)).
			AddRow("p3", []byte(`{"status":"PendingDischarge"}`)))

	docs, err := s.QueryByField(context.Background(), "patients", "status", customStatus("PendingDischarge"))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, Doc("patients", "p3"), docs[1].Ref)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryOrderedLimit(t *testing.T) {
	db, mock, s := setupMockStore(t)
	defer db.Close()

	coll := "patients/p1/admissionHistory"
	mock.ExpectQuery(`ORDER BY data->>\$2 DESC, doc_id LIMIT \$3`).
		WithArgs(coll, "admissionDate", 1).
		WillReturnRows(sqlmock.NewRows([]string{"doc_id", "data"}).
			AddRow("a3", []byte(`{"admissionDate":"2026-01-03T08:00:00.000000Z"}`)))

	docs, err := s.QueryOrderedLimit(context.Background(), coll, "admissionDate", true, 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a3", docs[0].Ref.ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AtomicWrite_Commit(t *testing.T) {
	db, mock, s := setupMockStore(t)
	defer db.Close()

	now := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT now\(\)`).WillReturnRows(sqlmock.NewRows([]string{"now"}).AddRow(now))
	mock.ExpectExec(`UPDATE documents SET data`).
		WithArgs("patients", "p1", sqlmock.AnyArg(), `{"status":"Discharged"}`, "status", "PendingDischarge").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs("notifications", "n1", `{"createdAt":"2026-05-06T07:08:09.000000Z","read":false}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.AtomicWrite(context.Background(), []WriteOp{
		Update(Doc("patients", "p1"), Fields{
			"status":               "Discharged",
			"dischargeRequesterId": DeleteField,
		}, FieldEquals("status", "PendingDischarge")),
		Set(Doc("notifications", "n1"), Fields{"createdAt": ServerTimestamp, "read": false}),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AtomicWrite_PreconditionFailedRollsBack(t *testing.T) {
	db, mock, s := setupMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE documents SET data`).
		WithArgs("patients", "p1", sqlmock.AnyArg(), `{"status":"Admitted"}`, "status", "PendingDischarge").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT 1 FROM documents`).
		WithArgs("patients", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectRollback()

	err := s.AtomicWrite(context.Background(), []WriteOp{
		Update(Doc("patients", "p1"), Fields{"status": "Admitted"}, FieldEquals("status", "PendingDischarge")),
	})
	assert.ErrorIs(t, err, ErrPreconditionFailed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AtomicWrite_LaterOpFailureRollsBackEarlierOps(t *testing.T) {
	db, mock, s := setupMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE documents SET data`).
		WithArgs("patients", "p1", sqlmock.AnyArg(), `{"status":"Discharged"}`, "status", "PendingDischarge").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)UPDATE documents SET data .* AND data->>\$5 IS NULL`).
		WithArgs("patients/p1/admissionHistory", "a1", sqlmock.AnyArg(), `{"dischargedById":"s1"}`, "dischargeDate").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT 1 FROM documents`).
		WithArgs("patients/p1/admissionHistory", "a1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectRollback()

	err := s.AtomicWrite(context.Background(), []WriteOp{
		Update(Doc("patients", "p1"), Fields{
			"status":        "Discharged",
			"currentWardId": DeleteField,
		}, FieldEquals("status", "PendingDischarge")),
		Update(Doc("patients/p1/admissionHistory", "a1"), Fields{"dischargedById": "s1"}, FieldAbsent("dischargeDate")),
	})
	assert.ErrorIs(t, err, ErrPreconditionFailed)
	assert.Contains(t, err.Error(), "op 1")
	// no ExpectCommit: a commit would fail the expectations below
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AtomicWrite_MissingDocument(t *testing.T) {
	db, mock, s := setupMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE documents SET data`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT 1 FROM documents`).
		WithArgs("patients/p1/admissionHistory", "a1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := s.AtomicWrite(context.Background(), []WriteOp{
		Update(Doc("patients/p1/admissionHistory", "a1"), Fields{"dischargedById": "s1"}, FieldAbsent("dischargeDate")),
	})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AtomicWrite_CreateConflict(t *testing.T) {
	db, mock, s := setupMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`ON CONFLICT \(collection, doc_id\) DO NOTHING`).
		WithArgs("notifications", "n1", `{"title":"x"}`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.AtomicWrite(context.Background(), []WriteOp{
		Create(Doc("notifications", "n1"), Fields{"title": "x"}),
	})
	assert.ErrorIs(t, err, ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEncodeFields(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 600000000, time.FixedZone("x", 3600))
	patch, deletes, err := encodeFields(Fields{
		"admissionDate": at,
		"financials":    map[string]any{"balance": 12.5},
		"gone":          DeleteField,
	}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, `{"admissionDate":"2026-01-02T02:04:05.600000Z","financials":{"balance":12.5}}`, patch)
	assert.Equal(t, []string{"gone"}, deletes)
}
