package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"ward-discharge/internal/domain"
	"ward-discharge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testStaff = domain.StaffIdentity{ID: "doc-7", Name: "Dana", Surname: "Cole"}

func writeEnvelope(t *testing.T, w http.ResponseWriter, status, code int, message string, result any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"code":    code,
		"type":    "success",
		"message": message,
		"result":  result,
	}))
}

func TestListPending_DecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ward/api/v1/discharges/pending", r.URL.Path)
		assert.Equal(t, "doc-7", r.Header.Get("X-User-Id"))
		writeEnvelope(t, w, http.StatusOK, codeSuccess, "ok", models.PendingDischargeList{
			Items: []models.PendingDischargeDTO{{PatientID: "p1", Name: "Ann", CanApprove: true}},
			Total: 1,
		})
	}))
	defer srv.Close()

	c := NewDischargeClient(srv.URL, testStaff, zap.NewNop())
	list, err := c.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "p1", list.Items[0].PatientID)
	assert.True(t, list.Items[0].CanApprove)
}

func TestListPending_ErrorCodeIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, http.StatusOK, -1, "Failed to fetch patient list.", nil)
	}))
	defer srv.Close()

	c := NewDischargeClient(srv.URL, testStaff, zap.NewNop())
	_, err := c.ListPending(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsFetch(err))
	assert.Equal(t, domain.MsgFetchFailed, domain.UserMessage(err))
}

func TestDecide_MapsResultCodes(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		code    int
		message string
		check   func(t *testing.T, msg string, err error)
	}{
		{
			name: "success", status: http.StatusOK, code: codeSuccess, message: "Patient status updated to Discharged.",
			check: func(t *testing.T, msg string, err error) {
				require.NoError(t, err)
				assert.Equal(t, "Patient status updated to Discharged.", msg)
			},
		},
		{
			name: "validation", status: http.StatusOK, code: codeValidation, message: domain.MsgReasonRequired,
			check: func(t *testing.T, _ string, err error) {
				assert.True(t, domain.IsValidation(err))
				assert.Equal(t, domain.MsgReasonRequired, domain.UserMessage(err))
			},
		},
		{
			name: "conflict", status: http.StatusOK, code: codeConflict, message: domain.MsgAlreadyDecided,
			check: func(t *testing.T, _ string, err error) {
				assert.True(t, domain.IsConflict(err))
				assert.Equal(t, domain.MsgAlreadyDecided, domain.UserMessage(err))
			},
		},
		{
			name: "unauthorized", status: http.StatusUnauthorized, code: 40101, message: "missing staff identity",
			check: func(t *testing.T, _ string, err error) {
				assert.True(t, domain.IsCommit(err))
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/ward/api/v1/discharges/p1/decision", r.URL.Path)
				assert.Equal(t, "Cole", r.Header.Get("X-User-Surname"))

				var body models.DecisionRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "approve", body.Action)
				writeEnvelope(t, w, tc.status, tc.code, tc.message, nil)
			}))
			defer srv.Close()

			c := NewDischargeClient(srv.URL, testStaff, zap.NewNop())
			msg, err := c.Decide(context.Background(), "p1", models.DecisionRequest{Action: "approve"})
			tc.check(t, msg, err)
		})
	}
}

func TestDecide_NotRetriedOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeEnvelope(t, w, http.StatusInternalServerError, -1, "boom", nil)
	}))
	defer srv.Close()

	c := NewDischargeClient(srv.URL, testStaff, zap.NewNop())
	_, err := c.Decide(context.Background(), "p1", models.DecisionRequest{Action: "reject", Reason: "labs"})
	assert.True(t, domain.IsCommit(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDecide_ServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewDischargeClient(url, testStaff, zap.NewNop())
	_, err := c.Decide(context.Background(), "p1", models.DecisionRequest{Action: "approve"})
	require.Error(t, err)
	assert.True(t, domain.IsCommit(err))
}
