package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"ward-discharge/internal/domain"
	"ward-discharge/internal/models"
	"ward-discharge/internal/panel"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	codeSuccess    = 2000
	codeValidation = 40001
	codeConflict   = 40901
)

// envelope mirrors httpapi.Result on the wire.
type envelope struct {
	Code    int             `json:"code"`
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// DischargeClient 出院审批 API 客户端（控制台使用）
type DischargeClient struct {
	httpClient   *resty.Client
	decideClient *resty.Client // no retries
	logger       *zap.Logger
}

var _ panel.Backend = (*DischargeClient)(nil)

// NewDischargeClient sends every request as the given staff member.
func NewDischargeClient(baseURL string, staff domain.StaffIdentity, logger *zap.Logger) *DischargeClient {
	newClient := func() *resty.Client {
		return resty.New().
			SetBaseURL(baseURL).
			SetTimeout(15*time.Second).
			SetHeader("Accept", "application/json").
			SetHeader("X-User-Id", staff.ID).
			SetHeader("X-User-Name", staff.Name).
			SetHeader("X-User-Surname", staff.Surname)
	}

	reads := newClient().
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second)

	return &DischargeClient{httpClient: reads, decideClient: newClient(), logger: logger}
}

func (c *DischargeClient) ListPending(ctx context.Context) (*models.PendingDischargeList, error) {
	var env envelope
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&env).
		Get("/ward/api/v1/discharges/pending")
	if err != nil {
		return nil, domain.FetchError(domain.MsgFetchFailed, err)
	}
	if resp.IsError() {
		return nil, domain.FetchError(domain.MsgFetchFailed, fmt.Errorf("http %d", resp.StatusCode()))
	}
	if env.Code != codeSuccess {
		return nil, domain.FetchError(domain.MsgFetchFailed, fmt.Errorf("code %d: %s", env.Code, env.Message))
	}

	var list models.PendingDischargeList
	if err := json.Unmarshal(env.Result, &list); err != nil {
		return nil, domain.FetchError(domain.MsgFetchFailed, fmt.Errorf("failed to decode pending list: %w", err))
	}
	return &list, nil
}

// Decide is not retried: a lost response followed by a retry would surface as a conflict.
func (c *DischargeClient) Decide(ctx context.Context, patientID string, req models.DecisionRequest) (string, error) {
	var env envelope
	resp, err := c.decideClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&env).
		SetError(&env).
		Post("/ward/api/v1/discharges/" + url.PathEscape(patientID) + "/decision")
	if err != nil {
		c.logger.Error("decision request failed", zap.String("patient_id", patientID), zap.Error(err))
		return "", domain.CommitError(err)
	}

	switch env.Code {
	case codeSuccess:
		return env.Message, nil
	case codeValidation:
		return "", domain.ValidationError(env.Message)
	case codeConflict:
		return "", domain.ConflictError(env.Message, nil)
	}
	c.logger.Warn("decision rejected by server",
		zap.String("patient_id", patientID),
		zap.Int("http_status", resp.StatusCode()),
		zap.Int("code", env.Code),
		zap.String("message", env.Message),
	)
	return "", domain.CommitError(fmt.Errorf("http %d code %d: %s", resp.StatusCode(), env.Code, env.Message))
}
