package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const decisionLockPrefix = "discharge:decision:lock:"

// DecisionLock serialises decisions per patient across service instances.
// Correctness does not depend on it: the status precondition on the write set still applies.
type DecisionLock struct {
	kv     KV
	ttl    time.Duration
	logger *zap.Logger
}

func NewDecisionLock(kv KV, ttl time.Duration, logger *zap.Logger) *DecisionLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &DecisionLock{kv: kv, ttl: ttl, logger: logger}
}

func DecisionLockKey(patientID string) string { return decisionLockPrefix + patientID }

// Acquire returns false when another decision for the patient holds the lock.
// If Redis is unreachable it logs and lets the caller proceed.
func (l *DecisionLock) Acquire(ctx context.Context, patientID string) (release func(), acquired bool) {
	key := DecisionLockKey(patientID)
	token := uuid.NewString()

	ok, err := l.kv.SetNX(ctx, key, token, l.ttl)
	if err != nil {
		l.logger.Warn("decision lock unavailable, proceeding without it",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		return func() {}, true
	}
	if !ok {
		holder, _ := l.kv.Get(ctx, key)
		l.logger.Info("decision already in flight",
			zap.String("patient_id", patientID),
			zap.String("holder", holder),
		)
		return func() {}, false
	}

	return func() {
		// ctx may already be cancelled by the time the decision returns.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := l.kv.DeleteIfEquals(rctx, key, token); err != nil {
			l.logger.Warn("failed to release decision lock",
				zap.String("patient_id", patientID),
				zap.Error(err),
			)
		}
	}, true
}
