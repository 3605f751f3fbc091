package panel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"ward-discharge/internal/domain"
	"ward-discharge/internal/models"

	"go.uber.org/zap"
)

var (
	ErrNoModal        = errors.New("no decision modal is open")
	ErrUnknownPatient = errors.New("patient is not in the pending list")
	ErrApproveBlocked = errors.New(domain.MsgOutstandingBalance)
	ErrInFlight       = errors.New("a decision for this patient is already in flight")
)

// Backend is the discharge API as seen by the panel. client.DischargeClient implements it.
type Backend interface {
	ListPending(ctx context.Context) (*models.PendingDischargeList, error)
	// Decide returns the user-facing success message.
	Decide(ctx context.Context, patientID string, req models.DecisionRequest) (string, error)
}

type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
	NoticeWarning NoticeLevel = "warning"
)

type Notice struct {
	Level   NoticeLevel
	Message string
}

// Modal is the open decision dialog. At most one is open at a time.
type Modal struct {
	PatientID string
	Action    domain.DecisionAction
	Reason    string
}

// Panel drives the pending-discharge worklist:
// idle -> modal open -> confirmed (refresh, idle) | cancelled (idle).
type Panel struct {
	mu       sync.Mutex
	backend  Backend
	logger   *zap.Logger
	cards    []models.PendingDischargeDTO
	loading  bool
	modal    *Modal
	inFlight map[string]bool
	notices  []Notice
}

func New(backend Backend, logger *zap.Logger) *Panel {
	return &Panel{
		backend:  backend,
		logger:   logger,
		inFlight: map[string]bool{},
	}
}

// Load re-runs the pending query. On failure the list is left empty.
func (p *Panel) Load(ctx context.Context) error {
	p.mu.Lock()
	p.loading = true
	p.mu.Unlock()

	list, err := p.backend.ListPending(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = false
	if err != nil {
		p.cards = nil
		p.notify(NoticeError, domain.MsgFetchFailed)
		p.logger.Warn("pending discharge list failed", zap.Error(err))
		return domain.FetchError(domain.MsgFetchFailed, err)
	}
	p.cards = append([]models.PendingDischargeDTO(nil), list.Items...)
	return nil
}

func (p *Panel) Cards() []models.PendingDischargeDTO {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.PendingDischargeDTO(nil), p.cards...)
}

func (p *Panel) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// Modal returns a copy of the open modal, or nil.
func (p *Panel) Modal() *Modal {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.modal == nil {
		return nil
	}
	m := *p.modal
	return &m
}

func (p *Panel) InFlight(patientID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight[patientID]
}

// Open starts a decision for one card. The reason is always reset.
func (p *Panel) Open(patientID string, action domain.DecisionAction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !action.Valid() {
		return fmt.Errorf("invalid action %q", action)
	}
	card, ok := p.card(patientID)
	if !ok {
		return ErrUnknownPatient
	}
	if action == domain.ActionApprove && !card.CanApprove {
		p.notify(NoticeWarning, domain.MsgOutstandingBalance)
		return ErrApproveBlocked
	}
	if p.inFlight[patientID] {
		return ErrInFlight
	}
	p.modal = &Modal{PatientID: patientID, Action: action}
	return nil
}

func (p *Panel) SetReason(reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.modal == nil {
		return ErrNoModal
	}
	p.modal.Reason = reason
	return nil
}

// Cancel discards the open modal without touching the backend.
func (p *Panel) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modal = nil
}

// Confirm submits the open modal. On success the list is refreshed and the modal closed.
// On a validation or commit error the modal stays open for another attempt.
func (p *Panel) Confirm(ctx context.Context) error {
	p.mu.Lock()
	if p.modal == nil {
		p.mu.Unlock()
		return ErrNoModal
	}
	m := *p.modal
	if m.Action == domain.ActionReject && strings.TrimSpace(m.Reason) == "" {
		p.notify(NoticeWarning, domain.MsgReasonRequired)
		p.mu.Unlock()
		return domain.ValidationError(domain.MsgReasonRequired)
	}
	if p.inFlight[m.PatientID] {
		p.mu.Unlock()
		return ErrInFlight
	}
	p.inFlight[m.PatientID] = true
	p.mu.Unlock()

	msg, err := p.backend.Decide(ctx, m.PatientID, models.DecisionRequest{
		Action: string(m.Action),
		Reason: m.Reason,
	})

	p.mu.Lock()
	delete(p.inFlight, m.PatientID)
	if err != nil {
		switch {
		case domain.IsValidation(err):
			p.notify(NoticeWarning, domain.UserMessage(err))
		case domain.IsConflict(err):
			// the card is stale; drop the modal and reload below
			p.notify(NoticeError, domain.UserMessage(err))
			p.closeModalFor(m.PatientID)
		default:
			p.notify(NoticeError, domain.MsgCommitFailed)
		}
		p.mu.Unlock()
		if domain.IsConflict(err) {
			_ = p.Load(ctx)
		}
		return err
	}
	p.notify(NoticeSuccess, msg)
	p.closeModalFor(m.PatientID)
	p.mu.Unlock()

	// a failed refresh is reported through its own notice
	_ = p.Load(ctx)
	return nil
}

// Notices drains pending operator notices.
func (p *Panel) Notices() []Notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.notices
	p.notices = nil
	return out
}

func (p *Panel) closeModalFor(patientID string) {
	if p.modal != nil && p.modal.PatientID == patientID {
		p.modal = nil
	}
}

func (p *Panel) notify(level NoticeLevel, msg string) {
	p.notices = append(p.notices, Notice{Level: level, Message: msg})
}

func (p *Panel) card(patientID string) (models.PendingDischargeDTO, bool) {
	for _, c := range p.cards {
		if c.PatientID == patientID {
			return c, true
		}
	}
	return models.PendingDischargeDTO{}, false
}
