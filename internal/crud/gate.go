package crud

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/simp-lee/hrdesk/internal/domain"
)

// ErrNothingPending is returned by Confirm when no delete was requested.
var ErrNothingPending = errors.New("no delete pending confirmation")

// GateState is a snapshot of a DeleteGate.
type GateState struct {
	Pending  bool
	TargetID string
	Target   domain.Record
	// Anchor identifies the row element the confirmation is attached to.
	Anchor string
}

// DeleteGate requires an explicit second step before a record is removed.
// The list is never changed locally: success triggers the refresh callback
// and failure leaves the rows untouched.
type DeleteGate struct {
	entity  domain.Entity
	remover Remover
	opts    options

	mu       sync.Mutex
	target   domain.Record
	targetID string
	anchor   string
}

// NewDeleteGate creates an idle gate for entity.
func NewDeleteGate(entity domain.Entity, remover Remover, opts ...Option) *DeleteGate {
	return &DeleteGate{
		entity:  entity,
		remover: remover,
		opts:    buildOptions(entity, opts),
	}
}

// Request moves the gate to pending for record. A later Request replaces an
// earlier one.
func (g *DeleteGate) Request(record domain.Record, anchor string) error {
	id, ok := record.ID()
	if !ok {
		return errors.New("delete requires a record with an id")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.target = record.Clone()
	g.targetID = id
	g.anchor = anchor
	return nil
}

// Cancel returns the gate to idle without deleting.
func (g *DeleteGate) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clear()
}

// Confirm removes the pending record. The gate is idle afterwards whatever
// the outcome.
func (g *DeleteGate) Confirm(ctx context.Context) (domain.MutationResult, error) {
	g.mu.Lock()
	if g.targetID == "" {
		g.mu.Unlock()
		return domain.MutationResult{}, ErrNothingPending
	}
	id := g.targetID
	g.clear()
	g.mu.Unlock()

	res, err := g.remover.Remove(ctx, id)
	if err != nil {
		msg := domain.UserMessage(err, "Failed to delete "+strings.ToLower(g.entity.Singular))
		g.opts.logger.WarnContext(ctx, "delete failed",
			slog.String("target_id", id),
			slog.String("error", err.Error()),
		)
		g.opts.notifier.Notify(Toast{Kind: ToastError, Message: msg})
		return domain.MutationResult{}, err
	}

	g.opts.notifier.Notify(Toast{Kind: ToastSuccess, Message: res.Message})
	if g.opts.onSuccess != nil {
		g.opts.onSuccess(ctx)
	}
	return res, nil
}

// State returns a snapshot of the gate.
func (g *DeleteGate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GateState{
		Pending:  g.targetID != "",
		TargetID: g.targetID,
		Target:   g.target.Clone(),
		Anchor:   g.anchor,
	}
}

func (g *DeleteGate) clear() {
	g.target = nil
	g.targetID = ""
	g.anchor = ""
}
