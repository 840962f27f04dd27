// Package restore validates backup documents, stages them and applies them only after
// explicit confirmation.
package restore

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/and161185/logistics-keeper/internal/errs"
	"github.com/and161185/logistics-keeper/internal/model"
)

var requiredFields = []string{"orders", "users", "suppliers"}

// Validate checks that payload is an object whose orders, users and suppliers members
// are arrays, and decodes it. It never touches application state.
func Validate(payload []byte) (model.AppState, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil || doc == nil {
		return model.AppState{}, &errs.BackupFormatError{Reason: "not a JSON object"}
	}
	for _, f := range requiredFields {
		raw, ok := doc[f]
		if !ok || !isArray(raw) {
			return model.AppState{}, &errs.BackupFormatError{Reason: f + " is missing or not an array"}
		}
	}
	var st model.AppState
	if err := json.Unmarshal(payload, &st); err != nil {
		return model.AppState{}, &errs.BackupFormatError{Reason: err.Error()}
	}
	return st.Clone(), nil
}

func isArray(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}

// Replacer commits a full restore: data replaced, session cleared, change published.
type Replacer interface {
	ReplaceAll(ctx context.Context, st model.AppState) error
}

// Pipeline holds at most one staged restore awaiting confirmation.
type Pipeline struct {
	r   Replacer
	log *zap.Logger

	mu      sync.Mutex
	pending *model.AppState
}

// NewPipeline returns a pipeline committing through r.
func NewPipeline(r Replacer, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{r: r, log: log.Named("restore")}
}

// Stage validates payload and keeps it pending. An invalid payload leaves any previously
// staged data in place.
func (p *Pipeline) Stage(payload []byte) (model.AppState, error) {
	st, err := Validate(payload)
	if err != nil {
		p.log.Debug("stage rejected", zap.Error(err))
		return model.AppState{}, err
	}
	p.StageState(st)
	return st.Clone(), nil
}

// StageState keeps an already decoded state pending, replacing any earlier one.
func (p *Pipeline) StageState(st model.AppState) {
	c := st.Clone()
	p.mu.Lock()
	p.pending = &c
	p.mu.Unlock()
	p.log.Debug("staged", zap.Int("orders", len(c.Orders)), zap.Int("users", len(c.Users)))
}

// Pending returns the staged state, if any.
func (p *Pipeline) Pending() (model.AppState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return model.AppState{}, false
	}
	return p.pending.Clone(), true
}

// Confirm applies the staged state. On failure it stays staged.
func (p *Pipeline) Confirm(ctx context.Context) (model.AppState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return model.AppState{}, errs.ErrNoPendingRestore
	}
	st := p.pending.Clone()
	if err := p.r.ReplaceAll(ctx, st); err != nil {
		return model.AppState{}, fmt.Errorf("apply restore: %w", err)
	}
	p.pending = nil
	p.log.Info("restore applied", zap.Int("orders", len(st.Orders)), zap.Int("users", len(st.Users)))
	return st, nil
}

// Cancel discards the staged state.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	p.pending = nil
	p.mu.Unlock()
}
