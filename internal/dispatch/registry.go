// Package dispatch delivers nudges over their requested channel.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/xiaot623/nudge/internal/domain"
)

// Details is what a channel needs to address and word a nudge.
type Details struct {
	Receiver   *domain.User
	SenderName string
	TaskTitle  string
	GroupName  string
}

// Result is the outcome of one dispatch. Err is set when the channel failed
// as a whole; per-target failures are only recorded in Deliveries.
type Result struct {
	Delivered  bool
	Deliveries []domain.Delivery
	Err        error
}

// ChannelFunc delivers a nudge over one channel.
type ChannelFunc func(ctx context.Context, nudge *domain.Nudge, details Details) Result

// Registry stores channel implementations keyed by nudge type.
type Registry struct {
	mu       sync.RWMutex
	channels map[domain.NudgeType]ChannelFunc
}

// NewRegistry creates an empty channel registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[domain.NudgeType]ChannelFunc),
	}
}

// Register adds the channel for a nudge type.
func (r *Registry) Register(nudgeType domain.NudgeType, fn ChannelFunc) error {
	if !nudgeType.Valid() {
		return fmt.Errorf("unknown nudge type %q", nudgeType)
	}
	if fn == nil {
		return fmt.Errorf("channel is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.channels[nudgeType]; exists {
		return fmt.Errorf("channel already registered for %s", nudgeType)
	}
	r.channels[nudgeType] = fn
	return nil
}

// MustRegister adds a channel or panics.
func (r *Registry) MustRegister(nudgeType domain.NudgeType, fn ChannelFunc) {
	if err := r.Register(nudgeType, fn); err != nil {
		panic(err)
	}
}

// Dispatch runs the channel registered for the nudge's type.
func (r *Registry) Dispatch(ctx context.Context, nudge *domain.Nudge, details Details) Result {
	r.mu.RLock()
	fn := r.channels[nudge.Type()]
	r.mu.RUnlock()
	if fn == nil {
		return Result{Err: fmt.Errorf("no channel registered for %s", nudge.Type())}
	}
	res := fn(ctx, nudge, details)
	if res.Deliveries == nil {
		res.Deliveries = []domain.Delivery{}
	}
	return res
}
