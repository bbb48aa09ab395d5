// Package filter provides the filter chain for command validation.
package filter

import (
	"context"

	"github.com/osa030/decobox/internal/domain/chat"
	"github.com/osa030/decobox/internal/domain/track"
)

// Request represents a command invocation to be validated.
type Request struct {
	Message       chat.Message
	Plugin        string
	Command       string
	Args          string
	OwnerOnly     bool
	NeedsBinding  bool
	TakesSource   bool
	RequesterType track.RequesterType
}

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "owner_only", "wrong_channel", "unsupported_source"
	Silent   bool   // rejected without a reply
	Filter   string // Name of the rejecting filter, set by Chain
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Drop returns a rejected result that is not answered.
func Drop(code string) Result {
	return Result{Accepted: false, Code: code, Silent: true}
}

// Filter is the interface for command filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates the filter configuration.
	ValidateConfig(settings map[string]any) error
	// AppliesTo returns true if this filter should be applied to the given requester type.
	AppliesTo(requesterType track.RequesterType) bool
	// Check performs the filter check.
	Check(ctx context.Context, req Request) Result
}

// registry holds registered filter factories.
var registry = make(map[string]func() Filter)

// Register registers a filter factory.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	return registry
}
