// Package policy maps opaque lock targets to the processes that embody them.
// Each known app (Steam, Dota2) has its own policy naming its processes and
// the category it belongs to.
package policy

// Category identifiers understood by the built-in policies.
const (
	CategoryGames  = "games"
	CategorySocial = "social"
)

// AppPolicy defines the strategy interface for one blockable application.
type AppPolicy interface {
	// ID returns the lock target identifier (e.g., "steam", "dota2").
	ID() string

	// Name returns human-readable name for display.
	Name() string

	// ProcessPatterns returns process names to kill while the app is blocked.
	// Patterns are matched case-insensitively.
	ProcessPatterns() []string

	// Category returns the category identifier the app belongs to.
	Category() string
}

// StaticPolicy is an AppPolicy defined by data rather than code.
type StaticPolicy struct {
	TargetID    string
	DisplayName string
	Patterns    []string
	CategoryID  string
}

func (p StaticPolicy) ID() string                { return p.TargetID }
func (p StaticPolicy) Name() string              { return p.DisplayName }
func (p StaticPolicy) ProcessPatterns() []string { return p.Patterns }
func (p StaticPolicy) Category() string          { return p.CategoryID }

var _ AppPolicy = StaticPolicy{}
