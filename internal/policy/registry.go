package policy

import (
	"sort"
	"strings"
)

// Registry holds every known app policy.
type Registry struct {
	policies map[string]AppPolicy
}

// NewRegistry creates a registry with all default policies.
func NewRegistry() *Registry {
	r := &Registry{
		policies: make(map[string]AppPolicy),
	}

	r.Register(NewSteamPolicy())
	r.Register(NewDota2Policy())
	r.Register(StaticPolicy{TargetID: "discord", DisplayName: "Discord", Patterns: []string{"Discord"}, CategoryID: CategorySocial})
	r.Register(StaticPolicy{TargetID: "slack", DisplayName: "Slack", Patterns: []string{"Slack"}, CategoryID: CategorySocial})

	return r
}

// NewRegistryWithPolicies creates a registry with custom policies (for testing).
func NewRegistryWithPolicies(policies ...AppPolicy) *Registry {
	r := &Registry{
		policies: make(map[string]AppPolicy),
	}
	for _, p := range policies {
		r.Register(p)
	}
	return r
}

// Register adds a policy to the registry.
func (r *Registry) Register(p AppPolicy) {
	r.policies[strings.ToLower(p.ID())] = p
}

// Get returns a policy by ID.
func (r *Registry) Get(id string) (AppPolicy, bool) {
	p, ok := r.policies[strings.ToLower(id)]
	return p, ok
}

// GetAll returns all registered policies ordered by ID.
func (r *Registry) GetAll() []AppPolicy {
	result := make([]AppPolicy, 0, len(r.policies))
	for _, id := range r.List() {
		result = append(result, r.policies[id])
	}
	return result
}

// List returns all policy IDs in order.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.policies))
	for id := range r.policies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// InCategory returns the policies belonging to category.
func (r *Registry) InCategory(category string) []AppPolicy {
	var result []AppPolicy
	for _, p := range r.GetAll() {
		if strings.EqualFold(p.Category(), category) {
			result = append(result, p)
		}
	}
	return result
}

// Resolve expands lock targets into the process patterns to enforce.
// An app without a policy is matched by its own identifier; a category
// without policies contributes nothing.
func (r *Registry) Resolve(apps, categories []string) []string {
	seen := make(map[string]struct{})
	var patterns []string
	add := func(ps ...string) {
		for _, p := range ps {
			key := strings.ToLower(p)
			if p == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			patterns = append(patterns, p)
		}
	}

	for _, app := range apps {
		if p, ok := r.Get(app); ok {
			add(p.ProcessPatterns()...)
			continue
		}
		add(app)
	}
	for _, category := range categories {
		for _, p := range r.InCategory(category) {
			add(p.ProcessPatterns()...)
		}
	}
	return patterns
}
