package hook

import "fmt"

// TriggerType is one of the fixed hook trigger strings spec.md §4.6 lists.
type TriggerType string

const (
	TriggerChallengeHTTP01         TriggerType = "challenge-http-01"
	TriggerChallengeHTTP01Clean    TriggerType = "challenge-http-01-clean"
	TriggerChallengeDNS01          TriggerType = "challenge-dns-01"
	TriggerChallengeDNS01Clean     TriggerType = "challenge-dns-01-clean"
	TriggerChallengeTLSALPN01      TriggerType = "challenge-tls-alpn-01"
	TriggerChallengeTLSALPN01Clean TriggerType = "challenge-tls-alpn-01-clean"
	TriggerFilePreCreate           TriggerType = "file-pre-create"
	TriggerFilePostCreate          TriggerType = "file-post-create"
	TriggerFilePreEdit             TriggerType = "file-pre-edit"
	TriggerFilePostEdit            TriggerType = "file-post-edit"
	TriggerPostOperation           TriggerType = "post-operation"
)

// maxGroupDepth bounds hook-group flattening recursion (spec.md §4.6).
const maxGroupDepth = 32

// Hook is one configured external command, matching one or more trigger
// types.
type Hook struct {
	Name         string
	Types        []TriggerType
	Cmd          string
	Args         []string
	Stdin        string // template for a file path whose contents are piped in
	StdinStr     string // template for literal stdin bytes
	Stdout       string // template for a file path the child's stdout is redirected to
	AllowFailure bool
}

// Group names an ordered list of hook or group names, flattened
// depth-first at load time (spec.md §4.6).
type Group struct {
	Name  string
	Members []string
}

// Registry resolves hook and group names into an executable hook-set for
// a given trigger type.
type Registry struct {
	hooks  map[string]Hook
	groups map[string]Group
}

// NewRegistry validates hooks/groups and rejects cyclic or over-deep group
// references before returning a usable Registry (a config-load-time
// check, per spec.md §4.6/§7 ConfigError).
func NewRegistry(hooks []Hook, groups []Group) (*Registry, error) {
	r := &Registry{hooks: make(map[string]Hook), groups: make(map[string]Group)}
	for _, h := range hooks {
		if _, dup := r.hooks[h.Name]; dup {
			return nil, fmt.Errorf("hook: duplicate hook name %q", h.Name)
		}
		r.hooks[h.Name] = h
	}
	for _, g := range groups {
		if _, dup := r.groups[g.Name]; dup {
			return nil, fmt.Errorf("hook: duplicate group name %q", g.Name)
		}
		r.groups[g.Name] = g
	}
	for name := range r.groups {
		if _, err := r.flatten(name, make(map[string]bool), 0); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// flatten resolves a hook or group name into its ordered, depth-first list
// of Hooks, detecting cycles via the visiting set and enforcing
// maxGroupDepth.
func (r *Registry) flatten(name string, visiting map[string]bool, depth int) ([]Hook, error) {
	if depth > maxGroupDepth {
		return nil, fmt.Errorf("hook: group nesting exceeds depth %d at %q", maxGroupDepth, name)
	}
	if h, ok := r.hooks[name]; ok {
		return []Hook{h}, nil
	}
	g, ok := r.groups[name]
	if !ok {
		return nil, fmt.Errorf("hook: unknown hook or group %q", name)
	}
	if visiting[name] {
		return nil, fmt.Errorf("hook: cyclic group reference at %q", name)
	}
	visiting[name] = true
	defer delete(visiting, name)

	var out []Hook
	for _, member := range g.Members {
		sub, err := r.flatten(member, visiting, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

// Resolve returns the flattened, ordered hook list matching trigger among
// the given hook/group names, preserving hook-set membership order.
func (r *Registry) Resolve(names []string, trigger TriggerType) ([]Hook, error) {
	var out []Hook
	for _, name := range names {
		flat, err := r.flatten(name, make(map[string]bool), 0)
		if err != nil {
			return nil, err
		}
		for _, h := range flat {
			if matchesTrigger(h, trigger) {
				out = append(out, h)
			}
		}
	}
	return out, nil
}

func matchesTrigger(h Hook, trigger TriggerType) bool {
	for _, t := range h.Types {
		if t == trigger {
			return true
		}
	}
	return false
}
