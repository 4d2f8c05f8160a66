// Package hook renders the templated external commands acmed runs for
// challenge provisioning/cleanup and file-lifecycle events, and executes
// them with the hook-set semantics of spec.md §4.6.
//
// No example repo carries a templating engine of this shape, so the
// renderer below is hand-built against the small grammar spec.md actually
// needs: `{{ var }}`, `{{ env.NAME | default('x') }}` and
// `{{#if var}}...{{else}}...{{/if}}`. See DESIGN.md for why this is the
// one component with no pack library to wire.
package hook

import (
	"fmt"
	"regexp"
	"strings"
)

// Vars is the variable namespace a template is rendered against. Env
// holds the hook-set's merged environment, addressed as `env.NAME`; every
// other field is addressed directly by name.
type Vars struct {
	Fields map[string]string
	Env    map[string]string
}

var (
	ifRe   = regexp.MustCompile(`(?s)\{\{#if\s+([.\w]+)\}\}(.*?)(?:\{\{else\}\}(.*?))?\{\{/if\}\}`)
	varRe  = regexp.MustCompile(`\{\{\s*([.\w]+)(?:\s*\|\s*default\('([^']*)'\)\s*)?\}\}`)
)

// Render expands a template string against vars. {{#if}} blocks are
// resolved first (on the raw, un-substituted condition value) so that a
// conditionally-skipped branch never needs its own variables resolved;
// {{ var }} and {{ env.NAME | default('x') }} expansions run afterward.
func Render(tmpl string, vars Vars) (string, error) {
	out := ifRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		sub := ifRe.FindStringSubmatch(m)
		cond, thenBranch, elseBranch := sub[1], sub[2], sub[3]
		if truthy(lookup(cond, vars)) {
			return thenBranch
		}
		return elseBranch
	})

	var outerErr error
	out = varRe.ReplaceAllStringFunc(out, func(m string) string {
		sub := varRe.FindStringSubmatch(m)
		name, def := sub[1], sub[2]
		val, ok := lookupOK(name, vars)
		if !ok {
			if sub[2] != "" || strings.Contains(m, "default(") {
				return def
			}
			outerErr = fmt.Errorf("hook: template: undefined variable %q", name)
			return ""
		}
		return val
	})
	if outerErr != nil {
		return "", outerErr
	}
	return out, nil
}

func lookup(name string, vars Vars) string {
	v, _ := lookupOK(name, vars)
	return v
}

func lookupOK(name string, vars Vars) (string, bool) {
	if rest, ok := strings.CutPrefix(name, "env."); ok {
		v, ok := vars.Env[rest]
		return v, ok
	}
	v, ok := vars.Fields[name]
	return v, ok
}

func truthy(s string) bool {
	return s != "" && s != "false" && s != "0"
}
