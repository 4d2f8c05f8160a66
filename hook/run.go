package hook

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
)

// Run executes every hook in order against vars, stopping the hook-set the
// moment a hook without AllowFailure exits non-zero (spec.md §4.6). It
// always runs every hook it reaches before that point; cleanup call sites
// are expected to call Run unconditionally regardless of the provisioning
// outcome (spec.md §4.4 step 8).
func Run(ctx context.Context, hooks []Hook, vars Vars) error {
	for _, h := range hooks {
		if err := runOne(ctx, h, vars); err != nil {
			if h.AllowFailure {
				continue
			}
			return fmt.Errorf("hook %q: %w", h.Name, err)
		}
	}
	return nil
}

func runOne(ctx context.Context, h Hook, vars Vars) error {
	cmdPath, err := Render(h.Cmd, vars)
	if err != nil {
		return err
	}

	args := make([]string, len(h.Args))
	for i, a := range h.Args {
		args[i], err = Render(a, vars)
		if err != nil {
			return err
		}
	}

	cmd := exec.CommandContext(ctx, cmdPath, args...)
	cmd.Env = mergedEnv(vars.Env)

	if h.StdinStr != "" {
		literal, err := Render(h.StdinStr, vars)
		if err != nil {
			return err
		}
		cmd.Stdin = bytes.NewReader([]byte(literal))
	} else if h.Stdin != "" {
		path, err := Render(h.Stdin, vars)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open stdin file %q: %w", path, err)
		}
		defer f.Close()
		cmd.Stdin = f
	}

	var stdoutFile *os.File
	if h.Stdout != "" {
		path, err := Render(h.Stdout, vars)
		if err != nil {
			return err
		}
		stdoutFile, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("open stdout file %q: %w", path, err)
		}
		defer stdoutFile.Close()
		cmd.Stdout = stdoutFile
	}

	return cmd.Run()
}

// mergedEnv layers the configured environment over the process
// environment, last-writer-wins in lexicographical key order (spec.md
// §4.6: "last-writer wins in lexicographical config-merge order").
func mergedEnv(extra map[string]string) []string {
	base := os.Environ()
	if len(extra) == 0 {
		return base
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := append([]string{}, base...)
	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}
	return out
}
