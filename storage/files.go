package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/acmed/acmed/hook"
)

// FileWriter writes certificate and key material to templated paths,
// running the matching file-lifecycle hooks before and after each write
// (spec.md §4.7).
type FileWriter struct {
	CertDir  string
	KeyDir   string
	Registry *hook.Registry
	// Hooks names the hook/group list configured for this certificate's
	// file-lifecycle events; it's resolved against Registry per call.
	Hooks []string
	Env   map[string]string
}

// NameVars are the file-name-template variables spec.md §6.3 lists for
// certificate[].name_format/key_file_name_format.
type NameVars struct {
	Name    string
	KeyType string
	FileType string // "cert" or "key"
	Ext     string
}

// sanitize replaces '*' with '_' in a rendered file name component, per
// spec.md §4.7 ("* in identifiers is rendered as _ in file names").
func sanitize(s string) string {
	return strings.ReplaceAll(s, "*", "_")
}

// RenderName expands a file-name template against NameVars.
func RenderName(tmpl string, vars NameVars) (string, error) {
	out, err := hook.Render(tmpl, hook.Vars{Fields: map[string]string{
		"name":      vars.Name,
		"key_type":  vars.KeyType,
		"file_type": vars.FileType,
		"ext":       vars.Ext,
	}})
	if err != nil {
		return "", err
	}
	return sanitize(out), nil
}

// WriteCertificate writes a PEM chain to CertDir/name, mode 0644, running
// file-pre-create/file-pre-edit and file-post-create/file-post-edit hooks
// around the write (create vs edit decided by whether the file already
// exists).
func (w *FileWriter) WriteCertificate(ctx context.Context, name string, pemChain []byte) error {
	return w.write(ctx, filepath.Join(w.CertDir, name), pemChain, 0644)
}

// WriteKey writes private key PEM to KeyDir/name, mode 0600.
func (w *FileWriter) WriteKey(ctx context.Context, name string, pemKey []byte) error {
	return w.write(ctx, filepath.Join(w.KeyDir, name), pemKey, 0600)
}

func (w *FileWriter) write(ctx context.Context, path string, data []byte, mode os.FileMode) error {
	_, statErr := os.Stat(path)
	isEdit := statErr == nil

	fileVars := hook.Vars{
		Fields: map[string]string{
			"file_name":      filepath.Base(path),
			"file_directory": filepath.Dir(path),
			"file_path":      path,
		},
		Env: w.Env,
	}

	preTrigger, postTrigger := hook.TriggerFilePreCreate, hook.TriggerFilePostCreate
	if isEdit {
		preTrigger, postTrigger = hook.TriggerFilePreEdit, hook.TriggerFilePostEdit
	}

	if err := w.runHooks(ctx, preTrigger, fileVars); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), dirModeFor(mode)); err != nil {
		return fmt.Errorf("storage: create directory for %q: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return fmt.Errorf("storage: write %q: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("storage: rename %q into place: %w", path, err)
	}

	return w.runHooks(ctx, postTrigger, fileVars)
}

// dirModeFor picks the containing-directory mode spec.md §4.7 assigns:
// 0755 for certs (world-readable file mode), 0700 for keys.
func dirModeFor(fileMode os.FileMode) os.FileMode {
	if fileMode == 0600 {
		return 0700
	}
	return 0755
}

func (w *FileWriter) runHooks(ctx context.Context, trigger hook.TriggerType, vars hook.Vars) error {
	if w.Registry == nil || len(w.Hooks) == 0 {
		return nil
	}
	resolved, err := w.Registry.Resolve(w.Hooks, trigger)
	if err != nil {
		return fmt.Errorf("storage: resolve %s hooks: %w", trigger, err)
	}
	return hook.Run(ctx, resolved, vars)
}
