package prompts

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"

	errs "serp-similarity/pkg/errors"
)

// Manager loads, compiles and renders prompt templates.
// Templates are compiled once at startup for performance.
// Simple and extensible: variants can be added as new files (e.g., insights_user@v2.txt.tmpl).
type Manager struct {
	mu   sync.RWMutex
	tpls map[string]*template.Template
}

// NewManager parses all embedded templates.
func NewManager() (*Manager, error) {
	return newManagerFrom(FS())
}

// NewManagerFromDir parses templates from a directory on disk instead of the
// embedded set. Lets operators tune prompt wording without a rebuild.
func NewManagerFromDir(dir string) (*Manager, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, errs.NewValidation("prompts.NewManagerFromDir", fmt.Sprintf("prompt dir not usable: %s", dir), err)
	}
	return newManagerFrom(os.DirFS(dir))
}

func newManagerFrom(fsys fs.FS) (*Manager, error) {
	m := &Manager{tpls: make(map[string]*template.Template)}

	// Walk FS and parse .tmpl files
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(p, ".txt.tmpl") {
			return nil
		}
		b, rerr := fs.ReadFile(fsys, p)
		if rerr != nil {
			return fmt.Errorf("read template %s: %w", p, rerr)
		}
		name := strings.TrimSuffix(filepath.Base(p), ".txt.tmpl")
		tpl, perr := template.New(name).Parse(string(b))
		if perr != nil {
			return fmt.Errorf("parse template %s: %w", p, perr)
		}
		m.tpls[name] = tpl
		return nil
	})
	if err != nil {
		return nil, errs.NewBiz("prompts.NewManager", "failed to load prompts", err)
	}
	return m, nil
}

// Render executes a named template with data and returns the result string.
func (m *Manager) Render(name string, data any) (string, error) {
	m.mu.RLock()
	tpl, ok := m.tpls[name]
	m.mu.RUnlock()
	if !ok {
		return "", errs.NewValidation("prompts.Render", fmt.Sprintf("prompt template not found: %s", name), nil)
	}
	var sb strings.Builder
	if err := tpl.Execute(&sb, data); err != nil {
		return "", errs.NewBiz("prompts.Render", fmt.Sprintf("execute template %s", name), err)
	}
	return sb.String(), nil
}

// Names lists the loaded template names, sorted for stable output.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.tpls))
	for k := range m.tpls {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
