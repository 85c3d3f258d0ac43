package web

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"serp-similarity/internal/models"
	"serp-similarity/internal/verdict"
)

// webTemplates holds the parsed templates for the analyzer UI.
var webTemplates *template.Template

// basePath holds the base path for URLs in templates
var basePath = "/"

// funcMap provides template helper functions used across templates.
var funcMap = template.FuncMap{
	"add": func(a, b interface{}) interface{} {
		switch a := a.(type) {
		case int:
			switch b := b.(type) {
			case int:
				return a + b
			case float64:
				return float64(a) + b
			}
		case float64:
			switch b := b.(type) {
			case int:
				return a + float64(b)
			case float64:
				return a + b
			}
		}
		return 0
	},
	"mul": func(a, b interface{}) interface{} {
		switch a := a.(type) {
		case int:
			switch b := b.(type) {
			case int:
				return a * b
			case float64:
				return float64(a) * b
			}
		case float64:
			switch b := b.(type) {
			case int:
				return a * float64(b)
			case float64:
				return a * b
			}
		}
		return 0
	},
	"div": func(a, b interface{}) interface{} {
		switch a := a.(type) {
		case int:
			switch b := b.(type) {
			case int:
				if b == 0 {
					return float64(0)
				}
				return float64(a) / float64(b)
			case float64:
				if b == 0 {
					return float64(0)
				}
				return float64(a) / b
			}
		case float64:
			switch b := b.(type) {
			case int:
				if b == 0 {
					return float64(0)
				}
				return a / float64(b)
			case float64:
				if b == 0 {
					return float64(0)
				}
				return a / b
			}
		}
		return 0
	},
	"seq": func(start, end int) []int {
		var s []int
		for i := start; i <= end; i++ {
			s = append(s, i)
		}
		return s
	},
	"basePath": func() string {
		return basePath
	},
	"fmtSim": func(v float64) string {
		return fmt.Sprintf("%.4f", v)
	},
	"fmtTime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("Jan 2, 2006 15:04 UTC")
	},
	"fmtDuration": func(d time.Duration) string {
		if d <= 0 {
			return ""
		}
		return d.Round(time.Millisecond).String()
	},
	// heat shades averages-table cells green, darker for higher overlap.
	"heat": func(percent int) template.CSS {
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		alpha := float64(percent) / 100 * 0.8
		return template.CSS(fmt.Sprintf("background-color: rgba(46, 204, 113, %.2f)", alpha))
	},
	"statusClass": func(s models.RunStatus) string {
		switch s {
		case models.RunStatusPending:
			return "status-pending"
		case models.RunStatusFetching:
			return "status-fetching"
		case models.RunStatusCompleted:
			return "status-completed"
		case models.RunStatusFailed:
			return "status-failed"
		default:
			return "status-unknown"
		}
	},
	"severityClass": func(s verdict.Severity) string {
		switch s {
		case verdict.SeveritySevere:
			return "sev-severe"
		case verdict.SeverityHigh:
			return "sev-high"
		case verdict.SeverityModerate:
			return "sev-moderate"
		case verdict.SeverityLow:
			return "sev-low"
		default:
			return "sev-none"
		}
	},
	// sevCount looks counts up by name; template index can't convert a
	// plain string to the typed map key.
	"sevCount": func(counts map[verdict.Severity]int, name string) int {
		return counts[verdict.Severity(name)]
	},
	"riskClass": func(l verdict.RiskLevel) string {
		switch l {
		case verdict.RiskHigh:
			return "risk-high"
		case verdict.RiskElevated:
			return "risk-elevated"
		case verdict.RiskNormal:
			return "risk-normal"
		default:
			return "risk-unknown"
		}
	},
}

// LoadTemplates parses all UI templates from the provided filesystem. It should be called at application startup.
func LoadTemplates(fsys fs.FS) error {
	t, err := template.New("").Funcs(funcMap).ParseFS(fsys, "*.tmpl")
	if err != nil {
		return err
	}
	webTemplates = t
	return nil
}

// SetBasePath sets the base path for URLs in templates.
func SetBasePath(path string) {
	basePath = path
}

// ExecuteTemplate renders a named template to the ResponseWriter.
func ExecuteTemplate(w http.ResponseWriter, name string, data interface{}) error {
	if webTemplates == nil {
		return fmt.Errorf("templates not loaded: call web.LoadTemplates at startup")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return webTemplates.ExecuteTemplate(w, name, data)
}

// RenderUnauthorized renders the blocked-submission page
func RenderUnauthorized(w http.ResponseWriter, ip string) {
	data := struct {
		IP string
	}{
		IP: ip,
	}
	w.WriteHeader(http.StatusForbidden)
	if err := ExecuteTemplate(w, "unauthorized.tmpl", data); err != nil {
		http.Error(w, "Unauthorized", http.StatusForbidden)
	}
}

// RenderErrorPage renders the shared error page with the given status code.
func RenderErrorPage(w http.ResponseWriter, status int, title, message string) {
	data := struct {
		Status  int
		Title   string
		Message string
	}{
		Status:  status,
		Title:   title,
		Message: message,
	}
	w.WriteHeader(status)
	if err := ExecuteTemplate(w, "error.tmpl", data); err != nil {
		http.Error(w, title, status)
	}
}
