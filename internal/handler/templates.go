package handler

import (
	"fmt"
	"html/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/DukeRupert/sitecheck/internal/csrf"
)

// TemplateFuncs returns a FuncMap with custom template functions
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		// Math functions
		"add": func(a, b int) int {
			return a + b
		},

		// Date/Time functions
		"year": func() int {
			return time.Now().Year()
		},
		"formatDateTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("Jan 2, 2006 3:04 PM")
		},
		"timeAgo": timeAgo,

		// String functions
		"title": func(v interface{}) string {
			s := fmt.Sprint(v)
			return cases.Title(language.English).String(s)
		},
		"formatBytes": formatBytes,

		// Conditional/Logic functions
		"default": func(defaultVal, val interface{}) interface{} {
			if val == nil || val == "" || val == 0 {
				return defaultVal
			}
			return val
		},

		// Collection functions
		"dict": func(values ...interface{}) map[string]interface{} {
			if len(values)%2 != 0 {
				return nil
			}
			dict := make(map[string]interface{}, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil
				}
				dict[key] = values[i+1]
			}
			return dict
		},

		// Form helpers
		"csrfField": func(token string) template.HTML {
			return template.HTML(fmt.Sprintf(`<input type="hidden" name="%s" value="%s">`, csrf.FormFieldName, template.HTMLEscapeString(token)))
		},

		// Badge helper for inspection modes.
		// Accepts interface{} to handle domain.InspectionMode.
		"modeClass": func(mode interface{}) string {
			switch fmt.Sprint(mode) {
			case "safety":
				return "badge badge-safety"
			case "quality":
				return "badge badge-quality"
			case "progress":
				return "badge badge-progress"
			default:
				return "badge"
			}
		},
	}
}

func timeAgo(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		return t.Format("Jan 2, 2006")
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
