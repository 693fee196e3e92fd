// Package prompt builds the fixed instruction text sent to the model for
// each inspection mode.
//
// The catalog lives in prompts.yaml and is compiled into the binary. Every
// prompt is assembled once at package init; Build only looks it up.
package prompt

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/DukeRupert/sitecheck/internal/domain"
)

//go:embed prompts.yaml
var catalogYAML []byte

// Headers holds the four mandated headers of a mode's output structure,
// exactly as they appear in the prompt.
type Headers struct {
	Overview        string
	Findings        string
	Recommendations string
	Closing         string
}

type catalog struct {
	Company string               `yaml:"company"`
	Modes   map[string]modeEntry `yaml:"modes"`
}

type modeEntry struct {
	Company     string   `yaml:"-"`
	Role        string   `yaml:"role"`
	Commitments []string `yaml:"commitments"`
	Priority    string   `yaml:"priority"`
	Standard    string   `yaml:"standard"`
	Task        string   `yaml:"task"`
	Focus       []string `yaml:"focus"`
	Checklist   []string `yaml:"checklist"`

	Overview        overviewEntry `yaml:"overview"`
	Findings        findingsEntry `yaml:"findings"`
	Recommendations string        `yaml:"recommendations"`
	Closing         string        `yaml:"closing"`
}

type overviewEntry struct {
	Title  string   `yaml:"title"`
	Fields []string `yaml:"fields"`
}

type findingsEntry struct {
	Title      string   `yaml:"title"`
	Categories []string `yaml:"categories"`
}

const promptTemplate = `You are the {{.Company}} {{.Role}}.
{{.Company}} stands by its {{plural "commitment" (len .Commitments)}} {{quoteList .Commitments}}.
{{- if .Priority}} {{.Priority}}{{end}}
{{- if .Standard}}
Standard: {{.Standard}}{{end}}

{{.Task}}
{{- if .Focus}}
[IMPORTANT] Pay particular attention to the following:
{{- range $i, $f := .Focus}}
{{inc $i}}. {{$f}}{{end}}
{{- end}}

Checklist:
{{- range $i, $c := .Checklist}}
{{inc $i}}. {{$c}}{{end}}

Answer using exactly this format:
## {{.Overview.Title}}
{{- range .Overview.Fields}}
- {{.}}{{end}}
## {{.Findings.Title}}
{{- range .Findings.Categories}}
### {{.}}{{end}}
## {{.Recommendations}}
## {{.Company}} {{.Closing}}
`

var (
	prompts map[domain.InspectionMode]string
	headers map[domain.InspectionMode]Headers
)

func init() {
	var err error
	prompts, headers, err = load(catalogYAML)
	if err != nil {
		panic(fmt.Sprintf("prompt: %v", err))
	}
}

// load parses the catalog and renders one prompt per known mode.
func load(data []byte) (map[domain.InspectionMode]string, map[domain.InspectionMode]Headers, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, nil, fmt.Errorf("parse catalog: %w", err)
	}

	tmpl, err := template.New("prompt").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
		"plural": func(word string, n int) string {
			if n == 1 {
				return word
			}
			return word + "s"
		},
		"quoteList": quoteList,
	}).Parse(promptTemplate)
	if err != nil {
		return nil, nil, fmt.Errorf("parse template: %w", err)
	}

	built := make(map[domain.InspectionMode]string, len(domain.InspectionModes))
	heads := make(map[domain.InspectionMode]Headers, len(domain.InspectionModes))

	for _, mode := range domain.InspectionModes {
		entry, ok := c.Modes[mode.String()]
		if !ok {
			return nil, nil, fmt.Errorf("mode %q missing from catalog", mode)
		}
		if len(entry.Checklist) == 0 {
			return nil, nil, fmt.Errorf("mode %q has no checklist", mode)
		}

		entry.Company = c.Company

		var b strings.Builder
		if err := tmpl.Execute(&b, entry); err != nil {
			return nil, nil, fmt.Errorf("render %q: %w", mode, err)
		}

		built[mode] = b.String()
		heads[mode] = Headers{
			Overview:        "## " + entry.Overview.Title,
			Findings:        "## " + entry.Findings.Title,
			Recommendations: "## " + entry.Recommendations,
			Closing:         "## " + c.Company + " " + entry.Closing,
		}
	}

	return built, heads, nil
}

// Build returns the complete instruction text for mode, or "" if the mode
// is unknown.
func Build(mode domain.InspectionMode) string {
	return prompts[mode]
}

// Sections returns the output section headers for mode.
func Sections(mode domain.InspectionMode) (Headers, bool) {
	h, ok := headers[mode]
	return h, ok
}

// quoteList renders ["a", "b", "c"] as `"a", "b" and "c"`.
func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = strconv.Quote(item)
	}
	switch len(quoted) {
	case 0:
		return ""
	case 1:
		return quoted[0]
	default:
		return strings.Join(quoted[:len(quoted)-1], ", ") + " and " + quoted[len(quoted)-1]
	}
}
