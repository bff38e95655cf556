package collate

import (
	_ "embed"
	"fmt"
	"html/template"
	"strings"
)

var (
	//go:embed cover.css
	coverCSS string

	//go:embed cover.html.tmpl
	coverSource string

	coverTemplate = template.Must(template.New("cover").Parse(coverSource))
)

// RenderCover returns the cover page HTML for report.
func RenderCover(report *Report) (string, error) {
	var b strings.Builder
	err := coverTemplate.Execute(&b, struct {
		CSS   template.CSS
		Rows  []Row
		Total string
	}{
		CSS:   template.CSS(coverCSS),
		Rows:  report.Rows,
		Total: report.Total,
	})
	if err != nil {
		return "", fmt.Errorf("executing cover template: %w", err)
	}
	return b.String(), nil
}
