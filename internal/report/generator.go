// Package report renders snapshot files into human-readable summaries,
// either as markdown or as a standalone HTML page.
package report

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"io"
	"sort"
	"strings"
	"text/template"

	"github.com/jhaugan/catsync/internal/api"
	"github.com/jhaugan/catsync/internal/snapshot"
	"github.com/yuin/goldmark"
)

// Generator renders the records of one snapshot.
type Generator struct {
	info    snapshot.Info
	records []api.Entity
}

func NewGenerator(info snapshot.Info, records []api.Entity) *Generator {
	return &Generator{info: info, records: records}
}

// ownerCount is one row of the per-owner summary.
type ownerCount struct {
	Name  string
	Count int
}

// recordRow holds the preformatted display values of one record.
type recordRow struct {
	Name        string
	ID          string
	Description string
	Owner       string
	Aliases     string
	Tags        string
	Children    string
	Note        string
}

type reportData struct {
	Title   string
	Source  string
	Kind    string
	Heading string
	Count   int
	Owners  []ownerCount
	Records []recordRow
}

func (g *Generator) title() string {
	return fmt.Sprintf("%s snapshot %s", headingFor(g.info.Kind), g.info.Date.Format("2006-01-02"))
}

// headingFor returns the plural heading form of kind, e.g. "Systems".
// Kinds are plain ASCII words.
func headingFor(kind api.Kind) string {
	s := kind.String() + "s"
	return strings.ToUpper(s[:1]) + s[1:]
}

// ownerDisplay returns the display name of a record's owner, or
// "(unowned)" when the record has none.
func ownerDisplay(e *api.Entity) string {
	if e.Owner == nil {
		return "(unowned)"
	}
	for _, v := range []string{e.Owner.Name, e.Owner.Alias, e.Owner.ID} {
		if v != "" {
			return v
		}
	}
	return "(unowned)"
}

func (g *Generator) build() *reportData {
	data := &reportData{
		Title:   g.title(),
		Source:  g.info.Path,
		Kind:    g.info.Kind.String(),
		Heading: headingFor(g.info.Kind),
		Count:   len(g.records),
	}

	counts := make(map[string]int)
	for i := range g.records {
		e := &g.records[i]
		counts[ownerDisplay(e)]++

		row := recordRow{
			Name:        e.Name,
			ID:          e.ID,
			Description: e.Description,
			Note:        e.Note,
		}
		if e.Owner != nil {
			row.Owner = ownerDisplay(e)
		}
		var aliases []string
		aliases = append(aliases, e.Aliases...)
		aliases = append(aliases, e.ManagedAliases...)
		row.Aliases = strings.Join(aliases, ", ")
		if e.Tags != nil {
			var tags []string
			for _, t := range e.Tags.Nodes {
				tags = append(tags, t.Key+": "+t.Value)
			}
			row.Tags = strings.Join(tags, ", ")
		}
		var children []string
		for _, c := range e.Children() {
			name := c.Name
			if name == "" && len(c.Aliases) > 0 {
				name = c.Aliases[0]
			}
			if name != "" {
				children = append(children, name)
			}
		}
		row.Children = strings.Join(children, ", ")
		data.Records = append(data.Records, row)
	}

	for name, count := range counts {
		data.Owners = append(data.Owners, ownerCount{Name: name, Count: count})
	}
	sort.Slice(data.Owners, func(i, j int) bool {
		if data.Owners[i].Count != data.Owners[j].Count {
			return data.Owners[i].Count > data.Owners[j].Count
		}
		return data.Owners[i].Name < data.Owners[j].Name
	})
	sort.Slice(data.Records, func(i, j int) bool {
		return data.Records[i].Name < data.Records[j].Name
	})
	return data
}

// WriteMarkdown renders the report as markdown.
func (g *Generator) WriteMarkdown(w io.Writer) error {
	if err := reportTemplate.Execute(w, g.build()); err != nil {
		return fmt.Errorf("failed to execute report template: %w", err)
	}
	return nil
}

// WriteHTML renders the markdown report and converts it into a
// standalone HTML page.
func (g *Generator) WriteHTML(w io.Writer) error {
	var md bytes.Buffer
	if err := g.WriteMarkdown(&md); err != nil {
		return err
	}
	var body bytes.Buffer
	if err := goldmark.Convert(md.Bytes(), &body); err != nil {
		return fmt.Errorf("failed to process markdown: %v", err)
	}
	data := struct {
		Title string
		Body  htmltemplate.HTML
	}{
		Title: g.title(),
		Body:  htmltemplate.HTML(body.String()),
	}
	if err := pageTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute page template: %w", err)
	}
	return nil
}

// Templates

var reportTemplate = template.Must(template.New("report").Parse(`<!-- Auto-generated by catsync report. DO NOT EDIT. -->
# {{ .Title }}

{{ .Count }} {{ .Kind }}s in {{ .Source }}.

## Owners

{{ range .Owners -}}
* {{ .Name }}: {{ .Count }}
{{ end }}
## {{ .Heading }}

{{ range .Records -}}
### {{ .Name }}

{{ with .Description }}{{ . }}

{{ end -}}
* ID: {{ .ID }}
{{ if .Owner }}* Owner: {{ .Owner }}
{{ end -}}
{{ if .Aliases }}* Aliases: {{ .Aliases }}
{{ end -}}
{{ if .Tags }}* Tags: {{ .Tags }}
{{ end -}}
{{ if .Children }}* Children: {{ .Children }}
{{ end -}}
{{ if .Note }}* Note: {{ .Note }}
{{ end }}
{{ end -}}
`))

var pageTemplate = htmltemplate.Must(htmltemplate.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{ .Title }}</title>
</head>
<body>
{{ .Body }}
</body>
</html>
`))
