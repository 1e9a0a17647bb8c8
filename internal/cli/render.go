package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/project-euler/queryassist/internal/app"
	"github.com/project-euler/queryassist/internal/functions"
	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/service"
	"github.com/project-euler/queryassist/internal/values"
)

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderAnswer prints the sources used, any statistic and the result rows
func renderAnswer(ctx context.Context, w io.Writer, a *app.App, ans *service.Answer) error {
	res := ans.Result
	sources := res.UsedSources
	if len(sources) == 0 && res.UsedSource.Valid {
		sources = []string{res.UsedSource.String}
	}
	if len(sources) == 0 {
		_, _ = fmt.Fprintln(w, "No source holds the requested data.")
		return nil
	}
	_, _ = fmt.Fprintf(w, "Source: %s\n", strings.Join(sourceNames(a, sources), ", "))

	if st := res.Statistic; st != nil {
		if st.Value.Valid {
			_, _ = fmt.Fprintf(w, "%s of %s: %s\n", st.Op, st.Field, values.String(st.Value.Float64))
		} else {
			_, _ = fmt.Fprintf(w, "%s of %s: no value\n", st.Op, st.Field)
		}
	}

	cols := append([]string(nil), res.Columns...)
	if len(cols) == 0 && res.UsedSource.Valid {
		schema, err := a.Store.GetSchema(ctx, res.UsedSource.String)
		if err != nil {
			return err
		}
		cols = schema.FieldIDs()
	}
	if res.FunctionColumn != "" {
		cols = append(cols, res.FunctionColumn)
	}
	renderRows(w, cols, res.Rows)
	return nil
}

func renderRows(w io.Writer, cols []string, rows []models.Row) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	t := newTable(w)

	header := make(table.Row, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	t.AppendHeader(header)

	for _, r := range rows {
		row := make(table.Row, len(cols))
		for i, c := range cols {
			row[i] = values.String(r[c])
		}
		t.AppendRow(row)
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
}

// newTable returns a light-styled table that prints headers as given, since
// field ids are case-sensitive
func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault
	return t
}

func renderIssues(w io.Writer, v models.ValidationResult) {
	_, _ = fmt.Fprintf(w, "The prompt could not be planned (confidence %.2f):\n", v.Confidence)
	for _, issue := range v.Issues {
		_, _ = fmt.Fprintf(w, "  - %s\n", issue)
	}
}

func renderSources(w io.Writer, list []models.SourceMeta) {
	if len(list) == 0 {
		_, _ = fmt.Fprintln(w, "(no sources loaded)")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Name", "File", "Rows"})
	for _, s := range list {
		t.AppendRow(table.Row{s.SourceID, s.Name, s.OriginalFileName, s.RowCount})
	}
	t.Render()
}

func renderFunctions(w io.Writer, list []functions.Match) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Library", "Function", "Entities", "Parameters", "Returns"})
	for _, m := range list {
		params := make([]string, 0, len(m.Function.Parameters))
		for _, p := range m.Function.Parameters {
			params = append(params, p.Name)
		}
		t.AppendRow(table.Row{m.Library, m.FunctionName, strings.Join(m.Entities, ", "), strings.Join(params, ", "), m.ReturnType})
	}
	t.Render()
}

func sourceNames(a *app.App, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if src, ok := a.Store.Get(id); ok {
			out = append(out, src.Meta.Name)
		} else {
			out = append(out, id)
		}
	}
	return out
}
