// Package templates holds the HTML components of the web UI.
//
// Components implement templ.Component so handlers can render full pages
// with templ.Handler and fragments for HTMX requests alike. All dynamic text
// goes through templ.EscapeString.
package templates

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/sheetdiff/internal/core"
	"github.com/JonMunkholm/sheetdiff/internal/table"
)

// MaxPreviewRows caps how many missing rows the result table shows; the
// download always contains every row.
const MaxPreviewRows = 500

// ResultField is the form field carrying the encoded missing rows in the
// result view's download form.
const ResultField = "result"

// PageData drives the upload page. Report and Error are mutually exclusive;
// both nil renders the empty form.
type PageData struct {
	MaxFileSize  int64
	ExportFormat string
	Report       *core.Report
	Error        templ.Component
}

// htmlWriter accumulates the first write error so components read as a
// straight sequence of writes.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *htmlWriter) render(ctx context.Context, c templ.Component) {
	if h.err == nil && c != nil {
		h.err = c.Render(ctx, h.w)
	}
}

// Page renders the full upload page, with a result or error when present.
func Page(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw(`<title>sheetdiff: find missing rows</title>`)
		h.raw(`<link rel="stylesheet" href="/static/style.css"></head><body><main>`)
		h.raw(`<h1>Find missing rows</h1>`)
		h.raw(`<p class="lead">Upload a reference file and a subset file. Rows of the reference that do not appear in the subset are listed below. Column names and values are compared ignoring case and surrounding spaces.</p>`)
		h.render(ctx, uploadForm(data))
		h.raw(`<section id="result">`)
		switch {
		case data.Error != nil:
			h.render(ctx, data.Error)
		case data.Report != nil:
			h.render(ctx, Result(data.Report))
		}
		h.raw(`</section></main></body></html>`)
		return h.err
	})
}

func uploadForm(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<form class="upload" method="post" action="/compare" enctype="multipart/form-data">`)
		fileInput(h, "reference", "Reference file")
		fileInput(h, "subset", "Subset file")
		h.raw(`<p class="hint">.xlsx or .csv, up to `)
		h.text(formatSize(data.MaxFileSize))
		h.raw(` each.</p><div class="actions">`)
		h.raw(`<button type="submit">Compare</button>`)
		h.raw(`<button type="submit" class="secondary" formaction="/export?format=`)
		h.text(data.ExportFormat)
		h.raw(`">Download missing rows</button></div></form>`)
		return h.err
	})
}

func fileInput(h *htmlWriter, name, label string) {
	h.raw(`<label>`)
	h.text(label)
	h.raw(`<input type="file" name="`)
	h.text(name)
	h.raw(`" accept=".xlsx,.xlsm,.csv" required></label>`)
}

// Result renders the missing rows of a report as a table.
func Result(report *core.Report) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}

		if report.Empty() {
			h.raw(`<div class="alert success"><strong>No missing rows.</strong> Every row of the reference (`)
			h.text(strconv.Itoa(report.ReferenceRows))
			h.raw(` rows) appears in the subset.</div>`)
			return h.err
		}

		h.raw(`<div class="summary"><strong>`)
		h.text(strconv.Itoa(report.Count))
		h.raw(`</strong> of `)
		h.text(strconv.Itoa(report.ReferenceRows))
		h.raw(` reference rows are missing from the subset (`)
		h.text(strconv.Itoa(report.SubsetRows))
		h.raw(` rows).</div>`)

		shown := min(len(report.Rows), MaxPreviewRows)
		if shown < len(report.Rows) {
			h.raw(`<p class="hint">Showing the first `)
			h.text(strconv.Itoa(shown))
			h.raw(` rows.</p>`)
		}

		h.raw(`<div class="table-wrap"><table><thead><tr><th>Row</th>`)
		for _, c := range report.Columns {
			h.raw(`<th>`)
			h.text(c)
			h.raw(`</th>`)
		}
		h.raw(`</tr></thead><tbody>`)
		for i := 0; i < shown; i++ {
			h.raw(`<tr><td class="num">`)
			// Spreadsheet row number: data rows start below the header on row 2.
			h.text(strconv.Itoa(report.Indices[i] + 2))
			h.raw(`</td>`)
			for j := range report.Columns {
				h.raw(`<td>`)
				h.text(report.Rows[i].Get(j).Canonical())
				h.raw(`</td>`)
			}
			h.raw(`</tr>`)
		}
		h.raw(`</tbody></table></div>`)
		downloadForm(h, report)
		return h.err
	})
}

// downloadForm offers the shown rows as a file without uploading the inputs
// again. The rows travel in a hidden field, so the form is only rendered
// when every missing row is on the page.
func downloadForm(h *htmlWriter, report *core.Report) {
	if len(report.Rows) > MaxPreviewRows {
		h.raw(`<p class="hint">Choose the files again and use Download missing rows to get all `)
		h.text(strconv.Itoa(report.Count))
		h.raw(` rows.</p>`)
		return
	}

	payload, err := table.Encode(report.Table())
	if err != nil {
		if h.err == nil {
			h.err = err
		}
		return
	}

	h.raw(`<form class="download" method="post" action="/export/result">`)
	h.raw(`<input type="hidden" name="` + ResultField + `" value="`)
	h.text(string(payload))
	h.raw(`"><button type="submit" name="format" value="xlsx">Download .xlsx</button>`)
	h.raw(`<button type="submit" name="format" value="csv" class="secondary">Download .csv</button></form>`)
}

// ErrorAlert renders a user-facing error with its support code. A non-empty
// detail, such as the parser's message for an unreadable file, is shown
// below the action.
func ErrorAlert(message, action, code, detail string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<div class="alert error" role="alert"><strong>`)
		h.text(message)
		h.raw(`</strong>`)
		if action != "" {
			h.raw(`<p>`)
			h.text(action)
			h.raw(`</p>`)
		}
		if detail != "" {
			h.raw(`<pre class="detail">`)
			h.text(detail)
			h.raw(`</pre>`)
		}
		h.raw(`<small>Code: `)
		h.text(code)
		h.raw(`</small></div>`)
		return h.err
	})
}

// SchemaMismatch renders a schema error with both column lists side by side.
// Columns are shown in normalized form, as they were compared.
func SchemaMismatch(msg core.UserMessage, sm *core.SchemaMismatchError) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.render(ctx, ErrorAlert(msg.Message, msg.Action, msg.Code, ""))

		diff := sm.Diff()
		h.raw(`<div class="schema"><div><h3>Reference columns</h3>`)
		columnList(h, sm.ReferenceColumns, diff.FirstMismatch)
		h.raw(`</div><div><h3>Subset columns</h3>`)
		columnList(h, sm.SubsetColumns, diff.FirstMismatch)
		h.raw(`</div></div>`)

		if len(diff.OnlyInReference) > 0 {
			h.raw(`<p>Only in reference: `)
			h.text(strings.Join(diff.OnlyInReference, ", "))
			h.raw(`</p>`)
		}
		if len(diff.OnlyInSubset) > 0 {
			h.raw(`<p>Only in subset: `)
			h.text(strings.Join(diff.OnlyInSubset, ", "))
			h.raw(`</p>`)
		}
		return h.err
	})
}

func columnList(h *htmlWriter, cols []string, mismatch int) {
	h.raw(`<ol>`)
	for i, c := range cols {
		if i == mismatch {
			h.raw(`<li class="mismatch">`)
		} else {
			h.raw(`<li>`)
		}
		h.text(c)
		h.raw(`</li>`)
	}
	h.raw(`</ol>`)
}

func formatSize(n int64) string {
	const mb = 1 << 20
	if n <= 0 {
		return "no limit"
	}
	if n%mb == 0 {
		return fmt.Sprintf("%d MB", n/mb)
	}
	return fmt.Sprintf("%.1f MB", float64(n)/mb)
}
