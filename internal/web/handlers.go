package web

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/sheetdiff/internal/core"
	"github.com/JonMunkholm/sheetdiff/internal/logging"
	"github.com/JonMunkholm/sheetdiff/internal/sheet"
	"github.com/JonMunkholm/sheetdiff/internal/table"
	"github.com/JonMunkholm/sheetdiff/internal/web/templates"
)

// Form field names for the two comparison inputs.
const (
	fieldReference = "reference"
	fieldSubset    = "subset"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

// errBadRequest marks client input errors that carry no more specific type.
var errBadRequest = errors.New("bad request")

// handleIndex renders the upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, templates.PageData{})
}

// handleComparePage handles the plain form post from the upload page and
// renders the full page with the result.
func (s *Server) handleComparePage(w http.ResponseWriter, r *http.Request) {
	report, err := s.compareRequest(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.renderPage(w, r, http.StatusOK, templates.PageData{Report: report})
}

// handleCompare compares the uploaded reference and subset files and
// returns the missing rows as JSON, or as an HTML fragment for HTMX.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	report, err := s.compareRequest(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		renderPartial(w, r, http.StatusOK, templates.Result(report))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleExport re-runs the comparison and streams the missing rows as a
// file download. Nothing is cached between the compare and export calls.
// It serves both the API route and the upload page's download button.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := s.exportFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	report, err := s.compareRequest(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.writeExport(w, r, report.Table(), format)
}

// handleExportResult turns the rows carried by the result view's download
// form back into a file. The rows come from a report this server rendered;
// no comparison runs.
func (s *Server) handleExportResult(w http.ResponseWriter, r *http.Request) {
	if limit := s.cfg.Compare.MaxFileSize; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: parse form: %w", errBadRequest, err))
		return
	}

	format, err := s.exportFormat(r.PostForm.Get("format"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	t, err := table.Decode([]byte(r.PostForm.Get(templates.ResultField)))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	s.writeExport(w, r, t, format)
}

// exportFormat parses a requested format, falling back to the configured one.
func (s *Server) exportFormat(name string) (sheet.Format, error) {
	if name == "" {
		name = s.cfg.Compare.ExportFormat
	}
	format, err := sheet.ParseFormat(name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return format, nil
}

// writeExport encodes t as an attachment. The file is built in memory first
// so an export error can still be reported with a proper status.
func (s *Server) writeExport(w http.ResponseWriter, r *http.Request, t table.Table, format sheet.Format) {
	var buf bytes.Buffer
	if err := sheet.Export(&buf, t, format); err != nil {
		s.respondError(w, r, fmt.Errorf("export: %w", err))
		return
	}

	w.Header().Set("Content-Type", format.MIMEType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, format.FileName(sheet.DefaultExportName)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Missing-Rows", strconv.Itoa(t.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warn("export write failed", "error", err)
	}
}

// handleHealth reports liveness and comparison slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"comparisons": s.service.LimiterStatus(),
	})
}

// compareRequest parses both uploads and runs the comparison.
func (s *Server) compareRequest(w http.ResponseWriter, r *http.Request) (*core.Report, error) {
	ref, sub, cleanup, err := s.parseCompareForm(w, r)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return s.service.CompareSources(WithRequestMetadata(r.Context(), r), ref, sub)
}

// parseCompareForm reads the reference and subset files from a multipart
// form. The returned cleanup closes the files and removes any temporary
// files the form spilled to disk.
func (s *Server) parseCompareForm(w http.ResponseWriter, r *http.Request) (ref, sub core.Source, cleanup func(), err error) {
	maxFile := s.cfg.Compare.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, 2*maxFile+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return ref, sub, nil, core.ErrNoFile
		}
		return ref, sub, nil, fmt.Errorf("parse form: %w", err)
	}

	var closers []multipart.File
	cleanup = func() {
		for _, f := range closers {
			f.Close()
		}
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
	}

	open := func(field string) (core.Source, error) {
		f, header, err := r.FormFile(field)
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				return core.Source{}, core.ErrNoFile
			}
			return core.Source{}, fmt.Errorf("%s: %w", field, err)
		}
		closers = append(closers, f)

		if maxFile > 0 && header.Size > maxFile {
			return core.Source{}, &core.ReadError{Source: header.Filename, Err: sheet.ErrFileTooLarge}
		}
		return core.Source{Name: header.Filename, Reader: f}, nil
	}

	if ref, err = open(fieldReference); err != nil {
		cleanup()
		return ref, sub, nil, err
	}
	if sub, err = open(fieldSubset); err != nil {
		cleanup()
		return ref, sub, nil, err
	}
	return ref, sub, cleanup, nil
}

// renderPage renders the full upload page with the configured limits.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, data templates.PageData) {
	data.MaxFileSize = s.cfg.Compare.MaxFileSize
	data.ExportFormat = s.cfg.Compare.ExportFormat
	templ.Handler(templates.Page(data), templ.WithStatus(status)).ServeHTTP(w, r)
}

// renderPartial renders an HTML fragment for HTMX swaps.
func renderPartial(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	templ.Handler(c, templ.WithStatus(status)).ServeHTTP(w, r)
}
