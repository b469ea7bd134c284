package web

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/dataport/internal/core"
	"github.com/JonMunkholm/dataport/internal/export"
	"github.com/JonMunkholm/dataport/internal/logging"
	"github.com/JonMunkholm/dataport/internal/web/templates"
)

// handleIndex renders the upload page, or the upload limits for JSON clients.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		writeJSON(w, map[string]any{
			"max_file_size": s.service.MaxFileSize(),
			"formats":       []string{"xlsx", "xls", "csv"},
			"jobs":          s.service.Limiter().Status(),
		})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	page := templates.UploadPageParams{
		MaxFileSize: s.service.MaxFileSize(),
		Error:       r.URL.Query().Get("error"),
	}
	if err := templates.UploadPage(page).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render upload page", "error", err)
	}
}

// handleProcess stores, parses and opens a session for an uploaded file.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.service.MaxFileSize()+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.respondProcessError(w, r, core.ErrFileTooLarge)
			return
		}
		s.respondProcessError(w, r, core.ErrNoFile)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondProcessError(w, r, core.ErrNoFile)
		return
	}
	defer file.Close()

	headerRow, _, err := optionalInt(url.Values(r.MultipartForm.Value), "header_row")
	if err != nil {
		s.respondProcessError(w, r, err)
		return
	}

	key, err := s.service.Upload(r.Context(), principal(r), core.UploadInput{
		Filename:  header.Filename,
		Size:      header.Size,
		Body:      file,
		HeaderRow: headerRow,
	})
	if err != nil {
		s.respondProcessError(w, r, err)
		return
	}

	target := "/data/view/" + key
	if wantsJSON(r) {
		writeJSONStatus(w, http.StatusCreated, map[string]string{
			"session_key": key,
			"redirect":    target,
		})
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// respondProcessError prefixes the message with "Failed to process file" and
// sends browsers back to the upload page.
func (s *Server) respondProcessError(w http.ResponseWriter, r *http.Request, err error) {
	msg := core.MapError(err)
	msg.Message = "Failed to process file: " + msg.Message
	wrapped := &core.UserError{Technical: err, User: msg}

	if wantsJSON(r) {
		s.respondError(w, r, wrapped)
		return
	}
	logging.FromContext(r.Context()).Warn("upload rejected", "error", err, "code", msg.Code)
	redirectWithError(w, r, "/data", msg.Message+" (Code: "+msg.Code+")")
}

// handleView returns the processed rows and stats of a session.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.View(r.Context(), principal(r), chi.URLParam(r, "sessionKey"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, view)
}

// handleReassignHeaders re-headers a session. header_row counts rows of the
// original file; view_row counts rows as displayed in the processed table.
func (s *Server) handleReassignHeaders(w http.ResponseWriter, r *http.Request) {
	form, err := requestForm(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	key := form.Get("session_key")

	headerRow, hasHeader, err := optionalInt(form, "header_row")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	viewRow, hasView, err := optionalInt(form, "view_row")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	switch {
	case hasView:
		err = s.service.ReheaderFromView(r.Context(), principal(r), key, viewRow)
	case hasHeader:
		err = s.service.Reheader(r.Context(), principal(r), key, headerRow)
	default:
		err = badRequest("header_row or view_row is required")
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	target := "/data/view/" + key
	if wantsJSON(r) {
		writeJSON(w, map[string]any{"success": true, "redirect": target})
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// handleExport projects the session and returns the encoded file.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	form, err := requestForm(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	selected, err := intValues(form, "selected_indices")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	format, err := core.ParseFormat(form.Get("format"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.service.Export(r.Context(), principal(r), core.ExportInput{
		SessionKey:       form.Get("session_key"),
		Selected:         selected,
		Columns:          form["columns"],
		Format:           format,
		RemoveDuplicates: formBool(form, "remove_duplicates"),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	attachment(w, res.ContentType, res.Filename)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.Header().Set("X-File-ID", strconv.FormatInt(res.File.ID, 10))
	w.Write(res.Data)
}

// handleClearSession destroys the caller's session.
func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	form, err := requestForm(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.ClearSession(r.Context(), principal(r), form.Get("session_key")); err != nil {
		s.respondError(w, r, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, map[string]any{"success": true, "redirect": "/data"})
		return
	}
	http.Redirect(w, r, "/data", http.StatusSeeOther)
}

// handleTemplate downloads the import template workbook.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.Template(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	attachment(w, export.XLSX{}.ContentType(), export.TemplateFilename)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	bytes.NewReader(data).WriteTo(w)
}
