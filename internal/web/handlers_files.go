package web

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/dataport/internal/core"
	"github.com/JonMunkholm/dataport/internal/logging"
)

// handleListFiles returns the caller's stored imports and exports.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	imports, exports, err := s.service.ListFiles(r.Context(), principal(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{
		"import_files": imports,
		"export_files": exports,
	})
}

// handleDownloadFile streams a stored file.
func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	id, err := fileID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	rec, body, err := s.service.OpenFile(r.Context(), principal(r), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer body.Close()

	ct := mime.TypeByExtension(path.Ext(rec.Filename))
	if ct == "" {
		ct = "application/octet-stream"
	}
	attachment(w, ct, rec.Filename)
	if _, err := io.Copy(w, body); err != nil {
		// Headers are already sent.
		logging.FromContext(r.Context()).Warn("download interrupted", "file_id", id, "error", err)
	}
}

// handleDeleteFile removes a stored file and its record.
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id, err := fileID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.DeleteFile(r.Context(), principal(r), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "message": "File deleted successfully"})
}

// fileID parses the {id} route parameter; a malformed id is reported as an
// unknown file.
func fileID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.ErrFileNotFound
	}
	return id, nil
}
