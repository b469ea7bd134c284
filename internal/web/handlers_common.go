package web

// This file contains request decoding and response helpers shared by the
// handlers.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/JonMunkholm/dataport/internal/core"
)

// maxFormBody bounds non-upload request bodies.
const maxFormBody = 8 << 20

// badRequest reports a malformed field with a REQ003 user message.
func badRequest(format string, args ...any) error {
	detail := fmt.Sprintf(format, args...)
	return &core.UserError{
		Technical: fmt.Errorf("%w: %s", errBadRequest, detail),
		User: core.UserMessage{
			Message: "Invalid request: " + detail,
			Action:  "Check the submitted fields and try again",
			Code:    "REQ003",
		},
	}
}

// requestForm decodes a urlencoded, multipart or JSON body into url.Values.
// JSON arrays become repeated values; "name[]" keys are folded into "name".
func requestForm(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)

	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return nil, badRequest("body is not valid JSON")
		}
		return jsonValues(body), nil
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxFormBody); err != nil {
			return nil, badRequest("invalid multipart form")
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, badRequest("invalid form")
	}

	out := url.Values{}
	for k, vs := range r.Form {
		k = strings.TrimSuffix(k, "[]")
		out[k] = append(out[k], vs...)
	}
	return out, nil
}

func jsonValues(body map[string]any) url.Values {
	out := url.Values{}
	for k, v := range body {
		k = strings.TrimSuffix(k, "[]")
		switch val := v.(type) {
		case []any:
			for _, item := range val {
				out.Add(k, jsonScalar(item))
			}
		case nil:
		default:
			out.Set(k, jsonScalar(val))
		}
	}
	return out
}

func jsonScalar(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}

// intValues parses every value of field as an integer.
func intValues(form url.Values, field string) ([]int, error) {
	vals := form[field]
	out := make([]int, 0, len(vals))
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, badRequest("%s must contain integers", field)
		}
		out = append(out, n)
	}
	return out, nil
}

// optionalInt parses field, returning ok=false when it is absent or blank.
func optionalInt(form url.Values, field string) (n int, ok bool, err error) {
	v := strings.TrimSpace(form.Get(field))
	if v == "" {
		return 0, false, nil
	}
	n, err = strconv.Atoi(v)
	if err != nil {
		return 0, false, badRequest("%s must be an integer", field)
	}
	return n, true, nil
}

// formBool treats "1", "true", "on" and "yes" as true.
func formBool(form url.Values, field string) bool {
	switch strings.ToLower(strings.TrimSpace(form.Get(field))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// attachment sets the download headers for filename.
func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
}
