// Package templates holds the HTML components served by the web package.
//
// The *_templ.go files are generated from the .templ sources.
package templates

//go:generate templ generate

import "fmt"

// UploadPageParams configures the upload page.
type UploadPageParams struct {
	MaxFileSize int64
	Error       string // flash message from a failed upload
}

func humanSize(n int64) string {
	const mb = 1 << 20
	if n >= mb && n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}
