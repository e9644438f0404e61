package middleware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/drstein77/salesdash/internal/compress"
)

type entryNameKey struct{}

// archiveEntry is a spreadsheet extracted from an uploaded archive.
type archiveEntry interface {
	io.ReadCloser
	Name() string
}

// SpreadsheetName returns the name of the spreadsheet unpacked by
// ArchiveTypeMiddleware, if any.
func SpreadsheetName(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(entryNameKey{}).(string)
	return name, ok
}

// ArchiveTypeMiddleware replaces a zipped or tarred request body with the
// first spreadsheet inside the archive. The archive type comes from the
// archiveType query parameter; without it the body passes through.
func ArchiveTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		archiveType := r.URL.Query().Get("archiveType")
		if archiveType == "" {
			next.ServeHTTP(w, r)
			return
		}

		var (
			entry archiveEntry
			err   error
		)
		switch archiveType {
		case "zip":
			entry, err = compress.NewZipReader(r.Body)
		case "tar":
			entry, err = compress.NewTarReader(r.Body)
		default:
			http.Error(w, fmt.Sprintf("Unsupported archive type %q", archiveType), http.StatusBadRequest)
			return
		}
		if err != nil {
			status := http.StatusBadRequest
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			http.Error(w, fmt.Sprintf("Failed to read archive: %v", err), status)
			return
		}
		defer entry.Close()

		r.Body = entry
		ctx := context.WithValue(r.Context(), entryNameKey{}, entry.Name())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UploadLimit caps the size of request bodies.
func UploadLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
