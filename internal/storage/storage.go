// Package storage defines where PM files, evidence photos and compiled
// reports are kept. References returned by Put are URLs that the frontend
// can open directly.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"ozzus/pm-tracker/internal/lib/sanitize"
)

var ErrNotFound = errors.New("blob not found")

const (
	PrefixPhotos  = "pm-photos"
	PrefixFiles   = "pm-files"
	PrefixReports = "pm-reports"
)

type BlobStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	// Owns reports whether ref was produced by this store.
	Owns(ref string) bool
	Ping(ctx context.Context) error
}

// PhotoName is pm-photos/<unix-ms>-<sanitized original name>.
func PhotoName(original string, now time.Time) string {
	return timestamped(PrefixPhotos, original, "photo", now)
}

func PMFileName(original string, now time.Time) string {
	return timestamped(PrefixFiles, original, "pm", now)
}

func ReportName(executionID, fileName string) string {
	return path.Join(PrefixReports, sanitize.FileName(executionID), sanitize.FileName(fileName))
}

func timestamped(prefix, original, fallback string, now time.Time) string {
	name := sanitize.FileName(strings.TrimSpace(path.Base(strings.ReplaceAll(original, "\\", "/"))))
	if name == "" || name == "." || name == "_" {
		name = fallback
	}
	return fmt.Sprintf("%s/%d-%s", prefix, now.UnixMilli(), name)
}
