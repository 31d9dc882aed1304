package preview

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/ashureev/sitecraft/internal/alert"
	"github.com/ashureev/sitecraft/internal/domain"
	"github.com/klauspost/compress/flate"
)

// Archive entry names.
const (
	EntryHTML   = "index.html"
	EntryCSS    = "styles.css"
	EntryScript = "script.js"
)

// MsgDownloadFailed is the alert shown when packaging fails.
const MsgDownloadFailed = "Failed to download website. Please try again."

// ArchiveName is the download file name for w. The title is reduced to a
// single path component, so it is safe to join onto a directory.
func ArchiveName(w *domain.GeneratedWebsite) string {
	if w == nil {
		return "website.zip"
	}
	name := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, w.Title)
	name = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(name), "."))
	if name == "" {
		return "website.zip"
	}
	return name + ".zip"
}

// Archive packages w as a ZIP. script.js is only included when the bundle
// has JavaScript. On failure it returns an alert and no bytes.
func Archive(w *domain.GeneratedWebsite) ([]byte, error) {
	if w == nil {
		return nil, alert.New(MsgDownloadFailed, fmt.Errorf("no website to package"))
	}

	entries := []struct {
		name, body string
	}{
		{EntryHTML, w.HTML},
		{EntryCSS, w.CSS},
	}
	if w.HasScript() {
		entries = append(entries, struct{ name, body string }{EntryScript, w.JavaScript})
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	modified := time.Now()
	for _, e := range entries {
		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return nil, alert.New(MsgDownloadFailed, fmt.Errorf("create %s: %w", e.name, err))
		}
		if _, err := io.WriteString(f, e.body); err != nil {
			return nil, alert.New(MsgDownloadFailed, fmt.Errorf("write %s: %w", e.name, err))
		}
	}
	if err := zw.Close(); err != nil {
		return nil, alert.New(MsgDownloadFailed, fmt.Errorf("finish archive: %w", err))
	}
	return buf.Bytes(), nil
}
