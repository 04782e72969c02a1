package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/browser"

	domain "github.com/donaldgifford/slo-reporter/pkg/types"
)

// FileMailer implements Mailer by writing the report to a local HTML file,
// optionally opening it in the default browser. Used in dry-run.
type FileMailer struct {
	dir  string
	open bool

	opener func(path string) error
	log    *slog.Logger
}

// FileOption configures a FileMailer.
type FileOption func(*FileMailer)

// WithOpenBrowser opens every written report in the default browser.
func WithOpenBrowser(open bool) FileOption {
	return func(f *FileMailer) {
		f.open = open
	}
}

// WithFileLogger sets a custom logger.
func WithFileLogger(l *slog.Logger) FileOption {
	return func(f *FileMailer) {
		f.log = l
	}
}

func withOpener(fn func(string) error) FileOption {
	return func(f *FileMailer) {
		f.opener = fn
	}
}

// NewFileMailer creates a FileMailer writing into dir.
func NewFileMailer(dir string, opts ...FileOption) *FileMailer {
	f := &FileMailer{
		dir:    dir,
		opener: browser.OpenFile,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns the file a message is written to.
func (f *FileMailer) Path(msg *Message) string {
	return filepath.Join(f.dir, fmt.Sprintf("thoth-sli-report-%s.html", msg.Date.Format(domain.DateLayout)))
}

// Send writes msg to disk. A browser that fails to open is only logged.
func (f *FileMailer) Send(_ context.Context, msg *Message) error {
	if err := os.MkdirAll(f.dir, 0o750); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	path := f.Path(msg)
	if err := os.WriteFile(path, msg.HTML, 0o600); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	f.log.Info("report written", "path", path, "subject", msg.Subject)

	if f.open {
		if err := f.opener(path); err != nil {
			f.log.Warn("opening report in browser", "path", path, "error", err)
		}
	}
	return nil
}
