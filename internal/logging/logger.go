// Package logging builds the process-wide zerolog logger and holds the
// helpers that keep patient contact details out of log lines.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"matchwell/internal/config"

	"github.com/rs/zerolog"
)

// New constructs the root logger from config. Empty fields fall back to JSON
// output on stdout at info level. The returned closer is non-nil only for
// file output.
func New(cfg config.LoggingConfig, app config.AppConfig) (*zerolog.Logger, io.Closer, error) {
	out, closer, err := openOutput(cfg)
	if err != nil {
		return nil, nil, err
	}

	if strings.EqualFold(strings.TrimSpace(cfg.Format), "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger := zerolog.New(out).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("app", app.Name).
		Str("env", app.Environment).
		Str("version", app.Version).
		Logger()

	return &logger, closer, nil
}

func parseLevel(raw string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func openOutput(cfg config.LoggingConfig) (io.Writer, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Output)) {
	case "stderr":
		return os.Stderr, nil, nil
	case "file":
		if cfg.FilePath == "" {
			return nil, nil, fmt.Errorf("logging.output=file requires logging.file_path")
		}
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return file, file, nil
	default:
		return os.Stdout, nil, nil
	}
}

// MaskContact redacts an email address or phone number for logging, keeping
// just enough to correlate with support tickets.
func MaskContact(contact string) string {
	if contact == "" {
		return ""
	}

	if at := strings.IndexByte(contact, '@'); at >= 0 {
		local := contact[:at]
		if len(local) <= 2 {
			return "**" + contact[at:]
		}
		return local[:2] + "***" + contact[at:]
	}

	// Phone numbers: keep the last four digits.
	if len(contact) <= 4 {
		return "****"
	}
	return "****" + contact[len(contact)-4:]
}
