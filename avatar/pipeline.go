// Package avatar moves uploaded profile images into durable storage and
// normalizes them to a fixed square resolution.
package avatar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultSize is the square resolution avatars are normalized to.
const DefaultSize = 256

// Logger is the minimal logging surface the pipeline depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Pipeline relocates uploads into the durable directory and serves their
// public references from the configured prefix.
type Pipeline struct {
	dir          string
	publicPrefix string
	size         int
	logger       Logger
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithSize overrides the normalization resolution.
func WithSize(size int) Option {
	return func(p *Pipeline) {
		if size > 0 {
			p.size = size
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(logger Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a pipeline writing durable assets under dir and exposing them
// under publicPrefix.
func New(dir, publicPrefix string, opts ...Option) *Pipeline {
	p := &Pipeline{
		dir:          dir,
		publicPrefix: strings.TrimRight(publicPrefix, "/"),
		size:         DefaultSize,
		logger:       nopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Store relocates tempPath to `<name><ext>` under the durable directory,
// normalizes it in place, and returns the public reference.
//
// Guarantees: the move is a single rename, never a copy; the temporary file
// is removed on every exit path; a durable file whose normalization failed
// is kept as-is (a usable-if-imperfect avatar beats data loss).
func (p *Pipeline) Store(ctx context.Context, name, tempPath, originalName string) (string, error) {
	// No-op once the rename succeeded; removes the orphan on every
	// failure path before it.
	defer os.Remove(tempPath)

	select {
	case <-ctx.Done():
		return "", goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during avatar store")
	default:
	}

	filename := name + strings.ToLower(filepath.Ext(originalName))
	durable := filepath.Join(p.dir, filename)

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to prepare avatar directory")
	}

	if err := os.Rename(tempPath, durable); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to relocate avatar upload")
	}

	// Strictly sequential: normalization completes, or fails and is
	// handled, before the reference is returned.
	if err := p.normalize(durable); err != nil {
		p.logger.Warn("avatar normalization failed, keeping original", "file", filename, "error", err)
	}

	return p.publicPrefix + "/" + filename, nil
}

// normalize rewrites the durable file as a size x size square.
func (p *Pipeline) normalize(file string) error {
	img, err := imaging.Open(file)
	if err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(file), err)
	}

	img = imaging.Fill(img, p.size, p.size, imaging.Center, imaging.Lanczos)

	if err := imaging.Save(img, file); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(file), err)
	}
	return nil
}
