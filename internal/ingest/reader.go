// Package ingest reads source documents, splits them into chunks and
// enriches them with generated metadata.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/wildvoice/wildrag/internal/knowledge"
	"github.com/wildvoice/wildrag/internal/log"
)

// ErrDirectoryNotFound indicates the ingestion source directory is missing.
var ErrDirectoryNotFound = errors.New("directory not found")

// CommandRunner executes an external command and returns its stdout.
// The default implementation shells out; tests substitute a fake.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Reader loads documents from a directory. Plain text and markdown files
// are read directly, PDFs are extracted with the pdftotext tool.
type Reader struct {
	runner CommandRunner
	logger log.Logger
}

// NewReader creates a reader using the system pdftotext binary.
func NewReader(logger log.Logger) *Reader {
	return NewReaderWithRunner(execRunner{}, logger)
}

// NewReaderWithRunner creates a reader with a custom command runner.
func NewReaderWithRunner(runner CommandRunner, logger log.Logger) *Reader {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Reader{runner: runner, logger: logger}
}

// Read loads all supported documents under dir. Subdirectories are only
// descended into when recursive is set. Each document carries its file
// name in metadata for later tracing.
func (r *Reader) Read(ctx context.Context, dir string, recursive bool) ([]knowledge.Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
		}
		return nil, fmt.Errorf("checking directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, dir)
	}

	var docs []knowledge.Document
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}

		text, ok, err := r.extract(ctx, path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if !ok {
			r.logger.Debug("skipping unsupported file", "path", path)
			return nil
		}
		if strings.TrimSpace(text) == "" {
			r.logger.Warn("skipping empty document", "path", path)
			return nil
		}

		docs = append(docs, knowledge.Document{
			Text: text,
			Metadata: map[string]string{
				knowledge.MetaFilePath: path,
				knowledge.MetaFileName: filepath.Base(path),
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("documents loaded", "dir", dir, "count", len(docs))
	return docs, nil
}

func (r *Reader) extract(ctx context.Context, path string) (string, bool, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".text":
		data, err := os.ReadFile(path) // #nosec G304 -- path comes from the walked ingest directory
		if err != nil {
			return "", false, err
		}
		return string(data), true, nil
	case ".pdf":
		out, err := r.runner.Run(ctx, "pdftotext", path, "-")
		if err != nil {
			return "", false, err
		}
		return string(out), true, nil
	default:
		return "", false, nil
	}
}
