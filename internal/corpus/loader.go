// Package corpus gathers the texts a plan indexes: inline documents, markdown
// files matched by glob patterns and markdown files pulled from GitHub.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/mike-a-ellis/vecquery/internal/config"
	ghclient "github.com/mike-a-ellis/vecquery/internal/github"
	"github.com/mike-a-ellis/vecquery/internal/markdown"
)

// ErrNoRemote is returned when a plan names a GitHub source but the loader
// was built without a fetcher.
var ErrNoRemote = errors.New("github source configured but no fetcher available")

// DocFetcher lists and reads markdown files from a remote repository.
type DocFetcher interface {
	ListDocs(ctx context.Context) ([]string, error)
	FetchDoc(ctx context.Context, path string) (*ghclient.FetchedDoc, error)
}

// Loader turns a plan's sources into an ordered list of texts.
type Loader struct {
	splitter *markdown.Splitter
	remote   DocFetcher
	logger   *slog.Logger
}

// NewLoader creates a Loader. remote may be nil when no plan uses GitHub.
func NewLoader(remote DocFetcher, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		splitter: markdown.NewSplitter(),
		remote:   remote,
		logger:   logger,
	}
}

// Load returns the plan's inline documents, then one text per markdown
// section of every matched file (sorted by path), then the sections of the
// remote files. Inline documents are kept as they are, including empty ones.
func (l *Loader) Load(ctx context.Context, plan *config.Plan) ([]string, error) {
	texts := append([]string(nil), plan.Documents...)

	files, err := l.LoadFiles(plan.Sources)
	if err != nil {
		return nil, err
	}
	texts = append(texts, files...)

	if plan.GitHub != nil {
		remote, err := l.loadRemote(ctx)
		if err != nil {
			return nil, err
		}
		texts = append(texts, remote...)
	}

	l.logger.Info("Corpus loaded",
		"inline", len(plan.Documents),
		"files", len(files),
		"total", len(texts),
	)
	return texts, nil
}

// LoadFiles expands doublestar patterns and splits each matched file into sections.
func (l *Loader) LoadFiles(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			l.logger.Warn("Source pattern matched no files", "pattern", pattern)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	sort.Strings(paths)

	var texts []string
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
		sections, err := l.split(path, data)
		if err != nil {
			return nil, err
		}
		texts = append(texts, sections...)
	}
	return texts, nil
}

// loadRemote fetches every markdown file the fetcher lists. A file that
// fails to download is logged and skipped.
func (l *Loader) loadRemote(ctx context.Context) ([]string, error) {
	if l.remote == nil {
		return nil, ErrNoRemote
	}

	paths, err := l.remote.ListDocs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote docs: %w", err)
	}
	l.logger.Info("Found remote documents", "count", len(paths))

	var texts []string
	for _, path := range paths {
		doc, err := l.remote.FetchDoc(ctx, path)
		if err != nil {
			l.logger.Warn("Failed to fetch document", "path", path, "error", err)
			continue
		}
		sections, err := l.split(doc.URL, []byte(doc.Content))
		if err != nil {
			l.logger.Warn("Failed to split document", "path", path, "error", err)
			continue
		}
		texts = append(texts, sections...)
	}
	return texts, nil
}

func (l *Loader) split(source string, data []byte) ([]string, error) {
	sections, err := l.splitter.Split(data)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", source, err)
	}
	texts := make([]string, 0, len(sections))
	for _, s := range sections {
		texts = append(texts, s.Text())
	}
	l.logger.Debug("Split source", "source", source, "sections", len(texts))
	return texts, nil
}
