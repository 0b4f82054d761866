// Package store loads declarative policy documents from a configuration
// directory, validates them against the embedded admission rules, and
// re-publishes the document set when files change on disk.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fairgov/governor/pkg/domain"
)

// rawDocument is the on-disk YAML shape of a policy document.
type rawDocument struct {
	Kind     string `yaml:"kind"`
	Metadata struct {
		Name      string `yaml:"name"`
		Namespace string `yaml:"namespace"`
	} `yaml:"metadata"`
	Spec map[string]any `yaml:"spec"`
}

// Loader reads policy documents from a directory. Files are processed in
// lexical order so that repeated loads of the same directory produce the
// same document sequence.
type Loader struct {
	defaultNamespace string
	linter           *Linter
	logger           *slog.Logger
}

// NewLoader builds a loader. The linter is optional; without it documents
// are only shape-checked.
func NewLoader(defaultNamespace string, linter *Linter, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		defaultNamespace: defaultNamespace,
		linter:           linter,
		logger:           logger,
	}
}

// LoadAll parses every *.yaml / *.yml file under dir, multi-document files
// included. A file that fails to parse is logged and skipped without
// aborting the load; an unreadable directory is a controller-level error.
func (l *Loader) LoadAll(ctx context.Context, dir string) ([]domain.PolicyDocument, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read policy directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var documents []domain.PolicyDocument
	for _, name := range names {
		docs, err := l.loadFile(ctx, filepath.Join(dir, name))
		if err != nil {
			l.logger.Error("skipping unparseable policy file", "file", name, "error", err)
			continue
		}
		documents = append(documents, docs...)
	}

	l.logger.Info("policies loaded", "directory", dir, "count", len(documents))
	return documents, nil
}

func (l *Loader) loadFile(ctx context.Context, path string) ([]domain.PolicyDocument, error) {
	// #nosec G304 -- policy directory is configured at startup
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	decoder := yaml.NewDecoder(strings.NewReader(string(data)))

	var documents []domain.PolicyDocument
	for {
		var raw rawDocument
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}

		// Skip empty YAML documents (e.g. trailing separators).
		if raw.Kind == "" && raw.Metadata.Name == "" && len(raw.Spec) == 0 {
			continue
		}

		documents = append(documents, l.buildDocument(ctx, raw))
	}

	return documents, nil
}

func (l *Loader) buildDocument(ctx context.Context, raw rawDocument) domain.PolicyDocument {
	namespace := raw.Metadata.Namespace
	if namespace == "" {
		namespace = l.defaultNamespace
	}

	doc := domain.PolicyDocument{
		Kind:      raw.Kind,
		Name:      raw.Metadata.Name,
		Namespace: namespace,
		Spec:      raw.Spec,
	}
	if doc.Kind != "" {
		doc.Route = domain.ResolveKindRoute(doc.Kind)
	}

	if l.linter != nil {
		if err := l.linter.Lint(ctx, doc); err != nil {
			doc.LintError = err.Error()
			l.logger.Warn("policy document failed admission lint",
				"kind", doc.Kind, "name", doc.Name, "reason", err.Error())
		}
	}

	return doc
}
