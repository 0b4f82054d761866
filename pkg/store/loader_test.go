package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairgov/governor/pkg/domain"
)

func writePolicy(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadAll_LexicalOrder(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "b.yaml", "kind: QuotaPolicy\nmetadata:\n  name: beta\nspec:\n  limit: 2\n")
	writePolicy(t, dir, "a.yaml", "kind: QuotaPolicy\nmetadata:\n  name: alpha\nspec:\n  limit: 1\n")
	writePolicy(t, dir, "README.md", "not a policy\n")

	loader := NewLoader("default", nil, nil)
	documents, err := loader.LoadAll(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, documents, 2)
	assert.Equal(t, "alpha", documents[0].Name)
	assert.Equal(t, "beta", documents[1].Name)
}

func TestLoadAll_MultiDocumentFile(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "bundle.yaml", `kind: NetworkPolicy
metadata:
  name: deny-all
spec:
  podSelector: {}
---
kind: QuotaPolicy
metadata:
  name: team-quota
  namespace: infra
spec:
  limit: 5
---
`)

	loader := NewLoader("default", nil, nil)
	documents, err := loader.LoadAll(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, documents, 2, "trailing separator does not produce an empty document")
	assert.Equal(t, "NetworkPolicy", documents[0].Kind)
	assert.Equal(t, domain.RouteNetworkPolicy, documents[0].Route.Class)
	assert.Equal(t, "quotapolicys", documents[1].Route.Plural)
}

func TestLoadAll_DefaultsNamespace(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "p.yaml", "kind: QuotaPolicy\nmetadata:\n  name: q\nspec:\n  limit: 1\n")
	writePolicy(t, dir, "q.yaml", "kind: QuotaPolicy\nmetadata:\n  name: r\n  namespace: infra\nspec:\n  limit: 1\n")

	loader := NewLoader("workloads", nil, nil)
	documents, err := loader.LoadAll(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, documents, 2)
	assert.Equal(t, "workloads", documents[0].Namespace)
	assert.Equal(t, "infra", documents[1].Namespace)
}

func TestLoadAll_SkipsUnparseableFile(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "bad.yaml", "kind: [unterminated\n")
	writePolicy(t, dir, "good.yaml", "kind: QuotaPolicy\nmetadata:\n  name: ok\nspec:\n  limit: 1\n")

	loader := NewLoader("default", nil, nil)
	documents, err := loader.LoadAll(context.Background(), dir)
	require.NoError(t, err, "one bad file does not abort the load")

	require.Len(t, documents, 1)
	assert.Equal(t, "ok", documents[0].Name)
}

func TestLoadAll_MissingDirectoryIsAnError(t *testing.T) {
	loader := NewLoader("default", nil, nil)
	_, err := loader.LoadAll(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestLoadAll_AttachesLintErrors(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "empty-netpol.yaml", "kind: NetworkPolicy\nmetadata:\n  name: hollow\nspec: {}\n")
	writePolicy(t, dir, "valid.yaml", "kind: NetworkPolicy\nmetadata:\n  name: deny-all\nspec:\n  podSelector: {}\n")

	linter, err := NewLinter(context.Background())
	require.NoError(t, err)

	loader := NewLoader("default", linter, nil)
	documents, err := loader.LoadAll(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, documents, 2)
	assert.Contains(t, documents[0].LintError, "non-empty spec")
	assert.Empty(t, documents[1].LintError)
}
