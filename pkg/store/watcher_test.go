package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairgov/governor/pkg/domain"
)

func TestWatcher_PublishesReloadedDocuments(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "initial.yaml", "kind: QuotaPolicy\nmetadata:\n  name: initial\nspec:\n  limit: 1\n")

	loader := NewLoader("default", nil, nil)
	watcher, err := NewWatcher(dir, loader, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, watcher.Close()) }()

	updates := watcher.Subscribe()

	writePolicy(t, dir, "added.yaml", "kind: QuotaPolicy\nmetadata:\n  name: added\nspec:\n  limit: 2\n")

	select {
	case documents := <-updates:
		require.Len(t, documents, 2)
		assert.Equal(t, "added", documents[0].Name, "lexical order: added.yaml before initial.yaml")
	case <-time.After(3 * time.Second):
		t.Fatal("no reload published after policy file change")
	}
}

func TestWatcher_IgnoresNonPolicyFiles(t *testing.T) {
	dir := t.TempDir()

	loader := NewLoader("default", nil, nil)
	watcher, err := NewWatcher(dir, loader, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, watcher.Close()) }()

	updates := watcher.Subscribe()

	writePolicy(t, dir, "notes.txt", "scratch\n")

	select {
	case <-updates:
		t.Fatal("non-policy file triggered a reload")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()

	loader := NewLoader("default", nil, nil)
	watcher, err := NewWatcher(dir, loader, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, watcher.Close()) }()

	updates := watcher.Subscribe()

	// A rapid burst of writes should collapse into one reload carrying the
	// final state.
	for i := 0; i < 5; i++ {
		writePolicy(t, dir, "churn.yaml", "kind: QuotaPolicy\nmetadata:\n  name: churn\nspec:\n  limit: 9\n")
	}

	var first []domain.PolicyDocument
	select {
	case first = <-updates:
	case <-time.After(3 * time.Second):
		t.Fatal("burst produced no reload")
	}
	require.Len(t, first, 1)
	assert.Equal(t, "churn", first[0].Name)
}

func TestWatcher_MissingDirectoryFailsConstruction(t *testing.T) {
	loader := NewLoader("default", nil, nil)
	_, err := NewWatcher(t.TempDir()+"/missing", loader, nil)
	assert.Error(t, err)
}

func TestWatcher_CloseStopsPublishing(t *testing.T) {
	dir := t.TempDir()

	loader := NewLoader("default", nil, nil)
	watcher, err := NewWatcher(dir, loader, nil)
	require.NoError(t, err)

	updates := watcher.Subscribe()
	require.NoError(t, watcher.Close())

	writePolicy(t, dir, "late.yaml", "kind: QuotaPolicy\nmetadata:\n  name: late\nspec:\n  limit: 1\n")

	select {
	case _, ok := <-updates:
		if ok {
			t.Fatal("closed watcher published a reload")
		}
	case <-time.After(500 * time.Millisecond):
	}
}
