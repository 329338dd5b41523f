package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const notes = `Go is a statically typed, compiled programming language designed at Google.

Vector databases store embeddings and answer nearest neighbour queries.

Green tea is brewed at a lower temperature than black tea.`

// execute runs the root command with args and returns its standard output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := NewRootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	require.NoError(t, err, "embeddb %s", strings.Join(args, " "))
	return out
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRootCommand_Help(t *testing.T) {
	out := mustExecute(t, "--help")

	for _, sub := range []string{"collections", "ingest", "query", "get", "delete", "compact", "config"} {
		assert.Contains(t, out, sub)
	}
	assert.Contains(t, out, "--data-dir")
	assert.Contains(t, out, "--backend")
}

func TestWorkflow(t *testing.T) {
	for _, backend := range []string{"local", "sqlite", "badger"} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			file := writeFile(t, t.TempDir(), "notes.txt", notes)
			global := []string{"--data-dir", filepath.Join(dir, "data"), "--backend", backend}
			run := func(args ...string) string {
				t.Helper()
				return mustExecute(t, append(args, global...)...)
			}

			assert.Contains(t, run("collections", "list"), "no collections")

			out := run("collections", "create", "kb", "--index", "hnsw", "--m", "8")
			assert.Contains(t, out, "created collection kb (cosine, hnsw)")

			out = run("ingest", file, "-n", "kb")
			assert.Contains(t, out, "ingested 3 chunks from notes.txt into kb (3 records)")

			// Content ids make a second ingest an update.
			out = run("ingest", file, "-n", "kb")
			assert.Contains(t, out, "(3 records)")

			out = run("collections", "list")
			assert.Contains(t, out, "kb")
			assert.Contains(t, out, "hnsw")

			out = run("query", "compiled programming language", "-n", "kb", "-k", "1")
			assert.Contains(t, out, "Go is a statically typed")
			assert.NotContains(t, out, "Green tea")

			out = run("get", "-n", "kb", "--where", `{"chunk": {"$gte": 2}}`)
			assert.Contains(t, out, "2 of 3 records")
			assert.Contains(t, out, "source=notes.txt")
			assert.NotContains(t, out, "Go is a statically typed")

			out = run("delete", "-n", "kb", "--where", `{"chunk": 3}`)
			assert.Contains(t, out, "deleted 1 records from kb")

			out = run("query", "green tea", "-n", "kb", "-k", "5")
			assert.NotContains(t, out, "Green tea")

			out = run("compact", "kb")
			assert.Contains(t, out, "kb: reclaimed 0 rows")

			out = run("collections", "delete", "kb")
			assert.Contains(t, out, "deleted collection kb")
			assert.Contains(t, run("collections", "list"), "no collections")
		})
	}
}

func TestIngest_Errors(t *testing.T) {
	dir := t.TempDir()
	global := []string{"--data-dir", dir}

	_, err := execute(t, append([]string{"ingest", filepath.Join(dir, "missing.txt")}, global...)...)
	assert.Error(t, err)

	short := writeFile(t, dir, "short.txt", "tiny")
	_, err = execute(t, append([]string{"ingest", short}, global...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no chunks")

	_, err = execute(t, append([]string{"ingest", short, "--mode", "chapters"}, global...)...)
	assert.Error(t, err)
}

func TestQuery_Errors(t *testing.T) {
	dir := t.TempDir()
	global := []string{"--data-dir", dir}

	_, err := execute(t, append([]string{"query", "anything", "-n", "missing"}, global...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = execute(t, append([]string{"query", "anything", "--where", `{"$bogus": 1}`}, global...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--where")

	_, err = execute(t, append([]string{"get"}, global...)...)
	assert.Error(t, err)

	_, err = execute(t, append([]string{"delete", "a", "--where", `{"x": 1}`}, global...)...)
	assert.Error(t, err)
}

func TestCollectionsCreate_Duplicate(t *testing.T) {
	global := []string{"--data-dir", t.TempDir()}

	mustExecute(t, append([]string{"collections", "create", "docs", "--dimension", "4", "--metric", "dot"}, global...)...)

	_, err := execute(t, append([]string{"collections", "create", "docs"}, global...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, append([]string{"collections", "create", "other", "--metric", "manhattan"}, global...)...)
	assert.Error(t, err)

	out := mustExecute(t, append([]string{"collections", "list"}, global...)...)
	assert.Contains(t, out, "dot")
	assert.NotContains(t, out, "other")
}

func TestJSONSnapshots(t *testing.T) {
	t.Setenv("EMBEDDB_STORAGE_CODEC", "json")
	t.Setenv("EMBEDDB_STORAGE_COMPRESSION", "none")

	dir := t.TempDir()
	file := writeFile(t, dir, "notes.txt", notes)
	global := []string{"--data-dir", filepath.Join(dir, "data")}

	mustExecute(t, append([]string{"ingest", file}, global...)...)

	out := mustExecute(t, append([]string{"get", "--where", `{"source": "notes.txt"}`}, global...)...)
	assert.Contains(t, out, "3 of 3 records")
	assert.Contains(t, out, "Green tea is brewed")
}

func TestIngest_SameTextFromTwoSources(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "notes.txt", notes)
	second := writeFile(t, dir, "copy.txt", notes)
	global := []string{"--data-dir", filepath.Join(dir, "data")}

	mustExecute(t, append([]string{"ingest", first}, global...)...)
	out := mustExecute(t, append([]string{"ingest", second}, global...)...)
	assert.Contains(t, out, "(6 records)")

	out = mustExecute(t, append([]string{"get", "--where", `{"source": "notes.txt"}`}, global...)...)
	assert.Contains(t, out, "3 of 6 records")
}
