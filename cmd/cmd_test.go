package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

var sampleBundle = filepath.Join("..", "testdata", "bundle")

// executeCommand runs the root command with args and returns what it wrote
// to stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return out.String(), err
}

// copyBundle copies the sample bundle into a fresh directory.
func copyBundle(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "bundle")
	if err := os.CopyFS(dir, os.DirFS(sampleBundle)); err != nil {
		t.Fatal(err)
	}
	return dir
}
