package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunGeneratesKeypairAndReturnsSuccess(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer

	code := Run([]string{"-dir", dir, "-name", "test"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0; stderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "key_id:") {
		t.Errorf("stdout missing key_id line: %s", stdout.String())
	}

	if _, err := os.Stat(filepath.Join(dir, "test.key")); err != nil {
		t.Errorf("private key file not written: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var foundPub bool
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".pub") {
			foundPub = true
		}
	}
	if !foundPub {
		t.Error("no .pub file written")
	}
}

func TestRunRejectsMissingDirFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{}, &stdout, &stderr)
	if code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
}

func TestRunPrivateKeyFileHasRestrictivePermissions(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer
	if code := Run([]string{"-dir", dir}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}

	info, err := os.Stat(filepath.Join(dir, "key.key"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("private key perm = %v, want 0600", info.Mode().Perm())
	}
}
