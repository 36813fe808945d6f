package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func newCapturedLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func TestLoadEnvFile_WarnsWhenNamedFileIsMissing(t *testing.T) {
	logger, buf := newCapturedLogger()

	loadEnvFile(logger, filepath.Join(t.TempDir(), "nope.env"), true)

	if !bytes.Contains(buf.Bytes(), []byte("Env file not loaded")) {
		t.Fatalf("expected a warning for a missing named env file, got %q", buf.String())
	}
}

func TestLoadEnvFile_SilentWhenDefaultIsMissing(t *testing.T) {
	logger, buf := newCapturedLogger()

	loadEnvFile(logger, filepath.Join(t.TempDir(), ".env"), false)

	if buf.Len() != 0 {
		t.Fatalf("missing default env file must stay silent, got %q", buf.String())
	}
}

func TestLoadEnvFile_LoadsValues(t *testing.T) {
	const key = "NORA_LOAD_ENV_FILE_TEST"
	os.Unsetenv(key)
	defer os.Unsetenv(key)

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(key+"=loaded\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	logger, buf := newCapturedLogger()
	loadEnvFile(logger, path, true)

	if got := os.Getenv(key); got != "loaded" {
		t.Fatalf("%s=%q, want loaded", key, got)
	}
	if buf.Len() != 0 {
		t.Fatalf("unexpected log output: %q", buf.String())
	}
}
