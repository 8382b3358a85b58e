package gitlab

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestResolveAuthToken(t *testing.T) {
	t.Run("explicit token wins", func(t *testing.T) {
		t.Setenv("GITLAB_TOKEN", "env-token")
		t.Setenv("ACCESS_TOKEN", "compat-token")
		t.Setenv("PATH", t.TempDir())

		tok, src, err := ResolveAuthToken(context.Background(), " explicit ")
		if err != nil {
			t.Fatalf("ResolveAuthToken error: %v", err)
		}
		if tok != "explicit" {
			t.Fatalf("want explicit, got %q", tok)
		}
		if src != AuthTokenSourceExplicit {
			t.Fatalf("want %q, got %q", AuthTokenSourceExplicit, src)
		}
	})

	t.Run("env token used", func(t *testing.T) {
		t.Setenv("GITLAB_TOKEN", "env-token")
		t.Setenv("ACCESS_TOKEN", "compat-token")
		t.Setenv("PATH", t.TempDir())

		tok, src, err := ResolveAuthToken(context.Background(), "")
		if err != nil {
			t.Fatalf("ResolveAuthToken error: %v", err)
		}
		if tok != "env-token" {
			t.Fatalf("want env-token, got %q", tok)
		}
		if src != AuthTokenSourceEnv {
			t.Fatalf("want %q, got %q", AuthTokenSourceEnv, src)
		}
	})

	t.Run("compat env token used when GITLAB_TOKEN empty", func(t *testing.T) {
		t.Setenv("GITLAB_TOKEN", "")
		t.Setenv("ACCESS_TOKEN", "compat-token")
		t.Setenv("PATH", t.TempDir())

		tok, src, err := ResolveAuthToken(context.Background(), "")
		if err != nil {
			t.Fatalf("ResolveAuthToken error: %v", err)
		}
		if tok != "compat-token" {
			t.Fatalf("want compat-token, got %q", tok)
		}
		if src != AuthTokenSourceEnvCompat {
			t.Fatalf("want %q, got %q", AuthTokenSourceEnvCompat, src)
		}
	})

	t.Run("glab token used when env empty", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("test uses a shell script glab stub")
		}

		tmp := t.TempDir()
		glabPath := filepath.Join(tmp, "glab")
		if err := os.WriteFile(glabPath, []byte("#!/bin/sh\necho glab-token\n"), 0o755); err != nil {
			t.Fatalf("WriteFile glab stub failed: %v", err)
		}

		t.Setenv("GITLAB_TOKEN", "")
		t.Setenv("ACCESS_TOKEN", "")
		t.Setenv("PATH", tmp)

		tok, src, err := ResolveAuthToken(context.Background(), "")
		if err != nil {
			t.Fatalf("ResolveAuthToken error: %v", err)
		}
		if tok != "glab-token" {
			t.Fatalf("want glab-token, got %q", tok)
		}
		if src != AuthTokenSourceGlabCLI {
			t.Fatalf("want %q, got %q", AuthTokenSourceGlabCLI, src)
		}
	})

	t.Run("empty when neither env nor glab", func(t *testing.T) {
		t.Setenv("GITLAB_TOKEN", "")
		t.Setenv("ACCESS_TOKEN", "")
		t.Setenv("PATH", t.TempDir())

		tok, src, err := ResolveAuthToken(context.Background(), "")
		if err != nil {
			t.Fatalf("ResolveAuthToken error: %v", err)
		}
		if tok != "" {
			t.Fatalf("want empty token, got %q", tok)
		}
		if src != "" {
			t.Fatalf("want empty source, got %q", src)
		}
	})

	t.Run("glab invalid token output returns error", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("test uses a shell script glab stub")
		}

		tmp := t.TempDir()
		glabPath := filepath.Join(tmp, "glab")
		if err := os.WriteFile(glabPath, []byte("#!/bin/sh\nprintf 'line1\\nline2\\n'\n"), 0o755); err != nil {
			t.Fatalf("WriteFile glab stub failed: %v", err)
		}

		t.Setenv("GITLAB_TOKEN", "")
		t.Setenv("ACCESS_TOKEN", "")
		t.Setenv("PATH", tmp)

		_, _, err := ResolveAuthToken(context.Background(), "")
		if err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("context canceled propagates error when using glab", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("test uses a shell script glab stub")
		}

		tmp := t.TempDir()
		glabPath := filepath.Join(tmp, "glab")
		if err := os.WriteFile(glabPath, []byte("#!/bin/sh\necho glab-token\n"), 0o755); err != nil {
			t.Fatalf("WriteFile glab stub failed: %v", err)
		}

		t.Setenv("GITLAB_TOKEN", "")
		t.Setenv("ACCESS_TOKEN", "")
		t.Setenv("PATH", tmp)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, _, err := ResolveAuthToken(ctx, "")
		if err == nil {
			t.Fatalf("expected error")
		}
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}
