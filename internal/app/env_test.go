package app

import (
	"os"
	"path/filepath"
	"testing"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		if old, ok := os.LookupEnv(k); ok {
			t.Cleanup(func() { _ = os.Setenv(k, old) })
		} else {
			t.Cleanup(func() { _ = os.Unsetenv(k) })
		}
		_ = os.Unsetenv(k)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadEnvFiles_LoadsKeyValues(t *testing.T) {
	unsetEnv(t, "GOSCRAPE_T_FOO", "GOSCRAPE_T_BAR")
	envPath := filepath.Join(t.TempDir(), ".env.test")
	writeFile(t, envPath, "\n# sample dotenv file\nGOSCRAPE_T_FOO=alpha\nGOSCRAPE_T_BAR=\"beta gamma\"\n")

	if err := LoadEnvFiles(envPath); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("GOSCRAPE_T_FOO"); got != "alpha" {
		t.Fatalf("FOO=%q, want alpha", got)
	}
	if got := os.Getenv("GOSCRAPE_T_BAR"); got != "beta gamma" {
		t.Fatalf("BAR=%q, want beta gamma", got)
	}
}

// Later files override earlier ones when loading multiple dotenv files.
func TestLoadEnvFiles_OverrideOrder(t *testing.T) {
	unsetEnv(t, "GOSCRAPE_T_K")
	dir := t.TempDir()
	a := filepath.Join(dir, ".env.a")
	b := filepath.Join(dir, ".env.b")
	writeFile(t, a, "GOSCRAPE_T_K=first\n")
	writeFile(t, b, "GOSCRAPE_T_K=second\n")

	if err := LoadEnvFiles(a, b); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("GOSCRAPE_T_K"); got != "second" {
		t.Fatalf("K=%q, want second", got)
	}
}

func TestLoadEnvFiles_RealEnvironmentWins(t *testing.T) {
	t.Setenv("GOSCRAPE_T_SET", "from-env")
	p := filepath.Join(t.TempDir(), ".env")
	writeFile(t, p, "GOSCRAPE_T_SET=from-file\n")

	if err := LoadEnvFiles(p); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("GOSCRAPE_T_SET"); got != "from-env" {
		t.Fatalf("got %q, want from-env", got)
	}
}

func TestLoadEnvFiles_MissingIsIgnored(t *testing.T) {
	if err := LoadEnvFiles(filepath.Join(t.TempDir(), "nope.env"), ""); err != nil {
		t.Fatalf("expected nil error for missing file, got %v", err)
	}
}
