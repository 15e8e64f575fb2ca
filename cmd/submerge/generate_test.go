package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adrg/xdg"

	"github.com/John-Robertt/submerge/internal/config"
)

func writeFile(t *testing.T, path, text string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		t.Fatal(err)
	}
}

// testConfigFile disables the sequential gap and retry waits.
func testConfigFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "fetch:\n  base_delay: 1ms\n  attempts: 1\nengine:\n  sequential_delay: 0s\nlog:\n  level: error\n")
	return path
}

func runRoot(t *testing.T, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(stdin)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestGenerate_WritesDocumentAndReport(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/hk":
			_, _ = io.WriteString(w, "ss://YWVzLTI1Ni1nY206cGFzcw==@1.1.1.1:8388#one\n")
		default:
			http.NotFound(w, r)
		}
	}))
	defer up.Close()

	dir := t.TempDir()
	in := filepath.Join(dir, "sources.txt")
	out := filepath.Join(dir, "nested", "output.yaml")
	rep := filepath.Join(dir, "report.md")
	writeFile(t, in, fmt.Sprintf("# HK\n%s/hk\n\n%s/missing\n", up.URL, up.URL))

	_, stderr, err := runRoot(t, nil, "generate", "-c", testConfigFile(t, dir), "-i", in, "-o", out, "--report", rep)
	if err != nil {
		t.Fatalf("generate: %v\n%s", err, stderr)
	}
	if !strings.Contains(stderr, "1 nodes from 1/2 sources") {
		t.Fatalf("stderr=%q", stderr)
	}

	doc, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	for _, want := range []string{"name: HK-one", "proxy-groups:", "MATCH,节点选择", "[FAIL]"} {
		if !strings.Contains(string(doc), want) {
			t.Fatalf("output missing %q:\n%s", want, doc)
		}
	}

	md, err := os.ReadFile(rep)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.HasPrefix(string(md), "# ") {
		t.Fatalf("report=%q", md)
	}
}

func TestGenerate_StdinToStdout(t *testing.T) {
	dir := t.TempDir()
	stdout, _, err := runRoot(t, strings.NewReader("# nothing here\n"), "generate", "-c", testConfigFile(t, dir), "-i", "-", "-o", "-")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(stdout, "name: placeholder") {
		t.Fatalf("stdout=%q", stdout)
	}
}

func TestGenerate_Errors(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfigFile(t, dir)

	if _, _, err := runRoot(t, nil, "generate", "-c", cfg, "-i", filepath.Join(dir, "absent.txt")); err == nil {
		t.Fatal("expected error for missing source list")
	}
	if _, _, err := runRoot(t, nil, "generate", "-c", filepath.Join(dir, "absent.yaml"), "-i", "-"); !errors.Is(err, config.ErrConfigNotFound) {
		t.Fatalf("err=%v, want ErrConfigNotFound", err)
	}
	if _, _, err := runRoot(t, strings.NewReader(""), "generate", "-c", cfg, "--log-level", "loud", "-i", "-", "-o", "-"); !errors.Is(err, config.ErrInvalidLogLevel) {
		t.Fatalf("err=%v, want ErrInvalidLogLevel", err)
	}
}

func TestLoadConfig_LogLevelPrecedence(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	xdg.Reload()
	t.Setenv("LOG_LEVEL", "warn")

	gen, _, err := NewRootCmd().Find([]string{"generate"})
	if err != nil {
		t.Fatal(err)
	}
	if err := gen.ParseFlags(nil); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(gen)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("level=%q, want warn from LOG_LEVEL", cfg.Log.Level)
	}

	if err := gen.ParseFlags([]string{"--log-level", "debug"}); err != nil {
		t.Fatal(err)
	}
	cfg, err = loadConfig(gen)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("level=%q, want debug from flag", cfg.Log.Level)
	}
}
