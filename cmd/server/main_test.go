package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadEnvFileIgnoresMissingFile(t *testing.T) {
	if err := loadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("expected missing env file to be ignored, got %v", err)
	}
	if err := loadEnvFile(""); err != nil {
		t.Fatalf("expected empty path to be ignored, got %v", err)
	}
}

func TestLoadEnvFileAppliesValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("TECHBLOG_TEST_VALUE=loaded\n"), 0o600); err != nil {
		t.Fatalf("writing env file failed: %v", err)
	}
	t.Setenv("TECHBLOG_TEST_VALUE", "")
	os.Unsetenv("TECHBLOG_TEST_VALUE")

	if err := loadEnvFile(path); err != nil {
		t.Fatalf("loadEnvFile returned error: %v", err)
	}
	if got := os.Getenv("TECHBLOG_TEST_VALUE"); got != "loaded" {
		t.Fatalf("expected value from env file, got %q", got)
	}
}

func TestLoadEnvFileReportsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("BAD-KEY=value\n"), 0o600); err != nil {
		t.Fatalf("writing env file failed: %v", err)
	}

	err := loadEnvFile(path)
	if err == nil {
		t.Fatalf("expected malformed env file to fail")
	}
	if !strings.Contains(err.Error(), "loading env file") {
		t.Fatalf("expected wrapped env file error, got %v", err)
	}
}

func TestGenerateRequiresTopic(t *testing.T) {
	generateTopic = "   "
	t.Cleanup(func() { generateTopic = "" })

	err := generateCmd.RunE(generateCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "--topic is required") {
		t.Fatalf("expected missing topic error, got %v", err)
	}
}

func TestGenerateHelpDescribesPublishing(t *testing.T) {
	help := generateCmd.Short + "\n" + generateCmd.Long
	if strings.Contains(help, "draft") {
		t.Fatalf("generate help must not promise a draft: %q", help)
	}
	if !strings.Contains(help, "publishes it immediately") {
		t.Fatalf("expected help to state immediate publication: %q", help)
	}
}
