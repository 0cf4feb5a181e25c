package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stargazer.yaml")
	cfg := Default()
	cfg.Repos = []RepoConfig{{Name: "o/r", TokenEnv: "TEST_REPO_TOKEN"}}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEST_REPO_TOKEN", "tok-env")
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Repos) != 1 || got.Repos[0].Name != "o/r" {
		t.Fatalf("repos mismatch: %+v", got.Repos)
	}
	if got.Repos[0].Token != "tok-env" {
		t.Fatalf("tokenEnv not resolved: %q", got.Repos[0].Token)
	}
	if got.Extraction.MaxPages != 400 || got.Extraction.PerPage != 100 {
		t.Fatalf("extraction caps mismatch: %+v", got.Extraction)
	}
}

func TestValidateRejectsBadRepo(t *testing.T) {
	cfg := Default()
	cfg.Repos = append(cfg.Repos, RepoConfig{Name: "not-a-repo"})
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
	cfg = Default()
	cfg.Repos = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty repo list")
	}
}

func TestResolveEnvDefaultToken(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "tok-default")
	cfg := Default()
	cfg.ResolveEnv()
	if cfg.Credentials.Token != "tok-default" {
		t.Fatalf("expected token from env, got %q", cfg.Credentials.Token)
	}
	_ = os.Unsetenv("GITHUB_TOKEN")
}
