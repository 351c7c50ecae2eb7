package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"mercator-hq/mixer/pkg/config"
	"mercator-hq/mixer/pkg/telemetry/logging"
)

// createTestRepo creates a repository at dir holding files in one commit.
func createTestRepo(t *testing.T, dir string, files map[string]string) *gogit.Repository {
	t.Helper()

	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("failed to init repo: %v", err)
	}
	commitFiles(t, repo, dir, files, "initial commit")
	return repo
}

// commitFiles writes files into the worktree at dir and commits them.
func commitFiles(t *testing.T, repo *gogit.Repository, dir string, files map[string]string, message string) {
	t.Helper()

	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
		if _, err := worktree.Add(name); err != nil {
			t.Fatalf("failed to add %s: %v", name, err)
		}
	}

	_, err = worktree.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  "Test User",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
}

// testConfig returns a configuration cloning sourceDir's "master" branch
// (the go-git init default).
func testConfig(t *testing.T, sourceDir string) *config.GitConfig {
	t.Helper()
	return &config.GitConfig{
		Enabled:    true,
		Repository: sourceDir,
		Branch:     "master",
		LocalPath:  filepath.Join(t.TempDir(), "checkout"),
		Timeout:    10 * time.Second,
		Auth:       config.GitAuthConfig{Type: AuthNone},
	}
}

func TestNewRepository(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.GitConfig
		wantErr bool
	}{
		{name: "nil config", cfg: nil, wantErr: true},
		{
			name:    "empty repository URL",
			cfg:     &config.GitConfig{Branch: "main"},
			wantErr: true,
		},
		{
			name:    "empty branch",
			cfg:     &config.GitConfig{Repository: "https://github.com/test/repo.git"},
			wantErr: true,
		},
		{
			name: "bad auth",
			cfg: &config.GitConfig{
				Repository: "https://github.com/test/repo.git",
				Branch:     "main",
				Auth:       config.GitAuthConfig{Type: "kerberos"},
			},
			wantErr: true,
		},
		{
			name: "valid config",
			cfg: &config.GitConfig{
				Repository: "https://github.com/test/repo.git",
				Branch:     "main",
				Path:       "mixer/",
				LocalPath:  "/tmp/test-repo",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, err := NewRepository(tt.cfg, logging.Discard())
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewRepository() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got, want := repo.ConfigPath(), filepath.Join("/tmp/test-repo", "mixer"); got != want {
				t.Errorf("ConfigPath() = %q, want %q", got, want)
			}
			if got := repo.String(); got != "https://github.com/test/repo.git#main" {
				t.Errorf("String() = %q", got)
			}
		})
	}
}

func TestNewRepository_DefaultLocalPath(t *testing.T) {
	repo, err := NewRepository(&config.GitConfig{Repository: "https://github.com/test/repo.git", Branch: "main"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(os.TempDir(), "mixer-config"); repo.LocalPath() != want {
		t.Errorf("LocalPath() = %q, want %q", repo.LocalPath(), want)
	}
}

func TestRepository_Sync(t *testing.T) {
	sourceDir := t.TempDir()
	source := createTestRepo(t, sourceDir, map[string]string{"config/rules.yaml": "rules: []\n"})

	repo, err := NewRepository(testConfig(t, sourceDir), logging.Discard())
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}

	if _, err := repo.Head(); err != ErrNotCloned {
		t.Errorf("Head() before Sync error = %v, want ErrNotCloned", err)
	}

	ctx := context.Background()
	first, err := repo.Sync(ctx)
	if err != nil {
		t.Fatalf("first Sync() error = %v", err)
	}
	if !first.Cloned || first.ToSHA == "" {
		t.Errorf("first Sync() = %+v, want a fresh clone", first)
	}
	if _, err := os.Stat(filepath.Join(repo.LocalPath(), "config", "rules.yaml")); err != nil {
		t.Errorf("checkout missing file: %v", err)
	}

	again, err := repo.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() without changes error = %v", err)
	}
	if again.Cloned || again.HadChanges() {
		t.Errorf("Sync() without changes = %+v", again)
	}

	commitFiles(t, source, sourceDir, map[string]string{
		"config/rules.yaml": "rules: [{match: \"true\"}]\n",
		"README.md":         "docs\n",
	}, "second commit")

	updated, err := repo.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() after commit error = %v", err)
	}
	if !updated.HadChanges() {
		t.Fatal("Sync() after commit reported no changes")
	}
	if len(updated.ChangedFiles) != 2 {
		t.Errorf("ChangedFiles = %v, want 2 files", updated.ChangedFiles)
	}

	head, err := repo.Head()
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}
	if head.SHA != updated.ToSHA || head.Message != "second commit" || head.Branch != "master" {
		t.Errorf("Head() = %+v", head)
	}
	if len(head.Short()) != 8 {
		t.Errorf("Short() = %q", head.Short())
	}
}

func TestRepository_SyncReopensCheckout(t *testing.T) {
	sourceDir := t.TempDir()
	createTestRepo(t, sourceDir, map[string]string{"rules.yaml": "rules: []\n"})
	cfg := testConfig(t, sourceDir)

	first, err := NewRepository(cfg, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := first.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	second, err := NewRepository(cfg, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	res, err := second.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() on existing checkout error = %v", err)
	}
	if res.Cloned {
		t.Error("existing checkout was cloned again")
	}
}

func TestRepository_SyncNonexistent(t *testing.T) {
	cfg := testConfig(t, "/nonexistent/repo")

	repo, err := NewRepository(cfg, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Sync(context.Background()); err == nil {
		t.Fatal("Sync() of a nonexistent repository succeeded")
	}
}
