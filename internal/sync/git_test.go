package sync

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// setupRepo creates a bare remote and a clone with one commit on main.
func setupRepo(t *testing.T) (remoteDir, repoDir string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}

	remoteDir = t.TempDir()
	run(t, remoteDir, "git", "init", "--bare")

	workDir := t.TempDir()
	run(t, workDir, "git", "clone", remoteDir, "repo")
	repoDir = filepath.Join(workDir, "repo")

	// Git needs user identity for commits.
	run(t, repoDir, "git", "config", "user.email", "test@test.com")
	run(t, repoDir, "git", "config", "user.name", "Test")
	run(t, repoDir, "git", "checkout", "-b", "main")

	if err := os.WriteFile(filepath.Join(repoDir, ".gitkeep"), nil, 0o644); err != nil {
		t.Fatalf("write .gitkeep: %v", err)
	}
	run(t, repoDir, "git", "add", ".")
	run(t, repoDir, "git", "commit", "-m", "init")
	run(t, repoDir, "git", "push", "origin", "main")
	return remoteDir, repoDir
}

func TestGitDestination(t *testing.T) {
	remoteDir, repoDir := setupRepo(t)
	dest := NewGitDestination(GitConfig{Repo: repoDir, Branch: "main", Push: true})

	data1 := []byte(`{"version":"1","type":"header"}` + "\n")
	if err := dest.Write(context.Background(), data1); err != nil {
		t.Fatalf("first write: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(repoDir, "clawnet.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(got) != string(data1) {
		t.Fatalf("file content mismatch: got %q", string(got))
	}

	// Same data again is a no-op (no commit).
	if err := dest.Write(context.Background(), data1); err != nil {
		t.Fatalf("second write (no-op): %v", err)
	}
	if n := output(t, repoDir, "git", "rev-list", "--count", "HEAD"); n != "2" {
		t.Fatalf("commit count = %s, want 2", n)
	}

	data2 := []byte(`{"version":"1","type":"header","entry_count":1}` + "\n")
	if err := dest.Write(context.Background(), data2); err != nil {
		t.Fatalf("third write: %v", err)
	}
	if n := output(t, remoteDir, "git", "rev-list", "--count", "main"); n != "3" {
		t.Fatalf("remote commit count = %s, want 3", n)
	}
	if msg := output(t, remoteDir, "git", "log", "-1", "--format=%s", "main"); msg != DefaultCommitMessage {
		t.Fatalf("commit message = %q", msg)
	}
}

func TestGitDestination_SubDirectoryLocalOnly(t *testing.T) {
	remoteDir, repoDir := setupRepo(t)
	dest := NewGitDestination(GitConfig{
		Repo:    repoDir,
		File:    "data/alice.jsonl",
		Branch:  "main",
		Message: "backup alice",
	})

	data := []byte(`{"type":"header"}` + "\n")
	if err := dest.Write(context.Background(), data); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(repoDir, "data", "alice.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("content mismatch: got %q", string(got))
	}
	if msg := output(t, repoDir, "git", "log", "-1", "--format=%s"); msg != "backup alice" {
		t.Fatalf("commit message = %q", msg)
	}
	// Without Push the remote keeps only the initial commit.
	if n := output(t, remoteDir, "git", "rev-list", "--count", "main"); n != "1" {
		t.Fatalf("remote commit count = %s, want 1", n)
	}
}

func TestGitDestination_ErrorIncludesOutput(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}
	dest := NewGitDestination(GitConfig{Repo: t.TempDir(), Branch: "main"})
	err := dest.Write(context.Background(), []byte("{}\n"))
	if err == nil {
		t.Fatal("expected error outside a git repository")
	}
	if !strings.Contains(err.Error(), "git checkout") {
		t.Errorf("error = %v", err)
	}
}

func run(t *testing.T, dir string, name string, args ...string) {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("%s %v failed: %v", name, args, err)
	}
}

func output(t *testing.T, dir string, name string, args ...string) string {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("%s %v failed: %v", name, args, err)
	}
	return strings.TrimSpace(string(out))
}
