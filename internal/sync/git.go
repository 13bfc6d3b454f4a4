package sync

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultCommitMessage is used when GitConfig.Message is empty.
const DefaultCommitMessage = "backup: update clawnet log export"

// GitConfig describes a git backup target.
type GitConfig struct {
	Repo    string // path to an existing local clone
	File    string // file path within the repo
	Branch  string
	Message string
	// Push pushes each commit to origin. Without it commits stay local.
	Push bool
}

// GitDestination commits JSONL log backups to a file in a git repo.
type GitDestination struct {
	cfg GitConfig
}

// NewGitDestination creates a git destination.
func NewGitDestination(cfg GitConfig) *GitDestination {
	if cfg.Message == "" {
		cfg.Message = DefaultCommitMessage
	}
	if cfg.File == "" {
		cfg.File = "clawnet.jsonl"
	}
	return &GitDestination{cfg: cfg}
}

// Write replaces the backup file and commits it if its content changed.
func (d *GitDestination) Write(ctx context.Context, data []byte) error {
	if d.cfg.Branch != "" {
		if err := d.git(ctx, "checkout", d.cfg.Branch); err != nil {
			return fmt.Errorf("git checkout: %w", err)
		}
	}
	if d.cfg.Push {
		// The remote might not have the branch yet.
		_ = d.git(ctx, "pull", "--ff-only", "origin", d.cfg.Branch)
	}

	path := filepath.Join(d.cfg.Repo, d.cfg.File)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	if err := d.git(ctx, "add", d.cfg.File); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	// Exit status 0 means nothing is staged.
	if err := d.git(ctx, "diff", "--cached", "--quiet"); err == nil {
		return nil
	}
	if err := d.git(ctx, "commit", "-m", d.cfg.Message); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	if !d.cfg.Push {
		return nil
	}
	if err := d.git(ctx, "push", "origin", d.cfg.Branch); err != nil {
		return fmt.Errorf("git push: %w", err)
	}
	return nil
}

func (d *GitDestination) git(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.cfg.Repo
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(out.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
