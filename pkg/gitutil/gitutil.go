// Package gitutil reads git revision metadata from a local checkout.
package gitutil

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/exec"
)

// Meta describes the revision state of a git checkout.
type Meta struct {
	// Branch is the current branch name ("HEAD" when detached).
	Branch string `json:"branch"`
	// Commit is the full commit hash.
	Commit string `json:"commit"`
	// Version is the nearest tag, or the abbreviated commit when no tag exists.
	Version string `json:"version"`
}

// Read reads revision metadata from the git repository at dir.
func Read(lg *zap.Logger, ex exec.Interface, dir string) (m Meta, err error) {
	if ex == nil {
		ex = exec.New()
	}
	m.Branch, err = run(lg, ex, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return Meta{}, err
	}
	m.Commit, err = run(lg, ex, dir, "rev-parse", "HEAD")
	if err != nil {
		return Meta{}, err
	}
	m.Version, err = run(lg, ex, dir, "describe", "--tags", "--always")
	if err != nil {
		return Meta{}, err
	}
	return m, nil
}

func run(lg *zap.Logger, ex exec.Interface, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	cmd := ex.CommandContext(ctx, "git", args...)
	cmd.SetDir(dir)
	output, err := cmd.CombinedOutput()
	cancel()
	out := strings.TrimSpace(string(output))
	if err != nil {
		lg.Warn("'git' failed",
			zap.Strings("args", args),
			zap.String("dir", dir),
			zap.String("output", out),
			zap.Error(err),
		)
		return "", fmt.Errorf("'git %s' failed (output %q, error %v)", strings.Join(args, " "), out, err)
	}
	lg.Debug("ran 'git'", zap.Strings("args", args), zap.String("output", out))
	return out, nil
}
