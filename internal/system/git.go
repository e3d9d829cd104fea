package system

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// GitInfo summarizes the repository the shell is in.
type GitInfo struct {
	InRepo   bool
	Branch   string
	ShortSHA string
	Dirty    bool
}

// Label renders the info for a status bar, e.g. "main*" or "a1b2c3d".
func (g GitInfo) Label() string {
	if !g.InRepo {
		return ""
	}
	s := g.Branch
	if s == "" || s == "HEAD" {
		s = g.ShortSHA
	}
	if g.Dirty {
		s += "*"
	}
	return s
}

const gitTimeout = 800 * time.Millisecond

func git(ctx context.Context, dir string, args ...string) (string, bool) {
	cctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()
	out, err := exec.CommandContext(cctx, "git", append([]string{"-C", dir}, args...)...).Output()
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(out)), true
}

// GetGitInfo inspects the Git repository at dir. A missing git binary or a
// directory outside any repository yields a zero GitInfo and no error.
func GetGitInfo(ctx context.Context, dir string) (GitInfo, error) {
	gi := GitInfo{}
	if dir == "" {
		return gi, nil
	}
	if _, err := exec.LookPath("git"); err != nil {
		return gi, nil
	}
	if out, ok := git(ctx, dir, "rev-parse", "--is-inside-work-tree"); !ok || out != "true" {
		return gi, nil
	}
	gi.InRepo = true

	if b, ok := git(ctx, dir, "symbolic-ref", "--quiet", "--short", "HEAD"); ok {
		gi.Branch = b
	} else if b, ok := git(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD"); ok {
		gi.Branch = b
	}
	gi.ShortSHA, _ = git(ctx, dir, "rev-parse", "--short", "HEAD")
	if st, ok := git(ctx, dir, "status", "--porcelain"); ok {
		gi.Dirty = st != ""
	}
	return gi, nil
}
