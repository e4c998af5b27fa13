package runner

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// ScriptScaffolder runs a post-creation script with the post name as its
// last argument.
type ScriptScaffolder struct {
	Runner *Runner
	// Command is the program followed by any fixed leading arguments.
	Command []string
	Dir     string
}

func (s *ScriptScaffolder) Scaffold(ctx context.Context, name string) error {
	if len(s.Command) == 0 {
		return errors.New("scaffold command is not configured")
	}
	args := append(append([]string(nil), s.Command[1:]...), name)
	_, err := orDefault(s.Runner).Run(ctx, s.Dir, s.Command[0], args...)
	if err != nil {
		return err
	}
	zap.L().Info("Post scaffolded", zap.String("name", name))
	return nil
}

// nothingToCommitMarkers are the phrases git prints when a commit has no
// staged changes.
var nothingToCommitMarkers = []string{
	"nothing to commit",
	"nothing added to commit",
	"no changes added to commit",
}

// GitDeployer stages everything in RepoDir, commits with the deploy message
// and pushes.
type GitDeployer struct {
	Runner  *Runner
	Git     string
	RepoDir string
	Remote  string
	Branch  string
}

// Deploy runs add, commit and push. A commit that reports nothing to commit
// counts as success and the push still runs.
func (d *GitDeployer) Deploy(ctx context.Context, message string) error {
	r := orDefault(d.Runner)
	git := d.Git
	if git == "" {
		git = "git"
	}

	if _, err := r.Run(ctx, d.RepoDir, git, "add", "-A"); err != nil {
		return err
	}

	if out, err := r.Run(ctx, d.RepoDir, git, "commit", "-m", message); err != nil {
		if !isNothingToCommit(out) {
			return err
		}
		zap.L().Info("Deploy commit was a no-op", zap.String("repo", d.RepoDir))
	}

	pushArgs := []string{"push"}
	if d.Remote != "" {
		pushArgs = append(pushArgs, d.Remote)
		if d.Branch != "" {
			pushArgs = append(pushArgs, d.Branch)
		}
	}
	if _, err := r.Run(ctx, d.RepoDir, git, pushArgs...); err != nil {
		return err
	}
	zap.L().Info("Deploy pushed", zap.String("repo", d.RepoDir), zap.String("message", message))
	return nil
}

func isNothingToCommit(output string) bool {
	lower := strings.ToLower(output)
	for _, marker := range nothingToCommitMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func orDefault(r *Runner) *Runner {
	if r == nil {
		return &Runner{}
	}
	return r
}
