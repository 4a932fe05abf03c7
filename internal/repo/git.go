package repo

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// gitCommand builds a git invocation that never prompts for credentials.
func gitCommand(ctx context.Context, dir string, args ...string) *exec.Cmd {
	if dir != "" {
		args = append([]string{"-C", dir}, args...)
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	return cmd
}

// gitOutput runs git and returns stdout. Stderr is folded into the error.
func gitOutput(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := gitCommand(ctx, dir, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("git %s: %w", args[0], err)
		}
		return nil, fmt.Errorf("git %s: %s: %w", args[0], msg, err)
	}
	return out, nil
}

func gitClone(ctx context.Context, url, dest string) error {
	cmd := gitCommand(ctx, "", "clone", "--mirror", "--quiet", url, dest)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git clone failed: %s: %w", strings.TrimSpace(string(output)), err)
	}
	return nil
}

func gitFetch(ctx context.Context, dir string) error {
	cmd := gitCommand(ctx, dir, "fetch", "--prune", "--quiet")
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git fetch failed: %s: %w", strings.TrimSpace(string(output)), err)
	}
	return nil
}

func gitRevParse(ctx context.Context, dir, rev string) (string, error) {
	out, err := gitOutput(ctx, dir, "rev-parse", "--verify", "--quiet", rev)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// gitLsTree lists every blob path reachable from commit, in git's byte order.
func gitLsTree(ctx context.Context, dir, commit string) ([]string, error) {
	out, err := gitOutput(ctx, dir, "ls-tree", "-r", "-z", "--name-only", commit)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, p := range bytes.Split(out, []byte{0}) {
		if len(p) > 0 {
			paths = append(paths, string(p))
		}
	}
	return paths, nil
}

func gitCatBlob(ctx context.Context, dir, oid string) ([]byte, error) {
	return gitOutput(ctx, dir, "cat-file", "blob", oid)
}
