package build

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"

	"github.com/srcdeps/srcdeps-go/pkg/srcversion"
)

// GitScheme prefixes the SCM URLs that GitCheckout understands.
const GitScheme = "git:"

const fetchedRef = "refs/srcdeps/fetched"

// GitCheckout checks out sources with the git command line client. The build
// directory is reused between attempts, so only the missing objects are fetched.
type GitCheckout struct {
	// Git is the git executable. Defaults to "git".
	Git string
}

// Checkout tries urls in order and stops at the first one that succeeds.
func (g GitCheckout) Checkout(ctx context.Context, dir string, urls []string, v srcversion.SrcVersion) error {
	if len(urls) == 0 {
		return xerrors.New("no SCM URLs configured")
	}

	var errs []string
	for _, u := range urls {
		repoURL, ok := strings.CutPrefix(u, GitScheme)
		if !ok {
			errs = append(errs, u+": unsupported SCM")
			continue
		}
		if err := g.checkout(ctx, dir, repoURL, v); err != nil {
			if ctx.Err() != nil {
				return err
			}
			slog.Warn("Checkout failed, trying the next URL", slog.String("url", repoURL), slog.Any("error", err))
			errs = append(errs, u+": "+err.Error())
			continue
		}
		return nil
	}
	return xerrors.Errorf("unable to check out %s: %s", v, strings.Join(errs, "; "))
}

func (g GitCheckout) checkout(ctx context.Context, dir, repoURL string, v srcversion.SrcVersion) error {
	if _, err := os.Stat(filepath.Join(dir, ".git")); os.IsNotExist(err) {
		if err = g.git(ctx, dir, "init", "--quiet"); err != nil {
			return err
		}
	}

	target := fetchedRef
	switch v.Kind() {
	case srcversion.Branch:
		if err := g.git(ctx, dir, "fetch", "--quiet", "--force", repoURL, "+refs/heads/"+v.Value()+":"+fetchedRef); err != nil {
			return err
		}
	case srcversion.Tag:
		if err := g.git(ctx, dir, "fetch", "--quiet", "--force", repoURL, "+refs/tags/"+v.Value()+":"+fetchedRef); err != nil {
			return err
		}
	default:
		if err := g.git(ctx, dir, "fetch", "--quiet", "--force", "--tags", repoURL, "+refs/heads/*:refs/srcdeps/heads/*"); err != nil {
			return err
		}
		target = v.Value()
	}

	if err := g.git(ctx, dir, "checkout", "--quiet", "--force", "--detach", target); err != nil {
		return err
	}
	return g.git(ctx, dir, "clean", "-ffdx", "--quiet")
}

func (g GitCheckout) git(ctx context.Context, dir string, args ...string) error {
	exe := g.Git
	if exe == "" {
		exe = "git"
	}
	cmd := exec.CommandContext(ctx, exe, append([]string{"-C", dir}, args...)...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	if output, err := cmd.CombinedOutput(); err != nil {
		return xerrors.Errorf("git %s failed: %s: %w", args[0], strings.TrimSpace(string(output)), err)
	}
	return nil
}
