// Package workspace locates the directories inkr works in: the
// configuration root, which may be fetched from a remote source, and the
// application root detection is relative to.
package workspace

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/hashicorp/go-getter"
	"go.uber.org/zap"

	"github.com/teranos/inkr/errors"
)

// Root is a resolved configuration root
type Root struct {
	// LocalPath is the directory holding context.yaml
	LocalPath string
	// Source is the configured value
	Source string
	// Fetched is true when Source was remote and copied into the cache
	Fetched bool
}

// ResolveRoot turns a configured root into a local directory.
//
// Local paths (including ~/ and file:// forms) are made absolute. Anything
// go-getter detects as remote (git URLs, github.com/user/repo shorthand,
// archives, s3 and gcs buckets) is fetched into cacheDir, replacing any
// earlier copy of the same source. A "//subdir" suffix selects a directory
// inside the fetched tree.
func ResolveRoot(ctx context.Context, source, cacheDir string, logger *zap.SugaredLogger) (*Root, error) {
	if strings.TrimSpace(source) == "" {
		return nil, errors.NewInvalidRequestError("configuration root is empty")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}

	local, err := expandHome(source)
	if err != nil {
		return nil, err
	}
	detected, err := getter.Detect(local, pwd, getter.Detectors)
	if err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "cannot detect source type of %s", source),
			"use a local directory, a git URL or an archive URL")
	}

	u, err := url.Parse(detected)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse detected URL %s", detected)
	}
	if u.Scheme == "" || u.Scheme == "file" {
		path := local
		if u.Scheme == "file" {
			path = u.Path
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(pwd, path)
		}
		return &Root{LocalPath: filepath.Clean(path), Source: source}, nil
	}

	if cacheDir == "" {
		if cacheDir, err = DefaultCacheDir(); err != nil {
			return nil, err
		}
	}
	dst := filepath.Join(cacheDir, cacheName(source))
	if err := fetch(ctx, detected, dst, pwd, logger); err != nil {
		return nil, err
	}
	return &Root{LocalPath: dst, Source: source, Fetched: true}, nil
}

// DefaultCacheDir is where remote configuration roots are fetched to
func DefaultCacheDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", errors.Wrap(err, "no user cache directory")
	}
	return filepath.Join(dir, "inkr", "roots"), nil
}

func fetch(ctx context.Context, src, dst, pwd string, logger *zap.SugaredLogger) error {
	logger.Infow("Fetching configuration root", "source", src, "destination", dst)

	if err := os.RemoveAll(dst); err != nil {
		return errors.Wrapf(err, "failed to clear %s", dst)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.Wrapf(err, "failed to create %s", filepath.Dir(dst))
	}

	client := &getter.Client{
		Ctx:     ctx,
		Src:     src,
		Dst:     dst,
		Pwd:     pwd,
		Mode:    getter.ClientModeDir,
		Getters: getter.Getters,
	}
	if err := client.Get(); err != nil {
		os.RemoveAll(dst)
		return errors.WithHint(
			errors.Wrapf(err, "failed to fetch configuration root %s", src),
			"check the URL and your network or credentials")
	}

	logger.Debugw("Fetch completed", "destination", dst)
	return nil
}

// AppRoot returns the root of the git worktree enclosing dir, or dir itself
// (made absolute) when it is not inside a repository
func AppRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrapf(err, "cannot resolve %s", dir)
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return abs, nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "cannot open repository at %s", abs)
	}
	wt, err := repo.Worktree()
	if errors.Is(err, git.ErrIsBareRepository) {
		return abs, nil
	}
	if err != nil {
		return "", errors.Wrap(err, "cannot open worktree")
	}
	return wt.Filesystem.Root(), nil
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to expand home directory")
	}
	return filepath.Join(home, path[2:]), nil
}

// cacheName derives a stable directory name for a remote source
func cacheName(source string) string {
	source = strings.TrimSuffix(strings.TrimSuffix(source, "/"), ".git")
	if i := strings.Index(source, "?"); i >= 0 {
		source = source[:i]
	}
	replacer := strings.NewReplacer(":", "-", "@", "-", "/", "_", " ", "-", "\\", "_")
	name := replacer.Replace(source)
	name = strings.Trim(name, "_-.")
	if len(name) > 80 {
		name = name[len(name)-80:]
	}
	if name == "" {
		name = "root"
	}
	return name
}
