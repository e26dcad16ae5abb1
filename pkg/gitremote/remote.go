// Package gitremote works out which GitHub repository pageshots is running
// in, so the owner and the catalog's own name can default sensibly.
package gitremote

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Repository identifies a GitHub repository.
type Repository struct {
	Owner string
	Name  string
}

// ErrNotDetected is returned when neither the environment nor the working
// tree names a repository.
var ErrNotDetected = errors.New("repository not detected")

// Detect returns the repository named by GITHUB_REPOSITORY ("owner/name",
// set by GitHub Actions) or, failing that, by the origin remote in
// dir/.git/config.
func Detect(dir string) (Repository, error) {
	if v := strings.TrimSpace(os.Getenv("GITHUB_REPOSITORY")); v != "" {
		return ParseSlug(v)
	}
	return DetectFromGitConfig(dir)
}

// ParseSlug parses an "owner/name" pair.
func ParseSlug(slug string) (Repository, error) {
	owner, name, ok := strings.Cut(strings.Trim(slug, "/"), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repository{}, fmt.Errorf("invalid repository slug: %s", slug)
	}
	return Repository{Owner: owner, Name: name}, nil
}

// DetectFromGitConfig reads the .git/config in the given directory and
// returns the repository of the origin remote.
func DetectFromGitConfig(dir string) (Repository, error) {
	configPath := filepath.Join(dir, ".git", "config")
	f, err := os.Open(configPath)
	if err != nil {
		return Repository{}, fmt.Errorf("could not open .git/config: %w", ErrNotDetected)
	}
	defer f.Close()

	var inOrigin bool
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == `[remote "origin"]` {
			inOrigin = true
			continue
		}
		if inOrigin && strings.HasPrefix(line, "[") {
			break
		}
		if inOrigin && strings.HasPrefix(line, "url") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				return ParseRemoteURL(strings.TrimSpace(parts[1]))
			}
		}
	}
	return Repository{}, fmt.Errorf("no origin remote in %s: %w", configPath, ErrNotDetected)
}

// ParseRemoteURL parses a git remote URL.
// Supports HTTPS (https://github.com/owner/repo.git) and SSH (git@github.com:owner/repo.git).
func ParseRemoteURL(rawURL string) (Repository, error) {
	normalized := strings.TrimSuffix(strings.TrimSuffix(rawURL, "/"), ".git")

	// SSH format: git@github.com:owner/repo
	if strings.HasPrefix(normalized, "git@") {
		_, path, ok := strings.Cut(strings.TrimPrefix(normalized, "git@"), ":")
		if !ok {
			return Repository{}, fmt.Errorf("invalid SSH remote URL: %s", rawURL)
		}
		return ParseSlug(path)
	}

	// HTTPS format: https://github.com/owner/repo
	if strings.HasPrefix(normalized, "https://") || strings.HasPrefix(normalized, "http://") {
		withoutScheme := strings.TrimPrefix(normalized, "https://")
		withoutScheme = strings.TrimPrefix(withoutScheme, "http://")
		parts := strings.SplitN(withoutScheme, "/", 2)
		if len(parts) != 2 {
			return Repository{}, fmt.Errorf("invalid HTTPS remote URL: %s", rawURL)
		}
		return ParseSlug(parts[1])
	}

	return Repository{}, fmt.Errorf("unsupported remote URL format: %s", rawURL)
}
