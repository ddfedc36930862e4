package docsource

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// GitHubScheme prefixes sources read through the gh CLI.
const GitHubScheme = "github://"

// CommandRunner runs an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%s command failed: %s", name, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("%s command failed: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// GHClient reads repository files with the gh CLI, so private repositories
// use the caller's existing gh login.
type GHClient struct {
	run CommandRunner
}

// NewGHClient creates a client using run, or the real gh binary when run is nil.
func NewGHClient(run CommandRunner) *GHClient {
	if run == nil {
		run = execRunner
	}
	return &GHClient{run: run}
}

// IsGitHubURL reports whether src uses the github:// scheme.
func IsGitHubURL(src string) bool {
	return strings.HasPrefix(src, GitHubScheme)
}

// ParseGitHubURL splits github://owner/repo/path/to/file[@ref].
func ParseGitHubURL(githubURL string) (owner, repo, path, ref string, err error) {
	if !IsGitHubURL(githubURL) {
		return "", "", "", "", fmt.Errorf("invalid GitHub URL format: %s", githubURL)
	}
	rest := strings.TrimPrefix(githubURL, GitHubScheme)
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		rest, ref = rest[:i], rest[i+1:]
	}
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", "", fmt.Errorf("invalid GitHub URL format: expected github://owner/repo/path/to/file")
	}
	return parts[0], parts[1], parts[2], ref, nil
}

// FetchFile returns the raw content of the referenced file.
func (c *GHClient) FetchFile(ctx context.Context, githubURL string) ([]byte, error) {
	owner, repo, path, ref, err := ParseGitHubURL(githubURL)
	if err != nil {
		return nil, err
	}
	apiPath := fmt.Sprintf("repos/%s/%s/contents/%s", owner, repo, path)
	if ref != "" {
		apiPath += "?ref=" + ref
	}
	content, err := c.run(ctx, "gh", "api", "-H", "Accept: application/vnd.github.raw", apiPath)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, fmt.Errorf("empty response from GitHub for %s", githubURL)
	}
	return content, nil
}
