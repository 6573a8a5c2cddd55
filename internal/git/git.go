package git

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNoChanges is returned when a diff has nothing to review.
var ErrNoChanges = errors.New("no changes to review")

// Client defines the git operations used to build a review from a working tree.
type Client interface {
	RepoRoot(path string) (string, error)
	CurrentBranch(path string) (string, error)
	LastCommitMessage(path string) (string, error)
	Diff(path, base string) (string, error)
	ChangedFiles(path, base string) ([]string, error)
}

// RealClient implements Client using real git commands.
type RealClient struct{}

// NewClient returns a new RealClient.
func NewClient() *RealClient {
	return &RealClient{}
}

func gitCmd(path string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", path}, args...)
	out, err := exec.Command("git", fullArgs...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *RealClient) RepoRoot(path string) (string, error) {
	return gitCmd(path, "rev-parse", "--show-toplevel")
}

func (c *RealClient) CurrentBranch(path string) (string, error) {
	return gitCmd(path, "rev-parse", "--abbrev-ref", "HEAD")
}

func (c *RealClient) LastCommitMessage(path string) (string, error) {
	return gitCmd(path, "log", "-1", "--format=%s")
}

// Diff returns the working tree changes against base (HEAD when empty),
// staged and unstaged alike.
func (c *RealClient) Diff(path, base string) (string, error) {
	if base == "" {
		base = "HEAD"
	}
	return gitCmd(path, "diff", "--no-color", base, "--")
}

// ChangedFiles lists the paths Diff would cover.
func (c *RealClient) ChangedFiles(path, base string) ([]string, error) {
	if base == "" {
		base = "HEAD"
	}
	out, err := gitCmd(path, "diff", "--name-only", base, "--")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// DiffReview builds the review description and code for the changes in the
// repository at path relative to base.
func DiffReview(c Client, path, base string) (userInput, code string, err error) {
	root, err := c.RepoRoot(path)
	if err != nil {
		return "", "", err
	}
	diff, err := c.Diff(root, base)
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(diff) == "" {
		return "", "", ErrNoChanges
	}
	files, err := c.ChangedFiles(root, base)
	if err != nil {
		return "", "", err
	}

	if base == "" {
		base = "HEAD"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Please review this diff against %s", base)
	if branch, err := c.CurrentBranch(root); err == nil && branch != "" {
		fmt.Fprintf(&b, " on branch %s", branch)
	}
	if msg, err := c.LastCommitMessage(root); err == nil && msg != "" {
		fmt.Fprintf(&b, " (last commit: %s)", msg)
	}
	fmt.Fprintf(&b, ".\nChanged files: %s", strings.Join(files, ", "))
	return b.String(), diff + "\n", nil
}
