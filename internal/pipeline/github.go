package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"

	"github.com/laurenamos/sustainable-model-chooser/internal/diff"
)

// branchName returns the publishing branch for a sync started at the
// pipeline clock's current time.
func (p *Pipeline) branchName() string {
	return "openrouter-sync/" + p.now().UTC().Format("20060102-150405")
}

// createPR commits the catalog on a fresh branch, pushes it and opens a
// GitHub PR describing the changeset.
func (p *Pipeline) createPR(ctx context.Context, cs *diff.ChangeSet, draft bool) (int, error) {
	branch := p.branchName()
	commitMsg := fmt.Sprintf("chore(catalog): sync %d OpenRouter model(s)", cs.TotalChanged())

	// Git operations
	gitOps, err := OpenRepo(p.cfg.CatalogPath, p.cfg.GitHub.Token)
	if err != nil {
		return 0, err
	}

	if err := gitOps.CreateBranch(branch); err != nil {
		return 0, fmt.Errorf("creating branch: %w", err)
	}

	if err := gitOps.Add(p.cfg.CatalogPath); err != nil {
		return 0, fmt.Errorf("staging changes: %w", err)
	}

	if _, err := gitOps.Commit(commitMsg, p.cfg.Git.AuthorName, p.cfg.Git.AuthorEmail); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}

	if err := gitOps.Push(branch); err != nil {
		return 0, fmt.Errorf("pushing: %w", err)
	}

	// Create PR
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: p.cfg.GitHub.Token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))

	title := commitMsg
	body := diff.RenderPRBody(cs)

	pr, _, err := client.PullRequests.Create(ctx, p.cfg.GitHub.Owner, p.cfg.GitHub.Repo, &github.NewPullRequest{
		Title: &title,
		Body:  &body,
		Head:  &branch,
		Base:  &p.cfg.GitHub.BaseBranch,
		Draft: &draft,
	})
	if err != nil {
		return 0, fmt.Errorf("creating PR: %w", err)
	}

	slog.Info("PR created",
		"number", pr.GetNumber(),
		"draft", draft,
		"url", pr.GetHTMLURL())

	return pr.GetNumber(), nil
}
