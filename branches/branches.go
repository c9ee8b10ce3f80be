// Package branches reports branch listings and recent merge activity.
package branches

import (
	"context"
	"fmt"
	"strings"

	"github.com/perbu/repo-metrics/github"
	"github.com/perbu/repo-metrics/logger"
	"github.com/perbu/repo-metrics/models"
	"golang.org/x/sync/errgroup"
)

// Classifier decides whether a commit is a merge.
type Classifier interface {
	Classify(c models.Commit) models.Classification
}

// MessageClassifier looks for merge markers in the commit message. It can
// both miss merges (squash, rebase) and flag commits that merely mention one.
type MessageClassifier struct{}

func (MessageClassifier) Classify(c models.Commit) models.Classification {
	if !strings.Contains(c.Message, "Merge") {
		return models.Classification{Type: models.CommitTypeCommit}
	}
	return models.Classification{
		Type:        models.CommitTypeMerge,
		BranchMerge: strings.Contains(c.Message, "into"),
	}
}

// ParentClassifier treats any commit with two or more parents as a merge.
type ParentClassifier struct{}

func (ParentClassifier) Classify(c models.Commit) models.Classification {
	if c.Parents < 2 {
		return models.Classification{Type: models.CommitTypeCommit}
	}
	return models.Classification{
		Type:        models.CommitTypeMerge,
		BranchMerge: strings.Contains(c.Message, "into"),
	}
}

// ParseClassifier resolves a classifier by name: "message" or "parents".
func ParseClassifier(name string) (Classifier, error) {
	switch name {
	case "", "message":
		return MessageClassifier{}, nil
	case "parents":
		return ParentClassifier{}, nil
	default:
		return nil, fmt.Errorf("unknown commit classifier %q", name)
	}
}

type Client interface {
	ListBranches(ctx context.Context) (github.List[models.Branch], error)
	ListCommits(ctx context.Context) (github.List[models.Commit], error)
}

type ClientFunc func(credential, owner, repo string) (Client, error)

type Analyzer struct {
	clients    ClientFunc
	classifier Classifier
	logger     *logger.Logger
}

func New(clients ClientFunc, classifier Classifier, log *logger.Logger) *Analyzer {
	if classifier == nil {
		classifier = MessageClassifier{}
	}
	return &Analyzer{
		clients:    clients,
		classifier: classifier,
		logger:     log.Component("branches"),
	}
}

func (a *Analyzer) Analyze(ctx context.Context, owner, repo, credential string) (*models.BranchActivity, error) {
	ref := models.RepoRef{Owner: owner, Repo: repo}
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	client, err := a.clients(credential, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	var (
		branchList github.List[models.Branch]
		commits    github.List[models.Commit]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if branchList, err = client.ListBranches(gctx); err != nil {
			return fmt.Errorf("failed to list branches: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if commits, err = client.ListCommits(gctx); err != nil {
			return fmt.Errorf("failed to list commits: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	activity := &models.BranchActivity{
		ActiveBranches: len(branchList.Items),
		BranchList:     make([]models.BranchInfo, 0, len(branchList.Items)),
		RecentActivity: make([]models.MergeEvent, 0, len(commits.Items)),
		HasMore:        branchList.HasMore || commits.HasMore,
	}

	for i, b := range branchList.Items {
		activity.BranchList = append(activity.BranchList, models.BranchInfo{
			Name: b.Name,
			// the remote lists no default flag; first position stands in for it
			IsDefault:     i == 0,
			LastCommitSHA: b.LastCommitSHA,
			LastCommitURL: b.LastCommitURL,
		})
	}

	merges := 0
	for _, c := range commits.Items {
		cls := a.classifier.Classify(c)
		if cls.Type == models.CommitTypeMerge {
			merges++
		}
		activity.RecentActivity = append(activity.RecentActivity, models.MergeEvent{
			SHA:         c.SHA,
			Message:     c.Message,
			Date:        c.Date,
			Author:      c.AuthorName,
			Type:        cls.Type,
			BranchMerge: cls.BranchMerge,
		})
	}

	a.logger.Debug("analyzed branch activity",
		"owner", owner,
		"repo", repo,
		"branches", activity.ActiveBranches,
		"commits", len(commits.Items),
		"merges", merges)

	return activity, nil
}
