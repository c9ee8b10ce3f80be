// Package contributors serves the repository contributor list.
package contributors

import (
	"context"
	"fmt"

	"github.com/perbu/repo-metrics/github"
	"github.com/perbu/repo-metrics/logger"
	"github.com/perbu/repo-metrics/models"
)

// Project maps the remote contributor shape to the contributor-list DTO,
// keeping the remote order.
func Project(remote []models.Contributor) []models.RepoContributor {
	out := make([]models.RepoContributor, 0, len(remote))
	for _, c := range remote {
		out = append(out, models.RepoContributor{
			ID:            c.ID,
			Login:         c.Login,
			AvatarURL:     c.AvatarURL,
			Contributions: c.Contributions,
		})
	}
	return out
}

type Client interface {
	ListContributors(ctx context.Context) (github.List[models.Contributor], error)
}

type ClientFunc func(credential, owner, repo string) (Client, error)

type Service struct {
	clients ClientFunc
	logger  *logger.Logger
}

func NewService(clients ClientFunc, log *logger.Logger) *Service {
	return &Service{
		clients: clients,
		logger:  log.Component("contributors"),
	}
}

func (s *Service) List(ctx context.Context, owner, repo, credential string) ([]models.RepoContributor, error) {
	ref := models.RepoRef{Owner: owner, Repo: repo}
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	client, err := s.clients(credential, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	list, err := client.ListContributors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list contributors: %w", err)
	}
	if list.HasMore {
		s.logger.Info("contributor list truncated at page cap", "owner", owner, "repo", repo, "listed", len(list.Items))
	}

	return Project(list.Items), nil
}
