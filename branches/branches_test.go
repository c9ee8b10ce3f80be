package branches

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/perbu/repo-metrics/github"
	"github.com/perbu/repo-metrics/logger"
	"github.com/perbu/repo-metrics/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	branches   []models.Branch
	commits    []models.Commit
	branchErr  error
	moreCommit bool
}

func (f *fakeClient) ListBranches(context.Context) (github.List[models.Branch], error) {
	return github.List[models.Branch]{Items: f.branches}, f.branchErr
}

func (f *fakeClient) ListCommits(context.Context) (github.List[models.Commit], error) {
	return github.List[models.Commit]{Items: f.commits, HasMore: f.moreCommit}, nil
}

func analyzer(f *fakeClient, c Classifier) *Analyzer {
	return New(func(credential, owner, repo string) (Client, error) {
		return f, nil
	}, c, logger.Discard())
}

func TestAnalyzeClassifiesCommits(t *testing.T) {
	when := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	f := &fakeClient{
		branches: []models.Branch{
			{Name: "main", LastCommitSHA: "a1"},
			{Name: "feature/x", LastCommitSHA: "b2"},
		},
		commits: []models.Commit{
			{SHA: "c1", Message: "Fix bug", AuthorName: "Alice", Date: when},
			{SHA: "c2", Message: "Merge pull request #3 into main", AuthorName: "Bob", Date: when},
		},
		moreCommit: true,
	}

	res, err := analyzer(f, nil).Analyze(context.Background(), "octo", "widgets", "tok")
	require.NoError(t, err)

	assert.Equal(t, 2, res.ActiveBranches)
	require.Len(t, res.BranchList, 2)
	assert.True(t, res.BranchList[0].IsDefault)
	assert.False(t, res.BranchList[1].IsDefault)
	assert.True(t, res.HasMore)

	require.Len(t, res.RecentActivity, 2)
	assert.Equal(t, models.CommitTypeCommit, res.RecentActivity[0].Type)
	assert.Equal(t, models.CommitTypeMerge, res.RecentActivity[1].Type)
	assert.True(t, res.RecentActivity[1].BranchMerge)
	assert.Equal(t, "Bob", res.RecentActivity[1].Author)
}

func TestMessageClassifier(t *testing.T) {
	tests := []struct {
		msg    string
		typ    models.CommitType
		branch bool
	}{
		{"Fix bug", models.CommitTypeCommit, false},
		{"Merge branch 'dev'", models.CommitTypeMerge, false},
		{"Merge branch 'dev' into main", models.CommitTypeMerge, true},
		{"merge lowercase is not a marker", models.CommitTypeCommit, false},
	}
	for _, tt := range tests {
		cls := MessageClassifier{}.Classify(models.Commit{Message: tt.msg})
		assert.Equal(t, tt.typ, cls.Type, tt.msg)
		assert.Equal(t, tt.branch, cls.BranchMerge, tt.msg)
	}
}

func TestParentClassifier(t *testing.T) {
	f := &fakeClient{commits: []models.Commit{
		{SHA: "1", Message: "Squashed: Merge feature", Parents: 1},
		{SHA: "2", Message: "combine work", Parents: 2},
	}}

	res, err := analyzer(f, ParentClassifier{}).Analyze(context.Background(), "octo", "widgets", "tok")
	require.NoError(t, err)
	assert.Equal(t, models.CommitTypeCommit, res.RecentActivity[0].Type)
	assert.Equal(t, models.CommitTypeMerge, res.RecentActivity[1].Type)
}

func TestParseClassifier(t *testing.T) {
	c, err := ParseClassifier("")
	require.NoError(t, err)
	assert.IsType(t, MessageClassifier{}, c)

	c, err = ParseClassifier("parents")
	require.NoError(t, err)
	assert.IsType(t, ParentClassifier{}, c)

	_, err = ParseClassifier("graph")
	assert.Error(t, err)
}

func TestAnalyzeFailure(t *testing.T) {
	remote := &github.RemoteFetchError{Endpoint: "branches", StatusCode: 404, Message: "Not Found"}
	f := &fakeClient{branchErr: remote}

	_, err := analyzer(f, nil).Analyze(context.Background(), "octo", "widgets", "tok")
	var rfe *github.RemoteFetchError
	assert.True(t, errors.As(err, &rfe))

	_, err = analyzer(f, nil).Analyze(context.Background(), "", "widgets", "tok")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = analyzer(f, nil).Analyze(context.Background(), "octo/evil", "..", "tok")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestAnalyzeEmptyRepository(t *testing.T) {
	res, err := analyzer(&fakeClient{}, nil).Analyze(context.Background(), "octo", "widgets", "tok")
	require.NoError(t, err)
	assert.Zero(t, res.ActiveBranches)
	assert.NotNil(t, res.BranchList)
	assert.NotNil(t, res.RecentActivity)
}
