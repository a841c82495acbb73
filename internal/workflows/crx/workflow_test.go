package crx

import (
	"errors"
	"testing"

	"github.com/crxbot/crx_agent/internal/pipeline"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
)

func newEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(AnnounceNewPreprintsWorkflow)
	env.RegisterActivity(LoadProcessedIDsActivity)
	env.RegisterActivity(ListPreprintIDsActivity)
	env.RegisterActivity(PrepareAnnouncementActivity)
	env.RegisterActivity(PublishAnnouncementActivity)
	env.RegisterActivity(AppendProcessedIDActivity)
	return env
}

func baseParams() WorkflowParams {
	return WorkflowParams{
		IDLogPath:     "id_log.txt",
		ChemrxivToken: "tok",
		AuthorPolicy:  "last",
		PauseSeconds:  1,
		PostForReal:   true,
	}
}

func TestWorkflowAnnouncesOnlyNewPreprints(t *testing.T) {
	env := newEnv(t)

	env.OnActivity(LoadProcessedIDsActivity, mock.Anything, "id_log.txt").Return([]string{"1", "2"}, nil)
	env.OnActivity(ListPreprintIDsActivity, mock.Anything, "tok").Return([]string{"1", "2", "3"}, nil)
	env.OnActivity(PrepareAnnouncementActivity, mock.Anything, "tok", "last", "3").Return(&Announcement{
		ID:      "3",
		Message: "Foo by Bar & co-workers\n\nhttps://doi.org/10.1/abc",
		Thumb:   "https://img.example.org/3.jpg",
		URL:     "https://doi.org/10.1/abc",
	}, nil)
	env.OnActivity(PublishAnnouncementActivity, mock.Anything, mock.MatchedBy(func(p PublishParams) bool {
		return p.ImageURL == "https://img.example.org/3.jpg" && p.ForReal
	})).Return(nil)
	env.OnActivity(AppendProcessedIDActivity, mock.Anything, "id_log.txt", "3").Return(nil)

	env.ExecuteWorkflow(AnnounceNewPreprintsWorkflow, baseParams())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var counters pipeline.Counters
	require.NoError(t, env.GetWorkflowResult(&counters))
	require.Equal(t, pipeline.Counters{Discovered: 1, Posted: 1, Failed: 0}, counters)
	env.AssertExpectations(t)
}

func TestWorkflowTooLongCountsFailedAndCommits(t *testing.T) {
	env := newEnv(t)

	env.OnActivity(LoadProcessedIDsActivity, mock.Anything, "id_log.txt").Return(nil, nil)
	env.OnActivity(ListPreprintIDsActivity, mock.Anything, "tok").Return([]string{"9"}, nil)
	env.OnActivity(PrepareAnnouncementActivity, mock.Anything, "tok", "last", "9").Return(&Announcement{
		ID:         "9",
		URL:        "https://doi.org/10.1/long",
		Thumb:      "https://img.example.org/9.jpg",
		Unpostable: "announcement too long",
	}, nil)
	// No publish call; the id is still committed.
	env.OnActivity(AppendProcessedIDActivity, mock.Anything, "id_log.txt", "9").Return(nil)

	env.ExecuteWorkflow(AnnounceNewPreprintsWorkflow, baseParams())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var counters pipeline.Counters
	require.NoError(t, env.GetWorkflowResult(&counters))
	require.Equal(t, pipeline.Counters{Discovered: 1, Posted: 0, Failed: 1}, counters)
	env.AssertNotCalled(t, "PublishAnnouncementActivity", mock.Anything, mock.Anything)
	env.AssertExpectations(t)
}

func TestWorkflowPublishFailureStillCommits(t *testing.T) {
	env := newEnv(t)

	env.OnActivity(LoadProcessedIDsActivity, mock.Anything, "id_log.txt").Return(nil, nil)
	env.OnActivity(ListPreprintIDsActivity, mock.Anything, "tok").Return([]string{"5"}, nil)
	env.OnActivity(PrepareAnnouncementActivity, mock.Anything, "tok", "last", "5").Return(&Announcement{
		ID:      "5",
		Message: "T by A & co-workers\n\nhttps://doi.org/10.1/x",
		Thumb:   "https://img.example.org/5.jpg",
	}, nil)
	env.OnActivity(PublishAnnouncementActivity, mock.Anything, mock.Anything).Return(errors.New("post boom"))
	env.OnActivity(AppendProcessedIDActivity, mock.Anything, "id_log.txt", "5").Return(nil)

	env.ExecuteWorkflow(AnnounceNewPreprintsWorkflow, baseParams())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var counters pipeline.Counters
	require.NoError(t, env.GetWorkflowResult(&counters))
	require.Equal(t, pipeline.Counters{Discovered: 1, Posted: 0, Failed: 1}, counters)
	env.AssertExpectations(t)
}
