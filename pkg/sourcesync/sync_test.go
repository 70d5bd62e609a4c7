package sourcesync

import (
	"context"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/odvcencio/espboot/pkg/config"
	espErrors "github.com/odvcencio/espboot/pkg/errors"
	"github.com/odvcencio/espboot/pkg/process"
	"github.com/odvcencio/espboot/pkg/process/processtest"
	"github.com/odvcencio/espboot/pkg/workspace"
)

func repoRoot(t *testing.T) workspace.Root {
	t.Helper()
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	root, err := workspace.NewRoot(dir)
	require.NoError(t, err)
	return root
}

func plainRoot(t *testing.T) workspace.Root {
	t.Helper()
	root, err := workspace.NewRoot(t.TempDir())
	require.NoError(t, err)
	return root
}

func newCLI(t *testing.T, root workspace.Root, runner process.Runner, strict bool) Synchronizer {
	t.Helper()
	s, err := New(Options{Root: root, Backend: config.SyncBackendCLI, GitBinary: "git", Strict: strict, Runner: runner})
	require.NoError(t, err)
	return s
}

func TestCLISync_InitThenUpdate(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := processtest.NewMockRunner(ctrl)
	root := repoRoot(t)

	gomock.InOrder(
		runner.EXPECT().Run(gomock.Any(), processtest.Cmd("git", "submodule", "init")).DoAndReturn(
			func(_ context.Context, inv process.Invocation) process.Result {
				assert.Equal(t, root.Dir(), inv.Dir)
				return processtest.Ok()
			}),
		runner.EXPECT().Run(gomock.Any(), processtest.Cmd("git", "submodule", "update")).Return(processtest.Ok()),
	)

	report, err := newCLI(t, root, runner, false).Sync(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.False(t, report.Failed())
	require.Len(t, report.Steps, 2)
	assert.Equal(t, StepInit, report.Steps[0].Name)
	assert.Equal(t, StepUpdate, report.Steps[1].Name)
}

func TestCLISync_FailureIsNotFatalByDefault(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := processtest.NewMockRunner(ctrl)

	gomock.InOrder(
		runner.EXPECT().Run(gomock.Any(), processtest.Cmd("git", "submodule", "init")).Return(processtest.Exit(1)),
		runner.EXPECT().Run(gomock.Any(), processtest.Cmd("git", "submodule", "update")).Return(processtest.Exit(128)),
	)

	report, err := newCLI(t, repoRoot(t), runner, false).Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Failed())
	assert.Len(t, report.Steps, 2)
}

func TestCLISync_StrictPropagatesFirstFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := processtest.NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), processtest.Cmd("git", "submodule", "init")).Return(processtest.Exit(1))

	report, err := newCLI(t, repoRoot(t), runner, true).Sync(context.Background())
	require.Error(t, err)
	assert.Equal(t, espErrors.ErrCodeToolchainInvocation, espErrors.GetCode(err))
	assert.Len(t, report.Steps, 1)
}

func TestCLISync_CancellationAlwaysPropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := processtest.NewMockRunner(ctrl)
	ctx, cancel := context.WithCancel(context.Background())

	runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, process.Invocation) process.Result {
			cancel()
			return process.Result{Cancelled: true, Err: context.Canceled, ExitCode: -1}
		})

	_, err := newCLI(t, repoRoot(t), runner, false).Sync(ctx)
	require.Error(t, err)
	assert.Equal(t, espErrors.ErrCodeCancelled, espErrors.GetCode(err))
}

func TestCLISync_TimeoutPropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := processtest.NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).Return(process.Result{TimedOut: true, ExitCode: process.TimeoutExitCode})

	_, err := newCLI(t, repoRoot(t), runner, false).Sync(context.Background())
	assert.Equal(t, espErrors.ErrCodeToolchainTimeout, espErrors.GetCode(err))
}

func TestCLISync_RunsOutsideRepository(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := processtest.NewMockRunner(ctrl)
	gomock.InOrder(
		runner.EXPECT().Run(gomock.Any(), processtest.Cmd("git", "submodule", "init")).Return(processtest.Exit(128)),
		runner.EXPECT().Run(gomock.Any(), processtest.Cmd("git", "submodule", "update")).Return(processtest.Exit(128)),
	)

	report, err := newCLI(t, plainRoot(t), runner, false).Sync(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.True(t, report.Failed())
	assert.Len(t, report.Steps, 2)
}

func TestCLISync_StrictFailsOutsideRepository(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := processtest.NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), processtest.Cmd("git", "submodule", "init")).Return(processtest.Exit(128))

	report, err := newCLI(t, plainRoot(t), runner, true).Sync(context.Background())
	require.Error(t, err)
	assert.Equal(t, espErrors.ErrCodeToolchainInvocation, espErrors.GetCode(err))
	assert.Len(t, report.Steps, 1)
}

func TestGoGitSync_SkipsNonRepository(t *testing.T) {
	s, err := New(Options{Root: plainRoot(t), Backend: config.SyncBackendGoGit})
	require.NoError(t, err)

	report, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Empty(t, report.Steps)
}

func TestGoGitSync_RepositoryWithoutSubmodules(t *testing.T) {
	s, err := New(Options{Root: repoRoot(t), Backend: config.SyncBackendGoGit})
	require.NoError(t, err)

	report, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, config.SyncBackendGoGit, report.Backend)
	require.Len(t, report.Steps, 2)
	assert.False(t, report.Failed())
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(Options{Backend: "svn"})
	assert.Equal(t, espErrors.ErrCodeInvalidInput, espErrors.GetCode(err))
}

func TestDisabled(t *testing.T) {
	report, err := Disabled{}.Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Skipped)
}
