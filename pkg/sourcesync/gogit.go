package sourcesync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"

	"github.com/odvcencio/espboot/pkg/config"
)

// goGitSync synchronizes submodules in-process.
type goGitSync struct {
	opts Options
}

func (s *goGitSync) Sync(ctx context.Context) (Report, error) {
	report := Report{Backend: config.SyncBackendGoGit}
	dir := s.opts.Root.Dir()

	repo, err := openRepository(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		s.opts.Logger.Debug("workspace is not a git repository, skipping submodule sync", "dir", dir)
		report.Skipped = true
		report.SkipReason = "not a git repository"
		return report, nil
	}

	var subs git.Submodules
	if err == nil {
		subs, err = listSubmodules(repo)
	}

	start := time.Now()
	initResult := StepResult{Name: StepInit, Err: err}
	if err == nil {
		initResult.Err = s.initAll(subs)
	}
	initResult.Duration = time.Since(start)
	report.Steps = append(report.Steps, initResult)
	if err := handleStep(ctx, s.opts, initResult); err != nil {
		return report, err
	}

	start = time.Now()
	updateResult := StepResult{Name: StepUpdate}
	if subs != nil {
		if updErr := subs.UpdateContext(ctx, &git.SubmoduleUpdateOptions{Init: true}); updErr != nil {
			updateResult.Err = fmt.Errorf("update submodules: %w", updErr)
		}
	}
	updateResult.Duration = time.Since(start)
	report.Steps = append(report.Steps, updateResult)
	s.opts.Logger.Debug("submodules synchronized", "count", len(subs), "duration", updateResult.Duration)

	if err := handleStep(ctx, s.opts, updateResult); err != nil {
		return report, err
	}
	return report, nil
}

func listSubmodules(repo *git.Repository) (git.Submodules, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("get worktree: %w", err)
	}
	subs, err := wt.Submodules()
	if err != nil {
		return nil, fmt.Errorf("list submodules: %w", err)
	}
	return subs, nil
}

// initAll registers every submodule in .git/config. Already-initialized
// submodules are not an error.
func (s *goGitSync) initAll(subs git.Submodules) error {
	for _, sm := range subs {
		if err := sm.Init(); err != nil && !errors.Is(err, git.ErrSubmoduleAlreadyInitialized) {
			return fmt.Errorf("init submodule %s: %w", sm.Config().Name, err)
		}
	}
	return nil
}
