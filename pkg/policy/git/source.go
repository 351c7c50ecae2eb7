package git

import (
	"context"
	"log/slog"

	"mercator-hq/mixer/pkg/policy/source"
)

// Source loads configuration from the checkout of a Repository.
type Source struct {
	repo   *Repository
	opts   *source.FileOptions
	logger *slog.Logger
}

var _ source.Source = (*Source)(nil)

// NewSource creates a source reading the files under repo.ConfigPath()
// with opts (nil uses source.DefaultFileOptions).
func NewSource(repo *Repository, opts *source.FileOptions, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{repo: repo, opts: opts, logger: logger}
}

// Repository returns the underlying repository.
func (s *Source) Repository() *Repository {
	return s.repo
}

// Load syncs the repository and loads the checked out configuration. The
// bundle revision hashes the configuration files, not the commit.
func (s *Source) Load(ctx context.Context) (*source.Bundle, error) {
	res, err := s.repo.Sync(ctx)
	if err != nil {
		return nil, &source.LoadError{Path: s.repo.String(), Message: "failed to sync repository", Cause: err}
	}

	bundle, err := source.NewFileSource(s.repo.ConfigPath(), s.opts, s.logger).Load(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("configuration loaded from repository",
		"repository", s.repo.String(),
		"commit", shortSHA(res.ToSHA),
		"cloned", res.Cloned,
		"revision", bundle.Revision,
	)
	return bundle, nil
}

// String implements source.Source.
func (s *Source) String() string {
	return "git:" + s.repo.String()
}
