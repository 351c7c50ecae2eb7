// Package git loads configuration from a Git repository checkout.
//
// A Repository clones the configured branch on first use and pulls on
// every later sync. Source adapts it to source.Source so the manager
// treats a repository like any other configuration location:
//
//	repo, err := git.NewRepository(&cfg.Policy.Git, logger)
//	if err != nil {
//		return err
//	}
//	src := git.NewSource(repo, nil, logger)
//
//	mgr, err := manager.New(&manager.Config{
//		Source:         src,
//		Store:          store,
//		ResyncSchedule: "@every 1m",
//	}, logger)
//
// Periodic pulls come from the manager's resync schedule. A commit that
// leaves the configuration files untouched keeps the same revision, so it
// does not rebuild the snapshot.
//
// # Authentication
//
// Supports multiple authentication methods:
//   - Token-based (HTTPS): GitHub, GitLab, Bitbucket tokens
//   - SSH key-based: Public key authentication
//   - None: Public repositories and local paths
package git
