// Package manager keeps the active configuration snapshot current.
//
// A Manager loads configuration from a source.Source, validates it into a
// snapshot and activates it in a snapshot.Store. A configuration that fails
// to load or validate is rejected and the previously active snapshot stays in
// place, so a bad edit never takes down a running process.
//
// Reloads happen on demand (Reload), when watched files change and on an
// optional cron schedule. Reloads are serialized; requests keep reading the
// store without blocking while a reload runs.
//
//	mgr, err := manager.New(&manager.Config{
//	    Source: source.NewFileSource("./config", nil, logger),
//	    Store:  store,
//	    Watch:  &source.WatcherConfig{Path: "./config"},
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
package manager
