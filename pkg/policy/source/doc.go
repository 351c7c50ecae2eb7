// Package source loads configuration from where it is stored and notices
// when it changes.
//
// A Source produces one merged schema.Config per Load. FileSource reads every
// .yaml, .yml and .json file under a path; files are read in lexical order
// and YAML files may hold several documents. MemorySource serves a
// configuration held in memory.
//
// Watcher observes a path with fsnotify and reports changes after a quiet
// period. Resync triggers a reload on a cron schedule, which catches changes
// the watcher missed (network filesystems, atomic directory swaps).
//
// Usage:
//
//	src := source.NewFileSource("./config", nil, logger)
//	bundle, err := src.Load(ctx)
//	if err != nil {
//	    return err
//	}
//	snap, err := snapshot.Build(bundle.Config, opts)
package source
