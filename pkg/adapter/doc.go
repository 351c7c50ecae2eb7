// Package adapter provides the handler side of dispatch: the adapters that
// receive built instances and the registry that routes each handler to the
// adapter it names.
//
// # Adapters
//
// Every handler in a configuration names an adapter. The Registry resolves
// that name for every invocation and passes the handler, with its params,
// and the built instances to Adapter.Handle.
//
// Built-in adapters of this package:
//   - noop: discards everything
//   - log: writes one structured log record per instance
//   - memory: keeps every invocation in memory for inspection
//
// Adapters backed by external systems live in subpackages (prometheus,
// sqlite, redis) and are assembled from configuration by the factory
// package.
//
// # Usage
//
//	reg := adapter.NewRegistry(logger)
//	reg.Register(adapter.NewLog(logger))
//	dispatcher, err := dispatch.New(reg, nil, logger)
//
// Registry implements dispatch.Invoker and snapshot.AdapterFinder, so the
// same value validates handler adapters and serves invocations.
package adapter
