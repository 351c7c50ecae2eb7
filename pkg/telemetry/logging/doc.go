// Package logging builds the process logger on log/slog.
//
// New returns a *slog.Logger writing JSON or text at the configured level.
// Values of sensitive keys (tokens, passwords, authorization headers) are
// redacted by the handler before they are written. Request-scoped loggers
// travel in a context.Context:
//
//	ctx = logging.WithRequestID(ctx, id)
//	logging.FromContext(ctx, logger).Info("dispatched", "invoked", 3)
package logging
