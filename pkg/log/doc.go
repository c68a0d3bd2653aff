// Package log is the structured logging layer shared by the transport, codec
// and client packages.
//
// Loggers are passed explicitly or carried on a context:
//
//	lg := log.NewZapLogger(log.Config{Format: "logfmt", Level: log.LevelDebug})
//	ctx = log.SetContextLogger(ctx, lg.WithName("subtensor"))
//	log.FromContext(ctx).Info("connected", "url", url)
//
// When the context holds a valid OpenTelemetry span, SetContextLogger wraps
// the logger in a SpanLogger so every entry is also recorded on the span. The
// transport opens one span per RPC call, which makes slow or failing calls
// visible in traces together with their log lines.
//
// Implementations:
//
//   - ZapLogger: zap with console, logfmt or json encoding
//   - IPFSLogger: go-log subsystems, used by the CLI
//   - NoopLogger: the default when nothing is configured
//   - SpanLogger: decorator mirroring entries onto a span
package log
