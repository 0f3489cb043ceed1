/*
Package log provides structured logging for the provider using zerolog.

A single global Logger is configured once via Init, then every
component derives a child logger from it with one of the With*
helpers, which attach a stable field (component, database, op,
op_ref) instead of re-stating context on every call site.

# Configuration

Init takes a Config: Level selects debug/info/warn/error, JSONOutput
switches between JSON and a human-readable console writer, and
Output defaults to os.Stdout when nil. cmd/yokan-provider calls Init
once at startup from its --log-level and --log-json flags.

# Component loggers

	log.WithComponent("rpc")       // dispatch, Listen/Serve
	log.WithDatabase(dbID)         // scoped to one open database
	log.WithOp("get_bulk")         // one RPC's handler
	log.WithRequest(opRef)         // one streaming back-RPC's batches

Each returns a zerolog.Logger value, not a pointer, so callers chain
directly: log.WithComponent("rpc").Info().Str("addr", addr).Msg("provider listening").

# Package-level helpers

Info/Debug/Warn/Error/Fatal write through the global Logger for
call sites that have no component context worth attaching. Errorf additionally
attaches an error value as a structured field rather than
interpolating it into the message: log.Errorf("opening database", err).
*/
package log
