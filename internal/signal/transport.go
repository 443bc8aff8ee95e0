package signal

// Transport is the outbound half of an admitted connection. Implementations
// must be safe for concurrent use: the router, the health monitor, and the
// reconnection scheduler may all send on the same transport.
//
// Send serializes v as JSON and delivers it without blocking the caller on
// a slow peer (implementations buffer and drop rather than stall the relay
// path). Close tears the connection down; subsequent Sends return
// ErrTransportClosed.
type Transport interface {
	Send(v any) error
	Close() error
}

// Logger is the minimal logging interface this package needs. It is
// satisfied by *logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards everything. Used when no logger is configured.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
