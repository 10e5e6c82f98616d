package logging

// nopLogger discards everything. Used by tests that don't care about log
// output.
type nopLogger struct{}

// NewNop returns a Logger that discards all messages.
func NewNop() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...Field) {}
func (nopLogger) Info(string, ...Field)  {}
func (nopLogger) Warn(string, ...Field)  {}
func (nopLogger) Error(string, ...Field) {}
func (nopLogger) With(...Field) Logger   { return nopLogger{} }
