package core

import "convo/logging"

// turnLogger gives TurnContext embedded LogDebug/LogInfo/LogWarn/LogError
// methods backed by a logger that is always non-nil.
type turnLogger struct {
	logger logging.Logger
}

func newTurnLogger(l logging.Logger) *turnLogger {
	if l == nil {
		l = logging.NoOpLogger{}
	}
	return &turnLogger{logger: l}
}

// Logger returns the underlying logger for handing to sub-components.
func (l *turnLogger) Logger() logging.Logger { return l.logger }

func (l *turnLogger) LogDebug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *turnLogger) LogInfo(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *turnLogger) LogWarn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *turnLogger) LogError(msg string, args ...any) { l.logger.Error(msg, args...) }
