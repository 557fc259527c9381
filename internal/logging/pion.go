package logging

import (
	"fmt"

	"github.com/pion/logging"
	"github.com/rs/zerolog"
)

// PionFactory routes pion's scoped loggers into zerolog. Each scope becomes a
// "scope" field; level gates what pion emits.
type PionFactory struct {
	Logger zerolog.Logger
	Level  zerolog.Level
}

var _ logging.LoggerFactory = (*PionFactory)(nil)

func NewPionFactory(logger zerolog.Logger, level string) *PionFactory {
	lvl, ok := ParseLevel(level)
	if !ok {
		lvl = zerolog.WarnLevel
	}
	return &PionFactory{Logger: logger, Level: lvl}
}

func (f *PionFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogger{
		log: f.Logger.Level(maxLevel(f.Level, f.Logger.GetLevel())).With().Str("scope", scope).Logger(),
	}
}

func maxLevel(a, b zerolog.Level) zerolog.Level {
	if a > b {
		return a
	}
	return b
}

type pionLogger struct {
	log zerolog.Logger
}

func (l *pionLogger) Trace(msg string) { l.log.Trace().Msg(msg) }
func (l *pionLogger) Tracef(format string, args ...interface{}) {
	l.log.Trace().Msg(fmt.Sprintf(format, args...))
}
func (l *pionLogger) Debug(msg string) { l.log.Debug().Msg(msg) }
func (l *pionLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug().Msg(fmt.Sprintf(format, args...))
}
func (l *pionLogger) Info(msg string) { l.log.Info().Msg(msg) }
func (l *pionLogger) Infof(format string, args ...interface{}) {
	l.log.Info().Msg(fmt.Sprintf(format, args...))
}
func (l *pionLogger) Warn(msg string) { l.log.Warn().Msg(msg) }
func (l *pionLogger) Warnf(format string, args ...interface{}) {
	l.log.Warn().Msg(fmt.Sprintf(format, args...))
}
func (l *pionLogger) Error(msg string) { l.log.Error().Msg(msg) }
func (l *pionLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msg(fmt.Sprintf(format, args...))
}
