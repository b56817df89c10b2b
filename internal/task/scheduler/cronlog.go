package scheduler

import (
	"fmt"

	logx "iddaemon/pkg/logx"
)

// cronLogger adapts logx to cron.Logger. cron logs "skip" when
// SkipIfStillRunning drops a trigger and "panic" when Recover catches one;
// skips go to Warn and panics to Error.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	switch msg {
	case "start", "stop", "schedule", "wake", "run", "added", "removed":
		// routine lifecycle chatter; skip building fields unless tracing
		if l.log.Enabled(logx.LevelTrace) {
			l.log.Trace("cron "+msg, kvFields(keysAndValues)...)
		}
		return
	}
	fields := kvFields(keysAndValues)
	switch msg {
	case "skip":
		l.log.Warn("trigger skipped; previous run still in progress", fields...)
	default:
		l.log.Debug("cron "+msg, fields...)
	}
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := append([]logx.Field{logx.Err(err)}, kvFields(keysAndValues)...)
	l.log.Error("cron "+msg, fields...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 >= len(kv) {
			out = append(out, logx.String(key, "<missing>"))
			break
		}
		out = append(out, logx.Any(key, kv[i+1]))
	}
	return out
}
