package utils

import (
	"os"

	"github.com/hashicorp/go-hclog"
)

// NewLogger 创建根日志器，生产环境输出 JSON
func NewLogger(env, level string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       "castcount",
		Level:      hclog.LevelFromString(level),
		Output:     os.Stdout,
		JSONFormat: env == "production",
	})
}

// CronLogger 把 cron 的 Printf 风格日志转发到 hclog
type CronLogger struct {
	Logger hclog.Logger
}

// Info 实现 cron.Logger
func (l CronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Logger.Debug(msg, keysAndValues...)
}

// Error 实现 cron.Logger
func (l CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.Logger.Error(msg, append(keysAndValues, "error", err)...)
}
