// Package logx 构造注入式的 logrus logger（不使用进程级全局 logger）。
package logx

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// EnvLevel 是未显式配置时读取日志级别的环境变量。
const EnvLevel = "LOG_LEVEL"

// New 返回写到 w 的 logger。level 为空时回退到 $LOG_LEVEL，再回退到 info。
func New(level string, w io.Writer) *logrus.Logger {
	if w == nil {
		w = os.Stderr
	}
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if strings.TrimSpace(level) == "" {
		level = os.Getenv(EnvLevel)
	}
	l.SetLevel(ParseLevel(level))
	return l
}

// ParseLevel 宽松解析日志级别（大小写/首尾空白不敏感）；无法识别时为 info。
func ParseLevel(s string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Discard 返回丢弃所有输出的 logger（组件未注入 logger 时使用）。
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// OrDiscard 在 l 为 nil 时返回 Discard()。
func OrDiscard(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return Discard()
	}
	return l
}
