package notify

import (
	"EquityTradeBot/internal/logger"
)

// Notifier delivers operator alerts: exits, circuit-breaker trips,
// rebalances. Delivery is fire-and-forget; a failed notification must
// never roll back a trading decision, so implementations do not return
// errors.
type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// Log writes alerts to the process log. It is the default sink; richer
// delivery (push, chat) plugs in behind the same interface.
type Log struct{}

func NewLog() *Log { return &Log{} }

func (l *Log) Send(msg string) {
	logger.Info("%s", msg)
}

func (l *Log) Sendf(format string, args ...any) {
	logger.Info(format, args...)
}
