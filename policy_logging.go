package appstate

import "time"

// PolicyLogEvent describes one policy evaluation attempt for logging.
type PolicyLogEvent struct {
	Engine   string
	Expr     string
	URL      string
	Duration time.Duration
	Err      error
}

// PolicyLogger records policy evaluation events.
type PolicyLogger interface {
	LogPolicy(PolicyLogEvent)
}

// PolicyLoggerFunc adapts a function to PolicyLogger.
type PolicyLoggerFunc func(PolicyLogEvent)

// LogPolicy implements PolicyLogger.
func (f PolicyLoggerFunc) LogPolicy(event PolicyLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopPolicyLogger struct{}

func (noopPolicyLogger) LogPolicy(PolicyLogEvent) {}
