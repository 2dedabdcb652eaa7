package notify

import (
	"context"
	"fmt"
)

// Stdout is the always-on fallback sink: spec §7 requires that every error
// kind end up logged somewhere even when no email/Telegram sink is
// configured.
type Stdout struct {
	log Logger
}

// NewStdout constructs a Stdout sink.
func NewStdout(log Logger) *Stdout {
	return &Stdout{log: log}
}

func (s *Stdout) Name() string { return "stdout" }

func (s *Stdout) Send(_ context.Context, event Event) error {
	msg := formatMessage(event)
	if event.Type == EventError {
		s.log.Error(formatTitle(event.Type), "message", msg)
	} else {
		s.log.Info(formatTitle(event.Type), "message", msg)
	}
	return nil
}

func formatTitle(t EventType) string {
	switch t {
	case EventUpdateApplied:
		return "Image updated"
	case EventRestart:
		return "Rollout restarted"
	case EventNotifyOnly:
		return "Newer version available"
	case EventError:
		return "Error"
	default:
		return string(t)
	}
}

func formatMessage(e Event) string {
	var body string
	switch e.Type {
	case EventUpdateApplied:
		body = fmt.Sprintf("%s/%s container %s: %s -> %s", e.Deployment, e.Handler, e.Container, e.FromTag, e.ToTag)
	case EventRestart:
		body = fmt.Sprintf("%s/%s container %s: restarted to refresh latest", e.Deployment, e.Handler, e.Container)
	case EventNotifyOnly:
		body = fmt.Sprintf("%s/%s container %s: %s -> %s available but blocked by frontier policy", e.Deployment, e.Handler, e.Container, e.FromTag, e.ToTag)
	case EventError:
		body = fmt.Sprintf("%s/%s container %s: %s", e.Deployment, e.Handler, e.Container, e.Error)
	default:
		body = fmt.Sprintf("%+v", e)
	}
	if e.ID == "" {
		return body
	}
	return fmt.Sprintf("[%s] %s", e.ID, body)
}
