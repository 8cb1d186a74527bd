package alert

import (
	"context"
	"fmt"
	"log"

	"github.com/containrrr/shoutrrr"
	"github.com/containrrr/shoutrrr/pkg/router"
	stypes "github.com/containrrr/shoutrrr/pkg/types"
)

// ShoutrrrSink fans a notification out to one or more Shoutrrr service URLs
// (smtp://, telegram://, slack://, ...).
type ShoutrrrSink struct {
	sender *router.ServiceRouter
}

// NewShoutrrrSink validates the service URLs and builds the sender once.
func NewShoutrrrSink(urls ...string) (*ShoutrrrSink, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("alert: at least one notification URL is required")
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("create notification sender: %w", err)
	}
	return &ShoutrrrSink{sender: sender}, nil
}

// Notify sends one message to every configured service.
func (s *ShoutrrrSink) Notify(_ context.Context, subject, body string) error {
	params := stypes.Params{"title": subject}
	for _, err := range s.sender.Send(body, &params) {
		if err != nil {
			return fmt.Errorf("send notification: %w", err)
		}
	}
	return nil
}

// LogSink writes alerts to a logger. It stands in for a real notification
// service during tests and dry runs.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink builds a LogSink around the given logger.
func NewLogSink(logger *log.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Notify prints the alert in the classic one-line format.
func (s *LogSink) Notify(_ context.Context, subject, body string) error {
	s.logger.Printf("ALERT: %s - %s", subject, body)
	return nil
}

var (
	_ Sink = (*ShoutrrrSink)(nil)
	_ Sink = (*LogSink)(nil)
)
