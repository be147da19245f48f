// Package mail delivers order notifications. LogSender stands in for a mail relay:
// it writes each message to the log and reports it delivered.
package mail

import (
	"context"

	"github.com/sirupsen/logrus"

	"storefront/pkg/order/domain/model"
)

// LogSender writes messages to the log instead of delivering them.
// It is used when no broker is configured.
type LogSender struct {
	logger logrus.FieldLogger
}

func NewLogSender(logger logrus.FieldLogger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, message model.Message) error {
	s.logger.WithFields(logrus.Fields{
		"to":       message.To,
		"subject":  message.Subject,
		"template": message.Template,
	}).Info("notification sent")
	return nil
}
