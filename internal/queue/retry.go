package queue

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/lcaexport/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// MaxRetries is how often a message goes through the retry queue before it
// is parked in the dead-letter queue.
const MaxRetries = 10

const retriesHeader = "x-retries"

// PermanentError marks failures that retrying cannot fix, such as a model
// that violates snapshot integrity. Such messages skip the retry queue.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

func retryCount(headers amqp091.Table) int {
	switch v := headers[retriesHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// FinalAttempt reports whether a failure of msg sends it to the dead-letter
// queue instead of the retry queue.
func FinalAttempt(msg amqp091.Delivery) bool {
	return retryCount(msg.Headers) >= MaxRetries
}

// HandleProcessingError routes a failed delivery to the retry queue, or to
// the dead-letter queue once MaxRetries is reached or the failure is
// permanent. The delivery is acked after a successful republish and
// requeued otherwise.
func HandleProcessingError(ctx context.Context, ch Publisher, msg amqp091.Delivery, queueName string, cause error) {
	retries := retryCount(msg.Headers)

	var permanent *PermanentError
	if retries >= MaxRetries || errors.As(cause, &permanent) {
		dlqName := DeadLetterQueue(queueName)
		logger.Info("[Queue] Sending message to DLQ", "dlq", dlqName, "retries", retries)
		republish(ctx, ch, msg, dlqName, msg.Headers)
		return
	}

	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[retriesHeader] = int32(retries + 1)
	republish(ctx, ch, msg, RetryQueue(queueName), headers)
}

func republish(ctx context.Context, ch Publisher, msg amqp091.Delivery, target string, headers amqp091.Table) {
	err := ch.PublishWithContext(
		ctx,
		"",
		target,
		false,
		false,
		amqp091.Publishing{
			ContentType:  msg.ContentType,
			Body:         msg.Body,
			Headers:      headers,
			DeliveryMode: amqp091.Persistent,
		},
	)
	if err != nil {
		logger.Error("[Queue] Failed to republish message", "queue", target, "err", err)
		if nackErr := msg.Nack(false, true); nackErr != nil {
			logger.Error("[Queue] Failed to nack message", "err", nackErr)
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		logger.Error("[Queue] Failed to ack message", "err", err)
	}
}
