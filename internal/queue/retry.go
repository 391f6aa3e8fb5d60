package queue

import (
	"github.com/rabbitmq/amqp091-go"

	"github.com/OFFIS-RIT/dematel/pkg/logger"
)

// MaxRetries is the number of redeliveries before a message is dead-lettered.
const MaxRetries = 10

const retriesHeader = "x-retries"

// Retries reads the redelivery count stored on msg.
func Retries(msg amqp091.Delivery) int {
	switch v := msg.Headers[retriesHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// HandleProcessingError moves a failed message to the retry queue, or to the
// dead-letter queue once it has been retried MaxRetries times. The original
// delivery is acked once the copy is published and requeued otherwise.
func HandleProcessingError(ch Publisher, msg amqp091.Delivery, queueName string) {
	retries := Retries(msg)

	target := RetryQueue(queueName)
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	if retries >= MaxRetries {
		target = DeadLetterQueue(queueName)
		logger.Warn("[Queue] Sending message to DLQ", "dlq", target, "retries", retries)
	} else {
		headers[retriesHeader] = int32(retries + 1)
	}

	err := ch.Publish(
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
		if err := msg.Nack(false, true); err != nil {
			logger.Error("[Queue] Failed to nack message", "err", err)
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		logger.Error("[Queue] Failed to ack message", "err", err)
	}
}
