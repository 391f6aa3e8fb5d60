package queue

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/OFFIS-RIT/dematel/internal/util"
)

// ReportQueue carries workbook rebuild requests from the server to the worker.
const ReportQueue = "report_queue"

const retryDelay = 10 * time.Second

// Init dials RabbitMQ from RABBITMQ_USER, RABBITMQ_PASSWORD, RABBITMQ_HOST and RABBITMQ_PORT.
func Init() (*amqp091.Connection, error) {
	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		util.GetEnv("RABBITMQ_USER"),
		util.GetEnv("RABBITMQ_PASSWORD"),
		util.GetEnvString("RABBITMQ_HOST", "localhost"),
		util.GetEnvString("RABBITMQ_PORT", "5672"),
	)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// SetupQueues declares each queue together with its dead-letter queue and a retry
// queue that hands messages back after retryDelay.
func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", name, err)
		}

		dlqName := DeadLetterQueue(name)
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", dlqName, err)
		}

		retryName := RetryQueue(name)
		_, err := ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryDelay.Milliseconds()),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("declare %s: %w", retryName, err)
		}
	}
	return nil
}

func DeadLetterQueue(name string) string { return name + "_dlq" }
func RetryQueue(name string) string      { return name + "_retry" }

// Publisher is the part of an AMQP channel used to send messages.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// PublishFIFO sends a persistent message straight to queueName.
func PublishFIFO(ch Publisher, queueName string, data []byte) error {
	return ch.Publish(
		"",
		queueName,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         data,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

// ChannelPublisher adapts a channel to a queue-addressed publish function.
type ChannelPublisher struct {
	Channel Publisher
}

func (p ChannelPublisher) PublishFIFO(queueName string, data []byte) error {
	return PublishFIFO(p.Channel, queueName, data)
}
