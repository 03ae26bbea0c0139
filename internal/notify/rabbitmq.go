package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"senfret/internal/logging"
	"senfret/internal/models"
)

// RabbitClient holds one connection and one channel to the broker.
type RabbitClient struct {
	conn *amqp.Connection
	chn  *amqp.Channel
}

func NewRabbitClient(url string) (*RabbitClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	chn, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return &RabbitClient{conn: conn, chn: chn}, nil
}

func (r *RabbitClient) Close() error {
	if err := r.chn.Close(); err != nil {
		return err
	}
	return r.conn.Close()
}

// CreateQueue declares a durable queue.
func (r *RabbitClient) CreateQueue(queue string) error {
	_, err := r.chn.QueueDeclare(queue, true, false, false, false, nil)
	return err
}

func (r *RabbitClient) Publish(ctx context.Context, queue string, body []byte) error {
	return r.chn.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Consume starts a manual-ack consumer on queue.
func (r *RabbitClient) Consume(queue string) (<-chan amqp.Delivery, error) {
	return r.chn.Consume(queue, "", false, false, false, false, nil)
}

type queuePublisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// QueueMailer hands mails to a RabbitMQ queue; RunMailConsumer sends them.
type QueueMailer struct {
	client queuePublisher
	queue  string
}

func NewQueueMailer(client queuePublisher, queue string) *QueueMailer {
	return &QueueMailer{client: client, queue: queue}
}

func (q *QueueMailer) Send(ctx context.Context, job models.EmailJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.Publish(ctx, q.queue, body)
}

// RunMailConsumer sends every queued mail with mailer until ctx is done.
// A failed mail is requeued once, then dropped.
func RunMailConsumer(ctx context.Context, deliveries <-chan amqp.Delivery, mailer Mailer, wg *sync.WaitGroup) {
	defer wg.Done()
	log := logging.New("mail-consumer")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stop signal received")
			return
		case d, ok := <-deliveries:
			if !ok {
				log.Warn().Msg("delivery channel closed")
				return
			}

			var job models.EmailJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				log.Error().Err(err).Msg("malformed mail job dropped")
				_ = d.Reject(false)
				continue
			}
			if err := mailer.Send(ctx, job); err != nil {
				log.Error().Err(err).Str("to", job.To).Bool("redelivered", d.Redelivered).Msg("send failed")
				_ = d.Nack(false, !d.Redelivered)
				continue
			}
			if err := d.Ack(false); err != nil {
				log.Error().Err(err).Msg("ack failed")
			}
		}
	}
}
