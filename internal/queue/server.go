// Package queue implements request/reply RPC over RabbitMQ: a Server that
// consumes a durable request queue and answers on each message's ReplyTo,
// and a Client that publishes requests and waits for the correlated reply.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// requestTimeout bounds one request, covering every Jira call it makes and
// the reply publish
const requestTimeout = 2 * time.Minute

// Handler turns one request delivery into a reply body
type Handler func(ctx context.Context, d amqp.Delivery) []byte

// publisher is the part of *amqp.Channel used to send replies
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Server consumes one request queue with a fixed number of workers
type Server struct {
	ch      *amqp.Channel
	queue   string
	workers int
	log     *zap.Logger
}

// Dial connects to the broker
func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	return conn, nil
}

// NewServer declares the durable request queue and limits unacknowledged
// deliveries to the number of workers.
func NewServer(conn *amqp.Connection, queue string, workers int, log *zap.Logger) (*Server, error) {
	if workers <= 0 {
		workers = 1
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	if err := ch.Qos(workers, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	return &Server{
		ch:      ch,
		queue:   queue,
		workers: workers,
		log:     log.With(zap.String("queue", queue)),
	}, nil
}

// Serve blocks handling deliveries until ctx is cancelled or the channel
// closes. Cancelling ctx only stops consumption; requests already taken
// run to completion and are answered before Serve returns.
func (s *Server) Serve(ctx context.Context, h Handler) error {
	consumerTag := "srv-" + s.queue
	msgs, err := s.ch.Consume(s.queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", s.queue, err)
	}
	s.log.Info("waiting for requests", zap.Int("workers", s.workers))

	done := make(chan struct{})
	go func() {
		defer close(done)
		runWorkers(ctx, msgs, s.workers, s.ch, h, requestTimeout, s.log)
	}()

	closed := s.ch.NotifyClose(make(chan *amqp.Error, 1))
	select {
	case <-ctx.Done():
		s.log.Info("draining in-flight requests")
		_ = s.ch.Cancel(consumerTag, false)
		<-done
		return nil
	case amqpErr := <-closed:
		<-done
		if amqpErr != nil {
			return fmt.Errorf("channel closed: %w", amqpErr)
		}
		return errors.New("channel closed")
	}
}

// runWorkers handles deliveries until msgs is closed. Each request gets its
// own deadline on a context detached from ctx's cancellation, so a request
// that already reached Jira is still answered and acked during shutdown.
func runWorkers(ctx context.Context, msgs <-chan amqp.Delivery, workers int, pub publisher, h Handler, timeout time.Duration, log *zap.Logger) {
	base := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range msgs {
				reqCtx, cancel := context.WithTimeout(base, timeout)
				handleDelivery(reqCtx, pub, d, h, log)
				cancel()
			}
		}()
	}
	wg.Wait()
}

// Close closes the server channel
func (s *Server) Close() error {
	return s.ch.Close()
}

func handleDelivery(ctx context.Context, pub publisher, d amqp.Delivery, h Handler, log *zap.Logger) {
	reply := h(ctx, d)

	if d.ReplyTo != "" {
		err := pub.PublishWithContext(ctx, "", d.ReplyTo, false, false, amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: d.CorrelationId,
			Body:          reply,
		})
		if err != nil {
			log.Error("failed to publish reply",
				zap.String("correlation_id", d.CorrelationId),
				zap.String("reply_to", d.ReplyTo),
				zap.Error(err),
			)
			_ = d.Nack(false, true)
			return
		}
	} else {
		log.Warn("request without reply_to, dropping reply", zap.String("correlation_id", d.CorrelationId))
	}

	if err := d.Ack(false); err != nil {
		log.Error("failed to ack delivery", zap.Error(err))
	}
}
