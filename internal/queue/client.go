package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrTimeout is returned when no reply arrives before the call deadline
var ErrTimeout = errors.New("rpc call timed out")

// Client sends requests and waits for replies on a private, auto-deleted
// reply queue. It is safe for concurrent use.
type Client struct {
	ch         *amqp.Channel
	pub        publisher
	replyQueue string
	timeout    time.Duration

	mu      sync.Mutex
	pending map[string]chan []byte
}

// NewClient declares the reply queue and starts dispatching replies
func NewClient(conn *amqp.Connection, timeout time.Duration) (*Client, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare reply queue: %w", err)
	}
	replies, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to consume reply queue: %w", err)
	}

	c := newClient(ch, q.Name, timeout)
	c.ch = ch
	go func() {
		for d := range replies {
			c.dispatch(d)
		}
	}()
	return c, nil
}

func newClient(pub publisher, replyQueue string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		pub:        pub,
		replyQueue: replyQueue,
		timeout:    timeout,
		pending:    make(map[string]chan []byte),
	}
}

func (c *Client) dispatch(d amqp.Delivery) {
	c.mu.Lock()
	waiter, ok := c.pending[d.CorrelationId]
	delete(c.pending, d.CorrelationId)
	c.mu.Unlock()

	if ok {
		waiter <- d.Body
	}
}

// Call publishes body to queue and returns the reply body
func (c *Client) Call(ctx context.Context, queue string, body []byte) ([]byte, error) {
	correlationID := uuid.New().String()
	waiter := make(chan []byte, 1)

	c.mu.Lock()
	c.pending[correlationID] = waiter
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, correlationID)
		c.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.pub.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: correlationID,
		ReplyTo:       c.replyQueue,
		Body:          body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to publish to %s: %w", queue, err)
	}

	select {
	case reply := <-waiter:
		return reply, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s waiting on %s", ErrTimeout, c.timeout, queue)
		}
		return nil, ctx.Err()
	}
}

// CallJSON marshals req, calls queue and decodes the reply into resp
func (c *Client) CallJSON(ctx context.Context, queue string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	reply, err := c.Call(ctx, queue, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(reply, resp); err != nil {
		return fmt.Errorf("failed to decode reply: %w", err)
	}
	return nil
}

// Close closes the client channel
func (c *Client) Close() error {
	if c.ch == nil {
		return nil
	}
	return c.ch.Close()
}
