package broker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"github.com/snarg/call-dossier/internal/event"
	"github.com/snarg/call-dossier/internal/metrics"
)

// ConsumerOptions configures a Consumer. One Consumer reads one topic
// within one consumer group; kafka-go's group coordinator assigns each
// partition of that topic to exactly one member, giving the per-call
// serial-order guarantee the pipeline relies on.
type ConsumerOptions struct {
	Brokers     []string
	GroupID     string
	Topic       string
	MaxRetries  int
	RetryBase   time.Duration
	DrainPeriod time.Duration
	Log         zerolog.Logger
}

// Consumer wraps a kafka.Reader with the manual-ack, bounded-retry, DLQ
// discipline spec'd for the stage consumer runtime.
type Consumer struct {
	reader  *kafka.Reader
	dlq     *Producer
	opts    ConsumerOptions
	breaker *gobreaker.CircuitBreaker

	wg sync.WaitGroup
}

// NewConsumer builds a Consumer around the given Producer, which it uses
// to route undeliverable messages to the topic's DLQ sibling.
func NewConsumer(opts ConsumerOptions, dlq *Producer) *Consumer {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 200 * time.Millisecond
	}
	if opts.DrainPeriod <= 0 {
		opts.DrainPeriod = 30 * time.Second
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  opts.Brokers,
		GroupID:  opts.GroupID,
		Topic:    opts.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opts.Topic + "-handler",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Consumer{
		reader:  reader,
		dlq:     dlq,
		opts:    opts,
		breaker: breaker,
	}
}

// Run fetches messages one at a time from the assigned partitions, parses
// the envelope, invokes handler, and commits only after an Ack or a
// DLQ-after-retries. It blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	log := c.opts.Log.With().Str("topic", c.opts.Topic).Str("group", c.opts.GroupID).Logger()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
				c.wg.Wait()
				return nil
			}
			log.Warn().Err(err).Msg("fetch error")
			continue
		}

		c.wg.Add(1)
		c.handleOne(ctx, log, handler, msg)
		c.wg.Done()
	}
}

func (c *Consumer) handleOne(ctx context.Context, log zerolog.Logger, handler Handler, msg kafka.Message) {
	start := time.Now()
	defer func() {
		metrics.HandlerDuration.WithLabelValues(c.opts.Topic).Observe(time.Since(start).Seconds())
	}()

	var env event.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		log.Warn().Err(err).Msg("envelope parse error, routing to DLQ")
		metrics.EventsConsumedTotal.WithLabelValues(c.opts.Topic, "parse_error").Inc()
		c.routeDLQ(ctx, msg, "parse_error: "+err.Error())
		c.commit(ctx, log, msg)
		return
	}
	if env.Version != event.CurrentVersion {
		log.Warn().Int("version", env.Version).Msg("unsupported schema version, routing to DLQ")
		metrics.EventsConsumedTotal.WithLabelValues(c.opts.Topic, "unsupported_version").Inc()
		c.routeDLQ(ctx, msg, "unsupported_version")
		c.commit(ctx, log, msg)
		return
	}

	elog := log.With().
		Str("event_id", env.EventID).
		Str("aggregate_id", env.AggregateID).
		Str("event_type", env.EventType).
		Int("partition", msg.Partition).
		Logger()
	elog.Debug().Msg("handling message")

	var outcome Outcome
	attempt := 0
	for {
		attempt++
		result, breakerErr := c.breaker.Execute(func() (interface{}, error) {
			o := handler.Handle(ctx, env)
			if o.IsRetry() {
				return o, errors.New(o.Reason())
			}
			return o, nil
		})
		if breakerErr == nil {
			outcome = result.(Outcome)
			break
		}
		if o, ok := result.(Outcome); ok && !o.IsRetry() {
			outcome = o
			break
		}

		if attempt >= c.opts.MaxRetries || ctx.Err() != nil {
			elog.Error().Err(breakerErr).Int("attempt", attempt).Msg("retries exhausted, routing to DLQ")
			metrics.EventsConsumedTotal.WithLabelValues(c.opts.Topic, "retry_exhausted").Inc()
			c.routeDLQ(ctx, msg, breakerErr.Error())
			c.commit(ctx, elog, msg)
			return
		}
		backoff := c.opts.RetryBase * time.Duration(1<<uint(attempt-1))
		elog.Warn().Err(breakerErr).Int("attempt", attempt).Dur("backoff", backoff).Msg("transient error, retrying")
		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}

	if outcome.IsPermanent() {
		elog.Warn().Str("reason", outcome.Reason()).Msg("permanent failure, routing to DLQ")
		metrics.EventsConsumedTotal.WithLabelValues(c.opts.Topic, "permanent").Inc()
		c.routeDLQ(ctx, msg, outcome.Reason())
	} else {
		metrics.EventsConsumedTotal.WithLabelValues(c.opts.Topic, "ack").Inc()
	}
	c.commit(ctx, elog, msg)
}

func (c *Consumer) routeDLQ(ctx context.Context, msg kafka.Message, reason string) {
	if c.dlq == nil {
		return
	}
	dlqTopic := event.DLQTopic(c.opts.Topic)
	metrics.DLQMessagesTotal.WithLabelValues(c.opts.Topic).Inc()
	if err := c.dlq.WriteRaw(ctx, dlqTopic, msg.Key, msg.Value, map[string]string{"dlq_reason": reason}); err != nil {
		c.opts.Log.Error().Err(err).Msg("failed to publish to DLQ")
	}
}

func (c *Consumer) commit(ctx context.Context, log zerolog.Logger, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		log.Error().Err(err).Msg("commit failed")
	}
}

// Stop waits for an in-flight handler to finish (bounded by DrainPeriod
// and ctx), then closes the underlying reader, which unblocks any pending
// FetchMessage with io.EOF and makes Run return.
func (c *Consumer) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(c.opts.DrainPeriod):
	case <-ctx.Done():
	}
	return c.reader.Close()
}
