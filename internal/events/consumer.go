package events

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/pagopa/payment-notice-generator/internal/platform/envutil"
	"github.com/pagopa/payment-notice-generator/internal/platform/logger"
)

// HandlerFunc processes one inbound generation request body. A non-nil error
// requeues the message, so handlers must only return errors for failures that
// a retry can fix.
type HandlerFunc func(ctx context.Context, payload []byte) error

// Consumer reads notice generation requests off NSQ and feeds them to the
// orchestrator. Retry and backoff stay on the NSQ side.
type Consumer struct {
	log           *logger.Logger
	consumer      *nsq.Consumer
	nsqdAddr      string
	lookupdAddrs  []string
	handleTimeout time.Duration
}

func NewConsumer(log *logger.Logger, handler HandlerFunc) (*Consumer, error) {
	topic := envutil.Str("NOTICE_GENERATION_TOPIC", "notice-generation")
	channel := envutil.Str("NOTICE_GENERATION_CHANNEL", "generator")
	concurrency := envutil.Int("NOTICE_GENERATION_CONCURRENCY", 4)
	handleTimeout := envutil.Duration("NOTICE_GENERATION_HANDLE_TIMEOUT", 2*time.Minute)

	nsqdAddr := strings.TrimSpace(os.Getenv("NSQD_ADDR"))
	lookupdAddrs := splitAddrs(os.Getenv("NSQ_LOOKUPD_ADDRS"))
	if nsqdAddr == "" && len(lookupdAddrs) == 0 {
		return nil, fmt.Errorf("no nsqd address or lookupd configured")
	}

	cfg := nsq.NewConfig()
	cfg.MaxInFlight = envutil.Int("NOTICE_GENERATION_MAX_IN_FLIGHT", concurrency)
	cfg.MaxAttempts = uint16(envutil.Int("NOTICE_GENERATION_MAX_ATTEMPTS", 10))

	consumer, err := nsq.NewConsumer(topic, channel, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create nsq consumer: %w", err)
	}

	consumerLog := log.With("service", "EventConsumer", "topic", topic, "channel", channel)
	consumer.AddConcurrentHandlers(nsq.HandlerFunc(func(message *nsq.Message) error {
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		if err := handler(ctx, message.Body); err != nil {
			consumerLog.Error("Message handling failed, requeueing", "attempts", message.Attempts, "error", err)
			return err
		}
		return nil
	}), concurrency)

	return &Consumer{
		log:           consumerLog,
		consumer:      consumer,
		nsqdAddr:      nsqdAddr,
		lookupdAddrs:  lookupdAddrs,
		handleTimeout: handleTimeout,
	}, nil
}

// Start connects and blocks until the consumer stops or ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if c.nsqdAddr != "" {
		if err := c.consumer.ConnectToNSQD(c.nsqdAddr); err != nil {
			return fmt.Errorf("failed to connect to nsqd %s: %w", c.nsqdAddr, err)
		}
	}
	for _, addr := range c.lookupdAddrs {
		if err := c.consumer.ConnectToNSQLookupd(addr); err != nil {
			return fmt.Errorf("failed to connect to lookupd %s: %w", addr, err)
		}
	}
	c.log.Info("Consumer connected")

	select {
	case <-ctx.Done():
		c.consumer.Stop()
		<-c.consumer.StopChan
		return ctx.Err()
	case <-c.consumer.StopChan:
		return nil
	}
}

func (c *Consumer) Stop() {
	if c.consumer != nil {
		c.consumer.Stop()
	}
}

func splitAddrs(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
