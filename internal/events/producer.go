package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/nsqio/go-nsq"

	"github.com/pagopa/payment-notice-generator/internal/domain"
	"github.com/pagopa/payment-notice-generator/internal/platform/envutil"
	"github.com/pagopa/payment-notice-generator/internal/platform/logger"
)

// Publisher emits the two outbound generation events: the folder aggregate
// when a batch reaches COMPLETING, and the error record when an item fails.
// Downstream consumers own the PROCESSED / PROCESSED_WITH_FAILURES
// transitions, this service only announces.
type Publisher interface {
	NoticeComplete(ctx context.Context, folder *domain.Folder) error
	NoticeError(ctx context.Context, record *domain.ErrorRecord) error
	Close()
}

type publisher struct {
	log           *logger.Logger
	producer      *nsq.Producer
	completeTopic string
	errorTopic    string
}

func NewPublisher(log *logger.Logger) (Publisher, error) {
	addr := strings.TrimSpace(os.Getenv("NSQD_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing NSQD_ADDR")
	}

	producer, err := nsq.NewProducer(addr, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create nsq producer: %w", err)
	}

	return &publisher{
		log:           log.With("service", "EventPublisher"),
		producer:      producer,
		completeTopic: envutil.Str("NOTICE_COMPLETE_TOPIC", "notice-complete"),
		errorTopic:    envutil.Str("NOTICE_ERROR_TOPIC", "notice-error"),
	}, nil
}

func (p *publisher) NoticeComplete(ctx context.Context, folder *domain.Folder) error {
	payload, err := json.Marshal(folder)
	if err != nil {
		return err
	}
	if err := p.producer.Publish(p.completeTopic, payload); err != nil {
		p.log.Error("Failed to publish complete event", "folder_id", folder.ID, "error", err)
		return err
	}
	p.log.Info("Published complete event", "folder_id", folder.ID)
	return nil
}

func (p *publisher) NoticeError(ctx context.Context, record *domain.ErrorRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := p.producer.Publish(p.errorTopic, payload); err != nil {
		p.log.Error("Failed to publish error event",
			"folder_id", record.FolderID, "error_id", record.ErrorID, "error", err)
		return err
	}
	return nil
}

func (p *publisher) Close() {
	if p.producer != nil {
		p.producer.Stop()
	}
}
