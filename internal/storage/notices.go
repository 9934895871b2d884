package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/pagopa/payment-notice-generator/internal/platform/apperr"
	"github.com/pagopa/payment-notice-generator/internal/platform/logger"
)

// NoticeStorage persists rendered notices at `<folderId>/<itemId>.pdf`.
// Writes are idempotent: re-rendering an item overwrites the same object.
type NoticeStorage interface {
	SaveNotice(ctx context.Context, pdf []byte, folderID string, itemID string) error
}

type noticeStorage struct {
	log           *logger.Logger
	storageClient *storage.Client
	bucket        string
}

func NewNoticeStorage(log *logger.Logger) (NoticeStorage, error) {
	bucket := strings.TrimSpace(os.Getenv("NOTICE_GCS_BUCKET_NAME"))
	if bucket == "" {
		return nil, fmt.Errorf("missing env var NOTICE_GCS_BUCKET_NAME")
	}

	stClient, err := storage.NewClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &noticeStorage{
		log:           log.With("service", "NoticeStorage"),
		storageClient: stClient,
		bucket:        bucket,
	}, nil
}

func (s *noticeStorage) SaveNotice(ctx context.Context, pdf []byte, folderID string, itemID string) error {
	if folderID == "" || itemID == "" {
		return apperr.New(apperr.NoticeSaveError, "missing folder or item id")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.storageClient.Bucket(s.bucket).Object(folderID + "/" + itemID + ".pdf").NewWriter(ctx)
	w.ContentType = "application/pdf"
	if _, err := io.Copy(w, bytes.NewReader(pdf)); err != nil {
		_ = w.Close()
		return apperr.Wrap(apperr.NoticeSaveError, err)
	}
	if err := w.Close(); err != nil {
		return apperr.Wrap(apperr.NoticeSaveError, err)
	}
	return nil
}
