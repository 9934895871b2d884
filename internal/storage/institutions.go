package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/pagopa/payment-notice-generator/internal/domain"
	"github.com/pagopa/payment-notice-generator/internal/platform/apperr"
	"github.com/pagopa/payment-notice-generator/internal/platform/logger"
)

// InstitutionStorage serves creditor institution banner data, one JSON object
// per institution at `<taxCode>/data.json`. The stored record is authoritative
// over whatever the request message carried.
type InstitutionStorage interface {
	GetInstitution(ctx context.Context, taxCode string) (*domain.CreditorInstitution, error)
}

type institutionStorage struct {
	log           *logger.Logger
	storageClient *storage.Client
	bucket        string
}

func NewInstitutionStorage(log *logger.Logger) (InstitutionStorage, error) {
	bucket := strings.TrimSpace(os.Getenv("INSTITUTION_GCS_BUCKET_NAME"))
	if bucket == "" {
		return nil, fmt.Errorf("missing env var INSTITUTION_GCS_BUCKET_NAME")
	}

	stClient, err := storage.NewClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &institutionStorage{
		log:           log.With("service", "InstitutionStorage"),
		storageClient: stClient,
		bucket:        bucket,
	}, nil
}

func (s *institutionStorage) GetInstitution(ctx context.Context, taxCode string) (*domain.CreditorInstitution, error) {
	if strings.TrimSpace(taxCode) == "" {
		return nil, apperr.New(apperr.InstitutionNotFound, "empty institution tax code")
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	r, err := s.storageClient.Bucket(s.bucket).Object(taxCode + "/data.json").NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, apperr.Newf(apperr.InstitutionNotFound, "institution %q not found", taxCode)
		}
		return nil, apperr.Wrap(apperr.InstitutionNotFound, err)
	}
	defer r.Close()

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, apperr.Wrap(apperr.InstitutionParsingError, err)
	}

	var institution domain.CreditorInstitution
	if err := json.Unmarshal(payload, &institution); err != nil {
		return nil, apperr.Wrap(apperr.InstitutionParsingError, err)
	}
	return &institution, nil
}
