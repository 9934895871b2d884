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
	goredis "github.com/redis/go-redis/v9"

	"github.com/pagopa/payment-notice-generator/internal/domain"
	"github.com/pagopa/payment-notice-generator/internal/platform/apperr"
	"github.com/pagopa/payment-notice-generator/internal/platform/envutil"
	"github.com/pagopa/payment-notice-generator/internal/platform/logger"
)

const templateIndexKey = "index.json"

// TemplateStorage resolves notice templates out of the templates bucket. The
// layout is one folder per template: `<templateId>/template.zip`, plus a
// bucket-level `index.json` listing the known templates and their validation
// rules.
type TemplateStorage interface {
	GetTemplate(ctx context.Context, templateID string) ([]byte, error)
	GetTemplates(ctx context.Context) ([]domain.TemplateResource, error)
	GetTemplateResource(ctx context.Context, templateID string) (*domain.TemplateResource, error)
}

type templateStorage struct {
	log           *logger.Logger
	storageClient *storage.Client
	bucket        string
	cache         *goredis.Client
	cacheKey      string
	cacheTTL      time.Duration
}

// NewTemplateStorage wires the GCS client and, when REDIS_ADDR is set, a
// Redis cache for the template index. The cache is an optimization only:
// every failure falls through to the bucket.
func NewTemplateStorage(log *logger.Logger) (TemplateStorage, error) {
	serviceLog := log.With("service", "TemplateStorage")

	bucket := strings.TrimSpace(os.Getenv("TEMPLATE_GCS_BUCKET_NAME"))
	if bucket == "" {
		return nil, fmt.Errorf("missing env var TEMPLATE_GCS_BUCKET_NAME")
	}

	stClient, err := storage.NewClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	var cache *goredis.Client
	if addr := strings.TrimSpace(os.Getenv("REDIS_ADDR")); addr != "" {
		cache = goredis.NewClient(&goredis.Options{
			Addr:        addr,
			DialTimeout: 5 * time.Second,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cache.Ping(ctx).Err(); err != nil {
			serviceLog.Warn("Redis unreachable, template index cache disabled", "error", err)
			_ = cache.Close()
			cache = nil
		}
	}

	return &templateStorage{
		log:           serviceLog,
		storageClient: stClient,
		bucket:        bucket,
		cache:         cache,
		cacheKey:      envutil.Str("TEMPLATE_CACHE_KEY", "notice-generation:templates"),
		cacheTTL:      envutil.Duration("TEMPLATE_CACHE_TTL", 10*time.Minute),
	}, nil
}

func (s *templateStorage) GetTemplate(ctx context.Context, templateID string) ([]byte, error) {
	if strings.TrimSpace(templateID) == "" {
		return nil, apperr.New(apperr.TemplateNotFound, "empty template id")
	}
	key := templateID + "/template.zip"
	payload, err := s.readObject(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, apperr.Newf(apperr.TemplateNotFound, "template %q not found", templateID)
		}
		return nil, apperr.Wrap(apperr.TemplateClientUnavailable, err)
	}
	return payload, nil
}

func (s *templateStorage) GetTemplates(ctx context.Context) ([]domain.TemplateResource, error) {
	if cached := s.fromCache(ctx); cached != nil {
		return cached, nil
	}

	payload, err := s.readObject(ctx, templateIndexKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, apperr.New(apperr.TemplateNotFound, "template index not found")
		}
		return nil, apperr.Wrap(apperr.TemplateClientUnavailable, err)
	}

	var templates []domain.TemplateResource
	if err := json.Unmarshal(payload, &templates); err != nil {
		return nil, apperr.Wrap(apperr.TemplateClientError, err)
	}

	s.toCache(ctx, payload)
	return templates, nil
}

func (s *templateStorage) GetTemplateResource(ctx context.Context, templateID string) (*domain.TemplateResource, error) {
	templates, err := s.GetTemplates(ctx)
	if err != nil {
		return nil, err
	}
	for i := range templates {
		if strings.EqualFold(templates[i].TemplateID, templateID) {
			return &templates[i], nil
		}
	}
	return nil, apperr.Newf(apperr.TemplateNotFound, "template %q not found", templateID)
}

func (s *templateStorage) readObject(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	r, err := s.storageClient.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *templateStorage) fromCache(ctx context.Context) []domain.TemplateResource {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, s.cacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			s.log.Warn("Template cache read failed", "error", err)
		}
		return nil
	}
	var templates []domain.TemplateResource
	if err := json.Unmarshal(raw, &templates); err != nil {
		s.log.Warn("Template cache holds malformed payload, ignoring", "error", err)
		return nil
	}
	return templates
}

func (s *templateStorage) toCache(ctx context.Context, payload []byte) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey, payload, s.cacheTTL).Err(); err != nil {
		s.log.Warn("Template cache write failed", "error", err)
	}
}
