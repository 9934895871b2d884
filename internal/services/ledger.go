package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/pagopa/payment-notice-generator/internal/data/repos/generation"
	"github.com/pagopa/payment-notice-generator/internal/domain"
	"github.com/pagopa/payment-notice-generator/internal/events"
	"github.com/pagopa/payment-notice-generator/internal/platform/cipher"
	"github.com/pagopa/payment-notice-generator/internal/platform/dbctx"
	"github.com/pagopa/payment-notice-generator/internal/platform/logger"
)

const encryptionFailedSentinel = "Unable to encrypt data"

// ErrorLedger records generation failures durably and keeps the folder's
// failure counter in step with the record set. All methods swallow their own
// secondary failures: a broken ledger write must never mask the original
// generation error, and a broken cleanup must never fail a successful
// generation.
type ErrorLedger interface {
	// RecordFailure stores (or refreshes) the failure of one item. The folder
	// counter is incremented only when the record is first created, so retries
	// of the same item count once.
	RecordFailure(ctx context.Context, errorID string, itemID string, folderID string, item *domain.NoticeGenerationRequestItem, description string)
	// ClearOnRecovery removes a previously recorded failure after the item
	// generated successfully, undoing exactly one increment.
	ClearOnRecovery(ctx context.Context, errorID string, folderID string)
	// RecordUnparsable stores a message body that could not be decoded at all.
	// No folder counter is touched: without a folder identity there is nothing
	// to count against.
	RecordUnparsable(ctx context.Context, raw []byte)
}

type errorLedger struct {
	log       *logger.Logger
	folders   generation.FolderRepo
	records   generation.ErrorRecordRepo
	publisher events.Publisher
	cipher    *cipher.Cipher
}

func NewErrorLedger(
	log *logger.Logger,
	folders generation.FolderRepo,
	records generation.ErrorRecordRepo,
	publisher events.Publisher,
	dataCipher *cipher.Cipher,
) ErrorLedger {
	return &errorLedger{
		log:       log.With("service", "ErrorLedger"),
		folders:   folders,
		records:   records,
		publisher: publisher,
		cipher:    dataCipher,
	}
}

func (l *errorLedger) RecordFailure(ctx context.Context, errorID string, itemID string, folderID string, item *domain.NoticeGenerationRequestItem, description string) {
	key := errorID
	if key == "" {
		key = itemID
	}
	if key == "" || folderID == "" {
		l.log.Warn("Dropping failure with no usable ledger key", "folder_id", folderID)
		return
	}

	dbc := dbctx.Context{Ctx: ctx}
	existing, err := l.records.GetByKey(dbc, key, folderID)
	if err != nil {
		l.log.Error("Ledger lookup failed", "error_id", key, "folder_id", folderID, "error", err)
		return
	}

	record := &domain.ErrorRecord{
		ErrorID:          key,
		FolderID:         folderID,
		ErrorDescription: description,
		NumberOfAttempts: 1,
	}
	record.Data, record.CompressionError = l.encryptItem(item)

	if existing == nil {
		if err := l.records.Create(dbc, record); err != nil {
			l.log.Error("Ledger create failed", "error_id", key, "folder_id", folderID, "error", err)
			return
		}
		if _, err := l.folders.IncrementFailed(dbc, folderID); err != nil {
			l.log.Error("Failure counter increment failed", "folder_id", folderID, "error", err)
		}
	} else {
		if err := l.records.RefreshDescription(dbc, key, folderID, description); err != nil {
			l.log.Error("Ledger refresh failed", "error_id", key, "folder_id", folderID, "error", err)
		}
		record.Data = existing.Data
		record.CompressionError = existing.CompressionError
		record.NumberOfAttempts = existing.NumberOfAttempts + 1
		record.CreatedAt = existing.CreatedAt
	}

	if err := l.publisher.NoticeError(ctx, record); err != nil {
		l.log.Error("Error event publish failed", "error_id", key, "folder_id", folderID, "error", err)
	}
}

func (l *errorLedger) ClearOnRecovery(ctx context.Context, errorID string, folderID string) {
	if errorID == "" || folderID == "" {
		return
	}
	dbc := dbctx.Context{Ctx: ctx}
	deleted, err := l.records.DeleteByKey(dbc, errorID, folderID)
	if err != nil {
		l.log.Error("Ledger delete failed", "error_id", errorID, "folder_id", folderID, "error", err)
		return
	}
	if deleted == 0 {
		return
	}
	if err := l.folders.DecrementFailed(dbc, folderID); err != nil {
		l.log.Error("Failure counter decrement failed", "folder_id", folderID, "error", err)
	}
}

func (l *errorLedger) RecordUnparsable(ctx context.Context, raw []byte) {
	record := &domain.ErrorRecord{
		ErrorID:          uuid.NewString(),
		FolderID:         domain.UnknownFolderID,
		ErrorDescription: "Unable to decode notice generation request",
		NumberOfAttempts: 1,
	}
	data, err := l.cipher.Encrypt(string(raw))
	if err != nil {
		l.log.Error("Failed to encrypt unparsable payload", "error", err)
		record.Data = encryptionFailedSentinel
		record.CompressionError = true
	} else {
		record.Data = data
	}

	dbc := dbctx.Context{Ctx: ctx}
	if err := l.records.Create(dbc, record); err != nil {
		l.log.Error("Ledger create failed for unparsable payload", "error", err)
		return
	}
	if err := l.publisher.NoticeError(ctx, record); err != nil {
		l.log.Error("Error event publish failed for unparsable payload", "error", err)
	}
}

func (l *errorLedger) encryptItem(item *domain.NoticeGenerationRequestItem) (string, bool) {
	if item == nil {
		return "", false
	}
	raw, err := json.Marshal(item)
	if err != nil {
		l.log.Error("Failed to marshal failed item", "error", err)
		return encryptionFailedSentinel, true
	}
	data, err := l.cipher.Encrypt(string(raw))
	if err != nil {
		l.log.Error("Failed to encrypt failed item", "error", err)
		return encryptionFailedSentinel, true
	}
	return data, false
}
