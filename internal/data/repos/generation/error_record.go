package generation

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/pagopa/payment-notice-generator/internal/domain"
	"github.com/pagopa/payment-notice-generator/internal/platform/dbctx"
	"github.com/pagopa/payment-notice-generator/internal/platform/logger"
)

// ErrorRecordRepo stores failed generation items keyed by (error id, folder
// id). Creation and refresh are separate single statements; the ledger
// service decides which to call based on the lookup.
type ErrorRecordRepo interface {
	GetByKey(dbc dbctx.Context, errorID string, folderID string) (*domain.ErrorRecord, error)
	Create(dbc dbctx.Context, record *domain.ErrorRecord) error
	RefreshDescription(dbc dbctx.Context, errorID string, folderID string, description string) error
	DeleteByKey(dbc dbctx.Context, errorID string, folderID string) (int64, error)
}

type errorRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewErrorRecordRepo(db *gorm.DB, baseLog *logger.Logger) ErrorRecordRepo {
	return &errorRecordRepo{
		db:  db,
		log: baseLog.With("repo", "ErrorRecordRepo"),
	}
}

func (r *errorRecordRepo) GetByKey(dbc dbctx.Context, errorID string, folderID string) (*domain.ErrorRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if errorID == "" || folderID == "" {
		return nil, nil
	}
	var record domain.ErrorRecord
	err := transaction.WithContext(dbc.Ctx).
		Where("error_id = ? AND folder_id = ?", errorID, folderID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *errorRecordRepo) Create(dbc dbctx.Context, record *domain.ErrorRecord) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	return transaction.WithContext(dbc.Ctx).Create(record).Error
}

// RefreshDescription updates an existing record in place: the description is
// replaced and the attempt counter bumped, but the failure is never counted
// twice against the folder.
func (r *errorRecordRepo) RefreshDescription(dbc dbctx.Context, errorID string, folderID string, description string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&domain.ErrorRecord{}).
		Where("error_id = ? AND folder_id = ?", errorID, folderID).
		Updates(map[string]interface{}{
			"error_description":  description,
			"number_of_attempts": gorm.Expr("number_of_attempts + 1"),
		}).Error
}

func (r *errorRecordRepo) DeleteByKey(dbc dbctx.Context, errorID string, folderID string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("error_id = ? AND folder_id = ?", errorID, folderID).
		Delete(&domain.ErrorRecord{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
