package generation

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pagopa/payment-notice-generator/internal/domain"
	"github.com/pagopa/payment-notice-generator/internal/platform/dbctx"
	"github.com/pagopa/payment-notice-generator/internal/platform/logger"
)

// FolderRepo serializes all mutations of the folder aggregate through
// conditional single-statement updates. Workers on separate machines race on
// the same folder, so correctness never depends on in-process locking.
type FolderRepo interface {
	GetByID(dbc dbctx.Context, folderID string) (*domain.Folder, error)
	Create(dbc dbctx.Context, folder *domain.Folder) error
	CountItems(dbc dbctx.Context, folderID string) (int64, error)
	RegisterItem(dbc dbctx.Context, folderID string, itemID string) (int64, error)
	IncrementFailed(dbc dbctx.Context, folderID string) (int64, error)
	DecrementFailed(dbc dbctx.Context, folderID string) error
	TryComplete(dbc dbctx.Context, folderID string) (bool, error)
}

type folderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFolderRepo(db *gorm.DB, baseLog *logger.Logger) FolderRepo {
	return &folderRepo{
		db:  db,
		log: baseLog.With("repo", "FolderRepo"),
	}
}

func (r *folderRepo) GetByID(dbc dbctx.Context, folderID string) (*domain.Folder, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if folderID == "" {
		return nil, nil
	}
	var folder domain.Folder
	err := transaction.WithContext(dbc.Ctx).
		Preload("Items").
		Where("id = ?", folderID).
		First(&folder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

func (r *folderRepo) Create(dbc dbctx.Context, folder *domain.Folder) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(folder).Error
}

func (r *folderRepo) CountItems(dbc dbctx.Context, folderID string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&domain.FolderItem{}).
		Where("folder_id = ?", folderID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// RegisterItem adds the item to the folder's set and moves the folder to
// PROCESSING. Re-registering the same item is a no-op thanks to the composite
// primary key; a folder already COMPLETING is left alone. Returns the number
// of folder rows matched by the status update (0 when the folder is absent).
func (r *folderRepo) RegisterItem(dbc dbctx.Context, folderID string, itemID string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if folderID == "" || itemID == "" {
		return 0, nil
	}

	item := domain.FolderItem{FolderID: folderID, ItemID: itemID, CreatedAt: time.Now()}
	if err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&item).Error; err != nil {
		return 0, err
	}

	res := transaction.WithContext(dbc.Ctx).
		Model(&domain.Folder{}).
		Where("id = ? AND status IN ?", folderID, []domain.FolderStatus{
			domain.FolderStatusInserted,
			domain.FolderStatusProcessing,
		}).
		Updates(map[string]interface{}{
			"status":     domain.FolderStatusProcessing,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *folderRepo) IncrementFailed(dbc dbctx.Context, folderID string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&domain.Folder{}).
		Where("id = ?", folderID).
		Updates(map[string]interface{}{
			"number_of_elements_failed": gorm.Expr("number_of_elements_failed + 1"),
			"updated_at":                time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// DecrementFailed lowers the failure counter, guarded in the statement itself
// so the counter can never go negative. Matching no row is not an error.
func (r *folderRepo) DecrementFailed(dbc dbctx.Context, folderID string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&domain.Folder{}).
		Where("id = ? AND number_of_elements_failed >= 1", folderID).
		Updates(map[string]interface{}{
			"number_of_elements_failed": gorm.Expr("number_of_elements_failed - 1"),
			"updated_at":                time.Now(),
		}).Error
}

// TryComplete transitions PROCESSING to COMPLETING when every expected
// element is accounted for, either registered or recorded as failed. The
// whole check lives in one conditional update, so among concurrent callers
// exactly one observes true.
func (r *folderRepo) TryComplete(dbc dbctx.Context, folderID string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	itemCount := transaction.WithContext(dbc.Ctx).
		Model(&domain.FolderItem{}).
		Select("count(*)").
		Where("folder_id = ?", folderID)

	res := transaction.WithContext(dbc.Ctx).
		Model(&domain.Folder{}).
		Where("id = ? AND status = ?", folderID, domain.FolderStatusProcessing).
		Where("number_of_elements_total <= number_of_elements_failed + (?)", itemCount).
		Updates(map[string]interface{}{
			"status":     domain.FolderStatusCompleting,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
