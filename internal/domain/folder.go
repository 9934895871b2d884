package domain

import (
	"time"
)

// FolderStatus is the lifecycle of a massive generation request. Transitions
// are enforced by the folder repository's conditional updates:
// INSERTED -> PROCESSING -> COMPLETING, then reconciliation (outside this
// service) moves COMPLETING to PROCESSED or PROCESSED_WITH_FAILURES. FAILED
// is terminal and reachable only through the batch-level abort flow.
type FolderStatus string

const (
	FolderStatusInserted              FolderStatus = "INSERTED"
	FolderStatusProcessing            FolderStatus = "PROCESSING"
	FolderStatusCompleting            FolderStatus = "COMPLETING"
	FolderStatusFailed                FolderStatus = "FAILED"
	FolderStatusProcessed             FolderStatus = "PROCESSED"
	FolderStatusProcessedWithFailures FolderStatus = "PROCESSED_WITH_FAILURES"
)

// Folder is the batch aggregate for a massive notice generation request.
// Items live in their own table so that registering an item is a single
// conditional insert instead of a read-modify-write on an embedded list.
type Folder struct {
	ID                     string       `gorm:"primaryKey;column:id" json:"id"`
	Status                 FolderStatus `gorm:"column:status;not null;index" json:"status"`
	NumberOfElementsTotal  int          `gorm:"column:number_of_elements_total;not null;default:0" json:"numberOfElementsTotal"`
	NumberOfElementsFailed int          `gorm:"column:number_of_elements_failed;not null;default:0" json:"numberOfElementsFailed"`
	Items                  []FolderItem `gorm:"foreignKey:FolderID;references:ID" json:"items,omitempty"`
	CreatedAt              time.Time    `gorm:"not null;index" json:"createdAt"`
	UpdatedAt              time.Time    `gorm:"not null" json:"updatedAt"`
}

func (Folder) TableName() string { return "payment_generation_request" }

// ItemIDs flattens the loaded item rows for event payloads.
func (f *Folder) ItemIDs() []string {
	out := make([]string, 0, len(f.Items))
	for _, item := range f.Items {
		out = append(out, item.ItemID)
	}
	return out
}

// FolderItem is one generated notice registered under a folder. The composite
// primary key gives the item list set semantics at the database level.
type FolderItem struct {
	FolderID  string    `gorm:"primaryKey;column:folder_id" json:"folderId"`
	ItemID    string    `gorm:"primaryKey;column:item_id" json:"itemId"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

func (FolderItem) TableName() string { return "payment_generation_request_item" }
