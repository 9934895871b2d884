package domain

import "time"

// UnknownFolderID keys ledger entries for messages that could not be decoded
// at all, where no real folder identity is available.
const UnknownFolderID = "UNKNOWN"

// ErrorRecord is one durably recorded generation failure. The composite key
// (error id, folder id) is what makes repeated failures of the same logical
// item collapse into a single record.
type ErrorRecord struct {
	ErrorID          string    `gorm:"primaryKey;column:error_id" json:"errorId"`
	FolderID         string    `gorm:"primaryKey;column:folder_id" json:"folderId"`
	ErrorDescription string    `gorm:"column:error_description" json:"errorDescription"`
	Data             string    `gorm:"column:data" json:"data"`
	NumberOfAttempts int       `gorm:"column:number_of_attempts;not null;default:0" json:"numberOfAttempts"`
	CompressionError bool      `gorm:"column:compression_error;not null;default:false" json:"compressionError"`
	CreatedAt        time.Time `gorm:"not null;index" json:"createdAt"`
}

func (ErrorRecord) TableName() string { return "payment_generation_request_error" }
