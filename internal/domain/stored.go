package domain

import "context"

// StoredRecord is the backend's persisted form of a Record. Entity fields
// live in Data as canonical JSON; SearchText is a lowercased concatenation of
// the string values used for keyword search.
type StoredRecord struct {
	BaseModel
	Entity     string `gorm:"size:64;index;not null" json:"entity"`
	Data       string `gorm:"type:text;not null" json:"-"`
	SearchText string `gorm:"type:text" json:"-"`
	CreatedBy  string `gorm:"size:100" json:"created_by"`
	UpdatedBy  string `gorm:"size:100" json:"updated_by"`
}

// TableName overrides the GORM default.
func (StoredRecord) TableName() string {
	return "records"
}

// Reference is a field of Entity whose values are record ids of another entity.
type Reference struct {
	Entity string
	Field  string
}

// RecordRepository defines the data access interface for stored records.
type RecordRepository interface {
	Create(ctx context.Context, rec *StoredRecord) error
	GetByID(ctx context.Context, entity string, id uint) (*StoredRecord, error)
	List(ctx context.Context, entity string, req PageRequest) (*PageResult[StoredRecord], error)
	Update(ctx context.Context, rec *StoredRecord) error
	// Delete removes the record unless a record of another entity holds its
	// id in one of refs, in which case a CodeConflict error is returned.
	Delete(ctx context.Context, entity string, id uint, refs []Reference) error
}

// RecordService defines the backend operations behind the REST contract.
type RecordService interface {
	Create(ctx context.Context, entity Entity, actor string, payload Payload) (Record, error)
	List(ctx context.Context, entity Entity, req PageRequest) (*PageResult[Record], error)
	Update(ctx context.Context, entity Entity, id uint, actor string, payload Payload) (Record, error)
	Delete(ctx context.Context, entity Entity, id uint) error
}
