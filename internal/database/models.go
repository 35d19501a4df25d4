package database

import (
	"encoding/json"
	"time"
)

// MetaKind is the dimension a meta item belongs to.
type MetaKind string

const (
	MetaKindCollection MetaKind = "collection"
	MetaKindTag        MetaKind = "tag"
	MetaKindFolder     MetaKind = "folder"
	MetaKindFilter     MetaKind = "filter"
)

// Collection names with special semantics.
const (
	// CollectionGeneral is the default collection every non-trashed photo
	// belongs to.
	CollectionGeneral = "general"

	// CollectionTrashed marks a photo as trashed. It is exclusive: a
	// trashed photo is in no other collection.
	CollectionTrashed = "trashed"

	// CollectionUnsorted is virtual. It is never stored; a photo with an
	// empty collections array is implicitly unsorted.
	CollectionUnsorted = "unsorted"
)

// PhotoRecord is the per-file metadata record.
type PhotoRecord struct {
	ID          string          `json:"id"`
	Path        string          `json:"path"`
	Filename    string          `json:"filename"`
	Dirname     string          `json:"dirname"`
	Extension   string          `json:"extension"`
	Size        int64           `json:"size"`
	UID         int             `json:"uid"`
	GID         int             `json:"gid"`
	Width       *int            `json:"width,omitempty"`
	Height      *int            `json:"height,omitempty"`
	Aspect      *float64        `json:"aspect,omitempty"`
	TakenAt     *time.Time      `json:"takenAt,omitempty"`
	Make        *string         `json:"make,omitempty"`
	Model       *string         `json:"model,omitempty"`
	Orientation *int            `json:"orientation,omitempty"`
	Fingerprint string          `json:"fingerprint,omitempty"`
	Rating      int             `json:"rating"`
	Tags        []string        `json:"tags"`
	Collections []string        `json:"collections"`
	CtrlField   json.RawMessage `json:"ctrlField,omitempty"`
	FaceDataID  *string         `json:"faceDataId,omitempty"`
	MissingAt   *time.Time      `json:"missingAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Clone returns a deep copy of the record. Used to keep a pre-edit snapshot
// for membership reconciliation.
func (p *PhotoRecord) Clone() *PhotoRecord {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Tags = append([]string(nil), p.Tags...)
	cp.Collections = append([]string(nil), p.Collections...)
	if p.CtrlField != nil {
		cp.CtrlField = append(json.RawMessage(nil), p.CtrlField...)
	}
	return &cp
}

// FaceDetection is one detected face within a photo. Index is a stable
// identifier within the owning FaceDataRecord and is never renumbered.
type FaceDetection struct {
	Index       int       `json:"index"`
	Descriptor  []float64 `json:"descriptor"`
	PersonID    string    `json:"personRecordId,omitempty"`
	IsReference bool      `json:"isReferenceDescriptor,omitempty"`
	IsManual    bool      `json:"isManuallySet,omitempty"`
}

// FaceDataRecord holds the face detections for one photo. It is owned by the
// photo record and removed when the photo is purged.
type FaceDataRecord struct {
	ID         string          `json:"id"`
	Path       string          `json:"path"`
	Detections []FaceDetection `json:"faceData"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// ReferenceDescriptor is a face descriptor confirmed to belong to a person,
// together with the FaceDataRecord it came from.
type ReferenceDescriptor struct {
	FaceDataID string    `json:"faceDataRecordId"`
	Index      int       `json:"index"`
	Descriptor []float64 `json:"descriptor"`
	IsManual   bool      `json:"isManuallySet,omitempty"`
}

// PersonRecord is a named individual. Referenced, never owned, by face
// detections.
type PersonRecord struct {
	ID          string                `json:"id"`
	FullName    string                `json:"fullName"`
	FirstName   string                `json:"firstName"`
	LastName    string                `json:"lastName"`
	Descriptors []ReferenceDescriptor `json:"faceDescriptors"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// MetaTypeRecord is one distinct value along a meta dimension: a collection
// name, a tag name, a folder path, or a serialized filter. For filter records
// Name holds the canonical filter serialization and CursorIndex the persisted
// browse position.
type MetaTypeRecord struct {
	ID          string    `json:"id"`
	Kind        MetaKind  `json:"type"`
	Name        string    `json:"name"`
	CursorIndex int       `json:"cursorIndex,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MetaItemMembership is one membership edge between a photo and a meta item.
// Unique per (PhotoID, MetaTypeID).
type MetaItemMembership struct {
	ID         string    `json:"id"`
	PhotoID    string    `json:"fileInfoId"`
	MetaTypeID string    `json:"metaTypeItemId"`
	ItemName   string    `json:"metaItemName"`
	ItemKind   MetaKind  `json:"metaTypeLabel"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MetaCount is the number of photos linked to one meta item.
type MetaCount struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
	Label string `json:"label,omitempty"`
	Long  string `json:"long,omitempty"`
}
