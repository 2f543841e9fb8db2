// Package bucket implements the Bucket data model from spec §3.
package bucket

import (
	"time"

	"github.com/google/uuid"
)

// Versioning is one of the three states spec §3 allows.
type Versioning string

const (
	VersioningDisabled  Versioning = "DISABLED"
	VersioningEnabled   Versioning = "ENABLED"
	VersioningSuspended Versioning = "SUSPENDED"
)

// Bucket is the on-disk shape of buckets/<name>.json (spec §6).
type Bucket struct {
	ID                           string     `json:"_id"`
	Name                         string     `json:"name"`
	SystemOwner                  string     `json:"system_owner,omitempty"`
	BucketOwner                  string     `json:"bucket_owner"`
	OwnerAccount                 string     `json:"owner_account"`
	Versioning                   Versioning `json:"versioning"`
	Path                         string     `json:"path"`
	ShouldCreateUnderlyingStorage bool      `json:"should_create_underlying_storage"`
	CreationDate                 time.Time  `json:"creation_date"`
	Tag                          any        `json:"tag,omitempty"`
	S3Policy                     any        `json:"s3_policy,omitempty"`
	Encryption                   any        `json:"encryption,omitempty"`
	Website                      any        `json:"website,omitempty"`
	FSBackend                    string     `json:"fs_backend,omitempty"`
}

// NewID generates a fresh bucket identifier.
func NewID() string { return uuid.NewString() }
