package models

import (
	"time"

	"github.com/pr0br0/cyboard/internal/utils"
)

// CascadeStep is one idempotent step of the listing delete cascade.
type CascadeStep string

const (
	StepReleaseImages   CascadeStep = "release_images"
	StepDetachAuthor    CascadeStep = "detach_author"
	StepStripFavorites  CascadeStep = "strip_favorites"
	StepDeleteListing   CascadeStep = "delete_listing"
	StepRecountCategory CascadeStep = "recount_category"
)

// CascadeSteps is the order in which the steps run.
var CascadeSteps = []CascadeStep{
	StepReleaseImages,
	StepDetachAuthor,
	StepStripFavorites,
	StepDeleteListing,
	StepRecountCategory,
}

type CascadeStatus string

const (
	CascadePending CascadeStatus = "pending"
	CascadeDone    CascadeStatus = "done"
)

// CascadeJob records a listing deletion until every step has completed.
// It carries what the steps need so they still work after the listing document is gone.
type CascadeJob struct {
	Base        `bson:",inline"`
	Listing     utils.SixID   `bson:"listing" json:"listing"`
	Author      utils.SixID   `bson:"author" json:"author"`
	Category    utils.SixID   `bson:"category" json:"category"`
	StorageKeys []string      `bson:"storage_keys" json:"storageKeys"`
	Completed   []CascadeStep `bson:"completed" json:"completed"`
	Status      CascadeStatus `bson:"status" json:"status"`
	Attempts    int           `bson:"attempts" json:"attempts"`
	LastError   string        `bson:"last_error,omitempty" json:"lastError,omitempty"`
	CreatedAt   time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time     `bson:"updated_at" json:"updatedAt"`
}

// Done reports whether step has already completed.
func (j *CascadeJob) Done(step CascadeStep) bool {
	for _, s := range j.Completed {
		if s == step {
			return true
		}
	}
	return false
}
