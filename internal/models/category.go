package models

import (
	"time"

	"github.com/pr0br0/cyboard/internal/utils"
)

// CategoryAncestor is a snapshot of one category in another category's parent chain.
type CategoryAncestor struct {
	ID   utils.SixID `bson:"_id" json:"id"`
	Name Localized   `bson:"name" json:"name"`
	Slug string      `bson:"slug" json:"slug"`
}

type CategoryMetadata struct {
	Title       Localized `bson:"title" json:"title"`
	Description Localized `bson:"description" json:"description"`
	Keywords    Localized `bson:"keywords" json:"keywords"`
}

// Category is a node of the category forest. Ancestors run root first, parent last.
type Category struct {
	Base          `bson:",inline"`
	Name          Localized          `bson:"name" json:"name"`
	Description   Localized          `bson:"description" json:"description"`
	Slug          string             `bson:"slug" json:"slug"`
	Parent        *utils.SixID       `bson:"parent" json:"parent"`
	Ancestors     []CategoryAncestor `bson:"ancestors" json:"ancestors"`
	Order         int                `bson:"order" json:"order"`
	IsActive      bool               `bson:"is_active" json:"isActive"`
	Image         string             `bson:"image,omitempty" json:"image,omitempty"`
	ImageKey      string             `bson:"image_key,omitempty" json:"imageKey,omitempty"`
	Metadata      CategoryMetadata   `bson:"metadata" json:"metadata"`
	ListingCount  int                `bson:"listing_count" json:"listingCount"`
	TotalListings int                `bson:"total_listings" json:"totalListings"`
	CreatedAt     time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updatedAt"`
}

// Snapshot returns the ancestor entry that descendants store for this category.
func (c *Category) Snapshot() CategoryAncestor {
	return CategoryAncestor{ID: c.ID, Name: c.Name, Slug: c.Slug}
}

// Chain returns the ancestors a direct child of c must carry.
func (c *Category) Chain() []CategoryAncestor {
	chain := make([]CategoryAncestor, 0, len(c.Ancestors)+1)
	chain = append(chain, c.Ancestors...)
	return append(chain, c.Snapshot())
}

// HasAncestor reports whether id appears in the ancestor chain.
func (c *Category) HasAncestor(id utils.SixID) bool {
	for _, a := range c.Ancestors {
		if a.ID == id {
			return true
		}
	}
	return false
}

// CategoryNode is a category with its children populated, used for tree output.
type CategoryNode struct {
	*Category
	Children []*CategoryNode `json:"children"`
}

// CategoryInput is the writable subset of a category.
type CategoryInput struct {
	Name        Localized        `json:"name"`
	Description Localized        `json:"description"`
	Slug        string           `json:"slug,omitempty"`
	Parent      *utils.SixID     `json:"parent,omitempty"`
	Order       int              `json:"order"`
	IsActive    *bool            `json:"isActive,omitempty"`
	Image       string           `json:"image,omitempty"`
	ImageKey    string           `json:"imageKey,omitempty"`
	Metadata    CategoryMetadata `json:"metadata"`
}

// CategoryPatch carries optional category updates. ClearParent moves the category to the root.
type CategoryPatch struct {
	Name        *Localized        `json:"name,omitempty"`
	Description *Localized        `json:"description,omitempty"`
	Slug        *string           `json:"slug,omitempty"`
	Parent      *utils.SixID      `json:"parent,omitempty"`
	ClearParent bool              `json:"clearParent,omitempty"`
	Order       *int              `json:"order,omitempty"`
	IsActive    *bool             `json:"isActive,omitempty"`
	Image       *string           `json:"image,omitempty"`
	ImageKey    *string           `json:"imageKey,omitempty"`
	Metadata    *CategoryMetadata `json:"metadata,omitempty"`
}

// CategoryOrder is one entry of a bulk reorder request.
type CategoryOrder struct {
	ID    utils.SixID `json:"id"`
	Order int         `json:"order"`
}

// CategoryCount is a category ranked by its active listing count.
type CategoryCount struct {
	ID           utils.SixID `json:"id"`
	Name         Localized   `json:"name"`
	Slug         string      `json:"slug"`
	ListingCount int         `json:"listingCount"`
}
