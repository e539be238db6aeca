package services

import "github.com/pr0br0/cyboard/internal/models"

// PageResult is one page of items with its pagination envelope.
type PageResult[T any] struct {
	Items      []T               `json:"items"`
	Pagination models.Pagination `json:"pagination"`
}
