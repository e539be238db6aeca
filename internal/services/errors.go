package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pr0br0/cyboard/internal/repository"
	"github.com/pr0br0/cyboard/internal/storage"
)

var (
	// ErrNotFound is the repository sentinel so errors.Is works across layers.
	ErrNotFound = repository.ErrNotFound

	ErrUnauthorized       = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrForbidden          = errors.New("access denied")
	ErrInvalidOrExpired   = errors.New("invalid or expired")
	ErrAccountDisabled    = errors.New("account is not active")

	ErrEmailExists = errors.New("Email already registered")
	ErrPhoneExists = errors.New("Phone number already registered")
	ErrSlugExists  = errors.New("Category with this slug already exists")

	ErrCategoryHasChildren       = errors.New("Cannot delete category with subcategories")
	ErrCategoryHasActiveListings = errors.New("Cannot delete category with active listings")
	ErrCategoryCycle             = errors.New("category cannot be moved under itself or its descendants")

	ErrLastImage         = errors.New("Cannot delete the last image")
	ErrImageNotFound     = fmt.Errorf("image %w", repository.ErrNotFound)
	ErrInvalidImageOrder = errors.New("image order must list every image exactly once")

	ErrUnknownNotificationType = errors.New("unknown notification type")
	ErrSelfMessage             = errors.New("Cannot send message to yourself")
	ErrImageTooLarge           = errors.New("image exceeds the maximum upload size")
	ErrTemplateNotFound        = errors.New("email template not found")
)

// badRequest lists errors that are the caller's fault but are not field validation.
var badRequest = []error{
	ErrEmailExists, ErrPhoneExists, ErrSlugExists,
	ErrCategoryHasChildren, ErrCategoryHasActiveListings, ErrCategoryCycle,
	ErrLastImage, ErrInvalidImageOrder, ErrSelfMessage, ErrImageTooLarge,
	ErrInvalidOrExpired, repository.ErrDuplicate, storage.ErrPresignUnsupported,
}

// IsBadRequest reports whether err should be answered with 400.
func IsBadRequest(err error) bool {
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return true
		}
	}
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidationError carries per-field messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// validator accumulates field errors; the first message per field wins.
type validator struct {
	fields map[string]string
}

func (v *validator) add(field, msg string) {
	if v.fields == nil {
		v.fields = map[string]string{}
	}
	if _, exists := v.fields[field]; !exists {
		v.fields[field] = msg
	}
}

func (v *validator) check(ok bool, field, msg string) {
	if !ok {
		v.add(field, msg)
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}
