package events

import "errors"

var (
	// ErrNotFound indicates the event id does not exist.
	ErrNotFound = errors.New("events.not_found")
	// ErrInvalidOrderBy indicates orderBy named a field outside the sortable set.
	ErrInvalidOrderBy = errors.New("events.invalid_order_by")
	// ErrMissingName indicates a create request without a name.
	ErrMissingName = errors.New("events.missing_name")
	// ErrPasswordRejected indicates the step-up password did not match.
	ErrPasswordRejected = errors.New("events.password_rejected")
	// ErrUnsupportedThumbnail indicates the uploaded file is not an accepted image format.
	ErrUnsupportedThumbnail = errors.New("events.unsupported_thumbnail")
	// ErrThumbnailStorage indicates the thumbnail could not be stored.
	ErrThumbnailStorage = errors.New("events.thumbnail_storage")
)
