package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var sortableColumns = map[string]string{
	"id":          "id",
	"name":        "name",
	"description": "description",
	"location":    "location",
	"date":        "date",
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
}

// Repository persists events.
type Repository interface {
	List(ctx context.Context, options ListOptions) ([]Event, error)
	Get(ctx context.Context, eventID uint) (Event, error)
	Create(ctx context.Context, event *Event) error
	Update(ctx context.Context, eventID uint, fields Fields, thumbnailRef *string) (Event, error)
	Delete(ctx context.Context, eventID uint) error
}

// Store is the GORM-backed Repository.
type Store struct {
	db *gorm.DB
}

// NewStore migrates the events table and returns a Store.
func NewStore(ctx context.Context, db *gorm.DB) (*Store, error) {
	if err := db.WithContext(ctx).AutoMigrate(&Event{}); err != nil {
		return nil, fmt.Errorf("events.migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// List returns events ordered by options.OrderBy (ascending) or by id.
func (store *Store) List(ctx context.Context, options ListOptions) ([]Event, error) {
	orderColumn := "id"
	if options.OrderBy != "" {
		column, ok := sortableColumns[options.OrderBy]
		if !ok {
			return nil, fmt.Errorf("events.list: %w: %q", ErrInvalidOrderBy, options.OrderBy)
		}
		orderColumn = column
	}

	query := store.db.WithContext(ctx).Model(&Event{})
	if filter := strings.TrimSpace(options.Filter); filter != "" {
		query = query.Where("LOWER(name) LIKE LOWER(?) ESCAPE '\\'", "%"+escapeLikePattern(filter)+"%")
	}
	query = query.Order(orderColumn + " ASC")
	if orderColumn != "id" {
		query = query.Order("id ASC")
	}
	if options.Skip > 0 {
		query = query.Offset(options.Skip)
	}
	if options.Take > 0 {
		query = query.Limit(options.Take)
	}

	var found []Event
	if err := query.Find(&found).Error; err != nil {
		return nil, fmt.Errorf("events.list: %w", err)
	}
	return found, nil
}

// Get loads one event.
func (store *Store) Get(ctx context.Context, eventID uint) (Event, error) {
	var event Event
	err := store.db.WithContext(ctx).First(&event, eventID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Event{}, fmt.Errorf("events.get: %w", ErrNotFound)
		}
		return Event{}, fmt.Errorf("events.get: %w", err)
	}
	return event, nil
}

// Create inserts the event and fills in its id and timestamps.
func (store *Store) Create(ctx context.Context, event *Event) error {
	if err := store.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("events.create: %w", err)
	}
	return nil
}

// Update applies the supplied fields and returns the stored result.
func (store *Store) Update(ctx context.Context, eventID uint, fields Fields, thumbnailRef *string) (Event, error) {
	event, err := store.Get(ctx, eventID)
	if err != nil {
		return Event{}, err
	}

	changes := map[string]any{}
	if fields.Name != nil {
		changes["name"] = *fields.Name
	}
	if fields.Description != nil {
		changes["description"] = *fields.Description
	}
	if fields.Location != nil {
		changes["location"] = *fields.Location
	}
	if fields.Date != nil {
		changes["date"] = *fields.Date
	} else if fields.ClearDate {
		changes["date"] = gorm.Expr("NULL")
	}
	if thumbnailRef != nil {
		changes["thumbnail_url"] = *thumbnailRef
	}
	if len(changes) == 0 {
		return event, nil
	}

	if err := store.db.WithContext(ctx).Model(&event).Updates(changes).Error; err != nil {
		return Event{}, fmt.Errorf("events.update: %w", err)
	}
	return store.Get(ctx, eventID)
}

// Delete removes the event; an absent id yields ErrNotFound.
func (store *Store) Delete(ctx context.Context, eventID uint) error {
	result := store.db.WithContext(ctx).Delete(&Event{}, eventID)
	if result.Error != nil {
		return fmt.Errorf("events.delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("events.delete: %w", ErrNotFound)
	}
	return nil
}

func escapeLikePattern(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
