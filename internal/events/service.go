package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// PasswordConfirmer re-verifies an authenticated user's password.
type PasswordConfirmer interface {
	ConfirmPassword(ctx context.Context, userID uint, plaintextPassword string) (bool, error)
}

// Service implements event CRUD with thumbnail handling and step-up delete.
type Service struct {
	repository    Repository
	thumbnails    ThumbnailStorage
	confirmer     PasswordConfirmer
	publicBaseURL string
	logger        *zap.Logger
}

// ServiceConfig wires the collaborators of Service.
type ServiceConfig struct {
	Repository    Repository
	Thumbnails    ThumbnailStorage
	Confirmer     PasswordConfirmer
	PublicBaseURL string
	Logger        *zap.Logger
}

// NewService validates the collaborators.
func NewService(configuration ServiceConfig) (*Service, error) {
	if configuration.Repository == nil {
		return nil, errors.New("events.service: missing repository")
	}
	if configuration.Thumbnails == nil {
		return nil, errors.New("events.service: missing thumbnail storage")
	}
	if configuration.Confirmer == nil {
		return nil, errors.New("events.service: missing password confirmer")
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repository:    configuration.Repository,
		thumbnails:    configuration.Thumbnails,
		confirmer:     configuration.Confirmer,
		publicBaseURL: configuration.PublicBaseURL,
		logger:        logger,
	}, nil
}

// List returns events with public thumbnail URLs.
func (service *Service) List(ctx context.Context, options ListOptions) ([]Event, error) {
	found, err := service.repository.List(ctx, options)
	if err != nil {
		return nil, err
	}
	for index := range found {
		found[index] = service.present(found[index])
	}
	return found, nil
}

// Get returns one event or ErrNotFound.
func (service *Service) Get(ctx context.Context, eventID uint) (Event, error) {
	event, err := service.repository.Get(ctx, eventID)
	if err != nil {
		return Event{}, err
	}
	return service.present(event), nil
}

// Create stores the thumbnail, if any, and inserts the event.
func (service *Service) Create(ctx context.Context, fields Fields, thumbnail *Thumbnail) (Event, error) {
	if fields.Name == nil || strings.TrimSpace(*fields.Name) == "" {
		return Event{}, ErrMissingName
	}
	event := Event{Name: *fields.Name, Date: fields.Date}
	if fields.Description != nil {
		event.Description = *fields.Description
	}
	if fields.Location != nil {
		event.Location = *fields.Location
	}
	thumbnailRef, err := service.storeThumbnail(ctx, thumbnail)
	if err != nil {
		return Event{}, err
	}
	event.ThumbnailURL = thumbnailRef
	if err := service.repository.Create(ctx, &event); err != nil {
		return Event{}, err
	}
	return service.present(event), nil
}

// Update applies supplied fields and, when given, replaces the thumbnail.
func (service *Service) Update(ctx context.Context, eventID uint, fields Fields, thumbnail *Thumbnail) (Event, error) {
	if fields.Name != nil && strings.TrimSpace(*fields.Name) == "" {
		return Event{}, ErrMissingName
	}
	if _, err := service.repository.Get(ctx, eventID); err != nil {
		return Event{}, err
	}
	thumbnailRef, err := service.storeThumbnail(ctx, thumbnail)
	if err != nil {
		return Event{}, err
	}
	event, err := service.repository.Update(ctx, eventID, fields, thumbnailRef)
	if err != nil {
		return Event{}, err
	}
	return service.present(event), nil
}

// Delete removes the event after the user re-enters their password.
// ErrPasswordRejected leaves the event untouched.
func (service *Service) Delete(ctx context.Context, userID uint, eventID uint, plaintextPassword string) error {
	confirmed, err := service.confirmer.ConfirmPassword(ctx, userID, plaintextPassword)
	if err != nil {
		service.logger.Error("password confirmation failed",
			zap.String("code", "events.delete.confirm_error"),
			zap.Uint("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("events.delete: %w", err)
	}
	if !confirmed {
		service.logger.Warn("delete rejected",
			zap.String("code", "events.delete.password_rejected"),
			zap.Uint("user_id", userID),
			zap.Uint("event_id", eventID))
		return ErrPasswordRejected
	}
	if err := service.repository.Delete(ctx, eventID); err != nil {
		if !errors.Is(err, ErrNotFound) {
			service.logger.Error("delete failed",
				zap.String("code", "events.delete.failure"),
				zap.Uint("event_id", eventID),
				zap.Error(err))
		}
		return err
	}
	service.logger.Info("event deleted",
		zap.String("code", "events.delete.success"),
		zap.Uint("user_id", userID),
		zap.Uint("event_id", eventID))
	return nil
}

func (service *Service) storeThumbnail(ctx context.Context, thumbnail *Thumbnail) (*string, error) {
	if thumbnail == nil || thumbnail.Body == nil {
		return nil, nil
	}
	if _, accepted := thumbnailExtension(thumbnail.Filename); !accepted {
		return nil, fmt.Errorf("events.thumbnail: %w: %q", ErrUnsupportedThumbnail, thumbnail.Filename)
	}
	reference, err := service.thumbnails.Save(ctx, thumbnail.Filename, thumbnail.Body)
	if err != nil {
		service.logger.Error("thumbnail upload failed",
			zap.String("code", "events.thumbnail.failure"),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrThumbnailStorage, err)
	}
	return &reference, nil
}

func (service *Service) present(event Event) Event {
	if event.ThumbnailURL != nil && *event.ThumbnailURL != "" {
		resolved := ResolveThumbnailURL(service.publicBaseURL, *event.ThumbnailURL)
		event.ThumbnailURL = &resolved
	}
	return event
}
