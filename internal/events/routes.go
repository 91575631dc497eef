package events

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/evently/internal/authkit"
	"go.uber.org/zap"
)

const thumbnailFormField = "thumbnail"

// RouteDependencies carries the collaborators the event endpoints need.
type RouteDependencies struct {
	Service     *Service
	RequireAuth gin.HandlerFunc
	Logger      *zap.Logger
}

type eventPayload struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	Date        *string `json:"date"`
}

type deletePayload struct {
	Password string `json:"password"`
}

var (
	errInvalidDate = errors.New("events.invalid_date")
	errInvalidBody = errors.New("events.invalid_body")
)

// MountEventRoutes registers the /events endpoints. Reads are public; writes
// go through RequireAuth.
func MountEventRoutes(router gin.IRouter, dependencies RouteDependencies) {
	service := dependencies.Service
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	handlers := eventHandlers{service: service, logger: logger}

	group := router.Group("/events")
	group.GET("", handlers.list)
	group.GET("/:id", handlers.get)
	group.POST("", dependencies.RequireAuth, handlers.create)
	group.PATCH("/:id", dependencies.RequireAuth, handlers.update)
	group.DELETE("/:id", dependencies.RequireAuth, handlers.delete)
}

type eventHandlers struct {
	service *Service
	logger  *zap.Logger
}

func (handlers eventHandlers) list(contextGin *gin.Context) {
	options := ListOptions{
		Skip:    positiveQueryInt(contextGin, "skip"),
		Take:    positiveQueryInt(contextGin, "take"),
		OrderBy: strings.TrimSpace(contextGin.Query("orderBy")),
		Filter:  contextGin.Query("filter"),
	}
	found, err := handlers.service.List(contextGin, options)
	if err != nil {
		handlers.writeError(contextGin, err)
		return
	}
	contextGin.JSON(http.StatusOK, found)
}

func (handlers eventHandlers) get(contextGin *gin.Context) {
	eventID, ok := parseEventID(contextGin)
	if !ok {
		return
	}
	event, err := handlers.service.Get(contextGin, eventID)
	if err != nil {
		handlers.writeError(contextGin, err)
		return
	}
	contextGin.JSON(http.StatusOK, event)
}

func (handlers eventHandlers) create(contextGin *gin.Context) {
	fields, thumbnail, cleanup, err := bindEventRequest(contextGin)
	defer cleanup()
	if err != nil {
		handlers.writeError(contextGin, err)
		return
	}
	event, createErr := handlers.service.Create(contextGin, fields, thumbnail)
	if createErr != nil {
		handlers.writeError(contextGin, createErr)
		return
	}
	contextGin.JSON(http.StatusCreated, event)
}

func (handlers eventHandlers) update(contextGin *gin.Context) {
	eventID, ok := parseEventID(contextGin)
	if !ok {
		return
	}
	fields, thumbnail, cleanup, err := bindEventRequest(contextGin)
	defer cleanup()
	if err != nil {
		handlers.writeError(contextGin, err)
		return
	}
	event, updateErr := handlers.service.Update(contextGin, eventID, fields, thumbnail)
	if updateErr != nil {
		handlers.writeError(contextGin, updateErr)
		return
	}
	contextGin.JSON(http.StatusOK, event)
}

func (handlers eventHandlers) delete(contextGin *gin.Context) {
	claims, ok := authkit.ClaimsFromContext(contextGin)
	if !ok {
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	eventID, ok := parseEventID(contextGin)
	if !ok {
		return
	}
	var payload deletePayload
	_ = contextGin.ShouldBindJSON(&payload)

	err := handlers.service.Delete(contextGin, claims.UserID, eventID, payload.Password)
	switch {
	case err == nil:
		contextGin.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Event with ID %d has been deleted.", eventID)})
	case errors.Is(err, ErrPasswordRejected):
		contextGin.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid_password"})
	case errors.Is(err, ErrNotFound):
		contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete event: " + err.Error()})
	}
}

func (handlers eventHandlers) writeError(contextGin *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, ErrInvalidOrderBy):
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_order_by"})
	case errors.Is(err, ErrMissingName):
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing_name"})
	case errors.Is(err, ErrUnsupportedThumbnail):
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unsupported_thumbnail"})
	case errors.Is(err, errInvalidDate):
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_date"})
	case errors.Is(err, errInvalidBody):
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
	default:
		handlers.logger.Error("event request failed",
			zap.String("code", "events.request.failure"),
			zap.String("path", contextGin.FullPath()),
			zap.Error(err))
		contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}

// bindEventRequest accepts JSON or multipart/form-data with an optional
// thumbnail file part. cleanup is always safe to call.
func bindEventRequest(contextGin *gin.Context) (Fields, *Thumbnail, func(), error) {
	noop := func() {}
	var payload eventPayload
	if !strings.HasPrefix(contextGin.ContentType(), "multipart/form-data") {
		if err := contextGin.ShouldBindJSON(&payload); err != nil {
			return Fields{}, nil, noop, fmt.Errorf("%w: %w", errInvalidBody, err)
		}
		fields, err := payload.fields()
		return fields, nil, noop, err
	}

	payload.Name = optionalFormValue(contextGin, "name")
	payload.Description = optionalFormValue(contextGin, "description")
	payload.Location = optionalFormValue(contextGin, "location")
	payload.Date = optionalFormValue(contextGin, "date")
	fields, err := payload.fields()
	if err != nil {
		return Fields{}, nil, noop, err
	}

	header, fileErr := contextGin.FormFile(thumbnailFormField)
	if fileErr != nil {
		if errors.Is(fileErr, http.ErrMissingFile) {
			return fields, nil, noop, nil
		}
		return Fields{}, nil, noop, fmt.Errorf("%w: %w", errInvalidBody, fileErr)
	}
	file, openErr := header.Open()
	if openErr != nil {
		return Fields{}, nil, noop, fmt.Errorf("%w: %w", errInvalidBody, openErr)
	}
	return fields, &Thumbnail{Filename: header.Filename, Body: file}, func() { _ = file.Close() }, nil
}

func (payload eventPayload) fields() (Fields, error) {
	fields := Fields{
		Name:        payload.Name,
		Description: payload.Description,
		Location:    payload.Location,
	}
	if payload.Date != nil {
		raw := strings.TrimSpace(*payload.Date)
		if raw == "" {
			fields.ClearDate = true
			return fields, nil
		}
		parsed, err := parseEventDate(raw)
		if err != nil {
			return Fields{}, err
		}
		fields.Date = &parsed
	}
	return fields, nil
}

func parseEventDate(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", errInvalidDate, raw)
}

func optionalFormValue(contextGin *gin.Context, key string) *string {
	value, ok := contextGin.GetPostForm(key)
	if !ok {
		return nil
	}
	return &value
}

func positiveQueryInt(contextGin *gin.Context, key string) int {
	value, err := strconv.Atoi(strings.TrimSpace(contextGin.Query(key)))
	if err != nil || value <= 0 {
		return 0
	}
	return value
}

func parseEventID(contextGin *gin.Context) (uint, bool) {
	parsed, err := strconv.ParseUint(contextGin.Param("id"), 10, 64)
	if err != nil || parsed == 0 {
		contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return 0, false
	}
	return uint(parsed), true
}
