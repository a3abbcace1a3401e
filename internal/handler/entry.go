package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-tracker/internal/middleware"
	"github.com/iliyamo/movie-tracker/internal/model"
	"github.com/iliyamo/movie-tracker/internal/queue"
	"github.com/iliyamo/movie-tracker/internal/repository"
)

const (
	storeTimeout   = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// EntryStore is the persistence contract the entry handlers need
// (implemented by repository.EntryRepo).
type EntryStore interface {
	Insert(ctx context.Context, e *model.Entry) error
	FindByID(ctx context.Context, id string) (*model.Entry, error)
	FindAllByOwner(ctx context.Context, ownerID string, kind model.Kind) ([]*model.Entry, error)
	UpdateByID(ctx context.Context, id string, p model.EntryPatch) (*model.Entry, error)
	DeleteByID(ctx context.Context, id string) (*model.Entry, error)
}

// EventPublisher receives an event after every successful write.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.EntryEvent) error
}

// EntryHandler serves the movie and series endpoints.  Every operation is
// scoped to the authenticated caller: entries owned by someone else are
// reported as not found.
type EntryHandler struct {
	Entries EntryStore
	Events  EventPublisher
	now     func() time.Time
}

// NewEntryHandler panics if store is nil.  A nil publisher discards events.
func NewEntryHandler(store EntryStore, events EventPublisher) *EntryHandler {
	if store == nil {
		panic("nil store passed to NewEntryHandler")
	}
	return &EntryHandler{Entries: store, Events: events, now: time.Now}
}

// requiredFields lists, per kind, the keys a create request must carry.
var requiredFields = map[model.Kind][]string{
	model.KindMovie:  {"title", "director", "budget", "location", "duration", "yearOrTime", "genre"},
	model.KindSeries: {"title", "director", "budget", "location", "yearOrTime", "genre", "airingStatus", "totalSeasons"},
}

func label(kind model.Kind) string {
	if kind == model.KindSeries {
		return "Series"
	}
	return "Movie"
}

func (h *EntryHandler) CreateMovie(c echo.Context) error  { return h.create(c, model.KindMovie) }
func (h *EntryHandler) CreateSeries(c echo.Context) error { return h.create(c, model.KindSeries) }
func (h *EntryHandler) UpdateMovie(c echo.Context) error  { return h.update(c, model.KindMovie) }
func (h *EntryHandler) UpdateSeries(c echo.Context) error { return h.update(c, model.KindSeries) }
func (h *EntryHandler) DeleteMovie(c echo.Context) error  { return h.delete(c, model.KindMovie) }
func (h *EntryHandler) DeleteSeries(c echo.Context) error { return h.delete(c, model.KindSeries) }
func (h *EntryHandler) ListMovies(c echo.Context) error   { return h.list(c, model.KindMovie) }
func (h *EntryHandler) ListSeries(c echo.Context) error   { return h.list(c, model.KindSeries) }
func (h *EntryHandler) GetMovie(c echo.Context) error     { return h.get(c, model.KindMovie) }
func (h *EntryHandler) GetSeries(c echo.Context) error    { return h.get(c, model.KindSeries) }

// create handles POST /api/create-movies and /api/create-series.
func (h *EntryHandler) create(c echo.Context, kind model.Kind) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "Not authenticated")
	}
	var body model.EntryPatch
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}
	body = body.ForKind(kind)
	if missing := missingFields(kind, body); len(missing) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"message": "All required fields must be filled",
			"fields":  missing,
		})
	}

	// Owner comes from the session only; the patch type has no owner field.
	e := &model.Entry{Kind: kind, Owner: uid}
	e.Apply(body)

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()
	if err := h.Entries.Insert(ctx, e); err != nil {
		return storeError(c, "create entry", label(kind)+" not found", err)
	}

	h.publish(queue.EntryCreated, e, nil)
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": label(kind) + " created successfully",
		"data":    e,
	})
}

// update handles PUT /api/update-movie/:id and /api/update-series/:id.
// Only the allow-listed fields of model.EntryPatch are applied; any other
// key in the body is ignored.
func (h *EntryHandler) update(c echo.Context, kind model.Kind) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "Not authenticated")
	}
	var body model.EntryPatch
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}
	body = body.ForKind(kind)

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	notFound := label(kind) + " not found"
	current, err := h.owned(ctx, c.Param("id"), uid, kind)
	if err != nil {
		return storeError(c, "load entry", notFound, err)
	}
	if body.Empty() {
		return c.JSON(http.StatusOK, echo.Map{
			"success": true,
			"message": "Nothing to update",
			"data":    current,
		})
	}

	updated, err := h.Entries.UpdateByID(ctx, current.ID, body)
	if err != nil {
		return storeError(c, "update entry", notFound, err)
	}

	h.publish(queue.EntryUpdated, updated, suppliedFields(body))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": label(kind) + " updated successfully",
		"data":    updated,
	})
}

// delete handles DELETE /api/delete-movies/:id and /api/delete-series/:id.
func (h *EntryHandler) delete(c echo.Context, kind model.Kind) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "Not authenticated")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	notFound := label(kind) + " not found"
	current, err := h.owned(ctx, c.Param("id"), uid, kind)
	if err != nil {
		return storeError(c, "load entry", notFound, err)
	}
	deleted, err := h.Entries.DeleteByID(ctx, current.ID)
	if err != nil {
		return storeError(c, "delete entry", notFound, err)
	}

	h.publish(queue.EntryDeleted, deleted, nil)
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": label(kind) + " deleted successfully",
	})
}

// list handles GET /api/get-movies and /api/get-series.
func (h *EntryHandler) list(c echo.Context, kind model.Kind) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "Not authenticated")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	items, err := h.Entries.FindAllByOwner(ctx, uid, kind)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"message": "Failed to fetch " + strings.ToLower(label(kind)) + " entries",
			"error":   err.Error(),
		})
	}
	if items == nil {
		items = []*model.Entry{}
	}
	return c.JSON(http.StatusOK, items)
}

// get handles GET /api/get-movie/:id and /api/get-series/:id.
func (h *EntryHandler) get(c echo.Context, kind model.Kind) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "Not authenticated")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	e, err := h.owned(ctx, c.Param("id"), uid, kind)
	if err != nil {
		return storeError(c, "get entry", label(kind)+" not found", err)
	}
	return c.JSON(http.StatusOK, e)
}

// owned loads entry id and checks that it belongs to uid and has the
// expected kind.  Anything else is reported as ErrEntryNotFound so callers
// cannot discover other users' ids.
func (h *EntryHandler) owned(ctx context.Context, id, uid string, kind model.Kind) (*model.Entry, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, repository.ErrEntryNotFound
	}
	e, err := h.Entries.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Owner != uid || e.Kind != kind {
		return nil, repository.ErrEntryNotFound
	}
	return e, nil
}

// publish emits an event without failing the request; the publisher logs
// its own errors.
func (h *EntryHandler) publish(typ queue.EventType, e *model.Entry, fields []string) {
	if h.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	_ = h.Events.Publish(ctx, queue.EntryEvent{
		Type:       typ,
		EntryID:    e.ID,
		OwnerID:    e.Owner,
		Kind:       string(e.Kind),
		Title:      e.Title,
		Fields:     fields,
		OccurredAt: h.now().UTC(),
	})
}

// missingFields returns the required keys of kind that are absent, null or
// blank in p.  A zero number counts as present.
func missingFields(kind model.Kind, p model.EntryPatch) []string {
	present := map[string]bool{
		"title":        hasText(p.Title),
		"director":     hasText(p.Director),
		"budget":       p.Budget != nil,
		"location":     hasText(p.Location),
		"duration":     hasText(p.Duration),
		"yearOrTime":   hasText(p.YearOrTime),
		"genre":        hasText(p.Genre),
		"airingStatus": hasText(p.AiringStatus),
		"totalSeasons": p.TotalSeasons != nil,
	}
	var missing []string
	for _, f := range requiredFields[kind] {
		if !present[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

func hasText(s *string) bool { return s != nil && strings.TrimSpace(*s) != "" }

// suppliedFields names the keys carried by an update.
func suppliedFields(p model.EntryPatch) []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(p.Title != nil, "title")
	add(p.Director != nil, "director")
	add(p.Budget != nil, "budget")
	add(p.Location != nil, "location")
	add(p.Duration != nil, "duration")
	add(p.YearOrTime != nil, "yearOrTime")
	add(p.Genre != nil, "genre")
	add(p.Rating != nil, "rating")
	add(p.Description != nil, "description")
	add(p.AiringStatus != nil, "airingStatus")
	add(p.TotalSeasons != nil, "totalSeasons")
	return out
}
