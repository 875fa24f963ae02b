package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/khatteland/drikkepress-v2-sub001/internal/repository"
)

// TimeslotHandler serves public availability lookups.  No
// authentication is applied so guests can check remaining capacity
// before registering.
type TimeslotHandler struct {
	Timeslots *repository.TimeslotRepo
}

// NewTimeslotHandler constructs a TimeslotHandler.
func NewTimeslotHandler(timeslots *repository.TimeslotRepo) *TimeslotHandler {
	if timeslots == nil {
		panic("nil repository passed to NewTimeslotHandler")
	}
	return &TimeslotHandler{Timeslots: timeslots}
}

// Get handles GET /v1/timeslots/:id.
func (h *TimeslotHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid timeslot id"})
	}
	ts, err := h.Timeslots.GetByID(c.Request().Context(), id)
	if errors.Is(err, repository.ErrTimeslotNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "timeslot not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":          ts.ID,
		"event_id":    ts.EventID,
		"capacity":    ts.Capacity,
		"remaining":   ts.Remaining,
		"price_cents": ts.PriceCents,
		"starts_at":   ts.StartsAt.UTC().Format(time.RFC3339),
	})
}
