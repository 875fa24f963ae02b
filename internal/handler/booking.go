package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/khatteland/drikkepress-v2-sub001/internal/repository"
	"github.com/khatteland/drikkepress-v2-sub001/internal/service"
	"github.com/khatteland/drikkepress-v2-sub001/internal/vipps"
)

// ReservationService is the slice of the reservation manager the
// handler depends on.  Defined here so tests can substitute it.
type ReservationService interface {
	Reserve(ctx context.Context, timeslotID, userID uint64) (*service.ReservationResult, error)
	Status(ctx context.Context, reference string, userID uint64) (*service.StatusResult, error)
	ListBookings(ctx context.Context, userID uint64) ([]repository.BookingDetail, error)
}

// CancellationService is the cancellation coordinator surface.
type CancellationService interface {
	Cancel(ctx context.Context, bookingID, userID uint64) (*service.CancelResult, error)
}

// BookingHandler serves the authenticated booking endpoints: reserve,
// payment status polling, cancellation/refund and booking listing.  JWT
// validation has already happened in middleware; methods return 401
// only when the user ID cannot be extracted from the context.
type BookingHandler struct {
	Reservations  ReservationService
	Cancellations CancellationService
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(reservations ReservationService, cancellations CancellationService) *BookingHandler {
	if reservations == nil || cancellations == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{Reservations: reservations, Cancellations: cancellations}
}

// Reserve handles POST /v1/reserve.  The body carries the timeslot ID;
// the response reports whether payment is required and, when it is, the
// gateway redirect URL and the payment reference to poll with.
func (h *BookingHandler) Reserve(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		TimeslotID uint64 `json:"timeslot_id"`
	}
	if err := c.Bind(&body); err != nil || body.TimeslotID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "timeslot_id is required"})
	}

	res, err := h.Reservations.Reserve(c.Request().Context(), body.TimeslotID, userID)
	switch {
	case errors.Is(err, repository.ErrTimeslotNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "timeslot not found"})
	case errors.Is(err, repository.ErrCapacityExceeded):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "timeslot is sold out"})
	case errors.Is(err, vipps.ErrUnavailable):
		// The reservation was rolled back; the user can safely retry.
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway unavailable, please try again"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	resp := echo.Map{
		"status":           res.BookingStatus,
		"payment_required": res.PaymentRequired,
		"booking_id":       res.BookingID,
	}
	if res.PaymentRequired {
		resp["vipps_reference"] = res.Reference
		resp["amount_cents"] = res.AmountCents
		if res.RedirectURL != "" {
			resp["redirect_url"] = res.RedirectURL
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Status handles GET /v1/status?ref=.  Owner-only; the access token is
// only included once the booking is confirmed.
func (h *BookingHandler) Status(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ref := c.QueryParam("ref")
	if ref == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ref is required"})
	}

	st, err := h.Reservations.Status(c.Request().Context(), ref, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown reference"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	resp := echo.Map{
		"status":         st.Status,
		"booking_status": st.BookingStatus,
		"booking_id":     st.BookingID,
	}
	if st.AccessToken != nil {
		resp["access_token"] = *st.AccessToken
	}
	return c.JSON(http.StatusOK, resp)
}

// Refund handles POST /v1/refund.  Cancellation always succeeds when
// the booking is cancellable; "refunded" reports whether the money
// actually moved back.
func (h *BookingHandler) Refund(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		BookingID uint64 `json:"booking_id"`
	}
	if err := c.Bind(&body); err != nil || body.BookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking_id is required"})
	}

	res, err := h.Cancellations.Cancel(c.Request().Context(), body.BookingID, userID)
	switch {
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking already cancelled"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":   "cancelled",
		"refunded": res.Refunded,
	})
}

// ListBookings handles GET /v1/bookings, returning the caller's
// bookings newest first.
func (h *BookingHandler) ListBookings(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	list, err := h.Reservations.ListBookings(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

// getUserID extracts the user_id claim stored by the JWT middleware and
// converts it to uint64.  Claims arrive as float64 from JSON parsing
// but other numeric shapes are tolerated.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}
