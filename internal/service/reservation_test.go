package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khatteland/drikkepress-v2-sub001/internal/model"
	"github.com/khatteland/drikkepress-v2-sub001/internal/repository"
	"github.com/khatteland/drikkepress-v2-sub001/internal/vipps"
)

// fakeGateway records payment calls and answers with configurable
// results.  Shared by the service tests in this package.
type fakeGateway struct {
	createErr   error
	refundErr   error
	redirectURL string
	createRefs  []string
	refundRefs  []string
}

func (f *fakeGateway) CreatePayment(_ context.Context, reference string, _ uint32, _ string) (string, error) {
	f.createRefs = append(f.createRefs, reference)
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.redirectURL, nil
}

func (f *fakeGateway) Refund(_ context.Context, reference string, _ uint32) error {
	f.refundRefs = append(f.refundRefs, reference)
	return f.refundErr
}

func newReservations(db *sql.DB, gw vipps.Gateway) *Reservations {
	return NewReservations(db,
		repository.NewTimeslotRepo(db),
		repository.NewBookingRepo(db),
		repository.NewTransactionRepo(db),
		gw,
		NewDispatcher(nil, nil, nil), // nil publisher: notifications off
		"https://example.test/return",
	)
}

func slotRow(id, eventID uint64, capacity, remaining, price uint32) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "event_id", "capacity", "remaining", "price_cents", "starts_at", "created_at", "updated_at"}).
		AddRow(id, eventID, capacity, remaining, price, now, now, now)
}

func emptyBookingRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "timeslot_id", "user_id", "status", "access_token", "created_at", "updated_at"})
}

func TestReserve_PaidSlotOpensPayment(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bookings\s+WHERE user_id = \? AND timeslot_id = \?`).
		WithArgs(uint64(7), uint64(5), model.BookingCancelled).
		WillReturnRows(emptyBookingRows())
	mock.ExpectExec(`UPDATE timeslots SET remaining = remaining - 1`).
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM timeslots WHERE id = \?`).
		WithArgs(uint64(5)).
		WillReturnRows(slotRow(5, 2, 100, 99, 15000))
	mock.ExpectExec(`INSERT INTO bookings`).
		WithArgs(uint64(5), uint64(7), model.BookingPendingPayment, nil).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs(uint64(11), sqlmock.AnyArg(), uint32(15000), model.TransactionPending).
		WillReturnResult(sqlmock.NewResult(21, 1))
	mock.ExpectCommit()

	gw := &fakeGateway{redirectURL: "https://pay.example/redirect"}
	res, err := newReservations(db, gw).Reserve(context.Background(), 5, 7)

	require.NoError(t, err)
	assert.True(t, res.PaymentRequired)
	assert.Equal(t, uint64(11), res.BookingID)
	assert.Equal(t, model.BookingPendingPayment, res.BookingStatus)
	assert.Equal(t, uint32(15000), res.AmountCents)
	assert.Equal(t, "https://pay.example/redirect", res.RedirectURL)
	assert.NotEmpty(t, res.Reference)
	require.Len(t, gw.createRefs, 1)
	assert.Equal(t, res.Reference, gw.createRefs[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_FreeSlotConfirmsImmediately(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bookings\s+WHERE user_id = \? AND timeslot_id = \?`).
		WithArgs(uint64(7), uint64(5), model.BookingCancelled).
		WillReturnRows(emptyBookingRows())
	mock.ExpectExec(`UPDATE timeslots SET remaining = remaining - 1`).
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM timeslots WHERE id = \?`).
		WithArgs(uint64(5)).
		WillReturnRows(slotRow(5, 2, 100, 99, 0))
	mock.ExpectExec(`INSERT INTO bookings`).
		WithArgs(uint64(5), uint64(7), model.BookingConfirmed, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	gw := &fakeGateway{}
	res, err := newReservations(db, gw).Reserve(context.Background(), 5, 7)

	require.NoError(t, err)
	assert.False(t, res.PaymentRequired)
	assert.Equal(t, model.BookingConfirmed, res.BookingStatus)
	assert.Empty(t, gw.createRefs, "free bookings never reach the gateway")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_CapacityExceeded(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bookings\s+WHERE user_id = \? AND timeslot_id = \?`).
		WithArgs(uint64(7), uint64(5), model.BookingCancelled).
		WillReturnRows(emptyBookingRows())
	mock.ExpectExec(`UPDATE timeslots SET remaining = remaining - 1`).
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT id FROM timeslots WHERE id = \?`).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectRollback()

	_, err = newReservations(db, &fakeGateway{}).Reserve(context.Background(), 5, 7)

	assert.ErrorIs(t, err, repository.ErrCapacityExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_RepeatRequestReturnsExistingReservation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bookings\s+WHERE user_id = \? AND timeslot_id = \?`).
		WithArgs(uint64(7), uint64(5), model.BookingCancelled).
		WillReturnRows(sqlmock.NewRows([]string{"id", "timeslot_id", "user_id", "status", "access_token", "created_at", "updated_at"}).
			AddRow(11, 5, 7, model.BookingPendingPayment, nil, now, now))
	mock.ExpectQuery(`FROM transactions\s+WHERE booking_id = \?`).
		WithArgs(uint64(11), model.TransactionCancelled).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "reference", "psp_reference", "amount_cents", "status", "created_at", "updated_at"}).
			AddRow(21, 11, "ref-existing", nil, 15000, model.TransactionPending, now, now))
	mock.ExpectRollback() // read-only path never commits

	gw := &fakeGateway{}
	res, err := newReservations(db, gw).Reserve(context.Background(), 5, 7)

	require.NoError(t, err)
	assert.Equal(t, uint64(11), res.BookingID)
	assert.Equal(t, "ref-existing", res.Reference)
	assert.True(t, res.PaymentRequired)
	assert.Empty(t, gw.createRefs, "no duplicate gateway payment for a repeat request")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_GatewayFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bookings\s+WHERE user_id = \? AND timeslot_id = \?`).
		WithArgs(uint64(7), uint64(5), model.BookingCancelled).
		WillReturnRows(emptyBookingRows())
	mock.ExpectExec(`UPDATE timeslots SET remaining = remaining - 1`).
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM timeslots WHERE id = \?`).
		WithArgs(uint64(5)).
		WillReturnRows(slotRow(5, 2, 100, 99, 15000))
	mock.ExpectExec(`INSERT INTO bookings`).
		WithArgs(uint64(5), uint64(7), model.BookingPendingPayment, nil).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs(uint64(11), sqlmock.AnyArg(), uint32(15000), model.TransactionPending).
		WillReturnResult(sqlmock.NewResult(21, 1))
	mock.ExpectCommit()

	// compensation after the gateway rejects payment creation
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE transactions SET status = \? WHERE id = \? AND status = \?`).
		WithArgs(model.TransactionCancelled, uint64(21), model.TransactionPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE bookings SET status = \? WHERE id = \? AND status = \?`).
		WithArgs(model.BookingCancelled, uint64(11), model.BookingPendingPayment).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE timeslots SET remaining = remaining \+ 1`).
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	gw := &fakeGateway{createErr: fmt.Errorf("%w: status 503", vipps.ErrUnavailable)}
	_, err = newReservations(db, gw).Reserve(context.Background(), 5, 7)

	assert.ErrorIs(t, err, vipps.ErrUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatus_OwnerOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM transactions t\s+JOIN bookings b ON b.id = t.booking_id`).
		WithArgs("ref-1").
		WillReturnRows(sqlmock.NewRows([]string{"reference", "status", "id", "status", "access_token", "user_id"}).
			AddRow("ref-1", model.TransactionConfirmed, 11, model.BookingConfirmed, "token123", 7))

	_, err = newReservations(db, &fakeGateway{}).Status(context.Background(), "ref-1", 999)

	assert.ErrorIs(t, err, repository.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatus_AccessTokenOnlyWhenConfirmed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM transactions t\s+JOIN bookings b ON b.id = t.booking_id`).
		WithArgs("ref-1").
		WillReturnRows(sqlmock.NewRows([]string{"reference", "status", "id", "status", "access_token", "user_id"}).
			AddRow("ref-1", model.TransactionPending, 11, model.BookingPendingPayment, nil, 7))

	st, err := newReservations(db, &fakeGateway{}).Status(context.Background(), "ref-1", 7)

	require.NoError(t, err)
	assert.Equal(t, model.TransactionPending, st.Status)
	assert.Nil(t, st.AccessToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatus_UnknownReference(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM transactions t\s+JOIN bookings b ON b.id = t.booking_id`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err = newReservations(db, &fakeGateway{}).Status(context.Background(), "nope", 7)

	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}
