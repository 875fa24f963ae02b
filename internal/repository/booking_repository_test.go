package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khatteland/drikkepress-v2-sub001/internal/model"
)

func TestBookingCreateTx_PopulatesID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO bookings`).
		WithArgs(uint64(5), uint64(7), model.BookingPendingPayment, nil).
		WillReturnResult(sqlmock.NewResult(11, 1))

	tx, err := db.Begin()
	require.NoError(t, err)

	b := &model.Booking{TimeslotID: 5, UserID: 7, Status: model.BookingPendingPayment}
	err = NewBookingRepo(db).CreateTx(context.Background(), tx, b)

	assert.NoError(t, err)
	assert.Equal(t, uint64(11), b.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingGetByIDTx_NullTokenStaysNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bookings WHERE id = \?`).
		WithArgs(uint64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "timeslot_id", "user_id", "status", "access_token", "created_at", "updated_at"}).
			AddRow(11, 5, 7, model.BookingPendingPayment, nil, now, now))

	tx, err := db.Begin()
	require.NoError(t, err)

	b, err := NewBookingRepo(db).GetByIDTx(context.Background(), tx, 11)

	require.NoError(t, err)
	assert.Equal(t, uint64(5), b.TimeslotID)
	assert.Nil(t, b.AccessToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingConfirmTx_GuardedOnPendingPayment(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE bookings SET status = \?, access_token = \? WHERE id = \? AND status = \?`).
		WithArgs(model.BookingConfirmed, "tok", uint64(11), model.BookingPendingPayment).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := db.Begin()
	require.NoError(t, err)

	moved, err := NewBookingRepo(db).ConfirmTx(context.Background(), tx, 11, "tok")

	assert.NoError(t, err)
	assert.False(t, moved, "terminal booking must not move")
	assert.NoError(t, mock.ExpectationsWereMet())
}
