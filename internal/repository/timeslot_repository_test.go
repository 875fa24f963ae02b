package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveUnitTx_TakesOneUnit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE timeslots SET remaining = remaining - 1 WHERE id = \? AND remaining > 0`).
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := db.Begin()
	require.NoError(t, err)

	repo := NewTimeslotRepo(db)
	err = repo.ReserveUnitTx(context.Background(), tx, 5)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveUnitTx_SoldOut(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE timeslots SET remaining = remaining - 1`).
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// zero rows affected: distinguish "full" from "missing"
	mock.ExpectQuery(`SELECT id FROM timeslots WHERE id = \?`).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

	tx, err := db.Begin()
	require.NoError(t, err)

	repo := NewTimeslotRepo(db)
	err = repo.ReserveUnitTx(context.Background(), tx, 5)

	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveUnitTx_UnknownTimeslot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE timeslots SET remaining = remaining - 1`).
		WithArgs(uint64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT id FROM timeslots WHERE id = \?`).
		WithArgs(uint64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	tx, err := db.Begin()
	require.NoError(t, err)

	repo := NewTimeslotRepo(db)
	err = repo.ReserveUnitTx(context.Background(), tx, 99)

	assert.ErrorIs(t, err, ErrTimeslotNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseUnitTx_BoundedByCapacity(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE timeslots SET remaining = remaining \+ 1 WHERE id = \? AND remaining < capacity`).
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0)) // already at capacity: silently no-op

	tx, err := db.Begin()
	require.NoError(t, err)

	repo := NewTimeslotRepo(db)
	err = repo.ReleaseUnitTx(context.Background(), tx, 5)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
