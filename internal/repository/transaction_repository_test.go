package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khatteland/drikkepress-v2-sub001/internal/model"
)

func TestConfirmByReferenceTx_GuardedOnPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE transactions SET status = \?, psp_reference = \? WHERE reference = \? AND status = \?`).
		WithArgs(model.TransactionConfirmed, "psp-1", "ref-1", model.TransactionPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := db.Begin()
	require.NoError(t, err)

	repo := NewTransactionRepo(db)
	moved, err := repo.ConfirmByReferenceTx(context.Background(), tx, "ref-1", "psp-1")

	assert.NoError(t, err)
	assert.True(t, moved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmByReferenceTx_TerminalIsNoOp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE transactions SET status = \?, psp_reference = \?`).
		WithArgs(model.TransactionConfirmed, "psp-1", "ref-1", model.TransactionPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := db.Begin()
	require.NoError(t, err)

	repo := NewTransactionRepo(db)
	moved, err := repo.ConfirmByReferenceTx(context.Background(), tx, "ref-1", "psp-1")

	assert.NoError(t, err)
	assert.False(t, moved, "already-terminal transaction must not move")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveByBookingTx_NoneLeft(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, booking_id, reference, psp_reference, amount_cents, status, created_at, updated_at\s+FROM transactions`).
		WithArgs(uint64(7), model.TransactionCancelled).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "reference", "psp_reference", "amount_cents", "status", "created_at", "updated_at"}))

	tx, err := db.Begin()
	require.NoError(t, err)

	repo := NewTransactionRepo(db)
	rec, err := repo.ActiveByBookingTx(context.Background(), tx, 7)

	assert.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}
