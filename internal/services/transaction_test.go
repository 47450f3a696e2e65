package services

import (
	"context"
	"errors"
	"testing"

	"hkboard/internal/database"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: gormLogger.Discard})
	require.NoError(t, err)

	return gormDB, mock
}

func TestTransactionService_Execute(t *testing.T) {
	testErr := errors.New("archive insert failed")

	tests := []struct {
		name      string
		fn        func(context.Context, *gorm.DB) error
		expect    func(sqlmock.Sqlmock)
		wantErr   error
		errSubstr string
	}{
		{
			name: "commits on success",
			fn: func(context.Context, *gorm.DB) error {
				return nil
			},
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectCommit()
			},
		},
		{
			name: "rolls back on error",
			fn: func(context.Context, *gorm.DB) error {
				return testErr
			},
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectRollback()
			},
			wantErr: testErr,
		},
		{
			name: "recovers from panic",
			fn: func(context.Context, *gorm.DB) error {
				panic("reset aborted")
			},
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectRollback()
			},
			errSubstr: "panic during transaction",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock := setupTestDB(t)
			tt.expect(mock)

			service := NewTransactionService(database.DB{SQL: gormDB})
			err := service.Execute(context.Background(), tt.fn)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errSubstr != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errSubstr)
			default:
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTransactionService_CommitHooks(t *testing.T) {
	t.Run("run after commit", func(t *testing.T) {
		gormDB, mock := setupTestDB(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		var ran bool
		service := NewTransactionService(database.DB{SQL: gormDB})
		err := service.Execute(context.Background(), func(ctx context.Context, _ *gorm.DB) error {
			database.AfterCommit(ctx, func() { ran = true })
			assert.False(t, ran, "hook must wait for the commit")
			return nil
		})

		require.NoError(t, err)
		assert.True(t, ran)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("dropped on rollback", func(t *testing.T) {
		gormDB, mock := setupTestDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		var ran bool
		service := NewTransactionService(database.DB{SQL: gormDB})
		err := service.Execute(context.Background(), func(ctx context.Context, _ *gorm.DB) error {
			database.AfterCommit(ctx, func() { ran = true })
			return errors.New("task update rejected")
		})

		require.Error(t, err)
		assert.False(t, ran)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
