package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"hkboard/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormLogger.Discard,
	})
	require.NoError(t, err)

	return db, mock
}

func TestRoomRepository_GetAll(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepository(nil)
	now := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "rooms" ORDER BY number ASC`)).
		WillReturnRows(sqlmock.NewRows([]string{"number", "floor", "status", "has_guests", "last_cleaned", "last_updated"}).
			AddRow("101", 1, "dirty", true, nil, now).
			AddRow("102", 1, "clean", false, now, now))

	rooms, err := repo.GetAll(context.Background(), db)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, models.RoomStatusDirty, rooms[0].Status)
	assert.True(t, rooms[0].HasGuests)
	assert.Nil(t, rooms[0].LastCleaned)
	require.NotNil(t, rooms[1].LastCleaned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepository_UpdateStatusUnknownRoom(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepository(nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "rooms" WHERE number = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"number"}))

	_, err := repo.UpdateStatus(context.Background(), db, "999", models.RoomStatusClean, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepository_ReplaceAllRejectsPartialCatalog(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepository(nil)

	catalog := models.GenerateRoomCatalog(time.Now())
	err := repo.ReplaceAll(context.Background(), db, catalog[:10])

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_Complete(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		count    *int64
		wantErr  error
	}{
		{name: "open task", affected: 1},
		{name: "already completed", affected: 0, count: ptr(int64(1)), wantErr: ErrConflict},
		{name: "missing task", affected: 0, count: ptr(int64(0)), wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewTaskRepository(nil)

			mock.ExpectExec(regexp.QuoteMeta(`UPDATE "tasks" SET`)).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			if tt.count != nil {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "tasks" WHERE id = $1`)).
					WithArgs("t-1").
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(*tt.count))
			}

			err := repo.Complete(context.Background(), db, "t-1", "housekeeper-2", time.Now())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTaskRepository_CreateValidates(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTaskRepository(nil)

	err := repo.Create(context.Background(), db, &models.Task{ID: "t-1"})
	assert.ErrorIs(t, err, models.ErrInvalidTask)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveRepository_CreateIsIdempotentPerDate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewArchiveRepository(nil)
	now := time.Date(2026, 10, 16, 0, 0, 5, 0, time.UTC)
	archive := models.NewArchive("2026-10-15", models.ArchiveData{}, now)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "archives"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "archives"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.Create(context.Background(), db, &archive)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Create(context.Background(), db, &archive)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveRepository_DeleteAndPrune(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewArchiveRepository(nil)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "archives" WHERE date = $1`)).
		WithArgs("2026-10-01").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "archives" WHERE date < $1`)).
		WithArgs("2026-09-16").
		WillReturnResult(sqlmock.NewResult(0, 3))

	assert.ErrorIs(t, repo.Delete(ctx, db, "2026-10-01"), ErrNotFound)

	pruned, err := repo.PruneBefore(ctx, db, "2026-09-16")
	require.NoError(t, err)
	assert.Equal(t, int64(3), pruned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func ptr[T any](v T) *T {
	return &v
}

func TestCollectionCache_Builder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cache := collectionCache[models.Room]{prefix: ROOMS_CACHE_PREFIX}
	assert.Equal(t, "rooms:all", cache.builder(ctx).Key())

	// Without a client every operation is a no-op.
	_, found := cache.get(ctx)
	assert.False(t, found)
	cache.set(ctx, nil)
	cache.invalidate(ctx)
}
