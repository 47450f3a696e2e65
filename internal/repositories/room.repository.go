package repositories

import (
	"context"
	"errors"
	"time"

	"hkboard/internal/database"
	. "hkboard/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const ROOMS_CACHE_PREFIX = "rooms"

type RoomRepository interface {
	GetAll(ctx context.Context, tx *gorm.DB) ([]Room, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, number string, status RoomStatus, at time.Time) (*Room, error)
	UpdateGuests(ctx context.Context, tx *gorm.DB, number string, hasGuests bool, at time.Time) (*Room, error)
	ReplaceAll(ctx context.Context, tx *gorm.DB, rooms []Room) error
	EnsureCatalog(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error)
}

type roomRepository struct {
	cache collectionCache[Room]
}

func NewRoomRepository(cache database.CacheClient) RoomRepository {
	return &roomRepository{
		cache: collectionCache[Room]{cache: cache, prefix: ROOMS_CACHE_PREFIX},
	}
}

func (r *roomRepository) GetAll(ctx context.Context, tx *gorm.DB) ([]Room, error) {
	log := logger.New("roomRepository").TraceFromContext(ctx).Function("GetAll")

	if cached, found := r.cache.get(ctx); found {
		return cached, nil
	}

	var rooms []Room
	if err := tx.WithContext(ctx).Order("number ASC").Find(&rooms).Error; err != nil {
		return nil, log.Err("failed to get rooms", err)
	}

	r.cache.set(ctx, rooms)
	return rooms, nil
}

func (r *roomRepository) find(ctx context.Context, tx *gorm.DB, number string) (*Room, error) {
	var room Room
	err := tx.WithContext(ctx).Where("number = ?", number).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepository) UpdateStatus(
	ctx context.Context,
	tx *gorm.DB,
	number string,
	status RoomStatus,
	at time.Time,
) (*Room, error) {
	log := logger.New("roomRepository").TraceFromContext(ctx).Function("UpdateStatus")

	room, err := r.find(ctx, tx, number)
	if err != nil {
		return nil, err
	}
	if err := room.ApplyStatus(status, at); err != nil {
		return nil, err
	}

	if err := tx.WithContext(ctx).Save(room).Error; err != nil {
		return nil, log.Err("failed to update room status", err, "number", number, "status", status)
	}

	r.cache.invalidate(ctx)
	return room, nil
}

func (r *roomRepository) UpdateGuests(
	ctx context.Context,
	tx *gorm.DB,
	number string,
	hasGuests bool,
	at time.Time,
) (*Room, error) {
	log := logger.New("roomRepository").TraceFromContext(ctx).Function("UpdateGuests")

	room, err := r.find(ctx, tx, number)
	if err != nil {
		return nil, err
	}
	room.ApplyGuests(hasGuests, at)

	if err := tx.WithContext(ctx).Save(room).Error; err != nil {
		return nil, log.Err("failed to update room guests", err, "number", number)
	}

	r.cache.invalidate(ctx)
	return room, nil
}

func (r *roomRepository) ReplaceAll(ctx context.Context, tx *gorm.DB, rooms []Room) error {
	log := logger.New("roomRepository").TraceFromContext(ctx).Function("ReplaceAll")

	if err := ValidateCatalog(rooms); err != nil {
		return log.Err("refusing to replace rooms with an invalid catalog", err)
	}

	if err := tx.WithContext(ctx).Where("1 = 1").Delete(&Room{}).Error; err != nil {
		return log.Err("failed to clear rooms", err)
	}
	if err := tx.WithContext(ctx).CreateInBatches(rooms, 100).Error; err != nil {
		return log.Err("failed to insert rooms", err, "count", len(rooms))
	}

	r.cache.invalidate(ctx)
	return nil
}

// EnsureCatalog inserts any catalog room that is missing and leaves existing rooms alone.
func (r *roomRepository) EnsureCatalog(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	log := logger.New("roomRepository").TraceFromContext(ctx).Function("EnsureCatalog")

	catalog := GenerateRoomCatalog(now)
	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&catalog)
	if result.Error != nil {
		return 0, log.Err("failed to seed room catalog", result.Error)
	}

	if result.RowsAffected > 0 {
		r.cache.invalidate(ctx)
		log.Info("Seeded room catalog", "inserted", result.RowsAffected)
	}
	return result.RowsAffected, nil
}
