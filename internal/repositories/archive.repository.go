package repositories

import (
	"context"

	"hkboard/internal/database"
	. "hkboard/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const ARCHIVES_CACHE_PREFIX = "archives"

type ArchiveRepository interface {
	GetAll(ctx context.Context, tx *gorm.DB) ([]Archive, error)
	Create(ctx context.Context, tx *gorm.DB, archive *Archive) (bool, error)
	Delete(ctx context.Context, tx *gorm.DB, date string) error
	PruneBefore(ctx context.Context, tx *gorm.DB, cutoff string) (int64, error)
	ReplaceAll(ctx context.Context, tx *gorm.DB, archives []Archive) error
}

type archiveRepository struct {
	cache collectionCache[Archive]
}

func NewArchiveRepository(cache database.CacheClient) ArchiveRepository {
	return &archiveRepository{
		cache: collectionCache[Archive]{cache: cache, prefix: ARCHIVES_CACHE_PREFIX},
	}
}

func (r *archiveRepository) GetAll(ctx context.Context, tx *gorm.DB) ([]Archive, error) {
	log := logger.New("archiveRepository").TraceFromContext(ctx).Function("GetAll")

	if cached, found := r.cache.get(ctx); found {
		return cached, nil
	}

	var archives []Archive
	if err := tx.WithContext(ctx).Order("date DESC").Find(&archives).Error; err != nil {
		return nil, log.Err("failed to get archives", err)
	}

	r.cache.set(ctx, archives)
	return archives, nil
}

// Create stores the archive unless one already exists for its date. The bool reports
// whether a row was written.
func (r *archiveRepository) Create(ctx context.Context, tx *gorm.DB, archive *Archive) (bool, error) {
	log := logger.New("archiveRepository").TraceFromContext(ctx).Function("Create")

	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "date"}}, DoNothing: true}).
		Create(archive)
	if result.Error != nil {
		return false, log.Err("failed to create archive", result.Error, "date", archive.Date)
	}

	if result.RowsAffected == 0 {
		log.Info("Archive already exists", "date", archive.Date)
		return false, nil
	}

	r.cache.invalidate(ctx)
	return true, nil
}

func (r *archiveRepository) Delete(ctx context.Context, tx *gorm.DB, date string) error {
	log := logger.New("archiveRepository").TraceFromContext(ctx).Function("Delete")

	result := tx.WithContext(ctx).Where("date = ?", date).Delete(&Archive{})
	if result.Error != nil {
		return log.Err("failed to delete archive", result.Error, "date", date)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	r.cache.invalidate(ctx)
	return nil
}

// PruneBefore removes archives dated strictly before cutoff (YYYY-MM-DD sorts lexically).
func (r *archiveRepository) PruneBefore(ctx context.Context, tx *gorm.DB, cutoff string) (int64, error) {
	log := logger.New("archiveRepository").TraceFromContext(ctx).Function("PruneBefore")

	result := tx.WithContext(ctx).Where("date < ?", cutoff).Delete(&Archive{})
	if result.Error != nil {
		return 0, log.Err("failed to prune archives", result.Error, "cutoff", cutoff)
	}

	if result.RowsAffected > 0 {
		r.cache.invalidate(ctx)
		log.Info("Pruned archives", "cutoff", cutoff, "deleted", result.RowsAffected)
	}
	return result.RowsAffected, nil
}

func (r *archiveRepository) ReplaceAll(ctx context.Context, tx *gorm.DB, archives []Archive) error {
	log := logger.New("archiveRepository").TraceFromContext(ctx).Function("ReplaceAll")

	if err := tx.WithContext(ctx).Where("1 = 1").Delete(&Archive{}).Error; err != nil {
		return log.Err("failed to clear archives", err)
	}
	if len(archives) > 0 {
		if err := tx.WithContext(ctx).CreateInBatches(archives, 50).Error; err != nil {
			return log.Err("failed to insert archives", err, "count", len(archives))
		}
	}

	r.cache.invalidate(ctx)
	return nil
}
