package repositories

import (
	"context"

	"hkboard/internal/database"
	. "hkboard/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const MESSAGES_CACHE_PREFIX = "messages"

type MessageRepository interface {
	GetAll(ctx context.Context, tx *gorm.DB) ([]ChatMessage, error)
	Create(ctx context.Context, tx *gorm.DB, message *ChatMessage) error
	Update(ctx context.Context, tx *gorm.DB, message *ChatMessage) error
	ReplaceAll(ctx context.Context, tx *gorm.DB, messages []ChatMessage) error
}

type messageRepository struct {
	cache collectionCache[ChatMessage]
}

func NewMessageRepository(cache database.CacheClient) MessageRepository {
	return &messageRepository{
		cache: collectionCache[ChatMessage]{cache: cache, prefix: MESSAGES_CACHE_PREFIX},
	}
}

func (r *messageRepository) GetAll(ctx context.Context, tx *gorm.DB) ([]ChatMessage, error) {
	log := logger.New("messageRepository").TraceFromContext(ctx).Function("GetAll")

	if cached, found := r.cache.get(ctx); found {
		return cached, nil
	}

	var messages []ChatMessage
	if err := tx.WithContext(ctx).Order("timestamp ASC, id ASC").Find(&messages).Error; err != nil {
		return nil, log.Err("failed to get messages", err)
	}

	r.cache.set(ctx, messages)
	return messages, nil
}

// Create is idempotent on the message id; the reset announcement is posted by every agent
// that runs the reset.
func (r *messageRepository) Create(ctx context.Context, tx *gorm.DB, message *ChatMessage) error {
	log := logger.New("messageRepository").TraceFromContext(ctx).Function("Create")

	if err := message.Validate(); err != nil {
		return err
	}

	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(message).Error; err != nil {
		return log.Err("failed to create message", err, "messageID", message.ID)
	}

	r.cache.invalidate(ctx)
	return nil
}

func (r *messageRepository) Update(ctx context.Context, tx *gorm.DB, message *ChatMessage) error {
	log := logger.New("messageRepository").TraceFromContext(ctx).Function("Update")

	if err := message.Validate(); err != nil {
		return err
	}

	result := tx.WithContext(ctx).
		Model(&ChatMessage{}).
		Where("id = ?", message.ID).
		Select("content", "task").
		Updates(message)
	if result.Error != nil {
		return log.Err("failed to update message", result.Error, "messageID", message.ID)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	r.cache.invalidate(ctx)
	return nil
}

func (r *messageRepository) ReplaceAll(ctx context.Context, tx *gorm.DB, messages []ChatMessage) error {
	log := logger.New("messageRepository").TraceFromContext(ctx).Function("ReplaceAll")

	if err := tx.WithContext(ctx).Where("1 = 1").Delete(&ChatMessage{}).Error; err != nil {
		return log.Err("failed to clear messages", err)
	}
	if len(messages) > 0 {
		if err := tx.WithContext(ctx).CreateInBatches(messages, 100).Error; err != nil {
			return log.Err("failed to insert messages", err, "count", len(messages))
		}
	}

	r.cache.invalidate(ctx)
	return nil
}
