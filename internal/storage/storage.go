package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"civico/backend/internal/config"
	"civico/backend/internal/models"
)

// ErrNotFound is returned for absent or not-owned rows. Ownership misses are
// deliberately indistinguishable from absence.
var ErrNotFound = errors.New("not found")

// Storage is the persistence surface used by the conversation and catalog
// layers. Draft/finalize transactions live in the draft package, which holds
// its own *gorm.DB handle.
type Storage interface {
	CreateConversation(ctx context.Context, ownerID string) (*models.Conversation, error)
	GetConversation(ctx context.Context, id, ownerID string) (*models.Conversation, error)
	AppendMessage(ctx context.Context, conversationID, sender, body string) (*models.Message, error)
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error)

	ActiveTypes(ctx context.Context) ([]models.ComplaintType, error)

	PublishComplaintFinalized(ctx context.Context, complaintID, ownerID string) error

	CacheGet(ctx context.Context, key string) (string, bool, error)
	CacheSet(ctx context.Context, key, value string, ttl time.Duration) error
}

// Service implements Storage over PostgreSQL and Redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewService constructs the storage service.
func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{DB: db, Redis: rdb}
}

// Migrate creates or updates every table the intake engine uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ComplaintType{},
		&models.Conversation{},
		&models.Message{},
		&models.Draft{},
		&models.Complaint{},
		&models.Attachment{},
		&models.Evidence{},
		&models.Signature{},
	)
}

// CreateConversation opens a new conversation for the citizen. No draft is
// created here: an empty visit must leave no trace beyond the conversation
// and its greeting.
func (s *Service) CreateConversation(ctx context.Context, ownerID string) (*models.Conversation, error) {
	conv := &models.Conversation{OwnerID: ownerID}
	if err := s.DB.WithContext(ctx).Create(conv).Error; err != nil {
		log.Printf("ERROR: Failed to create conversation for owner %s: %v", ownerID, err)
		return nil, err
	}
	return conv, nil
}

// GetConversation fetches a conversation scoped to its owner.
func (s *Service) GetConversation(ctx context.Context, id, ownerID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.DB.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to get conversation %s: %v", id, err)
		return nil, err
	}
	return &conv, nil
}

// AppendMessage persists one immutable conversation turn.
func (s *Service) AppendMessage(ctx context.Context, conversationID, sender, body string) (*models.Message, error) {
	msg := &models.Message{
		ConversationID: conversationID,
		Sender:         sender,
		Body:           body,
	}
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		log.Printf("ERROR: Failed to append message to conversation %s: %v", conversationID, err)
		return nil, err
	}
	return msg, nil
}

// RecentMessages returns the last `limit` messages of a conversation in
// chronological order.
func (s *Service) RecentMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := s.DB.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at desc").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		log.Printf("ERROR: Failed to load messages for conversation %s: %v", conversationID, err)
		return nil, err
	}
	// reverse into ascending order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

const activeTypesCacheKey = "catalog:active_types"

// ActiveTypes returns the active complaint-type catalog ordered by name,
// served from the Redis cache when fresh.
func (s *Service) ActiveTypes(ctx context.Context) ([]models.ComplaintType, error) {
	if cached, ok, err := s.CacheGet(ctx, activeTypesCacheKey); err == nil && ok {
		var types []models.ComplaintType
		if err := json.Unmarshal([]byte(cached), &types); err == nil {
			return types, nil
		}
	}

	var types []models.ComplaintType
	err := s.DB.WithContext(ctx).
		Where("active = ?", true).
		Order("name asc").
		Find(&types).Error
	if err != nil {
		log.Printf("ERROR: Failed to load complaint types: %v", err)
		return nil, err
	}

	if b, err := json.Marshal(types); err == nil {
		_ = s.CacheSet(ctx, activeTypesCacheKey, string(b), config.CatalogCacheTTL)
	}
	return types, nil
}

// FinalizedEventChannel is the Redis pub/sub channel the notification
// periphery subscribes to.
const FinalizedEventChannel = "complaints.finalized"

// PublishComplaintFinalized announces a newly finalized complaint. Delivery
// is best-effort; a publish failure never affects the finalized complaint.
func (s *Service) PublishComplaintFinalized(ctx context.Context, complaintID, ownerID string) error {
	if s.Redis == nil {
		return nil
	}
	payload, err := json.Marshal(map[string]string{
		"complaint_id": complaintID,
		"owner_id":     ownerID,
	})
	if err != nil {
		return err
	}
	if err := s.Redis.Publish(ctx, FinalizedEventChannel, string(payload)).Err(); err != nil {
		log.Printf("ERROR: Failed to publish finalize event for complaint %s: %v", complaintID, err)
		return err
	}
	return nil
}

// CacheGet reads a cached string value. A missing key is not an error.
func (s *Service) CacheGet(ctx context.Context, key string) (string, bool, error) {
	if s.Redis == nil {
		return "", false, nil
	}
	val, err := s.Redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// CacheSet stores a string value with a TTL.
func (s *Service) CacheSet(ctx context.Context, key, value string, ttl time.Duration) error {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.Set(ctx, key, value, ttl).Err()
}
