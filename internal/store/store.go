// Package store is the conversation store: messages, customers and reply
// jobs behind point reads, point writes and range queries. No operation spans
// more than one row write, so every caller must tolerate partial application.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whatsapp-assistant/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("store: not found")

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- Messages ---

// InsertMessage appends m, assigning an ID and creation time when missing.
func (s *Store) InsertMessage(ctx context.Context, m *models.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.CreatedAt = m.CreatedAt.UTC()
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *Store) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return &m, nil
}

// FindByProviderID returns the message carrying the provider identifier.
func (s *Store) FindByProviderID(ctx context.Context, providerID string) (*models.Message, error) {
	var m models.Message
	err := s.db.WithContext(ctx).Where("provider_message_id = ?", providerID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find message by provider id: %w", err)
	}
	return &m, nil
}

// SetDisposition moves a message out of the unset disposition. It reports
// false when the message already carried a terminal disposition.
func (s *Store) SetDisposition(ctx context.Context, id string, d models.Disposition, needsReview bool) (bool, error) {
	updates := map[string]interface{}{"disposition": d}
	if needsReview {
		updates["needs_review"] = true
	}
	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND disposition = ?", id, models.DispositionUnset).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("set disposition on %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) MarkNeedsReview(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", id).
		Update("needs_review", true).Error
	if err != nil {
		return fmt.Errorf("mark needs review on %s: %w", id, err)
	}
	return nil
}

// UpdateStatusByProviderID overwrites the status of the outbound message with
// the given provider identifier. It reports whether a message matched.
func (s *Store) UpdateStatusByProviderID(ctx context.Context, providerID, status string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("provider_message_id = ? AND direction = ?", providerID, models.DirectionOutbound).
		Update("status", status)
	if res.Error != nil {
		return false, fmt.Errorf("update status for %s: %w", providerID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// HasAgentReplySince reports whether a human agent messaged any of phones at or after since.
func (s *Store) HasAgentReplySince(ctx context.Context, phones []string, since time.Time) (bool, error) {
	return s.exists(s.agentReplies(ctx, phones).Where("created_at >= ?", since.UTC()))
}

// HasAgentReplyBetween reports whether a human agent messaged any of phones in (from, to].
func (s *Store) HasAgentReplyBetween(ctx context.Context, phones []string, from, to time.Time) (bool, error) {
	return s.exists(s.agentReplies(ctx, phones).
		Where("created_at > ? AND created_at <= ?", from.UTC(), to.UTC()))
}

// HasOutboundAfter reports whether anything was sent to phones after t.
func (s *Store) HasOutboundAfter(ctx context.Context, phones []string, t time.Time) (bool, error) {
	return s.exists(s.db.WithContext(ctx).Model(&models.Message{}).
		Where("phone_number IN ? AND direction = ? AND created_at > ?", phones, models.DirectionOutbound, t.UTC()))
}

// LatestOutbound returns the most recent outbound message to phones, or nil.
func (s *Store) LatestOutbound(ctx context.Context, phones []string) (*models.Message, error) {
	var m models.Message
	err := s.db.WithContext(ctx).
		Where("phone_number IN ? AND direction = ?", phones, models.DirectionOutbound).
		Order("created_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest outbound: %w", err)
	}
	return &m, nil
}

func (s *Store) CountInboundSince(ctx context.Context, phones []string, since time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("phone_number IN ? AND direction = ? AND created_at >= ?", phones, models.DirectionInbound, since.UTC()).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count inbound: %w", err)
	}
	return n, nil
}

// ContextHistory returns up to limit customer and assistant messages sent
// before the given time, oldest first. Human agent messages are excluded.
func (s *Store) ContextHistory(ctx context.Context, phones []string, before time.Time, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("phone_number IN ? AND created_at < ?", phones, before.UTC()).
		Where("(direction = ? OR (direction = ? AND is_ai_response = ?))",
			models.DirectionInbound, models.DirectionOutbound, true).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("context history: %w", err)
	}
	reverse(msgs)
	return msgs, nil
}

// UnansweredFlagged returns inbound messages in (since, before) that were
// flagged for review and never auto-replied, oldest first.
func (s *Store) UnansweredFlagged(ctx context.Context, phones []string, since, before time.Time, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("phone_number IN ? AND direction = ?", phones, models.DirectionInbound).
		Where("created_at > ? AND created_at < ?", since.UTC(), before.UTC()).
		Where("needs_review = ? AND disposition <> ?", true, models.DispositionAutoReplied).
		Order("created_at ASC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("unanswered flagged: %w", err)
	}
	return msgs, nil
}

// SweepCandidates returns inbound messages with no disposition created in [from, to].
func (s *Store) SweepCandidates(ctx context.Context, from, to time.Time) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("direction = ? AND disposition = ?", models.DirectionInbound, models.DispositionUnset).
		Where("created_at >= ? AND created_at <= ?", from.UTC(), to.UTC()).
		Order("created_at ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("sweep candidates: %w", err)
	}
	return msgs, nil
}

// MessagesForPhones returns the newest limit messages for phones, oldest first.
func (s *Store) MessagesForPhones(ctx context.Context, phones []string, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("phone_number IN ?", phones).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("messages for phone: %w", err)
	}
	reverse(msgs)
	return msgs, nil
}

func (s *Store) agentReplies(ctx context.Context, phones []string) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Message{}).
		Where("phone_number IN ? AND direction = ? AND is_ai_response = ?", phones, models.DirectionOutbound, false)
}

func (s *Store) exists(q *gorm.DB) (bool, error) {
	var n int64
	if err := q.Limit(1).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func reverse(msgs []models.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
