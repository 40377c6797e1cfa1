package store

import (
	"context"
	"errors"
	"fmt"

	"whatsapp-assistant/internal/models"

	"gorm.io/gorm"
)

// Conversation is computed on read and never stored.
type Conversation struct {
	PhoneNumber   string           `json:"phone_number"`
	Customer      *models.Customer `json:"customer"`
	LatestMessage models.Message   `json:"latest_message"`
	UnreadCount   int64            `json:"unread_count"`
}

// Conversations returns the limit most recently active conversations. Rows
// stored under different forms of the same number form one conversation.
func (s *Store) Conversations(ctx context.Context, limit int, variants func(string) []string) ([]Conversation, error) {
	var phones []string
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Select("phone_number").
		Group("phone_number").
		Order("MAX(created_at) DESC").
		Pluck("phone_number", &phones).Error
	if err != nil {
		return nil, fmt.Errorf("list conversation phones: %w", err)
	}

	conversations := make([]Conversation, 0, limit)
	seen := make(map[string]bool)
	for _, p := range phones {
		if len(conversations) >= limit {
			break
		}
		if seen[p] {
			continue
		}
		forms := variants(p)
		for _, v := range forms {
			seen[v] = true
		}
		conv, err := s.conversation(ctx, p, forms)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *conv)
	}
	return conversations, nil
}

func (s *Store) conversation(ctx context.Context, phoneNumber string, phones []string) (*Conversation, error) {
	conv := &Conversation{PhoneNumber: phoneNumber}

	err := s.db.WithContext(ctx).
		Where("phone_number IN ?", phones).
		Order("created_at DESC").
		First(&conv.LatestMessage).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("latest message for %s: %w", phoneNumber, err)
	}

	customer, err := s.FindCustomerByPhones(ctx, phones)
	if err != nil {
		return nil, err
	}
	conv.Customer = customer

	unread := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("phone_number IN ? AND direction = ?", phones, models.DirectionInbound)
	lastOut, err := s.LatestOutbound(ctx, phones)
	if err != nil {
		return nil, err
	}
	if lastOut != nil {
		unread = unread.Where("created_at > ?", lastOut.CreatedAt.UTC())
	}
	if err := unread.Count(&conv.UnreadCount).Error; err != nil {
		return nil, fmt.Errorf("unread count for %s: %w", phoneNumber, err)
	}
	return conv, nil
}
