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

// FindCustomerByPhones returns the first customer whose primary or alternate
// phone matches one of phones, or nil when none does.
func (s *Store) FindCustomerByPhones(ctx context.Context, phones []string) (*models.Customer, error) {
	if len(phones) == 0 {
		return nil, nil
	}
	var c models.Customer
	err := s.db.WithContext(ctx).
		Where("phone_number IN ? OR alternate_phone IN ?", phones, phones).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find customer by phone: %w", err)
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, c *models.Customer) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create customer: %w", err)
	}
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	var c models.Customer
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get customer %s: %w", id, err)
	}
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context, limit int) ([]models.Customer, error) {
	var customers []models.Customer
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&customers).Error
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return customers, nil
}

// CustomerEdit holds the operator-editable customer fields.
type CustomerEdit struct {
	Name             *string
	PhoneNumber      *string
	AlternatePhone   *string
	PreferredPackage *string
}

func (s *Store) UpdateCustomer(ctx context.Context, id string, edit CustomerEdit) error {
	updates := map[string]interface{}{}
	if edit.Name != nil {
		updates["name"] = *edit.Name
	}
	if edit.PhoneNumber != nil {
		updates["phone_number"] = *edit.PhoneNumber
	}
	if edit.AlternatePhone != nil {
		updates["alternate_phone"] = *edit.AlternatePhone
	}
	if edit.PreferredPackage != nil {
		updates["preferred_package"] = *edit.PreferredPackage
	}
	if len(updates) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.Customer{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update customer %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordButtonResponse stores an explicit delivery-confirmation answer along
// with the click analytics fields.
func (s *Store) RecordButtonResponse(ctx context.Context, customerID string, resp models.CustomerResponse, label string, at time.Time) error {
	at = at.UTC()
	received := resp == models.ResponseYesReceived
	err := s.db.WithContext(ctx).Model(&models.Customer{}).
		Where("id = ?", customerID).
		Updates(map[string]interface{}{
			"response":              resp,
			"responded_at":          at,
			"package_received":      received,
			"delivery_confirmed_at": at,
			"last_button_text":      label,
			"button_clicked_at":     at,
		}).Error
	if err != nil {
		return fmt.Errorf("record button response for %s: %w", customerID, err)
	}
	return nil
}

// RecordButtonClick stores click analytics for an unrecognized button value.
func (s *Store) RecordButtonClick(ctx context.Context, customerID, label string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.Customer{}).
		Where("id = ?", customerID).
		Updates(map[string]interface{}{
			"last_button_text":  label,
			"button_clicked_at": at.UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("record button click for %s: %w", customerID, err)
	}
	return nil
}

// FollowUpCandidates returns customers who reported a missing delivery within
// [from, to], still have no confirmed delivery, and have not been followed up
// since that report.
func (s *Store) FollowUpCandidates(ctx context.Context, from, to time.Time) ([]models.Customer, error) {
	var customers []models.Customer
	err := s.db.WithContext(ctx).
		Where("response = ?", models.ResponseNoNotReceived).
		Where("responded_at >= ? AND responded_at <= ?", from.UTC(), to.UTC()).
		Where("(package_received IS NULL OR package_received = ?)", false).
		Where("(follow_up_sent_at IS NULL OR follow_up_sent_at < responded_at)").
		Order("responded_at ASC").
		Find(&customers).Error
	if err != nil {
		return nil, fmt.Errorf("follow-up candidates: %w", err)
	}
	return customers, nil
}

func (s *Store) MarkFollowUpSent(ctx context.Context, customerID string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.Customer{}).
		Where("id = ?", customerID).
		Update("follow_up_sent_at", at.UTC()).Error
	if err != nil {
		return fmt.Errorf("mark follow-up sent for %s: %w", customerID, err)
	}
	return nil
}
