package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"rss-scraper/internal/domain"
	"rss-scraper/internal/repository"
)

type SubscriberService struct {
	subscriberRepo repository.SubscriberRepository
}

func NewSubscriberService(subscriberRepo repository.SubscriberRepository) *SubscriberService {
	return &SubscriberService{subscriberRepo: subscriberRepo}
}

type loginRequest struct {
	Email string `validate:"required,email"`
}

// Login returns the subscriber for email, creating it with its profile on
// first use.
func (s *SubscriberService) Login(ctx context.Context, email string) (*domain.Subscriber, error) {
	req := loginRequest{Email: strings.ToLower(strings.TrimSpace(email))}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	sub, err := s.subscriberRepo.GetByEmail(ctx, req.Email)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, domain.ErrSubscriberNotFound) {
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}

	sub, err = s.subscriberRepo.Create(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriber: %w", err)
	}

	log.Printf("Created new subscriber with email: %s", req.Email)
	return sub, nil
}

func (s *SubscriberService) Get(ctx context.Context, subscriberID int) (*domain.Subscriber, error) {
	return s.subscriberRepo.GetByID(ctx, subscriberID)
}

func (s *SubscriberService) SetEmailAlerts(ctx context.Context, subscriberID int, enabled bool) (*domain.Subscriber, error) {
	err := s.subscriberRepo.UpdateProfile(ctx, domain.Profile{SubscriberID: subscriberID, EmailAlerts: enabled})
	if err != nil {
		return nil, err
	}
	return s.subscriberRepo.GetByID(ctx, subscriberID)
}
