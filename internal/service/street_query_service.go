package service

import (
	"context"
	"fmt"

	"constituency-streets/internal/models"
)

// StreetQueryService contains the read-side logic for the finished
// street-by-street dataset.
type StreetQueryService struct {
	repo StreetStore
}

// StreetStore interface for dependency injection.
type StreetStore interface {
	StreetsByConstituency(ctx context.Context, code string) ([]models.ResolvedStreet, error)
}

// NewStreetQueryService creates a new street query service.
func NewStreetQueryService(repo StreetStore) *StreetQueryService {
	return &StreetQueryService{repo: repo}
}

// StreetsInConstituency returns every resolved street for a constituency
// code, street name ascending.
func (s *StreetQueryService) StreetsInConstituency(ctx context.Context, code string) ([]models.ResolvedStreet, error) {
	if code == "" {
		return nil, fmt.Errorf("service: constituency code cannot be empty")
	}

	streets, err := s.repo.StreetsByConstituency(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("service: failed to fetch streets: %w", err)
	}

	return streets, nil
}
