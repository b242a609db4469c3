package service

import (
	"context"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
)

// CatalogService интерфейс сервиса каталога продуктов
type CatalogService interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetTier(ctx context.Context, tierID uuid.UUID) (domain.Product, domain.PricingTier, error)
}

type catalogService struct {
	repo repository.CatalogRepository
	log  *logger.Logger
}

// NewCatalogService создает новый сервис каталога
func NewCatalogService(repo repository.CatalogRepository, log *logger.Logger) CatalogService {
	return &catalogService{
		repo: repo,
		log:  log,
	}
}

func (s *catalogService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	s.log.Debug("Getting catalog products")

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		s.log.Error("Failed to list products: %v", err)
		return nil, err
	}
	return products, nil
}

func (s *catalogService) GetTier(ctx context.Context, tierID uuid.UUID) (domain.Product, domain.PricingTier, error) {
	s.log.Debug("Getting pricing tier: %s", tierID)
	return s.repo.GetTier(ctx, tierID)
}
