package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/sigap-app/sigap-api/internal/dto"
	"github.com/sigap-app/sigap-api/internal/models"
	"github.com/sigap-app/sigap-api/internal/observability"
	"github.com/sigap-app/sigap-api/internal/repository"
)

var (
	// ErrProductNotFound indicates no catalog entry matches the SKU.
	ErrProductNotFound = errors.New("product not found")
	// ErrSeedDisabled indicates the seeding endpoint is disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided seed token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
)

// ProductService exposes the product catalog.
type ProductService interface {
	List(ctx context.Context, search, category string, page, pageSize int) (dto.ProductListResponse, error)
	GetBySKU(ctx context.Context, sku string) (dto.ProductResponse, error)
	Seed(ctx context.Context, token string, req dto.ProductSeedRequest) (dto.ProductSeedResponse, error)
}

type productService struct {
	repo        repository.ProductRepository
	validator   *validator.Validate
	cache       *redis.Client
	ttl         time.Duration
	seedEnabled bool
	seedToken   string
	logger      zerolog.Logger
}

// NewProductService constructs the catalog service. The cache client may be
// nil; listings then always hit the store.
func NewProductService(repo repository.ProductRepository, validate *validator.Validate, cache *redis.Client, ttl time.Duration, seedEnabled bool, seedToken string, logger zerolog.Logger) ProductService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &productService{
		repo:        repo,
		validator:   validate,
		cache:       cache,
		ttl:         ttl,
		seedEnabled: seedEnabled,
		seedToken:   seedToken,
		logger:      logger.With().Str("component", "product_service").Logger(),
	}
}

// List returns active catalog entries, served from cache when possible.
func (s *productService) List(ctx context.Context, search, category string, page, pageSize int) (dto.ProductListResponse, error) {
	page = maxInt(page, 1)
	pageSize = clampPageSize(pageSize)
	search = strings.TrimSpace(search)
	category = strings.TrimSpace(category)

	cacheKey := ""
	if s.cache != nil {
		cacheKey = fmt.Sprintf("products:active:v1:%s:%s:%d:%d", strings.ToLower(search), strings.ToLower(category), page, pageSize)
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
			var response dto.ProductListResponse
			if err := json.Unmarshal([]byte(cached), &response); err == nil {
				response.CacheHit = true
				observability.CatalogRequests().WithLabelValues("hit").Inc()
				return response, nil
			}
		}
	}

	products, total, err := s.repo.List(ctx, repository.ProductFilter{
		Search:     search,
		Category:   category,
		OnlyActive: true,
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		observability.CatalogRequests().WithLabelValues("error").Inc()
		return dto.ProductListResponse{}, err
	}

	pagination := dto.PaginationMeta{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: 1,
	}
	if pageSize > 0 {
		pagination.TotalPages = int(math.Ceil(float64(total) / float64(pageSize)))
	}

	response := dto.ProductListResponse{
		Items:      dto.NewProductResponseSlice(products),
		Pagination: pagination,
	}

	if cacheKey != "" && s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.ttl).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to cache product listing")
			}
		}
	}

	observability.CatalogRequests().WithLabelValues("miss").Inc()

	return response, nil
}

// GetBySKU resolves a catalog entry. Inactive entries stay resolvable so
// existing references keep working after a product is retired from listings.
func (s *productService) GetBySKU(ctx context.Context, sku string) (dto.ProductResponse, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return dto.ProductResponse{}, ErrProductNotFound
	}

	product, err := s.repo.GetBySKU(ctx, sku)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.CatalogRequests().WithLabelValues("not_found").Inc()
			return dto.ProductResponse{}, ErrProductNotFound
		}
		observability.CatalogRequests().WithLabelValues("error").Inc()
		return dto.ProductResponse{}, err
	}

	observability.CatalogRequests().WithLabelValues("hit").Inc()
	return dto.NewProductResponse(product), nil
}

// Seed upserts catalog rows atomically by SKU, guarded by the seed token.
func (s *productService) Seed(ctx context.Context, token string, req dto.ProductSeedRequest) (dto.ProductSeedResponse, error) {
	if !s.seedEnabled {
		return dto.ProductSeedResponse{}, ErrSeedDisabled
	}
	if !s.validateToken(token) {
		return dto.ProductSeedResponse{}, ErrSeedUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ProductSeedResponse{}, err
	}

	products := make([]models.Product, 0, len(req.Items))
	for _, item := range req.Items {
		active := true
		if item.IsActive != nil {
			active = *item.IsActive
		}
		products = append(products, models.Product{
			SKU:      strings.TrimSpace(item.SKU),
			Name:     strings.TrimSpace(item.Name),
			Category: strings.TrimSpace(item.Category),
			Unit:     strings.TrimSpace(item.Unit),
			Price:    item.Price,
			IsActive: active,
		})
	}

	affected, err := s.repo.UpsertBatch(ctx, products)
	if err != nil {
		return dto.ProductSeedResponse{}, err
	}

	if s.cache != nil {
		if err := s.cache.FlushDB(ctx).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to flush product cache")
		}
	}

	s.logger.Info().Int64("affected", affected).Msg("products seeded")
	return dto.ProductSeedResponse{Seeded: len(products)}, nil
}

func (s *productService) validateToken(token string) bool {
	expected := strings.TrimSpace(s.seedToken)
	if expected == "" {
		return false
	}
	return constantTimeEquals(expected, strings.TrimSpace(token))
}

func constantTimeEquals(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	mismatch := byte(0)
	for i := 0; i < len(a); i++ {
		mismatch |= a[i] ^ b[i]
	}
	return mismatch == 0
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
