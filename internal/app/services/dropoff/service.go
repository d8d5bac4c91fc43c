package dropoff

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/dropoff"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/storage"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/cache"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/logger"
)

// ErrInvalidDropPoint is returned for drop points missing required fields.
var ErrInvalidDropPoint = errors.New("invalid drop point")

const activeKey = "dropoff:active"

// Service manages the drop-off point catalog.
type Service struct {
	store storage.DropPointStore
	cache cache.Cache
	ttl   time.Duration
	log   *logger.Logger
}

// New constructs a drop point service. A nil cache disables caching.
func New(store storage.DropPointStore, c cache.Cache, ttl time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("dropoff")
	}
	if c == nil {
		c = cache.NewMemory()
		ttl = 0
	}
	return &Service{store: store, cache: c, ttl: ttl, log: log}
}

func (s *Service) Create(ctx context.Context, dp dropoff.DropPoint) (dropoff.DropPoint, error) {
	if err := validate(&dp); err != nil {
		return dropoff.DropPoint{}, err
	}
	created, err := s.store.CreateDropPoint(ctx, dp)
	if err != nil {
		return dropoff.DropPoint{}, err
	}
	s.invalidate(ctx)
	s.log.Infof("drop point %s created", created.ID)
	return created, nil
}

func (s *Service) Update(ctx context.Context, dp dropoff.DropPoint) (dropoff.DropPoint, error) {
	if err := validate(&dp); err != nil {
		return dropoff.DropPoint{}, err
	}
	updated, err := s.store.UpdateDropPoint(ctx, dp)
	if err != nil {
		return dropoff.DropPoint{}, err
	}
	s.invalidate(ctx)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteDropPoint(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (dropoff.DropPoint, error) {
	return s.store.GetDropPoint(ctx, id)
}

// List returns every drop point, active or not.
func (s *Service) List(ctx context.Context) ([]dropoff.DropPoint, error) {
	return s.store.ListDropPoints(ctx, false)
}

// ListActive returns the public catalog through the cache.
func (s *Service) ListActive(ctx context.Context) ([]dropoff.DropPoint, error) {
	return cache.GetOrLoad(ctx, s.cache, activeKey, s.ttl, func(ctx context.Context) ([]dropoff.DropPoint, error) {
		return s.store.ListDropPoints(ctx, true)
	})
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, activeKey); err != nil {
		s.log.WithError(err).Warn("invalidate drop point cache")
	}
}

func validate(dp *dropoff.DropPoint) error {
	dp.Name = strings.TrimSpace(dp.Name)
	dp.Address = strings.TrimSpace(dp.Address)
	if dp.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDropPoint)
	}
	if dp.Address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidDropPoint)
	}
	if dp.Latitude < -90 || dp.Latitude > 90 || dp.Longitude < -180 || dp.Longitude > 180 {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidDropPoint)
	}
	return nil
}
