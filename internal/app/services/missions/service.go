// Package missions tracks per-user progress toward recurring goals and pays
// out their rewards through the points ledger.
package missions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/mission"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/points"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/metrics"
	pointsvc "github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/points"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/storage"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/cache"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/logger"
)

var (
	ErrInvalidMission = errors.New("invalid mission")
	ErrNotCompleted   = errors.New("mission not completed")
	ErrAlreadyClaimed = errors.New("mission reward already claimed")
)

const activeKey = "missions:active"

// Service manages missions and user progress.
type Service struct {
	store  storage.Store
	ledger *pointsvc.Service
	cache  cache.Cache
	ttl    time.Duration
	log    *logger.Logger
	now    func() time.Time
}

// New constructs a mission service. A nil cache disables caching.
func New(store storage.Store, ledger *pointsvc.Service, c cache.Cache, ttl time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("missions")
	}
	if c == nil {
		c = cache.NewMemory()
		ttl = 0
	}
	return &Service{store: store, ledger: ledger, cache: c, ttl: ttl, log: log, now: time.Now}
}

func (s *Service) Create(ctx context.Context, m mission.Mission) (mission.Mission, error) {
	if err := validate(&m); err != nil {
		return mission.Mission{}, err
	}
	created, err := s.store.CreateMission(ctx, m)
	if err != nil {
		return mission.Mission{}, err
	}
	s.invalidate(ctx)
	s.log.Infof("mission %s created for event %s", created.ID, created.Event)
	return created, nil
}

func (s *Service) Update(ctx context.Context, m mission.Mission) (mission.Mission, error) {
	if err := validate(&m); err != nil {
		return mission.Mission{}, err
	}
	updated, err := s.store.UpdateMission(ctx, m)
	if err != nil {
		return mission.Mission{}, err
	}
	s.invalidate(ctx)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteMission(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (mission.Mission, error) {
	return s.store.GetMission(ctx, id)
}

// List returns all missions including inactive ones.
func (s *Service) List(ctx context.Context) ([]mission.Mission, error) {
	return s.store.ListMissions(ctx, false)
}

// ListActive returns active missions through the cache.
func (s *Service) ListActive(ctx context.Context) ([]mission.Mission, error) {
	return cache.GetOrLoad(ctx, s.cache, activeKey, s.ttl, func(ctx context.Context) ([]mission.Mission, error) {
		return s.store.ListMissions(ctx, true)
	})
}

// ListForUser joins active, in-window missions with the user's progress for
// the period containing at.
func (s *Service) ListForUser(ctx context.Context, userID string, at time.Time) ([]mission.UserMission, error) {
	active, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]mission.UserMission, 0, len(active))
	for _, m := range active {
		if !m.InWindow(at) {
			continue
		}
		key := mission.PeriodKey(m.Recurrence, at)
		p, err := s.store.GetMissionProgress(ctx, userID, m.ID, key)
		if errors.Is(err, storage.ErrNotFound) {
			p = mission.Progress{UserID: userID, MissionID: m.ID, PeriodKey: key, Status: mission.ProgressInProgress}
		} else if err != nil {
			return nil, err
		}
		out = append(out, mission.UserMission{Mission: m, Progress: p})
	}
	return out, nil
}

// Record advances progress for event in its own transaction.
func (s *Service) Record(ctx context.Context, userID string, event mission.Event, amount int) ([]mission.Progress, error) {
	var changed []mission.Progress
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		changed, err = s.RecordTx(ctx, tx, userID, event, amount)
		return err
	})
	return changed, err
}

// RecordTx adds amount to the current-period count of every active mission
// tracking event. Counts are capped at the target; reaching it completes the
// mission. Completed and claimed progress is left alone.
func (s *Service) RecordTx(ctx context.Context, tx storage.Tx, userID string, event mission.Event, amount int) ([]mission.Progress, error) {
	if amount <= 0 {
		return nil, nil
	}
	active, err := tx.ListMissions(ctx, true)
	if err != nil {
		return nil, err
	}
	at := s.now().UTC()

	var changed []mission.Progress
	for _, m := range active {
		if m.Event != event || !m.InWindow(at) {
			continue
		}
		key := mission.PeriodKey(m.Recurrence, at)
		p, err := tx.GetMissionProgress(ctx, userID, m.ID, key)
		if errors.Is(err, storage.ErrNotFound) {
			p = mission.Progress{UserID: userID, MissionID: m.ID, PeriodKey: key, Status: mission.ProgressInProgress}
		} else if err != nil {
			return nil, err
		}
		if p.Status != mission.ProgressInProgress {
			continue
		}

		p.Count += amount
		if p.Count >= m.Target {
			p.Count = m.Target
			p.Status = mission.ProgressCompleted
			p.CompletedAt = &at
		}
		saved, err := tx.SaveMissionProgress(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("save progress for mission %s: %w", m.ID, err)
		}
		changed = append(changed, saved)
	}
	return changed, nil
}

// Claim pays out a completed mission for the current period.
func (s *Service) Claim(ctx context.Context, userID, missionID string) (mission.Progress, points.Entry, error) {
	var (
		progress mission.Progress
		entry    points.Entry
	)
	at := s.now().UTC()
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		m, err := tx.GetMission(ctx, missionID)
		if err != nil {
			return err
		}
		key := mission.PeriodKey(m.Recurrence, at)
		p, err := tx.GetMissionProgress(ctx, userID, missionID, key)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: no progress in period %s", ErrNotCompleted, key)
		}
		if err != nil {
			return err
		}
		switch p.Status {
		case mission.ProgressClaimed:
			return ErrAlreadyClaimed
		case mission.ProgressInProgress:
			return fmt.Errorf("%w: %d of %d", ErrNotCompleted, p.Count, m.Target)
		}

		p.Status = mission.ProgressClaimed
		p.ClaimedAt = &at
		if progress, err = tx.SaveMissionProgress(ctx, p); err != nil {
			return err
		}
		entry, err = s.ledger.EarnTx(ctx, tx, pointsvc.EarnRequest{
			UserID:      userID,
			Amount:      m.Points,
			Source:      points.SourceMission,
			ReferenceID: m.ID,
			Description: m.Title,
		})
		return err
	})
	if err != nil {
		return mission.Progress{}, points.Entry{}, err
	}
	s.ledger.Committed(entry)
	metrics.RecordClaim("mission")
	s.log.Infof("user %s claimed mission %s (%s)", userID, missionID, progress.PeriodKey)
	return progress, entry, nil
}

// DeactivateEnded switches off missions whose end time has passed.
func (s *Service) DeactivateEnded(ctx context.Context) (int, error) {
	n, err := s.store.DeactivateEndedMissions(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.invalidate(ctx)
	}
	return n, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, activeKey); err != nil {
		s.log.WithError(err).Warn("invalidate mission cache")
	}
}

func validate(m *mission.Mission) error {
	m.Title = strings.TrimSpace(m.Title)
	if m.Recurrence == "" {
		m.Recurrence = mission.RecurrenceOnce
	}
	switch {
	case m.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidMission)
	case !mission.ValidEvent(m.Event):
		return fmt.Errorf("%w: unknown event %q", ErrInvalidMission, m.Event)
	case !mission.ValidRecurrence(m.Recurrence):
		return fmt.Errorf("%w: unknown recurrence %q", ErrInvalidMission, m.Recurrence)
	case m.Target <= 0:
		return fmt.Errorf("%w: target must be positive", ErrInvalidMission)
	case m.Points <= 0:
		return fmt.Errorf("%w: points must be positive", ErrInvalidMission)
	case m.StartsAt != nil && m.EndsAt != nil && !m.EndsAt.After(*m.StartsAt):
		return fmt.Errorf("%w: ends_at must be after starts_at", ErrInvalidMission)
	}
	return nil
}
