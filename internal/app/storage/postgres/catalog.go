package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/dropoff"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/mission"
)

const dropPointColumns = `id, name, address, latitude, longitude, open_hours, active, created_at, updated_at`

// --- DropPointStore ----------------------------------------------------------

func (s *Store) CreateDropPoint(ctx context.Context, dp dropoff.DropPoint) (dropoff.DropPoint, error) {
	if dp.ID == "" {
		dp.ID = uuid.NewString()
	}
	ts := now()
	dp.CreatedAt = ts
	dp.UpdatedAt = ts

	_, err := sqlx.NamedExecContext(ctx, s.q, `
		INSERT INTO drop_points (`+dropPointColumns+`)
		VALUES (:id, :name, :address, :latitude, :longitude, :open_hours, :active, :created_at, :updated_at)
	`, dp)
	if err != nil {
		return dropoff.DropPoint{}, conflict(err, "drop point "+dp.ID)
	}
	return dp, nil
}

func (s *Store) UpdateDropPoint(ctx context.Context, dp dropoff.DropPoint) (dropoff.DropPoint, error) {
	err := sqlx.GetContext(ctx, s.q, &dp, `
		UPDATE drop_points
		SET name = $2, address = $3, latitude = $4, longitude = $5, open_hours = $6, active = $7, updated_at = $8
		WHERE id = $1
		RETURNING `+dropPointColumns,
		dp.ID, dp.Name, dp.Address, dp.Latitude, dp.Longitude, dp.OpenHours, dp.Active, now())
	if err != nil {
		return dropoff.DropPoint{}, notFound(err, "drop point", dp.ID)
	}
	return dp, nil
}

func (s *Store) GetDropPoint(ctx context.Context, id string) (dropoff.DropPoint, error) {
	var dp dropoff.DropPoint
	if err := sqlx.GetContext(ctx, s.q, &dp, `SELECT `+dropPointColumns+` FROM drop_points WHERE id = $1`, id); err != nil {
		return dropoff.DropPoint{}, notFound(err, "drop point", id)
	}
	return dp, nil
}

func (s *Store) ListDropPoints(ctx context.Context, activeOnly bool) ([]dropoff.DropPoint, error) {
	out := []dropoff.DropPoint{}
	err := sqlx.SelectContext(ctx, s.q, &out, `
		SELECT `+dropPointColumns+`
		FROM drop_points
		WHERE NOT $1 OR active
		ORDER BY name, id
	`, activeOnly)
	return out, err
}

func (s *Store) DeleteDropPoint(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM drop_points WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, "drop point", id)
}

// --- MissionStore ------------------------------------------------------------

const missionColumns = `id, title, description, event, target, points, recurrence, active, starts_at, ends_at, created_at, updated_at`

const progressColumns = `id, user_id, mission_id, period_key, count, status, completed_at, claimed_at, created_at, updated_at`

func (s *Store) CreateMission(ctx context.Context, m mission.Mission) (mission.Mission, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	ts := now()
	m.CreatedAt = ts
	m.UpdatedAt = ts

	_, err := sqlx.NamedExecContext(ctx, s.q, `
		INSERT INTO missions (`+missionColumns+`)
		VALUES (:id, :title, :description, :event, :target, :points, :recurrence, :active, :starts_at, :ends_at, :created_at, :updated_at)
	`, m)
	if err != nil {
		return mission.Mission{}, conflict(err, "mission "+m.ID)
	}
	return m, nil
}

func (s *Store) UpdateMission(ctx context.Context, m mission.Mission) (mission.Mission, error) {
	err := sqlx.GetContext(ctx, s.q, &m, `
		UPDATE missions
		SET title = $2, description = $3, event = $4, target = $5, points = $6, recurrence = $7,
			active = $8, starts_at = $9, ends_at = $10, updated_at = $11
		WHERE id = $1
		RETURNING `+missionColumns,
		m.ID, m.Title, m.Description, m.Event, m.Target, m.Points, m.Recurrence, m.Active, m.StartsAt, m.EndsAt, now())
	if err != nil {
		return mission.Mission{}, notFound(err, "mission", m.ID)
	}
	return m, nil
}

func (s *Store) GetMission(ctx context.Context, id string) (mission.Mission, error) {
	var m mission.Mission
	if err := sqlx.GetContext(ctx, s.q, &m, `SELECT `+missionColumns+` FROM missions WHERE id = $1`, id); err != nil {
		return mission.Mission{}, notFound(err, "mission", id)
	}
	return m, nil
}

func (s *Store) ListMissions(ctx context.Context, activeOnly bool) ([]mission.Mission, error) {
	out := []mission.Mission{}
	err := sqlx.SelectContext(ctx, s.q, &out, `
		SELECT `+missionColumns+`
		FROM missions
		WHERE NOT $1 OR active
		ORDER BY created_at, id
	`, activeOnly)
	return out, err
}

func (s *Store) DeleteMission(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM missions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, "mission", id)
}

func (s *Store) DeactivateEndedMissions(ctx context.Context, at time.Time) (int, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE missions
		SET active = FALSE, updated_at = $2
		WHERE active AND ends_at IS NOT NULL AND ends_at <= $1
	`, at, now())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// GetMissionProgress inside a transaction seeds an empty in-progress row
// before locking it, so concurrent first increments for the same period
// queue on one row instead of racing to insert it.
func (s *Store) GetMissionProgress(ctx context.Context, userID, missionID, periodKey string) (mission.Progress, error) {
	if s.inTx() {
		ts := now()
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO mission_progress (id, user_id, mission_id, period_key, count, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 0, $5, $6, $6)
			ON CONFLICT (user_id, mission_id, period_key) DO NOTHING`,
			uuid.NewString(), userID, missionID, periodKey, mission.ProgressInProgress, ts)
		if err != nil {
			return mission.Progress{}, conflict(err, "mission progress "+missionID)
		}
	}

	var p mission.Progress
	err := sqlx.GetContext(ctx, s.q, &p, `
		SELECT `+progressColumns+`
		FROM mission_progress
		WHERE user_id = $1 AND mission_id = $2 AND period_key = $3`+s.forUpdate(),
		userID, missionID, periodKey)
	if err != nil {
		return mission.Progress{}, notFound(err, "mission progress", missionID)
	}
	return p, nil
}

func (s *Store) SaveMissionProgress(ctx context.Context, p mission.Progress) (mission.Progress, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	ts := now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = ts
	}
	p.UpdatedAt = ts

	err := sqlx.GetContext(ctx, s.q, &p, `
		INSERT INTO mission_progress (`+progressColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, mission_id, period_key) DO UPDATE
		SET count = EXCLUDED.count, status = EXCLUDED.status, completed_at = EXCLUDED.completed_at,
			claimed_at = EXCLUDED.claimed_at, updated_at = EXCLUDED.updated_at
		RETURNING `+progressColumns,
		p.ID, p.UserID, p.MissionID, p.PeriodKey, p.Count, p.Status, p.CompletedAt, p.ClaimedAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return mission.Progress{}, err
	}
	return p, nil
}
