package mission

import "time"

// Event names an activity that advances mission progress.
type Event string

const (
	EventLogisticOrderApproved Event = "logistic_order_approved"
	EventItemsRecycled         Event = "items_recycled"
	EventVoucherClaimed        Event = "voucher_claimed"
	EventExchangeCompleted     Event = "exchange_completed"
)

// Recurrence controls how often progress resets.
type Recurrence string

const (
	RecurrenceOnce   Recurrence = "once"
	RecurrenceDaily  Recurrence = "daily"
	RecurrenceWeekly Recurrence = "weekly"
)

// Mission is a goal that awards Points once Target events are recorded
// within a period.
type Mission struct {
	ID          string     `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description,omitempty" db:"description"`
	Event       Event      `json:"event" db:"event"`
	Target      int        `json:"target" db:"target"`
	Points      int64      `json:"points" db:"points"`
	Recurrence  Recurrence `json:"recurrence" db:"recurrence"`
	Active      bool       `json:"active" db:"active"`
	StartsAt    *time.Time `json:"starts_at,omitempty" db:"starts_at"`
	EndsAt      *time.Time `json:"ends_at,omitempty" db:"ends_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// InWindow reports whether t falls within the mission's optional schedule.
func (m Mission) InWindow(t time.Time) bool {
	if m.StartsAt != nil && t.Before(*m.StartsAt) {
		return false
	}
	if m.EndsAt != nil && !t.Before(*m.EndsAt) {
		return false
	}
	return true
}

// ProgressStatus tracks a user's standing on a mission for one period.
type ProgressStatus string

const (
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed"
	ProgressClaimed    ProgressStatus = "claimed"
)

// Progress is a user's count toward a mission for a single period.
type Progress struct {
	ID          string         `json:"id" db:"id"`
	UserID      string         `json:"user_id" db:"user_id"`
	MissionID   string         `json:"mission_id" db:"mission_id"`
	PeriodKey   string         `json:"period_key" db:"period_key"`
	Count       int            `json:"count" db:"count"`
	Status      ProgressStatus `json:"status" db:"status"`
	CompletedAt *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
	ClaimedAt   *time.Time     `json:"claimed_at,omitempty" db:"claimed_at"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// UserMission pairs a mission with the caller's progress in the current period.
type UserMission struct {
	Mission  Mission  `json:"mission"`
	Progress Progress `json:"progress"`
}
