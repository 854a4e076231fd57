package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gemrelay/gemrelay/pkg/models"
	"github.com/gemrelay/gemrelay/pkg/tracker"
)

// ErrQuotaExceeded is returned when a user has used up a quota policy.
var ErrQuotaExceeded = errors.New("quota exceeded")

// Enforcer checks generation counts against quota policies.
type Enforcer struct {
	policies []models.QuotaPolicy
	tracker  tracker.Tracker
}

// New creates an Enforcer with the given policies and tracker.
func New(policies []models.QuotaPolicy, t tracker.Tracker) *Enforcer {
	return &Enforcer{policies: policies, tracker: t}
}

// Check returns ErrQuotaExceeded if userID has exhausted any applicable policy.
func (e *Enforcer) Check(ctx context.Context, userID string) error {
	for _, p := range e.policiesFor(userID) {
		used, err := e.tracker.CountByUser(ctx, userID, periodStart(p.Period))
		if err != nil {
			return fmt.Errorf("quota check: %w", err)
		}
		if used >= p.MaxRequests {
			return ErrQuotaExceeded
		}
	}
	return nil
}

// Status returns the quota status for userID across all applicable policies.
func (e *Enforcer) Status(ctx context.Context, userID string) ([]models.QuotaStatus, error) {
	policies := e.policiesFor(userID)
	statuses := make([]models.QuotaStatus, 0, len(policies))

	for _, p := range policies {
		used, err := e.tracker.CountByUser(ctx, userID, periodStart(p.Period))
		if err != nil {
			return nil, fmt.Errorf("quota status: %w", err)
		}
		statuses = append(statuses, models.QuotaStatus{
			Policy:    p,
			Used:      used,
			Remaining: max(p.MaxRequests-used, 0),
		})
	}
	return statuses, nil
}

func (e *Enforcer) policiesFor(userID string) []models.QuotaPolicy {
	var result []models.QuotaPolicy
	for _, p := range e.policies {
		if p.UserID == "*" || p.UserID == userID {
			result = append(result, p)
		}
	}
	return result
}

func periodStart(period models.QuotaPeriod) time.Time {
	now := time.Now().UTC()
	switch period {
	case models.QuotaMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default: // daily
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
}
