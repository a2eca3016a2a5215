package domain

import "time"

// DefaultDailyAIQuota is the number of user-initiated AI calls allowed per day.
const DefaultDailyAIQuota = 3

// AIUsageQuota tracks a user's AI calls for the current day. The counter is
// reset lazily: a row whose LastResetDate is not today counts as zero usage.
type AIUsageQuota struct {
	UserID        string    `json:"user_id"         gorm:"type:varchar(64);primaryKey"`
	UsageCount    int       `json:"usage_count"     gorm:"not null;default:0"`
	LastResetDate string    `json:"last_reset_date" gorm:"type:varchar(10);not null"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for AIUsageQuota.
func (AIUsageQuota) TableName() string { return "ai_usage_quotas" }

// EffectiveUsage returns the usage count as seen on today, applying the lazy
// reset when the stored date is stale.
func (q *AIUsageQuota) EffectiveUsage(today time.Time) int {
	if q == nil || q.LastResetDate != DateKey(today) {
		return 0
	}
	return q.UsageCount
}

// Remaining returns max(0, max-usage) for today.
func (q *AIUsageQuota) Remaining(today time.Time, max int) int {
	if r := max - q.EffectiveUsage(today); r > 0 {
		return r
	}
	return 0
}

// CanUseNow reports whether at least one call remains today.
func (q *AIUsageQuota) CanUseNow(today time.Time, max int) bool {
	return q.Remaining(today, max) > 0
}
