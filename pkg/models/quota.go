package models

// QuotaPeriod defines the time window for a quota policy.
type QuotaPeriod string

const (
	QuotaDaily   QuotaPeriod = "daily"
	QuotaMonthly QuotaPeriod = "monthly"
)

// QuotaPolicy caps generations per user per period. UserID "*" matches everyone.
type QuotaPolicy struct {
	UserID      string      `json:"user_id" yaml:"user_id"`
	MaxRequests int64       `json:"max_requests" yaml:"max_requests"`
	Period      QuotaPeriod `json:"period" yaml:"period"`
}

// QuotaStatus shows current usage against a policy.
type QuotaStatus struct {
	Policy    QuotaPolicy `json:"policy"`
	Used      int64       `json:"used"`
	Remaining int64       `json:"remaining"`
}
