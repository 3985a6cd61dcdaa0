package storage

import (
	"time"

	"riskwatch/internal/evalapi"
)

// StoredWindow is a persisted evaluation window scoped to a merchant.
type StoredWindow struct {
	MerchantKey string
	Window      evalapi.EvaluationWindow
	CreatedAt   time.Time
}
