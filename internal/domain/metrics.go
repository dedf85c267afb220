package domain

// DashboardSummary is the card row on the dashboard landing screen.
type DashboardSummary struct {
	Projects      int `json:"projects"`
	Bases         int `json:"bases"`
	Trainings     int `json:"trainings"`
	Products      int `json:"products"`
	Bots          int `json:"bots"`
	ConnectedBots int `json:"connected_bots"`
	Condominiums  int `json:"condominiums"`
}

// SyncMetrics summarizes cache/synchronization health for the
// GET /v1/dashboard/sync endpoint.
type SyncMetrics struct {
	StoreFetches       int64   `json:"store_fetches"`
	StoreRefreshes     int64   `json:"store_refreshes"`
	SubscriptionEvents int64   `json:"subscription_events"`
	WebhookErrors      int64   `json:"webhook_errors"`
	ErrorRate          float64 `json:"error_rate"`
	CacheHitRate       float64 `json:"cache_hit_rate"`
	Period             string  `json:"period"`
}
