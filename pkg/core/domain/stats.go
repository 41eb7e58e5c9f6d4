package domain

// SystemStats is a point-in-time summary across every owner
type SystemStats struct {
	Users              int64 `json:"totalUsers"`
	Links              int64 `json:"totalLinks"`
	Clicks             int64 `json:"totalClicks"`
	FailedClickRecords int64 `json:"failedClickRecords"`
}
