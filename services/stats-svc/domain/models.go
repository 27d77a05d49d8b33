package domain

import "time"

// UrlStatistics is the one-row-per-code rollup the Aggregator maintains and
// the Query API serves.
type UrlStatistics struct {
	ShortCode        string     `json:"short_code" db:"short_code"`
	TotalClicks      int64      `json:"total_clicks" db:"total_clicks"`
	ClicksToday      int64      `json:"clicks_today" db:"clicks_today"`
	ClicksThisWeek   int64      `json:"clicks_this_week" db:"clicks_this_week"`
	ClicksThisMonth  int64      `json:"clicks_this_month" db:"clicks_this_month"`
	FirstClickAt     *time.Time `json:"first_click_at" db:"first_click_at"`
	LastClickAt      *time.Time `json:"last_click_at" db:"last_click_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// CountryBreakdown is one entry in a per-URL top-countries list.
type CountryBreakdown struct {
	Country string `json:"country" db:"country"`
	Clicks  int64  `json:"clicks" db:"clicks"`
}

// DailyClicks is one entry in a per-URL 30-day timeline.
type DailyClicks struct {
	Day    time.Time `json:"day" db:"day"`
	Clicks int64     `json:"clicks" db:"clicks"`
}

// UrlStatisticsResponse is the body served by GET /api/v1/stats/url/{code}.
type UrlStatisticsResponse struct {
	UrlStatistics
	TopCountries []CountryBreakdown `json:"top_countries"`
	DailyTimeline []DailyClicks     `json:"daily_timeline"`
}

// PlatformStatisticsResponse is the body served by GET /api/v1/stats/platform.
type PlatformStatisticsResponse struct {
	TotalCodes  int64 `json:"total_codes"`
	TotalClicks int64 `json:"total_clicks"`
	ClicksToday int64 `json:"clicks_today"`
}
