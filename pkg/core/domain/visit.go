package domain

import "time"

// Visit represents a click on a short link
type Visit struct {
	Domain    string    `json:"domain"`
	ShortURI  string    `json:"short_uri"`
	Visitor   string    `json:"visitor"` // uv cookie value
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Referer   string    `json:"referer"`
	CreatedAt time.Time `json:"created_at"`
}

// VisitDelta is how much a single visit adds to a link's counters.
type VisitDelta struct {
	PV  int64
	UV  int64
	UIP int64
}
