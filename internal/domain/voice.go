package domain

// VoiceProfile is a read-only catalog entry from the provider. It is never
// owned by a tenant; selection records only the id on AgentProfile.
type VoiceProfile struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Gender     string `json:"gender"`
	Accent     string `json:"accent"`
	Age        string `json:"age"`
	Provider   string `json:"provider"`
	PreviewURL string `json:"preview_url,omitempty"`
}

// VoiceFilter holds the client-side catalog filter. Zero values match
// everything.
type VoiceFilter struct {
	Gender   string `json:"gender,omitempty"`
	Provider string `json:"provider,omitempty"`
	Search   string `json:"search,omitempty"`
}

// UsageCounter is the minutes-used vs minutes-included pair for the active
// billing period. It is fetched, never written, from this service.
type UsageCounter struct {
	MinutesUsed     int64 `json:"minutes_used"`
	MinutesIncluded int64 `json:"minutes_included"`
}
