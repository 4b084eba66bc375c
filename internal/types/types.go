package types

import "atlas-advisor-backend/internal/apperr"

// ChatRequest is the POST /api/chat body.
type ChatRequest struct {
	Message   string       `json:"message"`
	SessionID string       `json:"sessionId,omitempty"`
	Context   *ChatContext `json:"context,omitempty"`
}

type ChatContext struct {
	SelectedDatasets []string `json:"selectedDatasets,omitempty"`
}

// ChatReply is the assistant turn returned on success.
type ChatReply struct {
	MessageID        string            `json:"messageId"`
	Role             string            `json:"role"`
	Content          string            `json:"content"`
	Timestamp        string            `json:"timestamp"`
	SessionID        string            `json:"sessionId,omitempty"`
	Recommendations  []Recommendation  `json:"recommendations"`
	SuggestedActions []SuggestedAction `json:"suggestedActions,omitempty"`
	Metadata         ReplyMetadata     `json:"metadata"`
}

type Recommendation struct {
	App             AppTemplate `json:"app"`
	Score           float64     `json:"score"`
	Reasoning       string      `json:"reasoning"`
	Confidence      string      `json:"confidence"`
	MatchedFeatures []string    `json:"matchedFeatures"`
}

// SuggestedAction is a follow-up the client can offer as a button.
type SuggestedAction struct {
	Type   string `json:"type"`
	Label  string `json:"label"`
	Target string `json:"target,omitempty"`
}

type ReplyMetadata struct {
	TokensUsed int    `json:"tokensUsed"`
	Latency    int64  `json:"latency"` // milliseconds
	Model      string `json:"model"`
}

// AppTemplate is one entry of the fixed application template catalog.
type AppTemplate struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Category    string   `json:"category" yaml:"category"`
	Complexity  string   `json:"complexity" yaml:"complexity"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
	Features    []string `json:"features" yaml:"features"`
	UseCases    []string `json:"useCases" yaml:"use_cases"`
	PreviewURL  string   `json:"previewUrl,omitempty" yaml:"preview_url"`
}

// Dataset is a Living Atlas catalog record.
type Dataset struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Category    string   `json:"category" yaml:"category"`
	Tags        []string `json:"tags" yaml:"tags"`
	Owner       string   `json:"owner" yaml:"owner"`
	ItemType    string   `json:"itemType" yaml:"item_type"`
	URL         string   `json:"url,omitempty" yaml:"url"`
	Modified    string   `json:"modified" yaml:"modified"` // ISO-8601 date
	Views       int      `json:"views" yaml:"views"`
}

// SearchRequest is the raw GET /api/living-atlas/search query.
type SearchRequest struct {
	Q        string
	Category string
	Limit    string
	Offset   string
	SortBy   string
}

type SearchResponse struct {
	Query      string          `json:"query"`
	Total      int             `json:"total"`
	Count      int             `json:"count"`
	Offset     int             `json:"offset"`
	Limit      int             `json:"limit"`
	Results    []Dataset       `json:"results"`
	Categories []CategoryCount `json:"categories"`
	Metadata   *SearchMetadata `json:"metadata,omitempty"`
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// SearchMetadata is set only when the response was served from the stale
// fallback store; Warning then describes the failure that was masked.
type SearchMetadata struct {
	Stale    bool             `json:"stale"`
	CachedAt string           `json:"cachedAt,omitempty"`
	Warning  *apperr.AppError `json:"warning,omitempty"`
}

type HealthStatus struct {
	Status     string `json:"status"`
	Completion string `json:"completion"`
	Search     string `json:"search"`
	Templates  int    `json:"templates"`
	Datasets   int    `json:"datasets"`
}

// ChatInput is a ChatRequest that passed validation.
type ChatInput struct {
	Message          string
	SessionID        string
	SelectedDatasets []string
}

// SearchInput is a SearchRequest that passed validation, with defaults
// applied.
type SearchInput struct {
	Query    string
	Category string
	Limit    int
	Offset   int
	SortBy   string
}
