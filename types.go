package umgram

import "encoding/json"

// ============================================================================
// Shared Types
// ============================================================================

// APIError represents an error reported by the backend.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// LatLng is a geographic coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ============================================================================
// Auth Types
// ============================================================================

// User is the safe user record returned by /api/me and the auth endpoints.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

type RegisterOptions struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

// AuthResult is returned by login and register.
type AuthResult struct {
	User        *User     `json:"user,omitempty"`
	AccessToken string    `json:"accessToken,omitempty"`
	Error       *APIError `json:"error,omitempty"`
}

// ============================================================================
// Geo Types
// ============================================================================

// CircleRecord is the wire form of a geo circle as the server stores it.
type CircleRecord struct {
	ID               json.Number `json:"id"`
	Name             string      `json:"name"`
	Lat              float64     `json:"lat"`
	Lng              float64     `json:"lng"`
	Radius           float64     `json:"radius"`
	OwnerUsername    string      `json:"owner_username,omitempty"`
	OwnerDisplayName string      `json:"owner_display_name,omitempty"`
}

type CreateCircleOptions struct {
	Name   string  `json:"name"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Radius float64 `json:"radius"`
}

// CirclePatch carries partial circle fields for PATCH. Nil fields are omitted.
type CirclePatch struct {
	Name   *string  `json:"name,omitempty"`
	Lat    *float64 `json:"lat,omitempty"`
	Lng    *float64 `json:"lng,omitempty"`
	Radius *float64 `json:"radius,omitempty"`
}

// ChatMessage is a circle-scoped chat message. Append-only from the
// client's point of view; never mutated or deleted locally.
type ChatMessage struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Text        string `json:"text"`
	CreatedAt   string `json:"created_at"`
}

type SendChatOptions struct {
	Text string  `json:"text"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// ============================================================================
// Diary / Notes / Microblog Types
// ============================================================================

type DiaryEntry struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Title     string `json:"title,omitempty"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type DiaryOptions struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
}

type Note struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Title     string `json:"title,omitempty"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type NoteOptions struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
}

type MicroblogPost struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Text        string `json:"text"`
	CreatedAt   string `json:"created_at"`
}

// ============================================================================
// Direct Chat / Confession Types
// ============================================================================

type Conversation struct {
	ID            string `json:"id"`
	PeerID        string `json:"peer_id,omitempty"`
	PeerUsername  string `json:"peer_username,omitempty"`
	LastMessageAt string `json:"last_message_at,omitempty"`
	UnreadCount   int    `json:"unread_count,omitempty"`
}

type DirectMessage struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id,omitempty"`
	SenderID       string `json:"sender_id"`
	Text           string `json:"text"`
	CreatedAt      string `json:"created_at"`
}

type ConfessionSession struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ============================================================================
// Search Types
// ============================================================================

// SearchDomain selects which content type a search runs against.
type SearchDomain string

const (
	SearchAll       SearchDomain = ""
	SearchChat      SearchDomain = "chat"
	SearchNote      SearchDomain = "note"
	SearchMicroblog SearchDomain = "microblog"
)

type SearchHit struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind,omitempty"`
	Text      string  `json:"text"`
	Score     float64 `json:"score,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
}

type AnswerResult struct {
	Answer  string      `json:"answer"`
	Sources []SearchHit `json:"sources,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// ============================================================================
// Album Types
// ============================================================================

type Album struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	CoverURL  string      `json:"cover_url,omitempty"`
	Media     []MediaItem `json:"media,omitempty"`
	CreatedAt string      `json:"created_at"`
}

type MediaItem struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	MimeType  string `json:"mime_type,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ============================================================================
// Memory Table Types
// ============================================================================

type MemoryTable struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Columns   []TableColumn  `json:"columns,omitempty"`
	Rows      []TableRow     `json:"rows,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt string         `json:"created_at"`
}

type TableColumn struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

type TableRow struct {
	ID    string            `json:"id"`
	Cells map[string]string `json:"cells"`
}

// ============================================================================
// Generic Result
// ============================================================================

// Result is the generic envelope some endpoints return.
type Result struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *APIError       `json:"error,omitempty"`
}

// Decode unmarshals the Data field into the provided type.
func (r *Result) Decode(v interface{}) error {
	if r.Data == nil {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}
