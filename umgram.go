// Package umgram provides the official Go SDK for the umgram backend API.
//
// Covers auth, diaries, notes, microblogging, direct/confession chat, albums,
// memory tables, search, and the geo-circle ("Explore") API with sub-module
// access pattern.
//
// Example:
//
//	client := umgram.NewClient(umgram.WithToken("eyJ..."))
//
//	// Auth
//	me, _ := client.Auth().Me(ctx)
//
//	// Geo API (sub-module pattern)
//	circles, _ := client.Geo().List(ctx)
//	client.Geo().Patch(ctx, "42", &umgram.CirclePatch{Radius: umgram.Float(750)})
//
//	// Optimistic sync session for the Explore feature
//	session := umgram.NewCircleSession(client.Geo(), store, nil)
//	session.Create("Home", umgram.LatLng{Lat: 24.7136, Lng: 46.6753}, umgram.DefaultRadius)
package umgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "http://localhost:5001"
	DefaultTimeout = 30 * time.Second
)

// ============================================================================
// Client
// ============================================================================

type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client

	auth       *AuthClient
	users      *UsersClient
	geo        *GeoClient
	diary      *DiaryClient
	notes      *NotesClient
	microblog  *MicroblogClient
	directChat *DirectChatClient
	confession *ConfessionClient
	search     *SearchClient
	albums     *AlbumsClient
	tables     *TablesClient
}

type ClientOption func(*Client)

func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// NewClient creates a new umgram client. Without WithToken the client
// operates unauthenticated; geo writes then degrade to local-snapshot-only
// behavior in CircleSession.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.auth = &AuthClient{client: c}
	c.users = &UsersClient{client: c}
	c.geo = &GeoClient{client: c}
	c.diary = &DiaryClient{client: c}
	c.notes = &NotesClient{client: c}
	c.microblog = &MicroblogClient{client: c}
	c.directChat = &DirectChatClient{client: c}
	c.confession = &ConfessionClient{client: c}
	c.search = &SearchClient{client: c}
	c.albums = &AlbumsClient{client: c}
	c.tables = &TablesClient{client: c}
	return c
}

// SetToken sets or updates the bearer token, e.g. after login.
func (c *Client) SetToken(token string) {
	c.token = token
}

// HasToken reports whether a bearer token is attached to requests.
func (c *Client) HasToken() bool {
	return c.token != ""
}

func (c *Client) Auth() *AuthClient             { return c.auth }
func (c *Client) Users() *UsersClient           { return c.users }
func (c *Client) Geo() *GeoClient               { return c.geo }
func (c *Client) Diary() *DiaryClient           { return c.diary }
func (c *Client) Notes() *NotesClient           { return c.notes }
func (c *Client) Microblog() *MicroblogClient   { return c.microblog }
func (c *Client) DirectChat() *DirectChatClient { return c.directChat }
func (c *Client) Confession() *ConfessionClient { return c.confession }
func (c *Client) Search() *SearchClient         { return c.search }
func (c *Client) Albums() *AlbumsClient         { return c.albums }
func (c *Client) Tables() *TablesClient         { return c.tables }

// ============================================================================
// Internal request helper
// ============================================================================

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, query map[string]string) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		params := url.Values{}
		for k, v := range query {
			params.Set(k, v)
		}
		u += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, apiErrorFrom(resp.StatusCode, data)
	}
	return data, nil
}

// apiErrorFrom converts a non-2xx response into an *APIError, preserving the
// server's code/message when the body carries one.
func apiErrorFrom(status int, body []byte) error {
	var payload struct {
		Error   *APIError `json:"error"`
		Message string    `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Error != nil && payload.Error.Message != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return &APIError{Code: "HTTP_" + strconv.Itoa(status), Message: payload.Message}
		}
	}
	return &APIError{Code: "HTTP_" + strconv.Itoa(status), Message: http.StatusText(status)}
}

func decodeJSON[T any](data []byte) (*T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// Float returns a pointer to f, for use in CirclePatch fields.
func Float(f float64) *float64 { return &f }

// Str returns a pointer to s, for use in CirclePatch fields.
func Str(s string) *string { return &s }

// ============================================================================
// Auth / Users
// ============================================================================

// AuthClient handles registration, login, and identity.
type AuthClient struct{ client *Client }

func (a *AuthClient) Register(ctx context.Context, opts *RegisterOptions) (*AuthResult, error) {
	data, err := a.client.doRequest(ctx, "POST", "/api/auth/register", opts, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[AuthResult](data)
}

// Login authenticates with an email-or-username identifier. On success the
// returned access token is NOT installed on the client automatically; call
// SetToken with it.
func (a *AuthClient) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	data, err := a.client.doRequest(ctx, "POST", "/api/auth/login", map[string]string{
		"identifier": identifier,
		"password":   password,
	}, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[AuthResult](data)
}

func (a *AuthClient) Me(ctx context.Context) (*User, error) {
	data, err := a.client.doRequest(ctx, "GET", "/api/me", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[User](data)
}

// UsersClient handles user directory lookups.
type UsersClient struct{ client *Client }

func (u *UsersClient) List(ctx context.Context) ([]User, error) {
	data, err := u.client.doRequest(ctx, "GET", "/api/users", nil, nil)
	if err != nil {
		return nil, err
	}
	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("failed to unmarshal users: %w", err)
	}
	return users, nil
}

// ============================================================================
// Geo
// ============================================================================

// GeoClient is the thin request wrapper for the geo-circle API. The
// optimistic sync layer (CircleSession) sits on top of it.
type GeoClient struct{ client *Client }

// List fetches the caller's circles. Tolerates both a bare array and a
// {"circles": [...]} wrapper.
func (g *GeoClient) List(ctx context.Context) ([]CircleRecord, error) {
	data, err := g.client.doRequest(ctx, "GET", "/api/geo/circles", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeCircleRows(data)
}

func (g *GeoClient) Get(ctx context.Context, id string) (*CircleRecord, error) {
	data, err := g.client.doRequest(ctx, "GET", "/api/geo/circles/"+id, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[CircleRecord](data)
}

// Create persists a new circle and returns the server record. The server id
// may arrive at the top level or nested under "circle"/"result" depending on
// backend version; all three are accepted.
func (g *GeoClient) Create(ctx context.Context, opts *CreateCircleOptions) (*CircleRecord, error) {
	data, err := g.client.doRequest(ctx, "POST", "/api/geo/circles", opts, nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		CircleRecord
		Circle *CircleRecord `json:"circle"`
		Result *CircleRecord `json:"result"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal created circle: %w", err)
	}
	rec := envelope.CircleRecord
	if rec.ID.String() == "" {
		if envelope.Circle != nil {
			rec = *envelope.Circle
		} else if envelope.Result != nil {
			rec = *envelope.Result
		}
	}
	if rec.ID.String() == "" {
		return nil, fmt.Errorf("create response carried no circle id")
	}
	return &rec, nil
}

func (g *GeoClient) Patch(ctx context.Context, id string, patch *CirclePatch) error {
	_, err := g.client.doRequest(ctx, "PATCH", "/api/geo/circles/"+id, patch, nil)
	return err
}

func (g *GeoClient) Delete(ctx context.Context, id string) error {
	_, err := g.client.doRequest(ctx, "DELETE", "/api/geo/circles/"+id, nil, nil)
	return err
}

// Nearby lists circles whose geofence contains the given position.
func (g *GeoClient) Nearby(ctx context.Context, pos LatLng, limit int) ([]CircleRecord, error) {
	data, err := g.client.doRequest(ctx, "GET", "/api/geo/circles/nearby", nil, map[string]string{
		"lat":   formatCoord(pos.Lat),
		"lng":   formatCoord(pos.Lng),
		"limit": strconv.Itoa(limit),
	})
	if err != nil {
		return nil, err
	}
	return decodeCircleRows(data)
}

// Messages fetches the most recent chat messages for a circle. The position
// is the access-check parameter; the server may deny messages outside the
// geofence, which surfaces as an ordinary error.
func (g *GeoClient) Messages(ctx context.Context, id string, pos LatLng, limit int) ([]ChatMessage, error) {
	data, err := g.client.doRequest(ctx, "GET", "/api/geo/circles/"+id+"/chat/messages", nil, map[string]string{
		"lat":   formatCoord(pos.Lat),
		"lng":   formatCoord(pos.Lng),
		"limit": strconv.Itoa(limit),
	})
	if err != nil {
		return nil, err
	}
	var rows []ChatMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat messages: %w", err)
	}
	return rows, nil
}

// SendMessage posts a chat message and returns the server's canonical record.
func (g *GeoClient) SendMessage(ctx context.Context, id string, opts *SendChatOptions) (*ChatMessage, error) {
	data, err := g.client.doRequest(ctx, "POST", "/api/geo/circles/"+id+"/chat/messages", opts, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[ChatMessage](data)
}

func decodeCircleRows(data []byte) ([]CircleRecord, error) {
	var rows []CircleRecord
	if err := json.Unmarshal(data, &rows); err == nil {
		return rows, nil
	}
	var wrapped struct {
		Circles []CircleRecord `json:"circles"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to unmarshal circle list: %w", err)
	}
	return wrapped.Circles, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ============================================================================
// Diary / Notes / Microblog
// ============================================================================

// DiaryClient handles diary entries.
type DiaryClient struct{ client *Client }

func (d *DiaryClient) ListForUser(ctx context.Context, userID string) ([]DiaryEntry, error) {
	data, err := d.client.doRequest(ctx, "GET", "/api/diary/user/"+userID, nil, nil)
	if err != nil {
		return nil, err
	}
	var entries []DiaryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal diary entries: %w", err)
	}
	return entries, nil
}

func (d *DiaryClient) Create(ctx context.Context, opts *DiaryOptions) (*DiaryEntry, error) {
	data, err := d.client.doRequest(ctx, "POST", "/api/diary", opts, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[DiaryEntry](data)
}

func (d *DiaryClient) Update(ctx context.Context, id string, opts *DiaryOptions) (*DiaryEntry, error) {
	data, err := d.client.doRequest(ctx, "PUT", "/api/diary/"+id, opts, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[DiaryEntry](data)
}

func (d *DiaryClient) Delete(ctx context.Context, id string) error {
	_, err := d.client.doRequest(ctx, "DELETE", "/api/diary/"+id, nil, nil)
	return err
}

// NotesClient handles notes.
type NotesClient struct{ client *Client }

func (n *NotesClient) ListForUser(ctx context.Context, userID string) ([]Note, error) {
	data, err := n.client.doRequest(ctx, "GET", "/api/notes/user/"+userID, nil, nil)
	if err != nil {
		return nil, err
	}
	var notes []Note
	if err := json.Unmarshal(data, &notes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notes: %w", err)
	}
	return notes, nil
}

func (n *NotesClient) Create(ctx context.Context, opts *NoteOptions) (*Note, error) {
	data, err := n.client.doRequest(ctx, "POST", "/api/notes", opts, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Note](data)
}

func (n *NotesClient) Update(ctx context.Context, id string, opts *NoteOptions) (*Note, error) {
	data, err := n.client.doRequest(ctx, "PUT", "/api/notes/"+id, opts, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Note](data)
}

func (n *NotesClient) Delete(ctx context.Context, id string) error {
	_, err := n.client.doRequest(ctx, "DELETE", "/api/notes/"+id, nil, nil)
	return err
}

// MicroblogClient handles the public microblog feed.
type MicroblogClient struct{ client *Client }

func (m *MicroblogClient) Posts(ctx context.Context) ([]MicroblogPost, error) {
	data, err := m.client.doRequest(ctx, "GET", "/api/microblog/posts", nil, nil)
	if err != nil {
		return nil, err
	}
	var posts []MicroblogPost
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal posts: %w", err)
	}
	return posts, nil
}

func (m *MicroblogClient) Post(ctx context.Context, text string) (*MicroblogPost, error) {
	data, err := m.client.doRequest(ctx, "POST", "/api/microblog/posts", map[string]string{"text": text}, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[MicroblogPost](data)
}

func (m *MicroblogClient) Delete(ctx context.Context, id string) error {
	_, err := m.client.doRequest(ctx, "DELETE", "/api/microblog/posts/"+url.PathEscape(id), nil, nil)
	return err
}

// ============================================================================
// Direct Chat / Confession
// ============================================================================

// DirectChatClient handles one-to-one conversations.
type DirectChatClient struct{ client *Client }

func (d *DirectChatClient) Conversations(ctx context.Context) ([]Conversation, error) {
	data, err := d.client.doRequest(ctx, "GET", "/api/direct-chat/conversations", nil, nil)
	if err != nil {
		return nil, err
	}
	var convos []Conversation
	if err := json.Unmarshal(data, &convos); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversations: %w", err)
	}
	return convos, nil
}

// Open returns the conversation with the given user, creating it if needed.
func (d *DirectChatClient) Open(ctx context.Context, userID string) (*Conversation, error) {
	data, err := d.client.doRequest(ctx, "POST", "/api/direct-chat/open", map[string]string{"userId": userID}, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Conversation](data)
}

func (d *DirectChatClient) Messages(ctx context.Context, conversationID string) ([]DirectMessage, error) {
	data, err := d.client.doRequest(ctx, "GET", "/api/direct-chat/conversations/"+conversationID+"/messages", nil, nil)
	if err != nil {
		return nil, err
	}
	var msgs []DirectMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages: %w", err)
	}
	return msgs, nil
}

func (d *DirectChatClient) Send(ctx context.Context, conversationID, text string) (*DirectMessage, error) {
	data, err := d.client.doRequest(ctx, "POST", "/api/direct-chat/conversations/"+conversationID+"/messages", map[string]string{"text": text}, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[DirectMessage](data)
}

// ConfessionClient handles anonymous confession sessions.
type ConfessionClient struct{ client *Client }

func (cf *ConfessionClient) Sessions(ctx context.Context) ([]ConfessionSession, error) {
	data, err := cf.client.doRequest(ctx, "GET", "/api/confession/sessions", nil, nil)
	if err != nil {
		return nil, err
	}
	var sessions []ConfessionSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sessions: %w", err)
	}
	return sessions, nil
}

func (cf *ConfessionClient) Start(ctx context.Context, title string) (*ConfessionSession, error) {
	data, err := cf.client.doRequest(ctx, "POST", "/api/confession/sessions", map[string]string{"title": title}, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[ConfessionSession](data)
}

func (cf *ConfessionClient) Get(ctx context.Context, id string) (*ConfessionSession, error) {
	data, err := cf.client.doRequest(ctx, "GET", "/api/confession/sessions/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[ConfessionSession](data)
}

// ============================================================================
// Search
// ============================================================================

// SearchClient handles full-text search and the answer-selection service.
type SearchClient struct{ client *Client }

func (s *SearchClient) Query(ctx context.Context, domain SearchDomain, q string, limit int) ([]SearchHit, error) {
	path := "/api/search"
	if domain != SearchAll {
		path += "/" + string(domain)
	}
	query := map[string]string{"q": q}
	if limit > 0 {
		query["limit"] = strconv.Itoa(limit)
	}
	data, err := s.client.doRequest(ctx, "GET", path, nil, query)
	if err != nil {
		return nil, err
	}
	var hits []SearchHit
	if err := json.Unmarshal(data, &hits); err != nil {
		return nil, fmt.Errorf("failed to unmarshal search hits: %w", err)
	}
	return hits, nil
}

// Answer asks the answer-selection service a natural-language question over
// the given domain's content.
func (s *SearchClient) Answer(ctx context.Context, domain SearchDomain, question string) (*AnswerResult, error) {
	path := "/api/search/answer"
	if domain != SearchAll {
		path = "/api/search/" + string(domain) + "/answer"
	}
	data, err := s.client.doRequest(ctx, "POST", path, map[string]string{"question": question}, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[AnswerResult](data)
}

// ============================================================================
// Albums
// ============================================================================

// AlbumsClient handles media albums.
type AlbumsClient struct{ client *Client }

func (a *AlbumsClient) List(ctx context.Context) ([]Album, error) {
	data, err := a.client.doRequest(ctx, "GET", "/api/media/albums", nil, nil)
	if err != nil {
		return nil, err
	}
	var albums []Album
	if err := json.Unmarshal(data, &albums); err != nil {
		return nil, fmt.Errorf("failed to unmarshal albums: %w", err)
	}
	return albums, nil
}

func (a *AlbumsClient) Create(ctx context.Context, name string) (*Album, error) {
	data, err := a.client.doRequest(ctx, "POST", "/api/media/albums", map[string]string{"name": name}, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Album](data)
}

func (a *AlbumsClient) Get(ctx context.Context, id string) (*Album, error) {
	data, err := a.client.doRequest(ctx, "GET", "/api/media/albums/"+id, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Album](data)
}

func (a *AlbumsClient) Delete(ctx context.Context, id string) error {
	_, err := a.client.doRequest(ctx, "DELETE", "/api/media/albums/"+id, nil, nil)
	return err
}

// Upload adds a media file to an album from an in-memory buffer.
func (a *AlbumsClient) Upload(ctx context.Context, albumID string, data []byte, fileName string) (*MediaItem, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write file data: %w", err)
	}
	_ = w.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", a.client.baseURL+"/api/media/albums/"+albumID+"/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if a.client.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.client.token)
	}

	resp, err := a.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, apiErrorFrom(resp.StatusCode, body)
	}
	return decodeJSON[MediaItem](body)
}

// UploadFile is Upload for a file on disk.
func (a *AlbumsClient) UploadFile(ctx context.Context, albumID, filePath string) (*MediaItem, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return a.Upload(ctx, albumID, data, filepath.Base(filePath))
}

// ============================================================================
// Memory Tables
// ============================================================================

// TablesClient handles ad-hoc memory tables.
type TablesClient struct{ client *Client }

func (t *TablesClient) List(ctx context.Context) ([]MemoryTable, error) {
	data, err := t.client.doRequest(ctx, "GET", "/api/memory/tables", nil, nil)
	if err != nil {
		return nil, err
	}
	var tables []MemoryTable
	if err := json.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tables: %w", err)
	}
	return tables, nil
}

func (t *TablesClient) Get(ctx context.Context, id string) (*MemoryTable, error) {
	data, err := t.client.doRequest(ctx, "GET", "/api/memory/tables/"+id, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[MemoryTable](data)
}

func (t *TablesClient) Create(ctx context.Context, name string) (*MemoryTable, error) {
	data, err := t.client.doRequest(ctx, "POST", "/api/memory/tables", map[string]string{"name": name}, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[MemoryTable](data)
}

func (t *TablesClient) Rename(ctx context.Context, id, name string) error {
	_, err := t.client.doRequest(ctx, "PATCH", "/api/memory/tables/"+id, map[string]string{"name": name}, nil)
	return err
}

func (t *TablesClient) Delete(ctx context.Context, id string) error {
	_, err := t.client.doRequest(ctx, "DELETE", "/api/memory/tables/"+id, nil, nil)
	return err
}

func (t *TablesClient) AddColumn(ctx context.Context, tableID, name, kind string) (*TableColumn, error) {
	data, err := t.client.doRequest(ctx, "POST", "/api/memory/tables/"+tableID+"/columns", map[string]string{
		"name": name, "kind": kind,
	}, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[TableColumn](data)
}

func (t *TablesClient) RenameColumn(ctx context.Context, tableID, columnID, name string) error {
	_, err := t.client.doRequest(ctx, "PATCH", "/api/memory/tables/"+tableID+"/columns/"+columnID, map[string]string{"name": name}, nil)
	return err
}

func (t *TablesClient) DeleteColumn(ctx context.Context, tableID, columnID string) error {
	_, err := t.client.doRequest(ctx, "DELETE", "/api/memory/tables/"+tableID+"/columns/"+columnID, nil, nil)
	return err
}

func (t *TablesClient) AddRow(ctx context.Context, tableID string, cells map[string]string) (*TableRow, error) {
	data, err := t.client.doRequest(ctx, "POST", "/api/memory/tables/"+tableID+"/rows", map[string]any{"cells": cells}, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[TableRow](data)
}

func (t *TablesClient) UpdateRow(ctx context.Context, tableID, rowID string, cells map[string]string) error {
	_, err := t.client.doRequest(ctx, "PATCH", "/api/memory/tables/"+tableID+"/rows/"+rowID, map[string]any{"cells": cells}, nil)
	return err
}

func (t *TablesClient) DeleteRow(ctx context.Context, tableID, rowID string) error {
	_, err := t.client.doRequest(ctx, "DELETE", "/api/memory/tables/"+tableID+"/rows/"+rowID, nil, nil)
	return err
}

// Prompt runs an AI prompt over the user's memory tables and returns the
// generated answer as an opaque envelope.
func (t *TablesClient) Prompt(ctx context.Context, prompt string) (*Result, error) {
	data, err := t.client.doRequest(ctx, "POST", "/api/memory/ai/prompt", map[string]string{"prompt": prompt}, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Result](data)
}
