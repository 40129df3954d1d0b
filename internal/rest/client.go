package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"fricon-core/internal/models"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("rest: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("rest: %s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// Rejected reports whether the backend refused the request on its merits
// rather than failing to process it.
func (e *StatusError) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

type baseResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

type dataResponse[T any] struct {
	baseResponse
	Data T `json:"data"`
}

// ReactionResult is the backend verdict on a reaction toggle.
type ReactionResult struct {
	Success bool
	Message string
	// Reactions is the authoritative reaction set when the backend returned one.
	Reactions []models.Reaction
	// Record is the caller's stored reaction when the backend echoed it.
	Record *models.Reaction
}

// Client talks to the FriCon REST collaborators.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) (*Client, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse rest base url: %w", err)
	}
	return &Client{
		baseURL: u,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("rest path %q: %w", path, err)
	}
	target := c.baseURL.ResolveReference(ref)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	ctx, span := otel.Tracer("fricon-core/rest").Start(ctx, "rest."+method, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("http.path", ref.Path))

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return err
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: c.token})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return fmt.Errorf("rest: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("rest: read %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var base baseResponse
		_ = json.Unmarshal(raw, &base)
		span.SetStatus(codes.Error, resp.Status)
		log.Debug().Str("path", path).Int("status", resp.StatusCode).Str("message", base.Message).Msg("rest request failed")
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: base.Message}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("rest: decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) UnreadMessageCount(ctx context.Context) (int, error) {
	var resp dataResponse[int]
	if err := c.do(ctx, http.MethodGet, "message/getUnreadMessages", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Data, nil
}

func (c *Client) UnreadNotificationCount(ctx context.Context) (int, error) {
	var resp dataResponse[int]
	if err := c.do(ctx, http.MethodGet, "notification/getUnreadNotis", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Data, nil
}

func (c *Client) FetchConversations(ctx context.Context) ([]models.Conversation, error) {
	var resp dataResponse[[]models.Conversation]
	if err := c.do(ctx, http.MethodGet, "conversation/getAllConversationsByUser", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// FetchMessages returns one page of a conversation log in chronological order,
// oldest first. skip counts back from the newest message.
func (c *Client) FetchMessages(ctx context.Context, conversationID string, skip, take int) ([]models.Message, error) {
	body := map[string]interface{}{"conversationId": conversationID, "skip": skip, "take": take}
	var resp dataResponse[[]models.Message]
	if err := c.do(ctx, http.MethodPost, "message/getMessages", body, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ReactMessage toggles a reaction on a message. A 4xx answer is a rejection,
// not a transport failure.
func (c *Client) ReactMessage(ctx context.Context, messageID, symbol string) (ReactionResult, error) {
	body := map[string]string{"messageId": messageID, "reaction": symbol}
	var resp dataResponse[*models.Message]
	if err := c.do(ctx, http.MethodPost, "message/reaction", body, &resp); err != nil {
		return rejection(err)
	}
	result := ReactionResult{Success: true, Message: resp.Message}
	if resp.Data != nil {
		result.Reactions = resp.Data.Reactions
		if result.Reactions == nil {
			result.Reactions = []models.Reaction{}
		}
	}
	return result, nil
}

func (c *Client) ReactPost(ctx context.Context, postID, symbol string) (ReactionResult, error) {
	body := map[string]string{"postId": postID, "reaction": symbol}
	var resp dataResponse[*models.Reaction]
	if err := c.do(ctx, http.MethodPost, "post/reaction", body, &resp); err != nil {
		return rejection(err)
	}
	return ReactionResult{Success: succeeded(resp.baseResponse), Message: resp.Message, Record: resp.Data}, nil
}

func (c *Client) ReactComment(ctx context.Context, commentID, symbol string) (ReactionResult, error) {
	body := map[string]string{"commentId": commentID, "reaction": symbol}
	var resp baseResponse
	if err := c.do(ctx, http.MethodPost, "comment/reaction", body, &resp); err != nil {
		return rejection(err)
	}
	return ReactionResult{Success: succeeded(resp), Message: resp.Message}, nil
}

// MarkPostsSeen submits a batch of feed observations.
func (c *Client) MarkPostsSeen(ctx context.Context, posts []models.SeenPost) error {
	var resp baseResponse
	return c.do(ctx, http.MethodPost, "post/seen", posts, &resp)
}

func (c *Client) FetchNotifications(ctx context.Context, skip, take int) ([]models.Notification, error) {
	path := "notification/getNotis?skip=" + strconv.Itoa(skip) + "&take=" + strconv.Itoa(take)
	var resp dataResponse[[]models.Notification]
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, notificationID string) error {
	var resp baseResponse
	return c.do(ctx, http.MethodPost, "notification/markNotiAsRead", map[string]string{"notificationId": notificationID}, &resp)
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	var resp baseResponse
	return c.do(ctx, http.MethodPost, "notification/markAllNotisAsRead", struct{}{}, &resp)
}

// succeeded reads the verdict from the payload: the backend answers 200 with
// a descriptive message for both outcomes.
func succeeded(resp baseResponse) bool {
	if resp.StatusCode != 0 && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		return false
	}
	return strings.Contains(strings.ToLower(resp.Message), "successfully")
}

func rejection(err error) (ReactionResult, error) {
	var se *StatusError
	if errors.As(err, &se) && se.Rejected() {
		return ReactionResult{Success: false, Message: se.Message}, nil
	}
	return ReactionResult{}, err
}
