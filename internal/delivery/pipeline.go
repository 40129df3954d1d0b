package delivery

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"fricon-core/internal/models"
	"fricon-core/internal/observability"
	"fricon-core/internal/realtime"
	"fricon-core/internal/repositories"
)

var (
	ErrMixedAttachments   = models.NewError(models.CodeInvalidArgument, "cannot send image and voice at the same time")
	ErrEmptyMessage       = models.NewError(models.CodeInvalidArgument, "message has no content")
	ErrNoOpenConversation = models.NewError(models.CodeInvalidArgument, "no conversation is open")
)

// Invoker calls a procedure on the realtime channel.
type Invoker interface {
	Invoke(ctx context.Context, procedure string, payload, reply any) error
}

// Subscriber registers push event handlers.
type Subscriber interface {
	On(event string, handler realtime.Handler) func()
}

// Fetcher loads conversation data over REST.
type Fetcher interface {
	FetchConversations(ctx context.Context) ([]models.Conversation, error)
	FetchMessages(ctx context.Context, conversationID string, skip, take int) ([]models.Message, error)
}

// SendRequest is a message the local user composed.
type SendRequest struct {
	ConversationID   string   `json:"conversationId" binding:"required"`
	Content          string   `json:"content"`
	Images           []string `json:"images"`
	Voice            *string  `json:"voice"`
	RepliedMessageID *string  `json:"repliedMessageId"`
}

type Options struct {
	UserID     string
	PageSize   int
	AckTimeout time.Duration
}

// Pipeline moves messages between the local user, the realtime channel and
// the client state.
type Pipeline struct {
	opts    Options
	invoker Invoker
	fetcher Fetcher
	log     repositories.MessageLog
	convs   repositories.ConversationRepository

	mu        sync.Mutex
	skip      int
	seenBusy  map[string]bool
	onReceive []func(models.Message)
	onUpdated []func(models.Message)
	onNewest  []func()

	acks sync.WaitGroup
}

func NewPipeline(opts Options, invoker Invoker, fetcher Fetcher, messages repositories.MessageLog, convs repositories.ConversationRepository) *Pipeline {
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = 10 * time.Second
	}
	return &Pipeline{
		opts:     opts,
		invoker:  invoker,
		fetcher:  fetcher,
		log:      messages,
		convs:    convs,
		seenBusy: make(map[string]bool),
	}
}

// Start subscribes the pipeline to message push events.
func (p *Pipeline) Start(sub Subscriber) {
	sub.On(realtime.EventReceivePrivateMessage, realtime.Typed(realtime.EventReceivePrivateMessage, p.HandleReceive))
	sub.On(realtime.EventUpdatedMessage, realtime.Typed(realtime.EventUpdatedMessage, p.HandleUpdated))
}

// OnReceive registers a callback for every received message.
func (p *Pipeline) OnReceive(fn func(models.Message)) {
	p.mu.Lock()
	p.onReceive = append(p.onReceive, fn)
	p.mu.Unlock()
}

func (p *Pipeline) OnUpdated(fn func(models.Message)) {
	p.mu.Lock()
	p.onUpdated = append(p.onUpdated, fn)
	p.mu.Unlock()
}

// OnNewestChanged registers a callback run after any newest-message pointer moves.
func (p *Pipeline) OnNewestChanged(fn func()) {
	p.mu.Lock()
	p.onNewest = append(p.onNewest, fn)
	p.mu.Unlock()
}

func validate(req SendRequest) error {
	hasVoice := req.Voice != nil && strings.TrimSpace(*req.Voice) != ""
	if len(req.Images) > 0 && hasVoice {
		return ErrMixedAttachments
	}
	if len(req.Images) == 0 && !hasVoice && strings.TrimSpace(req.Content) == "" {
		return ErrEmptyMessage
	}
	return nil
}

// Send validates req, submits it and records the confirmed message. Nothing
// local changes unless the backend returns the stored message.
func (p *Pipeline) Send(ctx context.Context, req SendRequest) (models.Message, error) {
	if err := validate(req); err != nil {
		return models.Message{}, err
	}

	ctx, span := otel.Tracer("fricon-core/delivery").Start(ctx, "delivery.send")
	defer span.End()
	span.SetAttributes(attribute.String("conversation_id", req.ConversationID))

	payload := models.SendMessageRequest{
		SenderID:         p.opts.UserID,
		ConversationID:   req.ConversationID,
		Content:          req.Content,
		RepliedMessageID: req.RepliedMessageID,
	}
	for _, url := range req.Images {
		payload.Attachments = append(payload.Attachments, models.Attachment{Type: models.AttachmentImage, FileURL: url})
	}
	if req.Voice != nil && strings.TrimSpace(*req.Voice) != "" {
		payload.Attachments = append(payload.Attachments, models.Attachment{Type: models.AttachmentVoice, FileURL: *req.Voice})
	}

	var sent models.Message
	if err := p.invoker.Invoke(ctx, realtime.ProcSendMessage, payload, &sent); err != nil {
		span.RecordError(err)
		log.Warn().Err(err).Str("conversation_id", req.ConversationID).Msg("send message failed")
		return models.Message{}, fmt.Errorf("send message: %w", err)
	}
	if sent.ConversationID == "" {
		sent.ConversationID = req.ConversationID
	}
	if !sent.Status.Valid() {
		sent.Status = models.StatusSent
	}

	p.log.Append(sent)
	p.convs.SetNewest(sent)
	p.newestChanged()

	var traceID string
	if sc := span.SpanContext(); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	_ = observability.PublishEvent(ctx, observability.RouteMessageSent, "message_sent", map[string]interface{}{
		"message_id":      sent.ID,
		"conversation_id": sent.ConversationID,
		"attachments":     len(sent.Attachments),
	}, observability.BuildHeaders("", traceID))
	log.Debug().Str("message_id", sent.ID).Str("conversation_id", sent.ConversationID).Msg("message sent")
	return sent, nil
}

// HandleReceive records a pushed message and acknowledges delivery.
func (p *Pipeline) HandleReceive(msg models.Message) {
	if !msg.Status.Valid() {
		msg.Status = models.StatusSent
	}
	p.log.Append(msg)
	p.convs.SetNewest(msg)

	if msg.SenderID != p.opts.UserID {
		// Delivered is asserted locally before the ack returns.
		p.log.SetStatus(msg.ID, models.StatusDelivered)
		delivered := msg
		delivered.Status = models.StatusDelivered
		p.convs.RefreshNewest(delivered)
		p.ackDelivered(msg)
	}
	p.newestChanged()

	p.mu.Lock()
	callbacks := slices.Clone(p.onReceive)
	p.mu.Unlock()
	for _, fn := range callbacks {
		fn(msg)
	}
}

func (p *Pipeline) ackDelivered(msg models.Message) {
	p.acks.Add(1)
	go func() {
		defer p.acks.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.opts.AckTimeout)
		defer cancel()
		if !p.UpdateStatus(ctx, msg.ID, models.StatusDelivered) {
			log.Warn().Str("message_id", msg.ID).Msg("delivered ack not confirmed")
		}
	}()
}

// Wait blocks until pending delivery acks finish.
func (p *Pipeline) Wait() {
	p.acks.Wait()
}

// UpdateStatus asks the backend to move a message to status and returns the
// acknowledgement. Any failure reads as false.
func (p *Pipeline) UpdateStatus(ctx context.Context, messageID string, status models.Status) bool {
	var ack bool
	err := p.invoker.Invoke(ctx, realtime.ProcUpdateMessageStatus, models.UpdateStatusRequest{MessageID: messageID, Status: status}, &ack)
	if err != nil {
		log.Debug().Err(err).Str("message_id", messageID).Str("status", string(status)).Msg("status update failed")
		return false
	}
	if ack {
		_ = observability.PublishEvent(ctx, observability.RouteMessageStatus, "message_status", map[string]interface{}{
			"message_id": messageID,
			"status":     status,
		}, nil)
	}
	return ack
}

// HandleUpdated applies a pushed message revision.
func (p *Pipeline) HandleUpdated(msg models.Message) {
	p.log.Replace(msg)
	if p.convs.RefreshNewest(msg) {
		p.newestChanged()
	}

	p.mu.Lock()
	callbacks := slices.Clone(p.onUpdated)
	p.mu.Unlock()
	for _, fn := range callbacks {
		fn(msg)
	}
}

// LoadConversations seeds the conversation list.
func (p *Pipeline) LoadConversations(ctx context.Context) ([]models.Conversation, error) {
	list, err := p.fetcher.FetchConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load conversations: %w", err)
	}
	p.convs.ReplaceAll(list)
	p.newestChanged()
	return p.convs.List(), nil
}

// OpenConversation makes conversationID the viewed conversation and loads its
// newest page.
func (p *Pipeline) OpenConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	page, err := p.fetcher.FetchMessages(ctx, conversationID, 0, p.opts.PageSize)
	if err != nil {
		return nil, fmt.Errorf("open conversation %s: %w", conversationID, err)
	}
	p.log.Open(conversationID, page)

	p.mu.Lock()
	p.skip = len(page)
	p.mu.Unlock()
	return p.log.Messages(), nil
}

// LoadOlder prepends the next older page and returns how many messages it added.
func (p *Pipeline) LoadOlder(ctx context.Context) (int, error) {
	conversationID := p.log.OpenID()
	if conversationID == "" {
		return 0, ErrNoOpenConversation
	}
	p.mu.Lock()
	skip := p.skip
	p.mu.Unlock()

	page, err := p.fetcher.FetchMessages(ctx, conversationID, skip, p.opts.PageSize)
	if err != nil {
		return 0, fmt.Errorf("load older messages: %w", err)
	}
	added := p.log.Prepend(conversationID, page)

	p.mu.Lock()
	if p.log.OpenID() == conversationID {
		p.skip += len(page)
	}
	p.mu.Unlock()
	return added, nil
}

// CloseConversation clears the viewed conversation.
func (p *Pipeline) CloseConversation() {
	p.log.Close()
	p.mu.Lock()
	p.skip = 0
	p.mu.Unlock()
}

// OpenID returns the viewed conversation, or "".
func (p *Pipeline) OpenID() string {
	return p.log.OpenID()
}

// Messages returns the open log.
func (p *Pipeline) Messages() []models.Message {
	return p.log.Messages()
}

func (p *Pipeline) newestChanged() {
	p.mu.Lock()
	callbacks := slices.Clone(p.onNewest)
	p.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

// IsNotConfirmed reports whether err is a transport failure rather than a
// rejection.
func IsNotConfirmed(err error) bool {
	return errors.Is(err, realtime.ErrNotConfirmed)
}
