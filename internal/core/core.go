package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"fricon-core/internal/config"
	"fricon-core/internal/delivery"
	"fricon-core/internal/notifications"
	"fricon-core/internal/reactions"
	"fricon-core/internal/realtime"
	"fricon-core/internal/repositories"
	"fricon-core/internal/rest"
	"fricon-core/internal/seenbatch"
	"fricon-core/internal/unread"
)

// Core is the composition root of the messaging core. One Core owns one
// connection and one copy of the client state.
type Core struct {
	Realtime *realtime.Client
	REST     *rest.Client

	Conversations *repositories.ConversationRepo
	Messages      *repositories.MessageRepo
	Notifications *repositories.NotificationRepo
	Users         *repositories.UserRepo

	Delivery *delivery.Pipeline
	Targets  *reactions.Store
	Reactor  *reactions.Reactor
	Unread   *unread.Tracker
	Seen     *seenbatch.Buffer
	Relay    *notifications.Relay
}

// New wires every component from cfg. Nothing touches the network until Start.
func New(cfg config.Config) (*Core, error) {
	rt := realtime.NewClient(realtime.Options{
		URL:                      cfg.Realtime.URL,
		AccessToken:              cfg.Realtime.AccessToken,
		DialTimeout:              cfg.Realtime.DialTimeout,
		InvokeTimeout:            cfg.Realtime.InvokeTimeout,
		ReconnectInitialInterval: cfg.Realtime.ReconnectInitialInterval,
		ReconnectMaxInterval:     cfg.Realtime.ReconnectMaxInterval,
		InvokeRate:               cfg.Realtime.InvokeRate,
		InvokeBurst:              cfg.Realtime.InvokeBurst,
	})
	api, err := rest.NewClient(cfg.REST.BaseURL, cfg.Realtime.AccessToken, cfg.REST.Timeout)
	if err != nil {
		return nil, err
	}

	c := &Core{
		Realtime:      rt,
		REST:          api,
		Conversations: repositories.NewConversationRepo(),
		Messages:      repositories.NewMessageRepo(),
		Notifications: repositories.NewNotificationRepo(),
		Users:         repositories.NewUserRepo(),
	}

	c.Delivery = delivery.NewPipeline(delivery.Options{
		UserID:     cfg.User.ID,
		PageSize:   cfg.Core.PageSize,
		AckTimeout: cfg.Realtime.InvokeTimeout,
	}, rt, api, c.Messages, c.Conversations)
	c.Targets = reactions.NewStore(c.Messages)
	c.Reactor = reactions.NewReactor(cfg.User.ID, api, c.Targets, c.Users)
	c.Unread = unread.NewTracker(cfg.User.ID, cfg.Core.BaseTitle, api, c.Conversations, c.Users)
	c.Seen = seenbatch.NewBuffer(api, cfg.Core.SeenBatchSize)
	c.Relay = notifications.NewRelay(api, c.Notifications, c.Unread)

	c.Delivery.OnNewestChanged(func() { c.Unread.Recompute() })
	c.Delivery.Start(rt)
	c.Unread.Start(rt)
	c.Relay.Start(rt)
	c.Unread.OnTitle(func(title string) {
		log.Debug().Str("title", title).Msg("title changed")
	})
	return c, nil
}

// Start connects and seeds the client state. Seeding failures are logged; the
// connection failure is returned.
func (c *Core) Start(ctx context.Context) error {
	if err := c.Realtime.Start(ctx); err != nil {
		return err
	}
	if err := c.Unread.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("unread counts not loaded")
	}
	if _, err := c.Delivery.LoadConversations(ctx); err != nil {
		log.Warn().Err(err).Msg("conversations not loaded")
	}
	return nil
}

// Shutdown flushes pending feed observations and closes the connection.
func (c *Core) Shutdown(ctx context.Context) error {
	_, flushErr := c.Seen.Close(ctx)
	c.Realtime.Stop()
	c.Delivery.Wait()
	if flushErr != nil && !errors.Is(flushErr, seenbatch.ErrClosed) {
		return flushErr
	}
	return nil
}
