package reactions

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"fricon-core/internal/models"
	"fricon-core/internal/observability"
	"fricon-core/internal/repositories"
	"fricon-core/internal/rest"
)

var (
	ErrReactionRejected = models.NewError(models.CodeRejected, "reaction rejected")
	ErrReactionInFlight = models.NewError(models.CodeRejected, "a reaction on this target is still in flight")
)

// API submits reaction toggles.
type API interface {
	ReactMessage(ctx context.Context, messageID, symbol string) (rest.ReactionResult, error)
	ReactPost(ctx context.Context, postID, symbol string) (rest.ReactionResult, error)
	ReactComment(ctx context.Context, commentID, symbol string) (rest.ReactionResult, error)
}

// Op is the optimistic edit a toggle resolves to.
type Op string

const (
	OpAdded    Op = "added"
	OpReplaced Op = "replaced"
	OpRemoved  Op = "removed"
)

// Outcome is the committed state of a target after a toggle.
type Outcome struct {
	Op     Op     `json:"op"`
	Target Target `json:"target"`
}

// Tentative is a reversible local edit. Both closures capture their state
// when the edit is planned.
type Tentative struct {
	Apply    func() error
	Rollback func() error
}

// Reactor toggles the local user's reaction on messages, posts and comments.
type Reactor struct {
	userID string
	api    API
	store  TargetStore
	users  repositories.UserCache

	mu       sync.Mutex
	inFlight map[string]bool
}

func NewReactor(userID string, api API, store TargetStore, users repositories.UserCache) *Reactor {
	return &Reactor{
		userID:   userID,
		api:      api,
		store:    store,
		users:    users,
		inFlight: make(map[string]bool),
	}
}

// plan resolves the toggle: same symbol removes, another symbol replaces,
// no reaction appends under a temporary id.
func (r *Reactor) plan(target Target, symbol string) (Op, Target) {
	next := target.clone()
	i := models.FindReaction(next.Reactions, r.userID)
	switch {
	case i >= 0 && next.Reactions[i].Symbol == symbol:
		next.Reactions = append(next.Reactions[:i], next.Reactions[i+1:]...)
		if next.Total > 0 {
			next.Total--
		}
		return OpRemoved, next
	case i >= 0:
		next.Reactions[i].Symbol = symbol
		return OpReplaced, next
	default:
		reaction := models.Reaction{
			ID:       "tmp-" + uuid.NewString(),
			UserID:   r.userID,
			Symbol:   symbol,
			TargetID: target.ID,
		}
		if r.users != nil {
			if user, ok := r.users.Get(r.userID); ok {
				reaction.User = &user
			}
		}
		next.Reactions = append(next.Reactions, reaction)
		next.Total++
		return OpAdded, next
	}
}

func (r *Reactor) tentative(prev, next Target) Tentative {
	prev = prev.clone()
	next = next.clone()
	return Tentative{
		Apply:    func() error { return r.store.Put(next) },
		Rollback: func() error { return r.store.Put(prev) },
	}
}

func (r *Reactor) submit(ctx context.Context, kind models.TargetKind, id, symbol string) (rest.ReactionResult, error) {
	switch kind {
	case models.TargetMessage:
		return r.api.ReactMessage(ctx, id, symbol)
	case models.TargetPost:
		return r.api.ReactPost(ctx, id, symbol)
	default:
		return r.api.ReactComment(ctx, id, symbol)
	}
}

// React toggles symbol on the target, applying the edit before the backend
// answers and undoing it if the backend refuses or cannot be reached.
func (r *Reactor) React(ctx context.Context, kind models.TargetKind, targetID, symbol string) (Outcome, error) {
	if !kind.Valid() {
		return Outcome{}, models.NewError(models.CodeInvalidArgument, fmt.Sprintf("unknown reaction target %q", kind))
	}
	symbol = strings.TrimSpace(symbol)
	if targetID == "" || symbol == "" {
		return Outcome{}, models.NewError(models.CodeInvalidArgument, "target id and reaction are required")
	}

	k := key(kind, targetID)
	r.mu.Lock()
	if r.inFlight[k] {
		r.mu.Unlock()
		return Outcome{}, ErrReactionInFlight
	}
	r.inFlight[k] = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.inFlight, k)
		r.mu.Unlock()
	}()

	ctx, span := otel.Tracer("fricon-core/reactions").Start(ctx, "reactions.react")
	defer span.End()
	span.SetAttributes(attribute.String("kind", string(kind)), attribute.String("target_id", targetID))

	target, err := r.store.Get(kind, targetID)
	if err != nil {
		return Outcome{}, models.WrapError(models.CodeNotFound, "reaction target not found", err)
	}
	op, next := r.plan(target, symbol)
	edit := r.tentative(target, next)
	if err := edit.Apply(); err != nil {
		return Outcome{}, fmt.Errorf("apply reaction: %w", err)
	}

	result, err := r.submit(ctx, kind, targetID, symbol)
	if err != nil || !result.Success {
		if rbErr := edit.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Str("target_id", targetID).Msg("reaction rollback failed")
		}
		if err != nil {
			span.RecordError(err)
			observability.IncReaction(string(kind), "error")
			log.Warn().Err(err).Str("kind", string(kind)).Str("target_id", targetID).Msg("reaction not confirmed")
			return Outcome{}, models.WrapError(models.CodeUnavailable, "reaction not confirmed", err)
		}
		observability.IncReaction(string(kind), "rejected")
		log.Info().Str("kind", string(kind)).Str("target_id", targetID).Str("reason", result.Message).Msg("reaction rejected")
		return Outcome{}, fmt.Errorf("%w: %s", ErrReactionRejected, result.Message)
	}

	committed := next
	switch {
	case result.Reactions != nil:
		committed.Reactions = result.Reactions
	case result.Record != nil && op != OpRemoved:
		if i := models.FindReaction(committed.Reactions, r.userID); i >= 0 {
			record := *result.Record
			if record.User == nil {
				record.User = committed.Reactions[i].User
			}
			committed.Reactions[i] = record
		}
	}
	if kind == models.TargetMessage {
		committed.Total = len(committed.Reactions)
	}
	if err := r.store.Put(committed); err != nil {
		log.Warn().Err(err).Str("target_id", targetID).Msg("reaction commit skipped")
	}

	observability.IncReaction(string(kind), "ok")
	return Outcome{Op: op, Target: committed}, nil
}
