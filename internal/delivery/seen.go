package delivery

import (
	"context"

	"github.com/rs/zerolog/log"

	"fricon-core/internal/models"
)

// SeenSignals are the UI observations that decide whether the newest message
// has been read.
type SeenSignals struct {
	InViewport      bool `json:"inViewport"`
	SurfaceFocused  bool `json:"surfaceFocused"`
	ComposerFocused bool `json:"composerFocused"`
	TabVisible      bool `json:"tabVisible"`
	SelfAuthored    bool `json:"selfAuthored"`
}

// ShouldMarkSeen is the read predicate for the newest message.
func ShouldMarkSeen(s SeenSignals) bool {
	return s.InViewport && (s.SurfaceFocused || s.ComposerFocused) && s.TabVisible && !s.SelfAuthored
}

// EvaluateSeen re-checks the predicate against the newest logged message and,
// when it holds, asks the backend to mark it Seen. It reports whether the
// message is Seen afterwards. SelfAuthored is derived from the message.
func (p *Pipeline) EvaluateSeen(ctx context.Context, signals SeenSignals) bool {
	newest, ok := p.log.Newest()
	if !ok {
		return false
	}
	if newest.Status == models.StatusSeen {
		return true
	}
	signals.SelfAuthored = newest.SenderID == p.opts.UserID
	if !ShouldMarkSeen(signals) {
		return false
	}

	p.mu.Lock()
	if p.seenBusy[newest.ID] {
		p.mu.Unlock()
		return false
	}
	p.seenBusy[newest.ID] = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.seenBusy, newest.ID)
		p.mu.Unlock()
	}()

	if !p.UpdateStatus(ctx, newest.ID, models.StatusSeen) {
		log.Debug().Str("message_id", newest.ID).Msg("seen not acknowledged")
		return false
	}

	p.log.SetStatus(newest.ID, models.StatusSeen)
	newest.Status = models.StatusSeen
	if p.convs.RefreshNewest(newest) {
		p.newestChanged()
	}
	return true
}
