package reactions

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fricon-core/internal/mocks"
	"fricon-core/internal/models"
	"fricon-core/internal/repositories"
	"fricon-core/internal/rest"
)

var _ API = (*mocks.RESTClientMock)(nil)

type fixture struct {
	api     *mocks.RESTClientMock
	log     *repositories.MessageRepo
	store   *Store
	reactor *Reactor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{api: new(mocks.RESTClientMock), log: repositories.NewMessageRepo()}
	f.store = NewStore(f.log)
	users := repositories.NewUserRepo()
	users.Put(models.UserSummary{ID: "me", FirstName: "Me"})
	f.reactor = NewReactor("me", f.api, f.store, users)
	return f
}

func symbols(list []models.Reaction) []string {
	out := make([]string, 0, len(list))
	for _, r := range list {
		out = append(out, r.UserID+"="+r.Symbol)
	}
	return out
}

func TestReactPostAppendThenRemoveIsSymmetric(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Track(Target{Kind: models.TargetPost, ID: "p1", Total: 5, Reactions: []models.Reaction{{ID: "r1", UserID: "u2", Symbol: "❤️"}}}))
	f.api.On("ReactPost", mock.Anything, "p1", "👍").Return(rest.ReactionResult{Success: true}, nil).Twice()

	out, err := f.reactor.React(context.Background(), models.TargetPost, "p1", "👍")
	require.NoError(t, err)
	assert.Equal(t, OpAdded, out.Op)
	assert.Equal(t, 6, out.Target.Total)
	assert.Equal(t, []string{"u2=❤️", "me=👍"}, symbols(out.Target.Reactions))
	assert.True(t, strings.HasPrefix(out.Target.Reactions[1].ID, "tmp-"))
	require.NotNil(t, out.Target.Reactions[1].User)
	assert.Equal(t, "Me", out.Target.Reactions[1].User.FirstName)

	out, err = f.reactor.React(context.Background(), models.TargetPost, "p1", "👍")
	require.NoError(t, err)
	assert.Equal(t, OpRemoved, out.Op)
	assert.Equal(t, 5, out.Target.Total)

	stored, err := f.store.Get(models.TargetPost, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2=❤️"}, symbols(stored.Reactions))
	f.api.AssertExpectations(t)
}

func TestReactReplaceKeepsTotal(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Track(Target{Kind: models.TargetComment, ID: "k1", Total: 1, Reactions: []models.Reaction{{ID: "r1", UserID: "me", Symbol: "😂"}}}))
	f.api.On("ReactComment", mock.Anything, "k1", "😮").Return(rest.ReactionResult{Success: true}, nil).Once()

	out, err := f.reactor.React(context.Background(), models.TargetComment, "k1", "😮")
	require.NoError(t, err)
	assert.Equal(t, OpReplaced, out.Op)
	assert.Equal(t, 1, out.Target.Total)
	assert.Equal(t, []string{"me=😮"}, symbols(out.Target.Reactions))
	assert.Equal(t, "r1", out.Target.Reactions[0].ID)
}

func TestReactRemoveFloorsTotalAtZero(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Track(Target{Kind: models.TargetPost, ID: "p1", Total: 0, Reactions: []models.Reaction{{ID: "r1", UserID: "me", Symbol: "👍"}}}))
	f.api.On("ReactPost", mock.Anything, "p1", "👍").Return(rest.ReactionResult{Success: true}, nil).Once()

	out, err := f.reactor.React(context.Background(), models.TargetPost, "p1", "👍")
	require.NoError(t, err)
	assert.Equal(t, 0, out.Target.Total)
	assert.Empty(t, out.Target.Reactions)
}

func TestReactRejectedRollsBack(t *testing.T) {
	f := newFixture(t)
	original := Target{Kind: models.TargetPost, ID: "p1", Total: 2, Reactions: []models.Reaction{{ID: "r1", UserID: "me", Symbol: "👍"}}}
	require.NoError(t, f.store.Track(original))
	f.api.On("ReactPost", mock.Anything, "p1", "❤️").Return(rest.ReactionResult{Success: false, Message: "Post not found"}, nil).Once()

	_, err := f.reactor.React(context.Background(), models.TargetPost, "p1", "❤️")
	require.ErrorIs(t, err, ErrReactionRejected)

	stored, err := f.store.Get(models.TargetPost, "p1")
	require.NoError(t, err)
	assert.Equal(t, original, stored)
}

func TestReactTransportFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.log.Open("c1", []models.Message{{ID: "m1", ConversationID: "c1"}})
	boom := errors.New("connection refused")
	f.api.On("ReactMessage", mock.Anything, "m1", "👍").Return(rest.ReactionResult{}, boom).Once()

	_, err := f.reactor.React(context.Background(), models.TargetMessage, "m1", "👍")
	require.ErrorIs(t, err, boom)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeUnavailable, appErr.Code)

	msg, err := f.log.Get("m1")
	require.NoError(t, err)
	assert.Empty(t, msg.Reactions)
}

func TestReactMessageCommitsAuthoritativeReactions(t *testing.T) {
	f := newFixture(t)
	f.log.Open("c1", []models.Message{{ID: "m1", ConversationID: "c1", Reactions: []models.Reaction{{ID: "r1", UserID: "u2", Symbol: "😢"}}}})
	authoritative := []models.Reaction{{ID: "r1", UserID: "u2", Symbol: "😢"}, {ID: "r2", UserID: "me", Symbol: "👍"}}
	f.api.On("ReactMessage", mock.Anything, "m1", "👍").Return(rest.ReactionResult{Success: true, Reactions: authoritative}, nil).Once()

	out, err := f.reactor.React(context.Background(), models.TargetMessage, "m1", "👍")
	require.NoError(t, err)
	assert.Equal(t, OpAdded, out.Op)
	assert.Equal(t, 2, out.Target.Total)

	msg, err := f.log.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, authoritative, msg.Reactions)
}

func TestReactPostCommitsServerRecord(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Track(Target{Kind: models.TargetPost, ID: "p1"}))
	f.api.On("ReactPost", mock.Anything, "p1", "👍").
		Return(rest.ReactionResult{Success: true, Record: &models.Reaction{ID: "r42", UserID: "me", Symbol: "👍"}}, nil).Once()

	out, err := f.reactor.React(context.Background(), models.TargetPost, "p1", "👍")
	require.NoError(t, err)
	require.Len(t, out.Target.Reactions, 1)
	assert.Equal(t, "r42", out.Target.Reactions[0].ID)
	require.NotNil(t, out.Target.Reactions[0].User)
}

func TestReactValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.reactor.React(context.Background(), "story", "x", "👍")
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeInvalidArgument, appErr.Code)

	_, err = f.reactor.React(context.Background(), models.TargetPost, "p1", " ")
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeInvalidArgument, appErr.Code)

	_, err = f.reactor.React(context.Background(), models.TargetPost, "missing", "👍")
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeNotFound, appErr.Code)
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestStoreTrackRejectsMessages(t *testing.T) {
	f := newFixture(t)
	assert.Error(t, f.store.Track(Target{Kind: models.TargetMessage, ID: "m1"}))
	assert.ErrorIs(t, f.store.Put(Target{Kind: models.TargetPost, ID: "nope"}), ErrTargetNotFound)
}
