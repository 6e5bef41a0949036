package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dbgateway/internal/apperr"
)

func feedbackReq(id, from, to string, rating int64, reveal bool) SubmitFeedbackRequest {
	return SubmitFeedbackRequest{
		FeedbackID: id, TaskID: "t-1", FromAgentID: from, ToAgentID: to,
		Category: "delivery", Rating: i64(rating), Comment: "ok", RevealReverse: reveal,
		Event: ev("feedback.submitted"),
	}
}

func feedbackFixture(t *testing.T) *fixture {
	f := newFixture(t)
	f.agent(t, "poster")
	f.agent(t, "worker")
	f.task(t, "t-1", "poster")
	return f
}

func (f *fixture) visible(t *testing.T, id string) bool {
	t.Helper()
	var v bool
	require.NoError(t, f.store.DB().QueryRow("SELECT visible FROM feedback WHERE id = ?", id).Scan(&v))
	return v
}

func TestSubmitFeedback_MutualReveal(t *testing.T) {
	f := feedbackFixture(t)
	ctx := context.Background()

	first, err := f.gw.SubmitFeedback(ctx, feedbackReq("fb-1", "poster", "worker", 5, false))
	require.NoError(t, err)
	assert.False(t, first.Visible)
	assert.False(t, f.visible(t, "fb-1"))

	second, err := f.gw.SubmitFeedback(ctx, feedbackReq("fb-2", "worker", "poster", 4, true))
	require.NoError(t, err)
	assert.True(t, second.Visible)
	assert.True(t, f.visible(t, "fb-1"))
	assert.True(t, f.visible(t, "fb-2"))
}

func TestSubmitFeedback_RevealWithoutCounterpart(t *testing.T) {
	f := feedbackFixture(t)
	events := f.maxEventID(t)

	_, err := f.gw.SubmitFeedback(context.Background(), feedbackReq("fb-1", "poster", "worker", 5, true))
	assert.True(t, apperr.HasCode(err, apperr.CodeFeedbackNotFound), "got %v", err)
	assert.Equal(t, 0, f.count(t, "feedback"))
	assert.Equal(t, events, f.maxEventID(t))
}

func TestSubmitFeedback_ReplayAndConflict(t *testing.T) {
	f := feedbackFixture(t)
	ctx := context.Background()

	_, err := f.gw.SubmitFeedback(ctx, feedbackReq("fb-1", "poster", "worker", 5, false))
	require.NoError(t, err)
	events := f.count(t, "events")

	again, err := f.gw.SubmitFeedback(ctx, feedbackReq("fb-1", "poster", "worker", 5, false))
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.False(t, again.Visible)

	_, err = f.gw.SubmitFeedback(ctx, feedbackReq("fb-1", "poster", "worker", 1, false))
	assert.True(t, apperr.HasCode(err, apperr.CodeFeedbackExists), "got %v", err)

	_, err = f.gw.SubmitFeedback(ctx, feedbackReq("fb-9", "poster", "worker", 5, false))
	assert.True(t, apperr.HasCode(err, apperr.CodeFeedbackExists), "got %v", err)

	var rating int64
	require.NoError(t, f.store.DB().QueryRow("SELECT rating FROM feedback WHERE id = 'fb-1'").Scan(&rating))
	assert.Equal(t, int64(5), rating)
	assert.Equal(t, events, f.count(t, "events"))
}

func TestSubmitFeedback_RatingOutOfRange(t *testing.T) {
	f := feedbackFixture(t)

	_, err := f.gw.SubmitFeedback(context.Background(), feedbackReq("fb-1", "poster", "worker", 6, false))
	ae := apperr.As(err)
	assert.Equal(t, apperr.CodeInvalidValue, ae.Code)
	assert.Equal(t, "rating", ae.Details["column"])
}
