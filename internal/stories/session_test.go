package stories

import (
	"testing"

	"github.com/anonto42/nano-midea/moments/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSession(t *testing.T, viewer string, groups []models.StoryGroup, start int) (*Session, *recordingEffects) {
	t.Helper()
	fx := &recordingEffects{}
	s, err := Open(viewer, groups, start, fx)
	require.NoError(t, err)
	return s, fx
}

func TestOpen_RejectsBadStart(t *testing.T) {
	_, err := Open("me", []models.StoryGroup{group("bob", 1)}, 1, nil)
	assert.ErrorIs(t, err, ErrNoSuchGroup)
	_, err = Open("me", []models.StoryGroup{{AuthorID: "empty"}}, 0, nil)
	assert.ErrorIs(t, err, ErrNoSuchGroup)
	_, err = Open("me", nil, 0, nil)
	assert.ErrorIs(t, err, ErrNoSuchGroup)
}

func TestOpen_SkipsEmptyGroups(t *testing.T) {
	s, _ := openSession(t, "me", []models.StoryGroup{{AuthorID: "empty"}, group("bob", 1), group("carol", 1)}, 2)
	snap := s.Snapshot()
	assert.Equal(t, 2, snap.GroupCount)
	assert.Equal(t, 1, snap.GroupIndex)
	assert.Equal(t, "carol-0", snap.Item.ID)
}

func TestSession_CompletesAfterExactly100Ticks(t *testing.T) {
	s, _ := openSession(t, "me", []models.StoryGroup{group("bob", 2)}, 0)

	for i := 0; i < ProgressSteps-1; i++ {
		require.True(t, s.Tick())
	}
	assert.Equal(t, 0, s.Snapshot().ItemIndex)
	assert.InDelta(t, 0.99, s.Progress(), 1e-9)

	require.True(t, s.Tick())
	assert.Equal(t, 1, s.Snapshot().ItemIndex)
	assert.Equal(t, 0.0, s.Progress())
}

func TestSession_TickCrossesGroupsThenCloses(t *testing.T) {
	s, _ := openSession(t, "me", []models.StoryGroup{group("bob", 1), group("carol", 1)}, 0)

	for i := 0; i < ProgressSteps; i++ {
		s.Tick()
	}
	snap := s.Snapshot()
	assert.Equal(t, 1, snap.GroupIndex)
	assert.Equal(t, 0, snap.ItemIndex)

	for i := 0; i < ProgressSteps; i++ {
		s.Tick()
	}
	assert.True(t, s.Closed())
	assert.Equal(t, RunModeClosed, s.RunMode())
	assert.False(t, s.Tick())
}

func TestSession_HoldPreservesProgress(t *testing.T) {
	s, _ := openSession(t, "me", []models.StoryGroup{group("bob", 1)}, 0)
	for i := 0; i < 42; i++ {
		s.Tick()
	}

	require.NoError(t, s.HoldStart())
	assert.Equal(t, RunModePausedByUI, s.RunMode())
	for i := 0; i < 500; i++ {
		assert.False(t, s.Tick())
	}
	require.NoError(t, s.HoldEnd())

	assert.Equal(t, RunModeRunning, s.RunMode())
	assert.InDelta(t, 0.42, s.Progress(), 1e-9)
}

func TestSession_FocusPauseIsIndependent(t *testing.T) {
	s, _ := openSession(t, "me", []models.StoryGroup{group("bob", 1)}, 0)
	require.NoError(t, s.FocusLost())
	assert.Equal(t, RunModePausedByFocus, s.RunMode())
	require.NoError(t, s.HoldStart())
	require.NoError(t, s.HoldEnd())
	assert.Equal(t, RunModePausedByFocus, s.RunMode())
	require.NoError(t, s.FocusGained())
	assert.Equal(t, RunModeRunning, s.RunMode())
}

func TestSession_NextThreeTimesClosesOnThird(t *testing.T) {
	s, _ := openSession(t, "me", []models.StoryGroup{group("bob", 3)}, 0)

	require.NoError(t, s.Next())
	assert.False(t, s.Closed())
	require.NoError(t, s.Next())
	assert.False(t, s.Closed())
	assert.Equal(t, 2, s.Snapshot().ItemIndex)
	require.NoError(t, s.Next())
	assert.True(t, s.Closed())

	assert.ErrorIs(t, s.Next(), ErrSessionClosed)
}

func TestSession_NavigationResetsProgressEvenWhenPaused(t *testing.T) {
	s, _ := openSession(t, "me", []models.StoryGroup{group("bob", 2), group("carol", 2)}, 0)
	for i := 0; i < 30; i++ {
		s.Tick()
	}
	require.NoError(t, s.HoldStart())
	require.NoError(t, s.Next())
	assert.Equal(t, 0.0, s.Progress())
	assert.Equal(t, RunModePausedByUI, s.RunMode(), "hold survives navigation")
	require.NoError(t, s.HoldEnd())

	require.NoError(t, s.Next())
	snap := s.Snapshot()
	assert.Equal(t, 1, snap.GroupIndex)
	assert.Equal(t, 0, snap.ItemIndex)

	require.NoError(t, s.Prev())
	snap = s.Snapshot()
	assert.Equal(t, 0, snap.GroupIndex)
	assert.Equal(t, 0, snap.ItemIndex, "prev lands on the first item of the previous group")

	s.Tick()
	require.NoError(t, s.Prev())
	assert.InDelta(t, 0.01, s.Progress(), 1e-9, "prev at the very first item is a no-op")
}

func TestSession_RecordsEachViewOnce(t *testing.T) {
	s, fx := openSession(t, "me", []models.StoryGroup{group("bob", 2), group("me", 1)}, 0)

	require.NoError(t, s.Next())
	require.NoError(t, s.Prev())
	require.NoError(t, s.Next())
	require.NoError(t, s.Next())

	assert.Equal(t, []string{"bob-0/me", "bob-1/me"}, fx.views, "own items are never recorded")
	require.NoError(t, s.Prev())
	assert.Equal(t, []string{"me"}, s.Snapshot().Item.ViewerIDs)
}

func TestSession_ReactAndReplyDoNotTouchProgress(t *testing.T) {
	s, fx := openSession(t, "me", []models.StoryGroup{group("bob", 1)}, 0)
	for i := 0; i < 10; i++ {
		s.Tick()
	}

	require.NoError(t, s.React("🔥"))
	require.NoError(t, s.React("🔥"))
	assert.ErrorIs(t, s.React("  "), ErrEmptyReaction)
	require.NoError(t, s.Reply("  nice one "))
	assert.ErrorIs(t, s.Reply(" \n\t"), ErrEmptyReply)

	assert.InDelta(t, 0.10, s.Progress(), 1e-9)
	assert.Equal(t, RunModeRunning, s.RunMode())
	require.Len(t, fx.reactions, 2)
	assert.Equal(t, "me", fx.reactions[0].ViewerID)
	assert.Equal(t, []string{"bob-0:nice one"}, fx.replies)
	assert.Len(t, s.Snapshot().Item.Reactions, 2)
}

func TestSession_OwnStoryRejectsReactAndReply(t *testing.T) {
	s, fx := openSession(t, "me", []models.StoryGroup{group("me", 1)}, 0)
	assert.ErrorIs(t, s.React("❤️"), ErrOwnStory)
	assert.ErrorIs(t, s.Reply("hi"), ErrOwnStory)
	assert.Empty(t, fx.reactions)
	assert.Empty(t, fx.replies)
}

func TestSession_NonOwnerCannotEditOrDelete(t *testing.T) {
	s, fx := openSession(t, "me", []models.StoryGroup{group("bob", 1)}, 0)

	assert.ErrorIs(t, s.BeginEdit(), ErrNotOwner)
	assert.ErrorIs(t, s.OpenOverlay(OverlayOwnerMenu), ErrNotOwner)
	assert.ErrorIs(t, s.OpenOverlay(OverlayViewerList), ErrNotOwner)
	assert.ErrorIs(t, s.Delete(), ErrNotOwner)
	assert.ErrorIs(t, s.SaveEdit("x"), ErrNotEditing)
	assert.Empty(t, fx.deletes)
	assert.Empty(t, fx.captions)
	assert.Equal(t, RunModeRunning, s.RunMode())
}

func TestSession_CaptionEditPausesAndSaves(t *testing.T) {
	s, fx := openSession(t, "me", []models.StoryGroup{group("me", 1)}, 0)
	for i := 0; i < 5; i++ {
		s.Tick()
	}

	require.NoError(t, s.BeginEdit())
	assert.Equal(t, OverlayCaptionEdit, s.Snapshot().Overlay)
	assert.False(t, s.Tick())

	require.NoError(t, s.SaveEdit("sunset"))
	assert.Equal(t, RunModeRunning, s.RunMode())
	assert.Equal(t, "sunset", s.Snapshot().Item.Caption)
	assert.Equal(t, []string{"me-0:sunset"}, fx.captions)
	assert.InDelta(t, 0.05, s.Progress(), 1e-9)

	require.NoError(t, s.BeginEdit())
	require.NoError(t, s.CancelEdit())
	assert.Equal(t, "sunset", s.Snapshot().Item.Caption)
	assert.Len(t, fx.captions, 1)
	assert.ErrorIs(t, s.CancelEdit(), ErrNotEditing)
}

func TestSession_OverlayCloseResumesRegardlessOfHold(t *testing.T) {
	s, _ := openSession(t, "me", []models.StoryGroup{group("me", 1)}, 0)
	require.NoError(t, s.HoldStart())
	require.NoError(t, s.OpenOverlay(OverlayViewerList))
	assert.Equal(t, RunModePausedByUI, s.RunMode())
	assert.NotNil(t, s.Snapshot().Item)

	require.NoError(t, s.CloseOverlay())
	assert.Equal(t, RunModeRunning, s.RunMode())
	assert.ErrorIs(t, s.OpenOverlay(OverlayNone), ErrBadOverlay)
}

func TestSession_ViewerListExposesViewers(t *testing.T) {
	g := group("me", 1)
	g.Items[0].ViewerIDs = []string{"bob", "carol"}
	s, _ := openSession(t, "me", []models.StoryGroup{g}, 0)

	assert.Nil(t, s.Snapshot().ViewerIDs)
	require.NoError(t, s.OpenOverlay(OverlayViewerList))
	assert.Equal(t, []string{"bob", "carol"}, s.Snapshot().ViewerIDs)
}

func TestSession_DeleteOnlyItemOfLastGroupCloses(t *testing.T) {
	s, fx := openSession(t, "me", []models.StoryGroup{group("bob", 1), group("me", 1)}, 1)

	require.NoError(t, s.OpenOverlay(OverlayOwnerMenu))
	require.NoError(t, s.Delete())

	assert.True(t, s.Closed())
	assert.Equal(t, []string{"me-0"}, fx.deletes)
}

func TestSession_DeleteOnlyItemMovesToNextGroup(t *testing.T) {
	s, _ := openSession(t, "me", []models.StoryGroup{group("me", 1), group("bob", 2)}, 0)

	require.NoError(t, s.Delete())

	snap := s.Snapshot()
	assert.False(t, s.Closed())
	assert.Equal(t, 1, snap.GroupCount)
	assert.Equal(t, 0, snap.GroupIndex)
	assert.Equal(t, "bob-0", snap.Item.ID)
}

func TestSession_DeleteMiddleItemShowsFollowingItem(t *testing.T) {
	s, _ := openSession(t, "me", []models.StoryGroup{group("me", 3)}, 0)
	require.NoError(t, s.Next())
	for i := 0; i < 20; i++ {
		s.Tick()
	}

	require.NoError(t, s.Delete())

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.ItemIndex)
	assert.Equal(t, 2, snap.ItemCount)
	assert.Equal(t, "me-2", snap.Item.ID)
	assert.Equal(t, 0.0, snap.Progress)
}

func TestSession_DeleteLastItemOfGroupAdvances(t *testing.T) {
	s, _ := openSession(t, "me", []models.StoryGroup{group("me", 2), group("bob", 1)}, 0)
	require.NoError(t, s.Next())

	require.NoError(t, s.Delete())
	snap := s.Snapshot()
	assert.Equal(t, 1, snap.GroupIndex)
	assert.Equal(t, "bob-0", snap.Item.ID)
}

func TestSession_MediaFailureCompletesCurrentItemOnly(t *testing.T) {
	s, _ := openSession(t, "me", []models.StoryGroup{group("bob", 2)}, 0)

	require.NoError(t, s.MediaFailed("bob-1"))
	assert.Equal(t, 0, s.Snapshot().ItemIndex, "stale failure report is ignored")

	require.NoError(t, s.MediaFailed("bob-0"))
	assert.Equal(t, 1, s.Snapshot().ItemIndex)

	require.NoError(t, s.MediaFailed("bob-1"))
	assert.True(t, s.Closed())
}

func TestSession_OpenDoesNotMutateInput(t *testing.T) {
	groups := []models.StoryGroup{group("bob", 1)}
	s, _ := openSession(t, "me", groups, 0)
	require.NoError(t, s.React("👍"))

	assert.Empty(t, groups[0].Items[0].ViewerIDs)
	assert.Empty(t, groups[0].Items[0].Reactions)
}
