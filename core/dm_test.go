package core

import (
	"testing"

	"gchat/queue"
	"gchat/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDM(t *testing.T) (*harness, *DM, *Commands) {
	h := newHarness(t)
	dm := NewDM(h.store, h.out, h.chat, testOwner)
	return h, dm, NewCommands(h.a, dm, ".")
}

func TestDMTrack(t *testing.T) {
	h, dm, c := newTestDM(t)

	dm.Track(testUser, 1)
	assert.Empty(t, store.GetOr(h.store, dmNS, "chats", []string{}), "tracking is off by default")

	run(t, c, ".dm on")
	assert.True(t, dm.Enabled())
	assert.Equal(t, "Media <b>ON</b>", h.out.lastEdit())

	dm.Track(testUser, 1)
	dm.Track(testUser, 1)
	dm.Track(testUser, 2)
	dm.Track(testOwner, 3)
	assert.Equal(t, []int32{1, 2}, store.GetOr(h.store, dmNS, "media:42", []int32{}))
	assert.Equal(t, []string{"42"}, store.GetOr(h.store, dmNS, "chats", []string{}))
	assert.Empty(t, store.GetOr(h.store, dmNS, "media:1000", []int32{}))

	run(t, c, ".dm exclude 77")
	assert.Equal(t, "Excluded chat <b>77</b>", h.out.lastEdit())
	dm.Track(77, 5)
	assert.Empty(t, store.GetOr(h.store, dmNS, "media:77", []int32{}))

	run(t, c, ".dm exclude")
	assert.Equal(t, "<b>Excluded Chats:</b>\n77", h.out.lastEdit())
	run(t, c, ".dm exclude 77")
	assert.Equal(t, "Removed chat <b>77</b> from excluded list.", h.out.lastEdit())
	run(t, c, ".dm exclude")
	assert.Equal(t, "No excluded chats.", h.out.lastEdit())

	run(t, c, ".dm off")
	assert.False(t, dm.Enabled())
}

func TestDMClean(t *testing.T) {
	h, dm, c := newTestDM(t)
	run(t, c, ".dm")
	assert.Equal(t, "No media.", h.out.lastEdit())

	run(t, c, ".dm on")
	for id := int32(1); id <= 65; id++ {
		dm.Track(testUser, id)
	}
	dm.Track(99, 7)

	run(t, c, ".dm")

	var deletes []queue.DeleteMessages
	for _, a := range h.out.all() {
		if d, ok := a.(queue.DeleteMessages); ok {
			deletes = append(deletes, d)
		}
	}
	require.Len(t, deletes, 4)
	assert.Len(t, deletes[0].IDs, 30)
	assert.Len(t, deletes[1].IDs, 30)
	assert.Len(t, deletes[2].IDs, 5)
	assert.Equal(t, queue.DeleteMessages{ChatID: 99, IDs: []int32{7}}, deletes[3])
	assert.Equal(t, "Deleted <b>66</b> in <b>2</b> chats.", h.out.lastEdit())

	assert.Empty(t, store.GetOr(h.store, dmNS, "chats", []string{}))
	assert.Empty(t, store.GetOr(h.store, dmNS, "media:42", []int32{}))
}

func TestDMSlots(t *testing.T) {
	h, _, c := newTestDM(t)

	run(t, c, ".s1")
	assert.Equal(t, "Empty <b>s1</b>", h.out.lastEdit())

	cmd, ok := c.Parse(".s1")
	require.True(t, ok)
	cmd.ChatID, cmd.MessageID = testUser, 500
	cmd.Reply = &Replied{ChatID: 55, MessageID: 8}
	require.True(t, c.Dispatch(t.Context(), cmd))
	assert.Equal(t, "Saved media in <b>s1</b>", h.out.lastEdit())

	run(t, c, ".s1")
	actions := h.out.all()
	assert.Equal(t, []queue.Action{
		queue.CopyMessage{ChatID: testUser, FromChat: 55, MessageID: 8},
		queue.DeleteMessages{ChatID: testUser, IDs: []int32{500}},
	}, actions[len(actions)-2:])
}

func TestDMSlotSelfDestruct(t *testing.T) {
	h, _, c := newTestDM(t)
	require.NoError(t, h.store.Set(dmNS, "s2", slotRef{ChatID: 55, MessageID: 8}))
	require.NoError(t, h.store.Set(dmNS, "s3", slotRef{ChatID: 55, MessageID: 9}))
	h.chat.media[8] = MediaInfo{Kind: MediaPhoto}
	h.chat.media[9] = MediaInfo{Kind: MediaDocument}
	h.chat.files[8] = "/tmp/slot.jpg"

	run(t, c, ".s2 v5")
	actions := h.out.all()
	require.Len(t, actions, 2)
	assert.Equal(t, queue.SendPhoto{ChatID: testUser, Path: "/tmp/slot.jpg", TTL: 5, CleanupPath: "/tmp/slot.jpg"}, actions[0])
	assert.Equal(t, queue.DeleteMessages{ChatID: testUser, IDs: []int32{500}}, actions[1])

	run(t, c, ".s2 v")
	photo := h.out.all()[2].(queue.SendPhoto)
	assert.Equal(t, int32(defaultSlotTTL), photo.TTL)

	run(t, c, ".s3 v5")
	assert.Equal(t, "Only photos/videos support self-destruct.", h.out.lastEdit())
}

func TestDeleteOwnMessages(t *testing.T) {
	h, _, c := newTestDM(t)
	for id := int32(1); id <= 260; id++ {
		h.chat.own = append(h.chat.own, SentMessage{ID: id, Out: true, Post: id == 7})
	}
	h.chat.own = append(h.chat.own, SentMessage{ID: 700, Out: true})

	run(t, c, ".delme")

	assert.Equal(t, []int32{500, 161, 61, 1}, h.chat.searches)
	var deleted []int32
	var sizes []int
	for _, a := range h.out.all() {
		if d, ok := a.(queue.DeleteMessages); ok {
			deleted = append(deleted, d.IDs...)
			sizes = append(sizes, len(d.IDs))
		}
	}
	assert.Equal(t, []int{100, 100, 59}, sizes)
	assert.Len(t, deleted, 259)
	assert.NotContains(t, deleted, int32(7))
	assert.NotContains(t, deleted, int32(700))
	assert.Equal(t, "Successfully deleted 259 messages.", h.out.lastEdit())
}

func TestDeleteOwnMessages_SkipsIncoming(t *testing.T) {
	h, _, c := newTestDM(t)
	h.chat.own = []SentMessage{{ID: 3, Out: false}, {ID: 4, Post: true, Out: true}}

	run(t, c, ".delme")

	assert.Equal(t, "No messages from you.", h.out.lastEdit())
	for _, a := range h.out.all() {
		_, isDelete := a.(queue.DeleteMessages)
		assert.False(t, isDelete)
	}
}

func TestDeleteOwnMessages_SearchErrorKeepsFound(t *testing.T) {
	h, _, c := newTestDM(t)
	for id := int32(1); id <= 150; id++ {
		h.chat.own = append(h.chat.own, SentMessage{ID: id, Out: true})
	}
	h.chat.ownErr, h.chat.ownOK = assert.AnError, 1

	run(t, c, ".delme")
	assert.Equal(t, "Successfully deleted 100 messages.", h.out.lastEdit())

	h2, _, c2 := newTestDM(t)
	h2.chat.own = []SentMessage{{ID: 1, Out: true}}
	h2.chat.ownErr = assert.AnError

	run(t, c2, ".delme")
	assert.Equal(t, "Error\n"+assert.AnError.Error(), h2.out.lastEdit())
}
