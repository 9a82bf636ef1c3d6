package actions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fanflow/fanflow/internal/browser"
	"github.com/fanflow/fanflow/internal/common"
)

func testExecutor() *Executor {
	return NewExecutor(
		common.SiteConfig{
			BaseURL:     "https://onlyfans.com/",
			ChatURLBase: "https://onlyfans.com/my/chats/chat/",
		},
		common.BrowserConfig{
			NavigationTimeout: time.Second,
			StepTimeout:       time.Second,
			ActionRate:        10 * time.Millisecond,
		},
		common.GetLogger(),
	)
}

func TestChatURL(t *testing.T) {
	e := testExecutor()
	assert.Equal(t, "https://onlyfans.com/my/chats/chat/u12345/", e.chatURL("u12345"))
}

func TestPostCreateURL(t *testing.T) {
	e := testExecutor()
	assert.Equal(t, "https://onlyfans.com/posts/create", e.postCreateURL())
}

func TestSendMessageRejectsDeadSession(t *testing.T) {
	e := testExecutor()
	result := e.SendMessage(&browser.Session{}, "u1", "hello")
	assert.False(t, result.Success)
	assert.Contains(t, result.Details, "session is dead")
}

func TestSendMessageRejectsEmptyText(t *testing.T) {
	e := testExecutor()
	sess := &browser.Session{Tab: context.Background()}
	result := e.SendMessage(sess, "u1", "   ")
	assert.False(t, result.Success)
	assert.Contains(t, result.Details, "empty message")
}

func TestCreatePostRejectsDeadSession(t *testing.T) {
	e := testExecutor()
	result := e.CreatePost(&browser.Session{}, "", "caption")
	assert.False(t, result.Success)
	assert.Contains(t, result.Details, "session is dead")
}

func TestCreatePostRejectsMissingMedia(t *testing.T) {
	e := testExecutor()
	// A nil tab fails the liveness check first, so give the session a
	// usable context and let the media check trip.
	sess := &browser.Session{Tab: context.Background()}
	result := e.CreatePost(sess, "/nonexistent/clip.mp4", "caption")
	assert.False(t, result.Success)
	assert.Contains(t, result.Details, "media file not readable")
}
