package spinner

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func fastFrames(t *testing.T) {
	t.Helper()
	prev := frameInterval
	frameInterval = time.Millisecond
	t.Cleanup(func() { frameInterval = prev })
}

func TestSpinner_DrawsAndUpdates(t *testing.T) {
	fastFrames(t)
	var out syncBuffer

	s := Start(&out, "Running 3 case(s)")
	assert.Eventually(t, func() bool { return strings.Contains(out.String(), "Running 3 case(s)") },
		time.Second, time.Millisecond)

	s.Update("[1/3] parser")
	assert.Eventually(t, func() bool { return strings.Contains(out.String(), "[1/3] parser") },
		time.Second, time.Millisecond)

	s.Stop()
	text := out.String()
	assert.True(t, strings.HasSuffix(text, "\r"), "stop returns the cursor to column 0")

	lastFrame := text[strings.LastIndex(strings.TrimSuffix(text, "\r"), "\r")+1 : len(text)-1]
	assert.Empty(t, strings.TrimSpace(lastFrame), "stop blanks the line")
	assert.Len(t, lastFrame, runewidth.StringWidth("⠋ Running 3 case(s)"), "blank covers the widest message")
}

func TestSpinner_StopTwice(t *testing.T) {
	fastFrames(t)
	var out syncBuffer

	s := Start(&out, "working")
	s.Stop()
	assert.NotPanics(t, s.Stop)
}

func TestSpinner_ShorterMessageIsPadded(t *testing.T) {
	var out syncBuffer
	s := &Spinner{w: &out, message: "a long message"}
	s.draw("⠋")
	s.message = "short"
	s.draw("⠙")

	assert.Equal(t, "\r⠋ a long message\r⠙ short         ", out.String())
}
