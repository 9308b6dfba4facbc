// Package spinner draws a single-line activity indicator on a terminal.
package spinner

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// frameInterval is a variable so tests can speed the animation up.
var frameInterval = 80 * time.Millisecond

// Spinner animates a message on one terminal line until stopped.
type Spinner struct {
	w        io.Writer
	mu       sync.Mutex
	message  string
	widest   int
	done     chan struct{}
	cleared  chan struct{}
	stopOnce sync.Once
}

// Start displays an animated spinner with the given message on w.
func Start(w io.Writer, message string) *Spinner {
	s := &Spinner{
		w:       w,
		message: message,
		done:    make(chan struct{}),
		cleared: make(chan struct{}),
	}
	go s.loop()
	return s
}

// Update replaces the message shown next to the spinner.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Stop halts the animation and blanks the line. It is safe to call more than once.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	<-s.cleared
}

func (s *Spinner) loop() {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-s.done:
			s.mu.Lock()
			fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", s.widest)) //nolint:errcheck
			s.mu.Unlock()
			close(s.cleared)
			return
		case <-ticker.C:
			s.draw(frames[i%len(frames)])
		}
	}
}

func (s *Spinner) draw(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := frame + " " + s.message
	width := runewidth.StringWidth(line)
	pad := ""
	if width < s.widest {
		// a shorter message must cover the tail of the previous one
		pad = strings.Repeat(" ", s.widest-width)
	}
	s.widest = max(s.widest, width)
	fmt.Fprintf(s.w, "\r%s%s", line, pad) //nolint:errcheck
}
