// Package capture provides capture capability implementations for the
// notebook session. Speech-to-text engines plug in behind the same interface;
// the console implementation treats each typed line as one finalized
// utterance, which is enough to drive the full session loop.
package capture

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/aunorthrop/nora/pkg/notebook"
)

// ErrClosed is reported when the underlying input reaches EOF.
var ErrClosed = errors.New("capture: input closed")

// Console reads finalized utterances line by line. One Start arms one listen
// cycle: exactly one line is forwarded, then the session must re-arm. Lines
// arriving while not armed are dropped, mirroring how a recognizer stays muted
// while the assistant is processing or speaking.
type Console struct {
	logger *slog.Logger

	out  chan string
	errs chan notebook.CaptureError

	mu     sync.Mutex
	armed  bool
	closed bool

	once    sync.Once
	scanner *bufio.Scanner
}

// NewConsole creates a console capture over r (normally os.Stdin).
func NewConsole(r io.Reader, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{
		logger:  logger,
		out:     make(chan string, 1),
		errs:    make(chan notebook.CaptureError, 1),
		scanner: bufio.NewScanner(r),
	}
}

// Start arms one listen cycle. The read loop starts on first use.
func (c *Console) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.armed = true
	c.once.Do(func() { go c.readLoop() })
	return nil
}

// Stop disarms capture. The read loop keeps draining input so stray lines
// typed while muted are discarded rather than queued.
func (c *Console) Stop() {
	c.mu.Lock()
	c.armed = false
	c.mu.Unlock()
}

// Utterances delivers one finalized utterance per armed cycle.
func (c *Console) Utterances() <-chan string { return c.out }

// Errors reports capture failures. EOF is fatal: the input cannot recover.
func (c *Console) Errors() <-chan notebook.CaptureError { return c.errs }

func (c *Console) readLoop() {
	for c.scanner.Scan() {
		line := c.scanner.Text()

		c.mu.Lock()
		armed := c.armed
		if armed {
			c.armed = false
		}
		c.mu.Unlock()

		if !armed {
			continue
		}
		c.out <- line
	}

	err := c.scanner.Err()
	if err == nil {
		err = ErrClosed
	}

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.errs <- notebook.CaptureError{Err: err, Transient: false}
}
