package debug

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

const prompt = "$ "

// ErrTimeout is returned when the console stops answering.
var ErrTimeout = errors.New("debug: console timed out")

// Console speaks the BMC debug UART protocol over a byte stream:
//
//	r <addr>\r          -> "<value>\r\n$ "
//	w <addr>:<value>\r  -> "$ "
//	q\r                 leaves debug mode
type Console struct {
	mu       sync.Mutex
	rw       io.ReadWriter
	password string
	active   bool
	pending  []byte
}

// NewConsole wraps rw. Call Enter before issuing accesses.
func NewConsole(rw io.ReadWriter, password string) *Console {
	return &Console{rw: rw, password: password}
}

func (c *Console) send(s string) error {
	_, err := io.WriteString(c.rw, s)
	return err
}

// expect reads until the prompt and returns everything before it.
func (c *Console) expect() (string, error) {
	buf := make([]byte, 64)
	for {
		if i := bytes.Index(c.pending, []byte(prompt)); i >= 0 {
			out := string(c.pending[:i])
			c.pending = c.pending[i+len(prompt):]
			return out, nil
		}
		n, err := c.rw.Read(buf)
		c.pending = append(c.pending, buf[:n]...)
		if err != nil {
			return "", err
		}
		if n == 0 {
			return "", ErrTimeout
		}
	}
}

// Enter switches the UART into debug mode.
func (c *Console) Enter() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return nil
	}
	c.pending = c.pending[:0]
	if err := c.send("\r" + c.password + "\r"); err != nil {
		return fmt.Errorf("debug: enter: %w", err)
	}
	if _, err := c.expect(); err != nil {
		return fmt.Errorf("debug: enter: %w", err)
	}
	c.active = true
	return nil
}

// Exit leaves debug mode, returning the UART to the BMC console.
func (c *Console) Exit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return nil
	}
	c.active = false
	if err := c.send("q\r"); err != nil {
		return fmt.Errorf("debug: exit: %w", err)
	}
	return nil
}

func (c *Console) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Read32 reads a word.
func (c *Console) Read32(addr uint32) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return 0, fmt.Errorf("debug: read 0x%08x: console not in debug mode", addr)
	}
	if err := c.send(fmt.Sprintf("r %x\r", addr)); err != nil {
		return 0, fmt.Errorf("debug: read 0x%08x: %w", addr, err)
	}
	out, err := c.expect()
	if err != nil {
		return 0, fmt.Errorf("debug: read 0x%08x: %w", addr, err)
	}
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return 0, fmt.Errorf("debug: read 0x%08x: empty response", addr)
	}
	v, err := strconv.ParseUint(fields[len(fields)-1], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("debug: read 0x%08x: bad response %q", addr, out)
	}
	return uint32(v), nil
}

// Write32 writes a word.
func (c *Console) Write32(addr, val uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return fmt.Errorf("debug: write 0x%08x: console not in debug mode", addr)
	}
	if err := c.send(fmt.Sprintf("w %x:%x\r", addr, val)); err != nil {
		return fmt.Errorf("debug: write 0x%08x: %w", addr, err)
	}
	if _, err := c.expect(); err != nil {
		return fmt.Errorf("debug: write 0x%08x: %w", addr, err)
	}
	return nil
}
