package port

import (
	"io"
	"sync"
	"time"
)

// Loopback is an in memory Port. NewLoopback returns two cross
// connected ends : writes on one end become reads on the other. Used
// in place of real hardware in tests, like a tty pair.
type Loopback struct {
	peer    *Loopback
	mu      sync.Mutex
	in      chan []byte
	pending []byte
	closed  chan struct{}
	once    sync.Once
	timeout time.Duration
}

func NewLoopback() (*Loopback, *Loopback) {
	a := &Loopback{in: make(chan []byte, 1024), closed: make(chan struct{})}
	b := &Loopback{in: make(chan []byte, 1024), closed: make(chan struct{})}
	a.peer = b
	b.peer = a
	return a, b
}

func (l *Loopback) SetReadTimeout(t time.Duration) error {
	l.mu.Lock()
	l.timeout = t
	l.mu.Unlock()
	return nil
}

func (l *Loopback) readTimeout() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.timeout
}

func (l *Loopback) Read(p []byte) (int, error) {
	if len(l.pending) > 0 {
		n := copy(p, l.pending)
		l.pending = l.pending[n:]
		return n, nil
	}
	var expired <-chan time.Time
	if t := l.readTimeout(); t > 0 {
		timer := time.NewTimer(t)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case data := <-l.in:
		n := copy(p, data)
		l.pending = data[n:]
		return n, nil
	case <-l.closed:
		return l.drain(p)
	case <-l.peer.closed:
		return l.drain(p)
	case <-expired:
		return 0, nil
	}
}

// drain returns data that raced with a close before reporting EOF
func (l *Loopback) drain(p []byte) (int, error) {
	select {
	case data := <-l.in:
		n := copy(p, data)
		l.pending = data[n:]
		return n, nil
	default:
		return 0, io.EOF
	}
}

func (l *Loopback) Write(p []byte) (int, error) {
	select {
	case <-l.closed:
		return 0, io.ErrClosedPipe
	default:
	}
	data := make([]byte, len(p))
	copy(data, p)
	select {
	case <-l.peer.closed:
		// Unplugged device, bytes go nowhere
		return len(p), nil
	case l.peer.in <- data:
		return len(p), nil
	default:
		return 0, io.ErrShortWrite
	}
}

// Close releases this end : the peer reads EOF once drained
func (l *Loopback) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}
