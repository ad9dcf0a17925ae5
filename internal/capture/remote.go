package capture

import (
	"context"
	"errors"
	"sync"
)

// The remote device implementations back a session whose hardware lives on
// the student's device: the client pushes its coordinates and video frames
// over the API, and the session pulls from the latest pushed values.

// ErrNoCoordinates is reported when the client has not provided a
// position, which is how a denied geolocation permission shows up here.
var ErrNoCoordinates = errors.New("no coordinates reported by device")

// ErrNoFrame is reported when no video frame has been pushed yet.
var ErrNoFrame = errors.New("no frame available")

// RemoteLocator holds the last position pushed by the client.
type RemoteLocator struct {
	mu  sync.Mutex
	lat float64
	lon float64
	set bool
}

// Set records the client-reported position.
func (l *RemoteLocator) Set(lat, lon float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lat, l.lon, l.set = lat, lon, true
}

// Clear forgets the position, e.g. when the client reports a permission
// denial.
func (l *RemoteLocator) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set = false
}

func (l *RemoteLocator) Current(ctx context.Context) (float64, float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.set {
		return 0, 0, ErrNoCoordinates
	}
	return l.lat, l.lon, nil
}

// RemoteCamera buffers the most recent frame pushed by the client. The
// stream handle semantics still apply: frames are only served while the
// camera is started, and Stop drops the buffer.
type RemoteCamera struct {
	mu      sync.Mutex
	started bool
	frame   []byte
}

func (c *RemoteCamera) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
	return nil
}

func (c *RemoteCamera) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = false
	c.frame = nil
}

// Push stores a frame from the client.
func (c *RemoteCamera) Push(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return errors.New("camera not started")
	}
	c.frame = frame
	return nil
}

func (c *RemoteCamera) Frame(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil, errors.New("camera not started")
	}
	if len(c.frame) == 0 {
		return nil, ErrNoFrame
	}
	return c.frame, nil
}
