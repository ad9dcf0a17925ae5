package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// State is the capture session's lifecycle position.
type State string

const (
	StateIdle           State = "idle"
	StateLocating       State = "locating"
	StateCameraStarting State = "camera-starting"
	StateModelLoading   State = "model-loading"
	StateAwaitingFace   State = "awaiting-face"
	StateCaptured       State = "captured"
	StateSubmitting     State = "submitting"
	StateDone           State = "done"
	StateError          State = "error"
)

var (
	// ErrInvalidState means the requested operation is not allowed from
	// the session's current state.
	ErrInvalidState = errors.New("operation not allowed in current state")
	// ErrNotReady means capture was attempted before the face gate allows it.
	ErrNotReady = errors.New("face gate not satisfied")
	// ErrNoLocation means clocking was attempted without coordinates.
	ErrNoLocation = errors.New("location not acquired")
	// ErrReleased means the session was torn down while an operation was
	// in flight; its result is discarded.
	ErrReleased = errors.New("capture session released")
)

// Location is the acquired device position; Address may lag behind the
// coordinates while reverse geocoding is still running.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Locator acquires the device's current coordinates.
type Locator interface {
	Current(ctx context.Context) (lat, lon float64, err error)
}

// Camera is the exclusively owned video stream handle.
type Camera interface {
	Start(ctx context.Context) error
	Stop()
	Frame(ctx context.Context) ([]byte, error)
}

// FaceGate loads the detection model and checks frames for a face.
type FaceGate interface {
	Load(ctx context.Context) error
	Detect(ctx context.Context, frame []byte) (bool, error)
}

// Geocoder resolves coordinates to a display address. Failures are
// degraded silently; the session never blocks on it.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// Submitter receives the finished capture. The session passes its own
// context so a submission outliving the session is cancelled with it.
type Submitter interface {
	Submit(ctx context.Context, photo []byte, loc Location) error
}

// Session is the single owner of the camera handle and the capture flow
// state for one student. All methods are safe for concurrent use.
type Session struct {
	Owner string

	locator  Locator
	camera   Camera
	gate     FaceGate
	geocoder Geocoder

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	state          State
	location       *Location
	addressPending bool
	modelLoaded    bool
	faceDetected   bool
	photo          []byte
	lastErr        string
}

func newSession(owner string, locator Locator, camera Camera, gate FaceGate, geocoder Geocoder) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		Owner:    owner,
		locator:  locator,
		camera:   camera,
		gate:     gate,
		geocoder: geocoder,
		ctx:      ctx,
		cancel:   cancel,
		state:    StateIdle,
	}
}

// Locator exposes the session's location source, e.g. for pushing
// client-reported coordinates into a RemoteLocator.
func (s *Session) Locator() Locator { return s.locator }

// Camera exposes the session's camera handle.
func (s *Session) Camera() Camera { return s.camera }

// Start runs the acquisition chain: location, camera stream, face model.
// A geolocation failure is recoverable: the session parks in the error
// state with the message preserved and RefreshLocation retries it.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle && s.state != StateError {
		s.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidState, s.state)
	}
	s.state = StateLocating
	s.mu.Unlock()

	if err := s.acquireLocation(ctx); err != nil {
		return err
	}
	return s.startDevices(ctx)
}

// RefreshLocation re-runs geolocation. It is the manual retry for users
// who denied permission or moved; it never runs automatically.
func (s *Session) RefreshLocation(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateLocating, StateAwaitingFace, StateCaptured, StateError:
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: refresh-location from %s", ErrInvalidState, s.state)
	}
	prev := s.state
	resume := prev == StateError || prev == StateLocating
	s.state = StateLocating
	s.mu.Unlock()

	if err := s.acquireLocation(ctx); err != nil {
		return err
	}
	if resume {
		return s.startDevices(ctx)
	}
	// Only acquisition re-runs; a reviewed photo stays in review.
	s.mu.Lock()
	s.state = prev
	s.mu.Unlock()
	return nil
}

func (s *Session) acquireLocation(ctx context.Context) error {
	lat, lon, err := s.locator.Current(ctx)
	if err != nil {
		s.mu.Lock()
		s.state = StateError
		s.lastErr = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("geolocation failed: %w", err)
	}

	s.mu.Lock()
	s.location = &Location{Latitude: lat, Longitude: lon}
	s.lastErr = ""
	s.addressPending = s.geocoder != nil
	s.mu.Unlock()

	// Reverse geocoding is best effort and must never block the flow.
	if s.geocoder != nil {
		go s.resolveAddress(lat, lon)
	}
	return nil
}

func (s *Session) resolveAddress(lat, lon float64) {
	addr, err := s.geocoder.Reverse(s.ctx, lat, lon)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addressPending = false
	if err != nil || s.location == nil {
		return
	}
	if s.location.Latitude == lat && s.location.Longitude == lon {
		s.location.Address = addr
	}
}

func (s *Session) startDevices(ctx context.Context) error {
	s.mu.Lock()
	s.state = StateCameraStarting
	s.mu.Unlock()

	if err := s.camera.Start(ctx); err != nil {
		s.fail(err)
		return fmt.Errorf("camera start failed: %w", err)
	}

	s.mu.Lock()
	s.state = StateModelLoading
	s.modelLoaded = false
	s.faceDetected = false
	s.mu.Unlock()

	if err := s.gate.Load(ctx); err != nil {
		s.camera.Stop()
		s.fail(err)
		return fmt.Errorf("face model load failed: %w", err)
	}

	s.mu.Lock()
	s.modelLoaded = true
	s.state = StateAwaitingFace
	s.mu.Unlock()
	return nil
}

// CheckFrame grabs a frame and updates the face gate. It reports whether
// capture is currently allowed.
func (s *Session) CheckFrame(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.state != StateAwaitingFace {
		s.mu.Unlock()
		return false, fmt.Errorf("%w: check-frame from %s", ErrInvalidState, s.state)
	}
	s.mu.Unlock()

	frame, err := s.camera.Frame(ctx)
	if err != nil {
		return false, fmt.Errorf("frame grab failed: %w", err)
	}
	detected, err := s.gate.Detect(ctx, frame)
	if err != nil {
		return false, fmt.Errorf("face detection failed: %w", err)
	}

	s.mu.Lock()
	s.faceDetected = detected
	allowed := s.modelLoaded && s.faceDetected
	s.mu.Unlock()
	return allowed, nil
}

// CanCapture is true iff the model is loaded and the last frame had a face.
func (s *Session) CanCapture() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateAwaitingFace && s.modelLoaded && s.faceDetected
}

// Capture freezes the current frame as the selfie and moves to review.
func (s *Session) Capture(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateAwaitingFace {
		s.mu.Unlock()
		return fmt.Errorf("%w: capture from %s", ErrInvalidState, s.state)
	}
	if !s.modelLoaded || !s.faceDetected {
		s.mu.Unlock()
		return ErrNotReady
	}
	s.mu.Unlock()

	frame, err := s.camera.Frame(ctx)
	if err != nil {
		return fmt.Errorf("frame grab failed: %w", err)
	}

	s.mu.Lock()
	s.photo = frame
	s.state = StateCaptured
	s.mu.Unlock()
	return nil
}

// Retake discards the reviewed photo and returns to the face gate.
func (s *Session) Retake() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCaptured {
		return fmt.Errorf("%w: retake from %s", ErrInvalidState, s.state)
	}
	s.photo = nil
	s.faceDetected = false
	s.state = StateAwaitingFace
	return nil
}

// Submit hands the capture to the submitter. A failure keeps the session
// in the review state with the photo retained, so a retry does not
// require recapture. A submission finishing after Release is dropped.
func (s *Session) Submit(ctx context.Context, submitter Submitter) error {
	s.mu.Lock()
	if s.state != StateCaptured {
		s.mu.Unlock()
		return fmt.Errorf("%w: submit from %s", ErrInvalidState, s.state)
	}
	if s.location == nil {
		s.mu.Unlock()
		return ErrNoLocation
	}
	photo := s.photo
	loc := *s.location
	s.state = StateSubmitting
	s.mu.Unlock()

	err := submitter.Submit(joinContext(ctx, s.ctx), photo, loc)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		// Released mid-flight: never surface a stale result.
		return ErrReleased
	}
	if err != nil {
		s.state = StateCaptured
		return err
	}
	s.photo = nil
	s.state = StateDone
	return nil
}

// RestartCamera releases and reacquires the stream and detector. It is a
// recovery action for a stuck detector, not an error path.
func (s *Session) RestartCamera(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateAwaitingFace, StateCaptured, StateError:
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: restart-camera from %s", ErrInvalidState, s.state)
	}
	s.photo = nil
	s.mu.Unlock()

	s.camera.Stop()
	return s.startDevices(ctx)
}

// Release tears down the stream, cancels the session context and discards
// all capture state. It is idempotent.
func (s *Session) Release() {
	s.cancel()
	s.camera.Stop()
	s.mu.Lock()
	s.photo = nil
	s.location = nil
	s.faceDetected = false
	s.state = StateIdle
	s.mu.Unlock()
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.state = StateError
	s.lastErr = err.Error()
	s.mu.Unlock()
}

// Snapshot is a read-only view of the session for the API layer.
type Snapshot struct {
	Owner          string    `json:"owner"`
	State          State     `json:"state"`
	Location       *Location `json:"location,omitempty"`
	AddressPending bool      `json:"addressPending"`
	ModelLoaded    bool      `json:"modelLoaded"`
	FaceDetected   bool      `json:"faceDetected"`
	CanCapture     bool      `json:"canCapture"`
	HasPhoto       bool      `json:"hasPhoto"`
	LastError      string    `json:"lastError,omitempty"`
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var loc *Location
	if s.location != nil {
		copied := *s.location
		loc = &copied
	}
	return Snapshot{
		Owner:          s.Owner,
		State:          s.state,
		Location:       loc,
		AddressPending: s.addressPending,
		ModelLoaded:    s.modelLoaded,
		FaceDetected:   s.faceDetected,
		CanCapture:     s.state == StateAwaitingFace && s.modelLoaded && s.faceDetected,
		HasPhoto:       len(s.photo) > 0,
		LastError:      s.lastErr,
	}
}

// joinContext derives a context cancelled when either parent is.
func joinContext(a, b context.Context) context.Context {
	ctx, cancel := context.WithCancel(a)
	go func() {
		select {
		case <-b.Done():
		case <-ctx.Done():
		}
		cancel()
	}()
	return ctx
}
