package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGate struct {
	loadErr   error
	detect    bool
	detectErr error
}

func (g *fakeGate) Load(context.Context) error { return g.loadErr }

func (g *fakeGate) Detect(context.Context, []byte) (bool, error) {
	return g.detect, g.detectErr
}

type geocoderFunc func(ctx context.Context, lat, lon float64) (string, error)

func (f geocoderFunc) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	return f(ctx, lat, lon)
}

type submitterFunc func(ctx context.Context, photo []byte, loc Location) error

func (f submitterFunc) Submit(ctx context.Context, photo []byte, loc Location) error {
	return f(ctx, photo, loc)
}

func newTestSession(gate *fakeGate, geocoder Geocoder) (*Session, *RemoteLocator, *RemoteCamera) {
	locator := &RemoteLocator{}
	camera := &RemoteCamera{}
	return newSession("stu-1", locator, camera, gate, geocoder), locator, camera
}

func startedSession(t *testing.T, gate *fakeGate) (*Session, *RemoteCamera) {
	t.Helper()
	sess, locator, camera := newTestSession(gate, nil)
	locator.Set(13.9411, 121.1631)
	require.NoError(t, sess.Start(context.Background()))
	return sess, camera
}

func TestStartReachesAwaitingFace(t *testing.T) {
	sess, _ := startedSession(t, &fakeGate{})

	snap := sess.Snapshot()
	assert.Equal(t, StateAwaitingFace, snap.State)
	assert.True(t, snap.ModelLoaded)
	assert.False(t, snap.FaceDetected)
	assert.False(t, snap.CanCapture)
	require.NotNil(t, snap.Location)
	assert.Equal(t, 13.9411, snap.Location.Latitude)
}

func TestStartTwiceIsRejected(t *testing.T) {
	sess, _ := startedSession(t, &fakeGate{})
	assert.ErrorIs(t, sess.Start(context.Background()), ErrInvalidState)
}

func TestGeolocationDenialIsRecoverable(t *testing.T) {
	sess, locator, _ := newTestSession(&fakeGate{}, nil)

	// No coordinates pushed: start fails but the session survives.
	err := sess.Start(context.Background())
	require.ErrorIs(t, err, ErrNoCoordinates)

	snap := sess.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.NotEmpty(t, snap.LastError)

	// The user grants permission and retries.
	locator.Set(13.9411, 121.1631)
	require.NoError(t, sess.RefreshLocation(context.Background()))
	assert.Equal(t, StateAwaitingFace, sess.Snapshot().State)
}

func TestModelLoadFailureStopsCamera(t *testing.T) {
	gate := &fakeGate{loadErr: errors.New("model download failed")}
	sess, locator, camera := newTestSession(gate, nil)
	locator.Set(1, 2)

	err := sess.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateError, sess.Snapshot().State)

	// Camera was stopped on failure, so pushing frames is rejected.
	assert.Error(t, camera.Push([]byte("frame")))
}

func TestCaptureRequiresFace(t *testing.T) {
	gate := &fakeGate{detect: false}
	sess, camera := startedSession(t, gate)

	require.NoError(t, camera.Push([]byte("no-face")))
	allowed, err := sess.CheckFrame(context.Background())
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.False(t, sess.CanCapture())

	assert.ErrorIs(t, sess.Capture(context.Background()), ErrNotReady)

	gate.detect = true
	require.NoError(t, camera.Push([]byte("face")))
	allowed, err = sess.CheckFrame(context.Background())
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.True(t, sess.CanCapture())

	require.NoError(t, sess.Capture(context.Background()))
	snap := sess.Snapshot()
	assert.Equal(t, StateCaptured, snap.State)
	assert.True(t, snap.HasPhoto)
}

func TestFaceLostDisablesCapture(t *testing.T) {
	gate := &fakeGate{detect: true}
	sess, camera := startedSession(t, gate)

	require.NoError(t, camera.Push([]byte("face")))
	_, err := sess.CheckFrame(context.Background())
	require.NoError(t, err)
	require.True(t, sess.CanCapture())

	// The face leaves the frame.
	gate.detect = false
	require.NoError(t, camera.Push([]byte("empty")))
	allowed, err := sess.CheckFrame(context.Background())
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.ErrorIs(t, sess.Capture(context.Background()), ErrNotReady)
}

func capturedSession(t *testing.T) (*Session, *RemoteCamera) {
	t.Helper()
	gate := &fakeGate{detect: true}
	sess, camera := startedSession(t, gate)
	require.NoError(t, camera.Push([]byte("selfie")))
	_, err := sess.CheckFrame(context.Background())
	require.NoError(t, err)
	require.NoError(t, sess.Capture(context.Background()))
	return sess, camera
}

func TestRetakeReturnsToFaceGate(t *testing.T) {
	sess, _ := capturedSession(t)

	require.NoError(t, sess.Retake())
	snap := sess.Snapshot()
	assert.Equal(t, StateAwaitingFace, snap.State)
	assert.False(t, snap.HasPhoto)
	// The gate must be satisfied again before the next capture.
	assert.False(t, snap.CanCapture)
}

func TestRefreshLocationKeepsReviewedPhoto(t *testing.T) {
	gate := &fakeGate{detect: true}
	sess, locator, camera := newTestSession(gate, nil)
	locator.Set(13.9411, 121.1631)
	require.NoError(t, sess.Start(context.Background()))
	require.NoError(t, camera.Push([]byte("selfie")))
	_, err := sess.CheckFrame(context.Background())
	require.NoError(t, err)
	require.NoError(t, sess.Capture(context.Background()))

	// The user moved after capturing; refreshing updates coordinates
	// without abandoning the review state.
	locator.Set(14.5995, 120.9842)
	require.NoError(t, sess.RefreshLocation(context.Background()))

	snap := sess.Snapshot()
	assert.Equal(t, StateCaptured, snap.State)
	assert.True(t, snap.HasPhoto)
	require.NotNil(t, snap.Location)
	assert.Equal(t, 14.5995, snap.Location.Latitude)

	// Re-capture from review is still rejected; only Retake reopens the gate.
	assert.ErrorIs(t, sess.Capture(context.Background()), ErrInvalidState)
}

func TestSubmitSuccess(t *testing.T) {
	sess, _ := capturedSession(t)

	var gotPhoto []byte
	var gotLoc Location
	submit := submitterFunc(func(_ context.Context, photo []byte, loc Location) error {
		gotPhoto, gotLoc = photo, loc
		return nil
	})

	require.NoError(t, sess.Submit(context.Background(), submit))
	assert.Equal(t, []byte("selfie"), gotPhoto)
	assert.Equal(t, 13.9411, gotLoc.Latitude)
	assert.Equal(t, StateDone, sess.Snapshot().State)
}

func TestSubmitFailureRetainsPhoto(t *testing.T) {
	sess, _ := capturedSession(t)

	boom := errors.New("already clocked in")
	submit := submitterFunc(func(context.Context, []byte, Location) error { return boom })

	err := sess.Submit(context.Background(), submit)
	assert.ErrorIs(t, err, boom)

	snap := sess.Snapshot()
	assert.Equal(t, StateCaptured, snap.State)
	assert.True(t, snap.HasPhoto)

	// A retry needs no recapture.
	ok := submitterFunc(func(context.Context, []byte, Location) error { return nil })
	require.NoError(t, sess.Submit(context.Background(), ok))
	assert.Equal(t, StateDone, sess.Snapshot().State)
}

func TestReleaseDuringSubmitDropsResult(t *testing.T) {
	sess, _ := capturedSession(t)

	submit := submitterFunc(func(ctx context.Context, _ []byte, _ Location) error {
		sess.Release()
		<-ctx.Done()
		return ctx.Err()
	})

	err := sess.Submit(context.Background(), submit)
	assert.ErrorIs(t, err, ErrReleased)
}

func TestRestartCameraResetsGate(t *testing.T) {
	sess, camera := capturedSession(t)

	require.NoError(t, sess.RestartCamera(context.Background()))
	snap := sess.Snapshot()
	assert.Equal(t, StateAwaitingFace, snap.State)
	assert.False(t, snap.HasPhoto)
	assert.False(t, snap.FaceDetected)

	// The stream is live again and accepts frames.
	assert.NoError(t, camera.Push([]byte("again")))
}

func TestAddressResolvesInBackground(t *testing.T) {
	geocoder := geocoderFunc(func(context.Context, float64, float64) (string, error) {
		return "Lipa City, Batangas", nil
	})
	sess, locator, _ := newTestSession(&fakeGate{}, geocoder)
	locator.Set(13.9411, 121.1631)

	require.NoError(t, sess.Start(context.Background()))

	assert.Eventually(t, func() bool {
		snap := sess.Snapshot()
		return !snap.AddressPending && snap.Location != nil && snap.Location.Address != ""
	}, time.Second, 5*time.Millisecond)
}

func TestGeocoderFailureDegradesSilently(t *testing.T) {
	geocoder := geocoderFunc(func(context.Context, float64, float64) (string, error) {
		return "", errors.New("nominatim unreachable")
	})
	sess, locator, _ := newTestSession(&fakeGate{}, geocoder)
	locator.Set(13.9411, 121.1631)

	require.NoError(t, sess.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return !sess.Snapshot().AddressPending
	}, time.Second, 5*time.Millisecond)

	snap := sess.Snapshot()
	assert.Equal(t, StateAwaitingFace, snap.State)
	require.NotNil(t, snap.Location)
	assert.Empty(t, snap.Location.Address)
}

type testDevices struct{ gate *fakeGate }

func (d *testDevices) Locator() Locator { return &RemoteLocator{} }
func (d *testDevices) Camera() Camera   { return &RemoteCamera{} }
func (d *testDevices) Gate() FaceGate   { return d.gate }

func TestManagerOneSessionPerOwner(t *testing.T) {
	m := NewManager(&testDevices{gate: &fakeGate{}}, nil)

	sess, err := m.Acquire("stu-1")
	require.NoError(t, err)
	require.NotNil(t, sess)

	_, err = m.Acquire("stu-1")
	assert.ErrorIs(t, err, ErrSessionActive)

	got, err := m.Get("stu-1")
	require.NoError(t, err)
	assert.Same(t, sess, got)

	m.Release("stu-1")
	_, err = m.Get("stu-1")
	assert.ErrorIs(t, err, ErrNoSession)

	// A released owner can acquire again.
	_, err = m.Acquire("stu-1")
	assert.NoError(t, err)
}

func TestManagerReleaseUnknownOwnerIsNoop(t *testing.T) {
	m := NewManager(&testDevices{gate: &fakeGate{}}, nil)
	m.Release("nobody")

	_, err := m.Get("nobody")
	assert.ErrorIs(t, err, ErrNoSession)
}
