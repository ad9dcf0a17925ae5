package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marnel8/tracesys-sub003/internal/attendance"
	"github.com/Marnel8/tracesys-sub003/internal/auth"
	"github.com/Marnel8/tracesys-sub003/internal/capture"
	"github.com/Marnel8/tracesys-sub003/internal/config"
	"github.com/Marnel8/tracesys-sub003/internal/faceclient"
	"github.com/Marnel8/tracesys-sub003/internal/queue"
)

type memStore struct {
	records map[string]attendance.Record
}

func newMemStore() *memStore {
	return &memStore{records: map[string]attendance.Record{}}
}

func (m *memStore) GetDayRecord(_ context.Context, studentID, practicumID string, date time.Time) (*attendance.Record, error) {
	for _, rec := range m.records {
		if rec.StudentID == studentID && rec.PracticumID == practicumID && rec.Date.Equal(date) {
			r := rec
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateRecord(_ context.Context, rec attendance.Record) (attendance.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *memStore) SaveClock(_ context.Context, rec attendance.Record, evt attendance.TimeEvent) (attendance.Record, error) {
	rec.Events = append(rec.Events, evt)
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *memStore) GetRecord(_ context.Context, id string) (attendance.Record, error) {
	return m.records[id], nil
}

func (m *memStore) ListRecords(_ context.Context, _ attendance.Filter) ([]attendance.Record, error) {
	var res []attendance.Record
	for _, rec := range m.records {
		res = append(res, rec)
	}
	return res, nil
}

func (m *memStore) SetApproval(_ context.Context, id string, status attendance.ApprovalStatus, approvedBy string, notes *string) (attendance.Record, error) {
	rec := m.records[id]
	rec.ApprovalStatus = status
	rec.ApprovedBy = &approvedBy
	rec.ApprovalNotes = notes
	m.records[id] = rec
	return rec, nil
}

func testConfig() config.App {
	return config.App{
		JWTIssuer:       "tracesys-test",
		JWTSigningKey:   "test-signing-key",
		AccessTTL:       time.Hour,
		RefreshTTL:      24 * time.Hour,
		InviteTTL:       time.Hour,
		RateLimitPerMin: 10000,
	}
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	att := attendance.NewService(newMemStore(), attendance.Schedule{
		MorningStart:   "08:00",
		MorningEnd:     "12:00",
		AfternoonStart: "13:00",
		AfternoonEnd:   "17:00",
		Grace:          15 * time.Minute,
	})
	captures := capture.NewManager(RemoteDevices{Faces: faceclient.New("", true)}, nil)
	q := queue.NewInMemory(16)

	return New(cfg, att, nil, nil, captures, nil, q, nil, nil).Router()
}

func studentToken(t *testing.T) string {
	t.Helper()
	pair, err := auth.Issue("stu-1", auth.RoleStudent, "tracesys-test", "test-signing-key", time.Hour, time.Hour)
	require.NoError(t, err)
	return pair.AccessToken
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCaptureEndpointsRequireAuth(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/v1/capture", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInviteTokenRejectedAsBearer(t *testing.T) {
	// An invitation token shares key and issuer with access tokens but
	// must not open authenticated routes before the invite is accepted.
	r := newTestRouter(t)
	token, _, err := auth.IssueInvite("invitee@univ.edu", "prac-1", "tracesys-test", "test-signing-key", time.Hour)
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodGet, "/v1/attendance", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCaptureRequiresStudentRole(t *testing.T) {
	r := newTestRouter(t)
	pair, err := auth.Issue("coord-1", auth.RoleCoordinator, "tracesys-test", "test-signing-key", time.Hour, time.Hour)
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPost, "/v1/capture", pair.AccessToken, gin.H{})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCaptureClockInFlow(t *testing.T) {
	r := newTestRouter(t)
	token := studentToken(t)

	// Start with coordinates pushed alongside.
	w := doJSON(t, r, http.MethodPost, "/v1/capture", token, gin.H{
		"latitude":  13.9411,
		"longitude": 121.1631,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var snap capture.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, capture.StateAwaitingFace, snap.State)
	assert.True(t, snap.ModelLoaded)
	assert.False(t, snap.CanCapture)

	// Push a frame; skip-mode detection always finds a face.
	frame := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
	w = doJSON(t, r, http.MethodPost, "/v1/capture/frame", token, gin.H{"frame": frame})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var frameResp struct {
		CanCapture bool `json:"canCapture"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &frameResp))
	assert.True(t, frameResp.CanCapture)

	// Capture the selfie.
	w = doJSON(t, r, http.MethodPost, "/v1/capture/photo", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, capture.StateCaptured, snap.State)
	assert.True(t, snap.HasPhoto)

	// Submit as a clock-in.
	w = doJSON(t, r, http.MethodPost, "/v1/capture/submit", token, gin.H{
		"direction":    "in",
		"practicumId":  "prac-1",
		"locationType": "Inside",
		"deviceType":   "mobile",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var rec attendance.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.NotNil(t, rec.MorningIn)
	assert.Equal(t, "prac-1", rec.PracticumID)

	// The session is released after a successful submit.
	w = doJSON(t, r, http.MethodPost, "/v1/capture/frame", token, gin.H{"frame": frame})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCaptureWithoutCoordinatesParksInError(t *testing.T) {
	r := newTestRouter(t)
	token := studentToken(t)

	w := doJSON(t, r, http.MethodPost, "/v1/capture", token, gin.H{})
	require.Equal(t, http.StatusCreated, w.Code)

	var snap capture.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, capture.StateError, snap.State)
	assert.NotEmpty(t, snap.LastError)

	// Granting permission and refreshing recovers the session.
	w = doJSON(t, r, http.MethodPost, "/v1/capture/refresh-location", token, gin.H{
		"latitude":  13.9411,
		"longitude": 121.1631,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, capture.StateAwaitingFace, snap.State)
}

func TestCapturePhotoBeforeFaceIsRejected(t *testing.T) {
	r := newTestRouter(t)
	token := studentToken(t)

	w := doJSON(t, r, http.MethodPost, "/v1/capture", token, gin.H{
		"latitude":  13.9411,
		"longitude": 121.1631,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// No frame checked yet, so the gate is closed.
	w = doJSON(t, r, http.MethodPost, "/v1/capture/photo", token, nil)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestCaptureDoubleStartConflicts(t *testing.T) {
	r := newTestRouter(t)
	token := studentToken(t)

	w := doJSON(t, r, http.MethodPost, "/v1/capture", token, gin.H{"latitude": 1.0, "longitude": 2.0})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/capture", token, gin.H{"latitude": 1.0, "longitude": 2.0})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Cancel frees the slot.
	w = doJSON(t, r, http.MethodDelete, "/v1/capture", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/capture", token, gin.H{"latitude": 1.0, "longitude": 2.0})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestDecodeDataURL(t *testing.T) {
	raw := []byte{0xff, 0xd8, 0xff}
	encoded := base64.StdEncoding.EncodeToString(raw)

	got, err := decodeDataURL(encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = decodeDataURL("data:image/jpeg;base64," + encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	_, err = decodeDataURL("not-base64!!!")
	assert.Error(t, err)
}
