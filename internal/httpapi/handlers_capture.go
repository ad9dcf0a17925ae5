package httpapi

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Marnel8/tracesys-sub003/internal/attendance"
	"github.com/Marnel8/tracesys-sub003/internal/auth"
	"github.com/Marnel8/tracesys-sub003/internal/capture"
)

type coordsBody struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// pushCoords feeds client-reported coordinates into the session's
// locator. Absent coordinates model a denied geolocation permission.
func pushCoords(sess *capture.Session, body coordsBody) {
	loc, ok := sess.Locator().(*capture.RemoteLocator)
	if !ok {
		return
	}
	if body.Latitude != nil && body.Longitude != nil {
		loc.Set(*body.Latitude, *body.Longitude)
	} else {
		loc.Clear()
	}
}

func (s *Server) captureStart(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	var body coordsBody
	_ = c.ShouldBindJSON(&body)

	sess, err := s.captures.Acquire(claims.Subject)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	pushCoords(sess, body)

	// A geolocation failure parks the session in the error state; the
	// snapshot carries the message and the client retries via
	// refresh-location. Clock controls stay disabled until then.
	_ = sess.Start(c.Request.Context())

	c.JSON(http.StatusCreated, sess.Snapshot())
}

func (s *Server) captureRefreshLocation(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	sess, err := s.captures.Get(claims.Subject)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var body coordsBody
	_ = c.ShouldBindJSON(&body)
	pushCoords(sess, body)

	if err := sess.RefreshLocation(c.Request.Context()); err != nil && errors.Is(err, capture.ErrInvalidState) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (s *Server) captureFrame(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	sess, err := s.captures.Get(claims.Subject)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var body struct {
		Frame string `json:"frame" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	frame, err := decodeDataURL(body.Frame)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cam, ok := sess.Camera().(*capture.RemoteCamera)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "camera not remote"})
		return
	}
	if err := cam.Push(frame); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	canCapture, err := sess.CheckFrame(c.Request.Context())
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, capture.ErrInvalidState) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"canCapture": canCapture, "session": sess.Snapshot()})
}

func (s *Server) capturePhoto(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	sess, err := s.captures.Get(claims.Subject)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	if err := sess.Capture(c.Request.Context()); err != nil {
		status := http.StatusConflict
		if errors.Is(err, capture.ErrNotReady) {
			status = http.StatusPreconditionFailed
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (s *Server) captureRetake(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	sess, err := s.captures.Get(claims.Subject)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err := sess.Retake(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (s *Server) captureRestart(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	sess, err := s.captures.Get(claims.Subject)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err := sess.RestartCamera(c.Request.Context()); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, capture.ErrInvalidState) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

type submitterFunc func(ctx context.Context, photo []byte, loc capture.Location) error

func (f submitterFunc) Submit(ctx context.Context, photo []byte, loc capture.Location) error {
	return f(ctx, photo, loc)
}

func (s *Server) captureSubmit(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	sess, err := s.captures.Get(claims.Subject)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var body struct {
		Direction     string  `json:"direction" binding:"required,oneof=in out"`
		PracticumID   string  `json:"practicumId"`
		LocationType  string  `json:"locationType"`
		DeviceType    string  `json:"deviceType"`
		DeviceUnit    string  `json:"deviceUnit"`
		MACAddress    string  `json:"macAddress"`
		ExactLocation *string `json:"exactLocation"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	practicumID := body.PracticumID
	if practicumID == "" {
		p, perr := s.practicums.GetByStudent(c.Request.Context(), claims.Subject)
		if perr != nil || p == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no active practicum for student"})
			return
		}
		practicumID = p.ID
	}

	var rec attendance.Record
	var evt attendance.TimeEvent

	submit := submitterFunc(func(ctx context.Context, photo []byte, loc capture.Location) error {
		var photoURL *string
		if s.cdn != nil && len(photo) > 0 {
			up, uerr := s.cdn.UploadBytes(photo, fmt.Sprintf("%s-selfie.jpg", claims.Subject))
			if uerr != nil {
				return fmt.Errorf("photo upload failed: %w", uerr)
			}
			photoURL = &up.SecureURL
		}

		req := attendance.ClockRequest{
			StudentID:     claims.Subject,
			PracticumID:   practicumID,
			Latitude:      &loc.Latitude,
			Longitude:     &loc.Longitude,
			LocationType:  attendance.LocationType(body.LocationType),
			DeviceType:    body.DeviceType,
			DeviceUnit:    body.DeviceUnit,
			MACAddress:    body.MACAddress,
			ExactLocation: body.ExactLocation,
			PhotoURL:      photoURL,
		}
		if loc.Address != "" {
			addr := loc.Address
			req.Address = &addr
		}

		var serr error
		if body.Direction == "in" {
			rec, evt, serr = s.attendance.ClockIn(ctx, req)
		} else {
			rec, evt, serr = s.attendance.ClockOut(ctx, req)
		}
		return serr
	})

	if err := sess.Submit(c.Request.Context(), submit); err != nil {
		switch {
		case errors.Is(err, capture.ErrReleased):
			c.JSON(http.StatusGone, gin.H{"error": err.Error()})
		case errors.Is(err, capture.ErrInvalidState), errors.Is(err, capture.ErrNoLocation):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			// Server-side rejection, surfaced verbatim; the session keeps
			// the photo so the client can retry without recapturing.
			c.JSON(clockStatus(err), gin.H{"error": err.Error()})
		}
		return
	}

	s.enqueuePhotoVerify(c.Request.Context(), evt)
	s.captures.Release(claims.Subject)

	c.JSON(http.StatusOK, rec)
}

func (s *Server) captureCancel(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	s.captures.Release(claims.Subject)
	c.Status(http.StatusNoContent)
}

// decodeDataURL accepts either a data URL or raw base64 image bytes.
func decodeDataURL(data string) ([]byte, error) {
	if idx := strings.Index(data, ","); idx >= 0 && strings.HasPrefix(data, "data:") {
		data = data[idx+1:]
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("invalid image data: %w", err)
	}
	return decoded, nil
}
