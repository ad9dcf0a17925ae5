package httpapi

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Marnel8/tracesys-sub003/internal/attendance"
	"github.com/Marnel8/tracesys-sub003/internal/auth"
	"github.com/Marnel8/tracesys-sub003/internal/cloudinary"
	"github.com/Marnel8/tracesys-sub003/internal/queue"
)

type clockBody struct {
	PracticumID   string   `json:"practicumId" form:"practicumId"`
	Latitude      *float64 `json:"latitude" form:"latitude"`
	Longitude     *float64 `json:"longitude" form:"longitude"`
	Address       *string  `json:"address" form:"address"`
	LocationType  string   `json:"locationType" form:"locationType"`
	DeviceType    string   `json:"deviceType" form:"deviceType"`
	DeviceUnit    string   `json:"deviceUnit" form:"deviceUnit"`
	MACAddress    string   `json:"macAddress" form:"macAddress"`
	ExactLocation *string  `json:"exactLocation" form:"exactLocation"`
	Photo         string   `json:"photo" form:"-"` // base64 data URL in JSON bodies
}

func (s *Server) clockIn(c *gin.Context) {
	s.clock(c, s.attendance.ClockIn)
}

func (s *Server) clockOut(c *gin.Context) {
	s.clock(c, s.attendance.ClockOut)
}

func (s *Server) clock(c *gin.Context, do func(context.Context, attendance.ClockRequest) (attendance.Record, attendance.TimeEvent, error)) {
	claims, _ := auth.FromContext(c)

	var body clockBody
	var photoURL *string

	if strings.Contains(c.ContentType(), "multipart/form-data") {
		if err := c.ShouldBind(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if file, header, err := c.Request.FormFile("photo"); err == nil {
			defer file.Close()
			data, rerr := io.ReadAll(file)
			if rerr != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "read photo failed"})
				return
			}
			photoURL = s.storePhoto(c, data, header.Filename, "")
			if photoURL == nil && s.cdn != nil {
				return // storePhoto already responded
			}
		}
	} else {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if body.Photo != "" {
			photoURL = s.storePhoto(c, nil, "", body.Photo)
			if photoURL == nil && s.cdn != nil {
				return
			}
		}
	}

	practicumID := body.PracticumID
	if practicumID == "" {
		p, err := s.practicums.GetByStudent(c.Request.Context(), claims.Subject)
		if err != nil || p == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no active practicum for student"})
			return
		}
		practicumID = p.ID
	}

	req := attendance.ClockRequest{
		StudentID:     claims.Subject,
		PracticumID:   practicumID,
		Latitude:      body.Latitude,
		Longitude:     body.Longitude,
		Address:       body.Address,
		LocationType:  attendance.LocationType(body.LocationType),
		DeviceType:    body.DeviceType,
		DeviceUnit:    body.DeviceUnit,
		MACAddress:    body.MACAddress,
		ExactLocation: body.ExactLocation,
		PhotoURL:      photoURL,
	}

	rec, evt, err := do(c.Request.Context(), req)
	if err != nil {
		c.JSON(clockStatus(err), gin.H{"error": err.Error()})
		return
	}

	s.enqueuePhotoVerify(c.Request.Context(), evt)

	c.JSON(http.StatusOK, rec)
}

// storePhoto uploads the selfie and returns its URL. When storage is not
// configured the photo is dropped and the clock action proceeds without
// it. On upload failure it responds and returns nil.
func (s *Server) storePhoto(c *gin.Context, data []byte, filename, base64Data string) *string {
	if s.cdn == nil {
		return nil
	}
	var up *cloudinary.UploadResult
	var err error
	if base64Data != "" {
		up, err = s.cdn.UploadBase64(base64Data)
	} else {
		up, err = s.cdn.UploadBytes(data, filename)
	}
	if err != nil {
		log.Printf("selfie upload failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "photo upload failed"})
		return nil
	}
	return &up.SecureURL
}

func (s *Server) enqueuePhotoVerify(ctx context.Context, evt attendance.TimeEvent) {
	if evt.PhotoURL == nil {
		return
	}
	if err := s.q.Publish(ctx, queue.Message{Type: queue.TypePhotoVerify, Body: []byte(evt.ID)}); err != nil {
		log.Printf("queue publish failed: %v", err)
	}
}

func clockStatus(err error) int {
	switch {
	case errors.Is(err, attendance.ErrOpenSession),
		errors.Is(err, attendance.ErrNoOpenSession),
		errors.Is(err, attendance.ErrDayComplete):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) attendanceToday(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	practicumID := c.Query("practicumId")
	if practicumID == "" {
		p, err := s.practicums.GetByStudent(c.Request.Context(), claims.Subject)
		if err != nil || p == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no active practicum for student"})
			return
		}
		practicumID = p.ID
	}

	rec, action, err := s.attendance.Today(c.Request.Context(), claims.Subject, practicumID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"record": rec, "nextAction": action}
	if rec != nil {
		resp["totalHours"] = rec.TotalHours()
		if gap, ok := attendance.LunchGap(rec.MorningOut, rec.AfternoonIn); ok {
			resp["lunchDuration"] = attendance.FormatGap(gap)
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listAttendance(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	f := attendance.Filter{
		StudentID:      c.Query("studentId"),
		PracticumID:    c.Query("practicumId"),
		ApprovalStatus: attendance.ApprovalStatus(c.Query("approvalStatus")),
	}
	// Students only ever see their own records.
	if claims.Role == auth.RoleStudent {
		f.StudentID = claims.Subject
	}
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			f.From = &t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			f.To = &t
		}
	}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.Offset = parsed
		}
	}

	records, err := s.attendance.List(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (s *Server) getAttendance(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	rec, err := s.attendance.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	if claims.Role == auth.RoleStudent && rec.StudentID != claims.Subject {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) setApproval(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	var req struct {
		Status string  `json:"status" binding:"required"`
		Notes  *string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := s.attendance.SetApproval(c.Request.Context(), c.Param("id"),
		attendance.ApprovalStatus(req.Status), claims.Subject, req.Notes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}
