package httpapi

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Marnel8/tracesys-sub003/internal/auth"
	"github.com/Marnel8/tracesys-sub003/internal/practicum"
)

type practicumBody struct {
	StudentID     string  `json:"studentId" binding:"required"`
	StudentEmail  string  `json:"studentEmail" binding:"required,email"`
	Company       string  `json:"company" binding:"required"`
	Position      string  `json:"position"`
	RequiredHours float64 `json:"requiredHours" binding:"required,gt=0"`
}

func (s *Server) createPracticum(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	var body practicumBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := s.practicums.Create(c.Request.Context(), practicum.Practicum{
		StudentID:     body.StudentID,
		StudentEmail:  strings.ToLower(body.StudentEmail),
		CoordinatorID: claims.Subject,
		Company:       body.Company,
		Position:      body.Position,
		RequiredHours: body.RequiredHours,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create practicum"})
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) listPracticums(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	includeArchived, _ := strconv.ParseBool(c.Query("includeArchived"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	list, err := s.practicums.List(c.Request.Context(), claims.Subject, includeArchived, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list practicums"})
		return
	}
	if list == nil {
		list = []practicum.Practicum{}
	}
	c.JSON(http.StatusOK, gin.H{"practicums": list})
}

func (s *Server) getPracticum(c *gin.Context) {
	p, err := s.practicums.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "practicum not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load practicum"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) updatePracticum(c *gin.Context) {
	var body struct {
		Company       string  `json:"company" binding:"required"`
		Position      string  `json:"position"`
		RequiredHours float64 `json:"requiredHours" binding:"required,gt=0"`
		Status        string  `json:"status" binding:"required,oneof=Active Completed Dropped"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := s.practicums.Update(c.Request.Context(), practicum.Practicum{
		ID:            c.Param("id"),
		Company:       body.Company,
		Position:      body.Position,
		RequiredHours: body.RequiredHours,
		Status:        practicum.Status(body.Status),
	})
	if err != nil {
		switch {
		case errors.Is(err, practicum.ErrArchived):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, sql.ErrNoRows):
			c.JSON(http.StatusNotFound, gin.H{"error": "practicum not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update practicum"})
		}
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) archivePracticum(c *gin.Context) {
	p, err := s.practicums.Archive(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "practicum not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not archive practicum"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) restorePracticum(c *gin.Context) {
	p, err := s.practicums.Restore(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "practicum not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not restore practicum"})
		return
	}
	c.JSON(http.StatusOK, p)
}
