package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/DariusIMP/publish3-backend/internal/common"
	"github.com/DariusIMP/publish3-backend/internal/server/services"
	"github.com/gin-gonic/gin"
)

func errorBody(msg string) gin.H {
	return gin.H{"error": msg}
}

// fail maps a service error to a status. Only validation failures carry
// their detail back to the client.
func (s *Server) fail(c *gin.Context, err error) {
	var fe *services.FieldError
	switch {
	case errors.As(err, &fe):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "field": fe.Field, "reason": fe.Reason})
		return
	case errors.Is(err, common.ErrValidation):
		c.JSON(http.StatusBadRequest, errorBody("validation failed"))
		return
	case errors.Is(err, common.ErrorNotFound):
		c.JSON(http.StatusNotFound, errorBody("publication not found"))
		return
	case errors.Is(err, common.ErrorUnauthorized):
		c.JSON(http.StatusUnauthorized, errorBody("unauthorized"))
		return
	}

	fields := []any{"request_id", c.GetString(requestIDKey), "error", err}
	var ce *services.CommitError
	if errors.As(err, &ce) {
		fields = append(fields, "publication_id", ce.PublicationID, "state", ce.State, "step", ce.Step)
	}
	s.logger.Error(c.Request.Context(), "request failed", fields...)

	status := http.StatusInternalServerError
	if common.IsRetryable(err) {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, errorBody("internal server error"))
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) createPublication(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes)

	var form services.Form
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("malformed multipart form"))
		return
	}

	var upload *services.Upload
	fh, err := c.FormFile("file")
	switch {
	case err == nil:
		f, err := fh.Open()
		if err != nil {
			s.fail(c, err)
			return
		}
		defer f.Close()
		upload = &services.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Content:     f,
		}
	case errors.Is(err, http.ErrMissingFile):
	default:
		c.JSON(http.StatusBadRequest, errorBody("malformed multipart form"))
		return
	}

	res, err := s.publications.Commit(c.Request.Context(), c.GetString(userIDKey), form, upload)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) getPublication(c *gin.Context) {
	p, err := s.publications.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) listPublications(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(services.DefaultPageSize)))
	page, limit = services.Paging(page, limit)

	list, err := s.publications.List(c.Request.Context(), page, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"publications": list, "page": page, "limit": limit})
}

func (s *Server) getAuthors(c *gin.Context) {
	authors, err := s.publications.Authors(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, authors)
}

func (s *Server) getCitations(c *gin.Context) {
	citations, err := s.publications.Citations(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, citations)
}
