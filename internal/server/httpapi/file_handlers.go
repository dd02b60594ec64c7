package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dmitrijs2005/filevault/internal/common"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// uploadFileHandler handles POST /file/upload (multipart, field "file").
func (s *Server) uploadFileHandler(c echo.Context) error {
	ctx := c.Request().Context()
	identity := identityFromContext(c)

	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "file is required"})
	}

	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "file is required"})
	}
	defer src.Close()

	rec, err := s.files.Save(ctx, identity.UserID, fh.Filename, fh.Header.Get(echo.HeaderContentType), src, fh.Size)
	if err != nil {
		s.logger.Error(ctx, "upload error", "error", err.Error())
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "upload failed"})
	}

	return c.JSON(http.StatusCreated, rec)
}

// listFilesHandler handles GET /file/list?page=&list_size=.
func (s *Server) listFilesHandler(c echo.Context) error {
	ctx := c.Request().Context()
	identity := identityFromContext(c)

	pageSize := defaultPageSize
	if v, err := strconv.Atoi(c.QueryParam("list_size")); err == nil {
		pageSize = min(maxPageSize, max(1, v))
	}

	page := 1
	if v, err := strconv.Atoi(c.QueryParam("page")); err == nil {
		page = max(1, v)
	}

	result, err := s.files.List(ctx, identity.UserID, page, pageSize)
	if err != nil {
		s.logger.Error(ctx, "list error", "error", err.Error())
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "listing failed"})
	}

	return c.JSON(http.StatusOK, result)
}

// getFileHandler handles GET /file/:id (metadata only).
func (s *Server) getFileHandler(c echo.Context) error {
	ctx := c.Request().Context()
	identity := identityFromContext(c)

	rec, err := s.files.Get(ctx, identity.UserID, c.Param("id"))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"message": "not found"})
		}
		s.logger.Error(ctx, "get error", "error", err.Error())
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "lookup failed"})
	}

	return c.JSON(http.StatusOK, rec)
}

// downloadFileHandler handles GET /file/download/:id and streams the
// contents from object storage.
func (s *Server) downloadFileHandler(c echo.Context) error {
	ctx := c.Request().Context()
	identity := identityFromContext(c)

	rec, body, err := s.files.Download(ctx, identity.UserID, c.Param("id"))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"message": "not found"})
		}
		s.logger.Error(ctx, "download error", "error", err.Error())
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "download failed"})
	}
	defer body.Close()

	contentType := rec.MimeType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", rec.Name))

	return c.Stream(http.StatusOK, contentType, body)
}

// updateFileHandler handles PUT /file/update/:id (multipart, field "file").
func (s *Server) updateFileHandler(c echo.Context) error {
	ctx := c.Request().Context()
	identity := identityFromContext(c)

	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "file is required"})
	}

	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "file is required"})
	}
	defer src.Close()

	rec, err := s.files.Update(ctx, identity.UserID, c.Param("id"), fh.Filename, fh.Header.Get(echo.HeaderContentType), src, fh.Size)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"message": "not found"})
		}
		s.logger.Error(ctx, "update error", "error", err.Error())
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "update failed"})
	}

	return c.JSON(http.StatusOK, rec)
}

// deleteFileHandler handles DELETE /file/delete/:id. A missing file is not
// an error, the response just reports ok=false.
func (s *Server) deleteFileHandler(c echo.Context) error {
	ctx := c.Request().Context()
	identity := identityFromContext(c)

	err := s.files.Delete(ctx, identity.UserID, c.Param("id"))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return c.JSON(http.StatusOK, map[string]bool{"ok": false})
		}
		s.logger.Error(ctx, "delete error", "error", err.Error())
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "delete failed"})
	}

	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}
