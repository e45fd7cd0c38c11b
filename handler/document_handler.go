package handler

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

var contentTypes = map[string]string{
	".pdf":      "application/pdf",
	".txt":      "text/plain; charset=utf-8",
	".md":       "text/markdown; charset=utf-8",
	".markdown": "text/markdown; charset=utf-8",
}

type DocumentHandler struct {
	uploadDir string
}

func NewDocumentHandler(uploadDir string) *DocumentHandler {
	return &DocumentHandler{
		uploadDir: uploadDir,
	}
}

// ServeDocument serves a stored document by its original name. Stored
// files carry an upload timestamp suffix, so the name is resolved
// against the upload directory first.
func (h *DocumentHandler) ServeDocument(c *gin.Context) {
	requestedName := c.Query("file")
	if requestedName == "" {
		c.String(http.StatusBadRequest, "File parameter is required")
		return
	}
	if strings.Contains(requestedName, "/") || strings.Contains(requestedName, "\\") {
		c.String(http.StatusBadRequest, "Invalid file name")
		return
	}

	ext := strings.ToLower(filepath.Ext(requestedName))
	contentType, ok := contentTypes[ext]
	if !ok {
		c.String(http.StatusBadRequest, "Unsupported file type")
		return
	}

	actualFile, err := h.findFileWithTimestamp(requestedName, ext)
	if err != nil {
		c.String(http.StatusNotFound, "File not found")
		return
	}

	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", requestedName))
	c.File(filepath.Join(h.uploadDir, actualFile))
}

func (h *DocumentHandler) findFileWithTimestamp(requestedName, ext string) (string, error) {
	files, err := os.ReadDir(h.uploadDir)
	if err != nil {
		return "", err
	}

	baseName := strings.TrimSuffix(requestedName, ext)
	var latest string
	var latestTs int64 = -1
	for _, file := range files {
		name := file.Name()
		if strings.ToLower(filepath.Ext(name)) != ext {
			continue
		}
		nameWithoutExt := strings.TrimSuffix(name, filepath.Ext(name))
		if nameWithoutExt == baseName {
			return name, nil
		}
		lastUnderscoreIdx := strings.LastIndex(nameWithoutExt, "_")
		if lastUnderscoreIdx == -1 {
			continue
		}
		if nameWithoutExt[:lastUnderscoreIdx] != baseName {
			continue
		}
		ts, err := strconv.ParseInt(nameWithoutExt[lastUnderscoreIdx+1:], 10, 64)
		if err != nil {
			continue
		}
		if ts > latestTs {
			latestTs = ts
			latest = name
		}
	}
	if latest == "" {
		return "", errors.New("file not found")
	}
	return latest, nil
}
