package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"doc-assistant/service"
	"doc-assistant/types"
)

type UploadHandler struct {
	fileService *service.FileService
	maxSize     int64
}

func NewUploadHandler(fileService *service.FileService, maxSize int64) *UploadHandler {
	return &UploadHandler{
		fileService: fileService,
		maxSize:     maxSize,
	}
}

// UploadDocumentHandler accepts a multipart upload and streams processing
// progress back as server-sent events, ending with the final result.
func (h *UploadHandler) UploadDocumentHandler(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  "error",
			Message: "Invalid file",
		})
		return
	}
	defer file.Close()

	var req types.UploadRequest
	if metadata := c.Request.FormValue("metadata"); metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &req); err != nil {
			c.JSON(http.StatusBadRequest, types.DataResponse{
				Status:  "error",
				Message: "Invalid metadata",
			})
			return
		}
	}

	if header.Size > h.maxSize {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  "error",
			Message: "File too large",
		})
		return
	}

	statusChan := make(chan types.ProcessingDocumentStatus)
	type uploadOutcome struct {
		res *types.UploadResponse
		err error
	}
	outcomeChan := make(chan uploadOutcome, 1)
	go func() {
		defer close(statusChan)
		res, err := h.fileService.UploadFile(c.Request.Context(), req, header, statusChan)
		outcomeChan <- uploadOutcome{res: res, err: err}
	}()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case status, ok := <-statusChan:
			if !ok {
				outcome := <-outcomeChan
				h.sendFinal(c, outcome.res, outcome.err)
				return
			}
			jsonStatus, err := json.Marshal(status)
			if err != nil {
				continue
			}
			c.SSEvent("message", string(jsonStatus))
			c.Writer.Flush()
		}
	}
}

func (h *UploadHandler) sendFinal(c *gin.Context, res *types.UploadResponse, err error) {
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrNoReadableText) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, types.DataResponse{
			Status:  "error",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{
		Status: "success",
		Data:   res,
	})
}
