package delivery

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"

	maildomain "mailbridge/internal/mail/domain"
	maildto "mailbridge/internal/mail/dto"
	"mailbridge/internal/mail/usecase"
	"mailbridge/pkg/sheet"

	"github.com/gin-gonic/gin"
)

type MailHandler struct {
	mailUsecase    usecase.MailUsecase
	maxUploadBytes int64
}

func NewMailHandler(mailUsecase usecase.MailUsecase, maxUploadBytes int64) *MailHandler {
	return &MailHandler{
		mailUsecase:    mailUsecase,
		maxUploadBytes: maxUploadBytes,
	}
}

// POST /api/mail/send
func (h *MailHandler) SendEmail(c *gin.Context) {
	var req maildto.SendEmailRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sendReq := usecase.SendRequest{
		To:      req.To,
		Subject: req.Subject,
		Body:    req.Body,
	}
	if req.Attachment != nil {
		data, err := h.readUpload(req.Attachment)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sendReq.Attachment = &maildomain.Attachment{
			Filename:    req.Attachment.Filename,
			ContentType: req.Attachment.Header.Get("Content-Type"),
			Data:        data,
		}
	}

	sent, err := h.mailUsecase.Send(c.Request.Context(), sendReq)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, sent)
}

// POST /api/mail/bulk
// Row failures are reported in the body; the status is 200 unless the request itself is invalid.
func (h *MailHandler) SendBulk(c *gin.Context) {
	var req maildto.BulkSendRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.maxUploadBytes > 0 && req.File.Size > h.maxUploadBytes {
		writeError(c, fmt.Errorf("%w: file exceeds %d bytes", maildomain.ErrValidation, h.maxUploadBytes))
		return
	}

	f, err := req.File.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open file"})
		return
	}
	defer f.Close()

	rows, err := sheet.ReadRows(req.File.Filename, f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.mailUsecase.DispatchBulk(c.Request.Context(), rows, req.Subject, req.Body)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GET /api/mail/sync
func (h *MailHandler) Synchronize(c *gin.Context) {
	result, err := h.mailUsecase.Synchronize(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GET /api/mail/sent?limit=20&offset=0
func (h *MailHandler) ListSent(c *gin.Context) {
	limit, offset := pagination(c)
	items, total, err := h.mailUsecase.ListSent(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, maildto.SentMessagesResponse{
		Items:  items,
		Limit:  limit,
		Offset: offset,
		Total:  total,
	})
}

// GET /api/mail/inbound?limit=20&offset=0
func (h *MailHandler) ListInbound(c *gin.Context) {
	limit, offset := pagination(c)
	items, total, err := h.mailUsecase.ListInbound(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, maildto.InboundMessagesResponse{
		Items:  items,
		Limit:  limit,
		Offset: offset,
		Total:  total,
	})
}

// GET /api/mail/sent/:id/attachment
func (h *MailHandler) GetSentAttachment(c *gin.Context) {
	record, body, err := h.mailUsecase.OpenSentAttachment(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	defer body.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.AttachmentName))
	c.DataFromReader(http.StatusOK, -1, "application/octet-stream", body, nil)
}

// POST /api/mail/watch
func (h *MailHandler) WatchMailbox(c *gin.Context) {
	historyID, err := h.mailUsecase.WatchMailbox(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, maildto.WatchResponse{HistoryID: historyID})
}

func (h *MailHandler) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
		return nil, fmt.Errorf("attachment exceeds %d bytes", h.maxUploadBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("unable to open attachment: %w", err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func pagination(c *gin.Context) (int, int) {
	limit := 20
	offset := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 200 {
		limit = 200
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, maildomain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, maildomain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, maildomain.ErrWatchUnsupported):
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
	case errors.Is(err, maildomain.ErrTransport), errors.Is(err, maildomain.ErrFallback):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		log.Printf("[HTTP] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
