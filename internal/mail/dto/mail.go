package dto

import (
	"mime/multipart"

	maildomain "mailbridge/internal/mail/domain"
)

type SendEmailRequest struct {
	To         string                `form:"to" binding:"required,email"`
	Subject    string                `form:"subject"`
	Body       string                `form:"body"`
	Attachment *multipart.FileHeader `form:"attachment"`
}

type BulkSendRequest struct {
	Subject string                `form:"subject"`
	Body    string                `form:"body"`
	File    *multipart.FileHeader `form:"file" binding:"required"`
}

type SentMessagesResponse struct {
	Items  []*maildomain.SentMessage `json:"items"`
	Limit  int                       `json:"limit"`
	Offset int                       `json:"offset"`
	Total  int64                     `json:"total"`
}

type InboundMessagesResponse struct {
	Items  []*maildomain.InboundMessage `json:"items"`
	Limit  int                          `json:"limit"`
	Offset int                          `json:"offset"`
	Total  int64                        `json:"total"`
}

type WatchResponse struct {
	HistoryID uint64 `json:"history_id"`
}
