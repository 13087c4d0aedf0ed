package mailmsg

import (
	"bytes"
	"fmt"
	"io"
	"time"

	maildomain "mailbridge/internal/mail/domain"

	"github.com/emersion/go-message/mail"
)

// Compose builds an RFC 5322 message with an HTML body and optional attachments
func Compose(from *mail.Address, to, subject, body string, attachments []maildomain.Attachment) ([]byte, error) {
	toAddr, err := mail.ParseAddress(to)
	if err != nil {
		toAddr = &mail.Address{Address: to}
	}

	var h mail.Header
	h.SetDate(time.Now())
	if from != nil && from.Address != "" {
		h.SetAddressList("From", []*mail.Address{from})
	}
	h.SetAddressList("To", []*mail.Address{toAddr})
	h.SetSubject(subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("unable to generate message id: %w", err)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("unable to create message writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("unable to create inline part: %w", err)
	}
	var th mail.InlineHeader
	th.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	w, err := tw.CreatePart(th)
	if err != nil {
		return nil, fmt.Errorf("unable to create body part: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return nil, fmt.Errorf("unable to write body: %w", err)
	}
	w.Close()
	tw.Close()

	for _, att := range attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		var ah mail.AttachmentHeader
		ah.SetContentType(contentType, nil)
		ah.SetFilename(att.Filename)
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("unable to create attachment %s: %w", att.Filename, err)
		}
		if _, err := aw.Write(att.Data); err != nil {
			return nil, fmt.Errorf("unable to write attachment %s: %w", att.Filename, err)
		}
		aw.Close()
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("unable to finish message: %w", err)
	}
	return buf.Bytes(), nil
}
