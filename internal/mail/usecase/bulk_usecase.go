package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"

	maildomain "mailbridge/internal/mail/domain"
)

// BulkRow is a recipient row resolved against the shared subject and body
type BulkRow struct {
	Name      string
	Recipient string
	Subject   string
	Body      string
}

// ResolveRow maps a row of cells to a BulkRow by its field count:
// 1 => recipient; 2 => name, recipient; 4 or more => name, recipient, subject, body.
// Blank overrides fall back to the shared values. ok is false for any other shape or a blank recipient.
func ResolveRow(cells []string, sharedSubject, sharedBody string) (BulkRow, bool) {
	row := BulkRow{Subject: sharedSubject, Body: sharedBody}

	switch n := len(cells); {
	case n == 1:
		row.Recipient = strings.TrimSpace(cells[0])
	case n == 2:
		row.Name = strings.TrimSpace(cells[0])
		row.Recipient = strings.TrimSpace(cells[1])
	case n >= 4:
		row.Name = strings.TrimSpace(cells[0])
		row.Recipient = strings.TrimSpace(cells[1])
		if s := strings.TrimSpace(cells[2]); s != "" {
			row.Subject = s
		}
		if b := strings.TrimSpace(cells[3]); b != "" {
			row.Body = b
		}
	default:
		return BulkRow{}, false
	}

	if row.Recipient == "" {
		return BulkRow{}, false
	}
	return row, true
}

// ResolveRows resolves every row, dropping a header row and rows that do not resolve.
// The first row is a header when its recipient cell holds no address.
func ResolveRows(rows [][]string, sharedSubject, sharedBody string) []BulkRow {
	resolved := make([]BulkRow, 0, len(rows))
	for i, cells := range rows {
		row, ok := ResolveRow(cells, sharedSubject, sharedBody)
		if !ok {
			continue
		}
		if i == 0 && !strings.Contains(row.Recipient, "@") {
			continue
		}
		resolved = append(resolved, row)
	}
	return resolved
}

// DispatchBulk folds the valid rows into a BulkResult. A row's send or persist error
// marks its recipient failed and the next row is processed.
func (u *mailUsecase) DispatchBulk(ctx context.Context, rows [][]string, sharedSubject, sharedBody string) (*BulkResult, error) {
	if strings.TrimSpace(sharedSubject) == "" || strings.TrimSpace(sharedBody) == "" {
		return nil, fmt.Errorf("%w: subject and body are required", maildomain.ErrValidation)
	}

	result := &BulkResult{FailedRecipients: []string{}}
	failed := make(map[string]struct{})

	for _, row := range ResolveRows(rows, sharedSubject, sharedBody) {
		result.Attempted++

		if err := u.dispatchRow(ctx, row); err != nil {
			log.Printf("[Bulk] Failed for %s: %v", row.Recipient, err)
			if _, seen := failed[row.Recipient]; !seen {
				failed[row.Recipient] = struct{}{}
				result.FailedRecipients = append(result.FailedRecipients, row.Recipient)
			}
		}
	}

	log.Printf("[Bulk] Attempted %d rows, %d failed recipients", result.Attempted, len(result.FailedRecipients))
	return result, nil
}

func (u *mailUsecase) dispatchRow(ctx context.Context, row BulkRow) error {
	if err := u.transport.Send(ctx, row.Recipient, row.Subject, row.Body, nil); err != nil {
		return fmt.Errorf("%w: %v", maildomain.ErrTransport, err)
	}
	return u.store.InsertSentRecord(ctx, u.newSentRecord(row.Recipient, row.Subject, row.Body, ""))
}
