package mailbox

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/notification-center/internal/model"
)

// maxBodyLen caps the body kept per notification.
const maxBodyLen = 4096

// toNotification maps one IMAP message onto a notification.
func toNotification(uid imap.UID, env *imap.Envelope, flags []imap.Flag, raw []byte) model.Notification {
	n := model.Notification{
		ID: strconv.FormatUint(uint64(uid), 10),
	}

	if env != nil {
		n.Title = env.Subject
		n.CreatedAt = env.Date
		if len(env.From) > 0 {
			from := env.From[0]
			if from.Name != "" {
				n.Category = from.Name
			} else {
				n.Category = from.Addr()
			}
		}
		if env.MessageID != "" {
			n.Link = "mid:" + env.MessageID
		}
	}

	for _, f := range flags {
		switch f {
		case imap.FlagSeen:
			n.IsRead = true
		case imap.FlagFlagged:
			n.IsPinned = true
		}
	}

	if raw != nil {
		n.Body = parseTextBody(raw)
	}

	return n
}

// parseTextBody extracts the text/plain part of an RFC 5322 message,
// falling back to text/html and then to the raw bytes.
func parseTextBody(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return truncate(string(raw))
	}
	defer mr.Close()

	var textBody, htmlBody string
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain") && textBody == "":
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
			htmlBody = string(body)
		}
	}

	if textBody != "" {
		return truncate(textBody)
	}
	return truncate(htmlBody)
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxBodyLen {
		return s
	}
	return s[:maxBodyLen]
}
