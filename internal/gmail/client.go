package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/vipul43/privatezone/internal/retry"
	"github.com/vipul43/privatezone/internal/service"
)

const (
	maxPageSize       = 500 // Gmail's cap on messages.list maxResults
	defaultFilename   = "unnamed_attachment"
	defaultAttachType = "application/octet-stream"

	labelUnread    = "UNREAD"
	labelImportant = "IMPORTANT"
)

// htmlCleaner undoes the entity and percent escaping that breaks display
// while leaving markup alone.
var htmlCleaner = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&apos;", "'",
	"%20", " ",
	"%3A", ":",
	"%2F", "/",
	"%3F", "?",
	"%3D", "=",
	"%26", "&",
)

// Client is the Gmail implementation of service.MailProvider
type Client struct {
	opts   []option.ClientOption
	retry  retry.Policy
	logger *zap.Logger
}

// NewClient builds a Gmail client. opts are appended to every service
// construction, e.g. option.WithEndpoint in tests.
func NewClient(logger *zap.Logger, opts ...option.ClientOption) *Client {
	return &Client{
		opts:   opts,
		retry:  retry.Default,
		logger: logger,
	}
}

func (c *Client) service(ctx context.Context, accessToken string) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}
	opts := append([]option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(token))}, c.opts...)

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return svc, nil
}

// ListMessages lists up to limit message IDs matching query, newest first,
// then fetches each one in full. A message that cannot be fetched is logged
// and left out.
func (c *Client) ListMessages(ctx context.Context, accessToken, query string, limit int) ([]service.RemoteMessage, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	ids, err := c.listMessageIDs(ctx, svc, query, limit)
	if err != nil {
		return nil, err
	}

	messages := make([]service.RemoteMessage, 0, len(ids))
	for _, id := range ids {
		var full *gmail.Message
		err := c.retry.Do(ctx, func() error {
			var err error
			full, err = svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if err := classify("get message", err); errors.Is(err, service.ErrReauthorizationRequired) {
				return nil, err
			}
			c.logger.Warn("failed to get message", zap.String("provider_id", id), zap.Error(err))
			continue
		}
		messages = append(messages, c.parseMessage(full))
	}

	c.logger.Debug("gmail messages fetched", zap.Int("listed", len(ids)), zap.Int("fetched", len(messages)))
	return messages, nil
}

func (c *Client) listMessageIDs(ctx context.Context, svc *gmail.Service, query string, limit int) ([]string, error) {
	var ids []string
	pageToken := ""
	for len(ids) < limit {
		pageSize := limit - len(ids)
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}

		call := svc.Users.Messages.List("me").Q(query).MaxResults(int64(pageSize)).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		var resp *gmail.ListMessagesResponse
		err := c.retry.Do(ctx, func() error {
			var err error
			resp, err = call.Do()
			return err
		})
		if err != nil {
			return nil, classify("list messages", err)
		}

		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" || len(resp.Messages) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}

	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// classify marks a rejected access token as needing reauthorization
func classify(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s: %w", service.ErrReauthorizationRequired, op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// GetAttachment downloads one attachment's bytes
func (c *Client) GetAttachment(ctx context.Context, accessToken, messageID, attachmentID string) ([]byte, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	var body *gmail.MessagePartBody
	err = c.retry.Do(ctx, func() error {
		var err error
		body, err = svc.Users.Messages.Attachments.Get("me", messageID, attachmentID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, classify("get attachment", err)
	}

	data, err := decodeBase64URL(body.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode attachment: %w", err)
	}
	return data, nil
}

// parseMessage flattens a full-format message
func (c *Client) parseMessage(msg *gmail.Message) service.RemoteMessage {
	remote := service.RemoteMessage{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		Labels:   msg.LabelIds,
		IsRead:   !hasLabel(msg.LabelIds, labelUnread),
	}
	remote.IsImportant = hasLabel(msg.LabelIds, labelImportant)
	if msg.Payload == nil {
		return remote
	}

	var dateHeader string
	for _, header := range msg.Payload.Headers {
		switch strings.ToLower(header.Name) {
		case "subject":
			remote.Subject = header.Value
		case "from":
			remote.From = header.Value
		case "to":
			remote.To = header.Value
		case "cc":
			remote.CC = header.Value
		case "bcc":
			remote.BCC = header.Value
		case "date":
			dateHeader = header.Value
		}
	}
	remote.Date = c.messageDate(msg, dateHeader)

	var textPlain, textHTML string
	remote.Attachments = walkParts(msg.Payload, &textPlain, &textHTML, nil)

	remote.BodyText = textPlain
	remote.Body = textPlain
	if textHTML != "" {
		remote.Body = htmlCleaner.Replace(textHTML)
	}
	return remote
}

// messageDate prefers the Date header and falls back to Gmail's internal date
func (c *Client) messageDate(msg *gmail.Message, header string) time.Time {
	if header != "" {
		parsed, err := parseEmailDate(header)
		if err == nil && parsed.Unix() >= 0 {
			return parsed
		}
		c.logger.Debug("unparseable Date header, using internal date", zap.String("provider_id", msg.Id), zap.String("date", header))
	}
	if msg.InternalDate > 0 {
		return time.UnixMilli(msg.InternalDate).UTC()
	}
	return time.Time{}
}

// walkParts collects attachments depth-first and records the first plain
// and HTML bodies found.
func walkParts(part *gmail.MessagePart, textPlain, textHTML *string, attachments []service.RemoteAttachment) []service.RemoteAttachment {
	if part == nil {
		return attachments
	}

	if isAttachment(part) {
		return append(attachments, toAttachment(part))
	}

	if part.Body != nil && part.Body.Data != "" {
		if decoded, err := decodeBase64URL(part.Body.Data); err == nil {
			switch part.MimeType {
			case "text/plain":
				if *textPlain == "" {
					*textPlain = string(decoded)
				}
			case "text/html":
				if *textHTML == "" {
					*textHTML = string(decoded)
				}
			}
		}
	}

	for _, child := range part.Parts {
		attachments = walkParts(child, textPlain, textHTML, attachments)
	}
	return attachments
}

func isAttachment(part *gmail.MessagePart) bool {
	return part.Filename != "" || (part.Body != nil && part.Body.AttachmentId != "")
}

func toAttachment(part *gmail.MessagePart) service.RemoteAttachment {
	attachment := service.RemoteAttachment{
		Filename: part.Filename,
		MimeType: part.MimeType,
	}
	if attachment.Filename == "" {
		attachment.Filename = defaultFilename
	}
	if attachment.MimeType == "" {
		attachment.MimeType = defaultAttachType
	}
	if part.Body != nil {
		attachment.AttachmentID = part.Body.AttachmentId
		attachment.Size = part.Body.Size
	}

	for _, header := range part.Headers {
		switch strings.ToLower(header.Name) {
		case "content-id":
			attachment.ContentID = strings.Trim(strings.TrimSpace(header.Value), "<>")
		case "content-disposition":
			if strings.Contains(strings.ToLower(header.Value), "inline") {
				attachment.Inline = true
			}
		}
	}
	return attachment
}

func hasLabel(labels []string, want string) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}

// decodeBase64URL accepts Gmail's base64url data with or without padding
func decodeBase64URL(data string) ([]byte, error) {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return decoded, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
}

// parseEmailDate returns the Date header as UTC
func parseEmailDate(dateStr string) (time.Time, error) {
	formats := []string{
		time.RFC1123Z,
		time.RFC1123,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
		"2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04 -0700",
		time.RFC3339,
	}

	dateStr = strings.TrimSpace(dateStr)
	if idx := strings.Index(dateStr, " ("); idx != -1 {
		dateStr = dateStr[:idx]
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}
