package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vipul43/privatezone/internal/models"
)

func newTestMailSync(store *memStore, mail *mockMail) *MailSync {
	s := NewMailSync(staticTokens{token: "access"}, store, mail, zap.NewNop())
	s.now = func() time.Time { return baseTime }
	return s
}

func sampleMessage() RemoteMessage {
	return RemoteMessage{
		ID:       "msg-1",
		ThreadID: "thread-1",
		Subject:  "Invoice",
		From:     "billing@example.com",
		To:       "me@example.com",
		Date:     baseTime.Add(-time.Hour),
		Body:     "<p>Due soon</p>",
		BodyText: "Due soon",
		Snippet:  "Due soon",
		Labels:   []string{"INBOX", "UNREAD"},
		Attachments: []RemoteAttachment{
			{AttachmentID: "att-small", Filename: "invoice.pdf", MimeType: "application/pdf", Size: 2048},
			{AttachmentID: "att-big", Filename: "scan.tiff", MimeType: "image/tiff", Size: 5 * 1024 * 1024},
			{AttachmentID: "att-logo", Filename: "logo.png", MimeType: "image/png", Size: 512, ContentID: "logo", Inline: true},
		},
	}
}

func TestMailSync_LimitDefaultsAndCap(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "default", limit: 0, want: DefaultMessageLimit},
		{name: "negative", limit: -3, want: DefaultMessageLimit},
		{name: "passthrough", limit: 20, want: 20},
		{name: "capped", limit: 10000, want: MaxMessageLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got int
			mail := &mockMail{
				listMessagesFunc: func(ctx context.Context, accessToken, query string, limit int) ([]RemoteMessage, error) {
					got = limit
					return nil, nil
				},
			}
			_, err := newTestMailSync(newMemStore(), mail).SyncMessages(context.Background(), "user-1", "", tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMailSync_InsertsWithAttachments(t *testing.T) {
	store := newMemStore()
	var downloaded []string
	mail := &mockMail{
		listMessagesFunc: func(ctx context.Context, accessToken, query string, limit int) ([]RemoteMessage, error) {
			assert.Equal(t, "from:billing", query)
			return []RemoteMessage{sampleMessage()}, nil
		},
		getAttachmentFunc: func(ctx context.Context, accessToken, messageID, attachmentID string) ([]byte, error) {
			downloaded = append(downloaded, attachmentID)
			if attachmentID == "att-logo" {
				return nil, errors.New("quota exceeded")
			}
			return []byte("bytes-" + attachmentID), nil
		},
	}

	result, err := newTestMailSync(store, mail).SyncMessages(context.Background(), "user-1", "from:billing", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)

	require.Len(t, store.emails, 1)
	var email models.Email
	for _, e := range store.emails {
		email = e
	}
	assert.Equal(t, "Invoice", email.Subject)
	assert.Equal(t, "INBOX,UNREAD", email.Labels)
	assert.Equal(t, models.EmailTypeReceived, email.EmailType)
	assert.Equal(t, models.SourceProvider, email.Source)

	assert.ElementsMatch(t, []string{"att-small", "att-logo"}, downloaded, "large attachments are not downloaded")
	require.Len(t, store.attachments, 3)
	for _, a := range store.attachments {
		switch a.ProviderAttachmentID {
		case "att-small":
			assert.Equal(t, []byte("bytes-att-small"), a.Data)
		case "att-big":
			assert.Nil(t, a.Data)
		case "att-logo":
			assert.Nil(t, a.Data, "failed download stores metadata only")
			assert.True(t, a.IsInline)
			assert.Equal(t, "logo", a.ContentID)
		}
	}
}

func TestMailSync_ExistingUpdatesFlagsOnly(t *testing.T) {
	store := newMemStore()
	msg := sampleMessage()
	msg.Attachments = nil
	mail := &mockMail{
		listMessagesFunc: func(ctx context.Context, accessToken, query string, limit int) ([]RemoteMessage, error) {
			return []RemoteMessage{msg}, nil
		},
	}
	s := newTestMailSync(store, mail)

	_, err := s.SyncMessages(context.Background(), "user-1", "", 0)
	require.NoError(t, err)

	// Unchanged flags write nothing
	writes := store.writeCount()
	result, err := s.SyncMessages(context.Background(), "user-1", "", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Unchanged)
	assert.Equal(t, writes, store.writeCount())

	msg.Subject = "Edited subject is ignored"
	msg.IsRead = true
	msg.Labels = []string{"INBOX"}
	result, err = s.SyncMessages(context.Background(), "user-1", "", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	for _, e := range store.emails {
		assert.Equal(t, "Invoice", e.Subject)
		assert.True(t, e.IsRead)
		assert.Equal(t, "INBOX", e.Labels)
	}
}

func TestMailSync_AttachmentsDedupedAcrossPasses(t *testing.T) {
	store := newMemStore()
	downloads := 0
	mail := &mockMail{
		listMessagesFunc: func(ctx context.Context, accessToken, query string, limit int) ([]RemoteMessage, error) {
			return []RemoteMessage{sampleMessage()}, nil
		},
		getAttachmentFunc: func(ctx context.Context, accessToken, messageID, attachmentID string) ([]byte, error) {
			downloads++
			return []byte("x"), nil
		},
	}
	s := newTestMailSync(store, mail)

	_, err := s.SyncMessages(context.Background(), "user-1", "", 0)
	require.NoError(t, err)
	_, err = s.SyncMessages(context.Background(), "user-1", "", 0)
	require.NoError(t, err)

	assert.Len(t, store.attachments, 3)
	assert.Equal(t, 2, downloads)
}

func TestMailSync_MissingIDSkipped(t *testing.T) {
	store := newMemStore()
	good := sampleMessage()
	good.Attachments = nil
	mail := &mockMail{
		listMessagesFunc: func(ctx context.Context, accessToken, query string, limit int) ([]RemoteMessage, error) {
			return []RemoteMessage{{Subject: "no id"}, good}, nil
		},
	}

	result, err := newTestMailSync(store, mail).SyncMessages(context.Background(), "user-1", "", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Created)
}

func TestMailSync_AttachmentContent(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	require.NoError(t, store.CreateEmail(ctx, &models.Email{ID: "email-1", UserID: "user-1", ProviderID: strPtr("msg-1")}))
	require.NoError(t, store.CreateAttachment(ctx, &models.EmailAttachment{ID: "a-1", EmailID: "email-1", ProviderAttachmentID: "att-1"}))
	require.NoError(t, store.CreateAttachment(ctx, &models.EmailAttachment{ID: "a-2", EmailID: "email-1", ProviderAttachmentID: "att-2", Data: []byte("cached")}))

	fetches := 0
	mail := &mockMail{
		getAttachmentFunc: func(ctx context.Context, accessToken, messageID, attachmentID string) ([]byte, error) {
			fetches++
			assert.Equal(t, "msg-1", messageID)
			assert.Equal(t, "att-1", attachmentID)
			return []byte("fresh"), nil
		},
	}
	s := newTestMailSync(store, mail)

	got, err := s.AttachmentContent(ctx, "user-1", "email-1", "a-2")
	require.NoError(t, err)
	assert.Equal(t, []byte("cached"), got.Data)
	assert.Equal(t, 0, fetches)

	got, err = s.AttachmentContent(ctx, "user-1", "email-1", "a-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), got.Data)
	assert.Equal(t, []byte("fresh"), store.attachments["a-1"].Data, "small content is backfilled")

	_, err = s.AttachmentContent(ctx, "user-1", "email-1", "a-1")
	require.NoError(t, err)
	assert.Equal(t, 1, fetches)

	_, err = s.AttachmentContent(ctx, "someone-else", "email-1", "a-1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMailSync_AttachmentContentLargeNotBackfilled(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	require.NoError(t, store.CreateEmail(ctx, &models.Email{ID: "email-1", UserID: "user-1", ProviderID: strPtr("msg-1")}))
	require.NoError(t, store.CreateAttachment(ctx, &models.EmailAttachment{ID: "a-1", EmailID: "email-1", ProviderAttachmentID: "att-1"}))

	mail := &mockMail{
		getAttachmentFunc: func(ctx context.Context, accessToken, messageID, attachmentID string) ([]byte, error) {
			return make([]byte, 64), nil
		},
	}
	s := newTestMailSync(store, mail)
	s.SetInlineLimit(16)

	got, err := s.AttachmentContent(ctx, "user-1", "email-1", "a-1")
	require.NoError(t, err)
	assert.Len(t, got.Data, 64)
	assert.Nil(t, store.attachments["a-1"].Data)
}
