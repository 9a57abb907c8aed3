package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-chat-go/internal/model"
	"clinic-chat-go/pkg/es"
	"clinic-chat-go/pkg/llm"
)

type memStore struct {
	objects map[string]string
	expiry  time.Duration
}

func (m *memStore) Put(_ context.Context, name, _ string, data []byte) error {
	m.objects[name] = string(data)
	return nil
}

func (m *memStore) PresignedURL(_ context.Context, name string, expiry time.Duration) (string, error) {
	m.expiry = expiry
	return "http://minio.local/" + name + "?sig=x", nil
}

func TestTranscriptService_Export(t *testing.T) {
	patients := janeFixture()
	res := &stubResolver{outcome: llm.Outcome{Kind: llm.OutcomeSuccess, Reply: "Tuesday at 3pm."}}
	chat := NewChatService(patients, &memMessages{}, res, nil)
	_, err := chat.SendMessage(context.Background(), 7, 42, "When is my visit?")
	require.NoError(t, err)

	store := &memStore{objects: map[string]string{}}
	svc := NewTranscriptService(NewPatientService(patients), chat, store).(*transcriptService)
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }

	out, err := svc.Export(context.Background(), 7, 42)
	require.NoError(t, err)
	assert.Equal(t, "transcripts/7/42/1700000000.md", out.Object)
	assert.Equal(t, 2, out.Turns)
	assert.Equal(t, time.Hour, store.expiry)

	body := store.objects[out.Object]
	assert.Contains(t, body, "# Conversation: Jane")
	assert.Contains(t, body, "When is my visit?")
	assert.Contains(t, body, "Tuesday at 3pm.")
}

func TestTranscriptService_Unavailable(t *testing.T) {
	svc := NewTranscriptService(NewPatientService(janeFixture()), nil, nil)
	_, err := svc.Export(context.Background(), 7, 42)
	assert.ErrorIs(t, err, ErrUnavailable)
}

type stubSearcher struct{ got es.SearchQuery }

func (s *stubSearcher) SearchTurns(_ context.Context, q es.SearchQuery) ([]model.ChatSearchHit, error) {
	s.got = q
	return []model.ChatSearchHit{{TurnID: 1, Content: "tooth"}}, nil
}

func TestSearchService(t *testing.T) {
	_, err := NewSearchService(nil).SearchTurns(context.Background(), 7, 0, "x")
	assert.ErrorIs(t, err, ErrUnavailable)

	st := &stubSearcher{}
	svc := NewSearchService(st)
	_, err = svc.SearchTurns(context.Background(), 7, 0, "  ")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	hits, err := svc.SearchTurns(context.Background(), 7, 42, " tooth ")
	require.NoError(t, err)
	assert.Len(t, hits, 1)
	assert.Equal(t, es.SearchQuery{OwnerID: 7, PatientID: 42, Text: "tooth", Size: 20}, st.got)
}
