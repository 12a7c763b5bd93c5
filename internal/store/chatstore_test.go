package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridoc-ai/compliance-rag/internal/domain/entities"
)

func TestChatStore_CreateSessionAssignsIDAndDocument(t *testing.T) {
	s := NewChatStore()
	sess := s.CreateSession("doc_1")
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "doc_1", sess.DocumentID)
}

func TestChatStore_GetSessionReturnsCreatedSession(t *testing.T) {
	s := NewChatStore()
	created := s.CreateSession("doc_1")

	got, ok := s.GetSession(created.ID)
	require.True(t, ok)
	assert.Equal(t, created.DocumentID, got.DocumentID)
}

func TestChatStore_GetSessionMissingReturnsFalse(t *testing.T) {
	s := NewChatStore()
	_, ok := s.GetSession("nope")
	assert.False(t, ok)
}

func TestChatStore_SaveSessionPersistsAppendedMessages(t *testing.T) {
	s := NewChatStore()
	sess := s.CreateSession("doc_1")
	sess.Append(entities.RoleUser, "how often must passwords rotate?")
	sess.Append(entities.RoleAssistant, "every ninety days")

	require.NoError(t, s.SaveSession(sess))

	got, ok := s.GetSession(sess.ID)
	require.True(t, ok)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "every ninety days", got.Messages[1].Content)
}

func TestChatStore_SessionsAreIndependent(t *testing.T) {
	s := NewChatStore()
	a := s.CreateSession("doc_a")
	b := s.CreateSession("doc_b")
	assert.NotEqual(t, a.ID, b.ID)
}
