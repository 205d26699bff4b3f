package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat-go/internal/model"
)

func msg(role, content string) model.ChatMessage {
	return model.ChatMessage{Role: role, Content: content, Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func conversationRepos(t *testing.T, limit int) map[string]ConversationRepository {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]ConversationRepository{
		"redis":  NewConversationRepository(client, limit),
		"memory": NewMemoryConversationRepository(limit),
	}
}

func TestConversationRepository_AppendAndHistory(t *testing.T) {
	for name, repo := range conversationRepos(t, 20) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			empty, err := repo.History(ctx, "s1")
			require.NoError(t, err)
			assert.Empty(t, empty)

			require.NoError(t, repo.Append(ctx, "s1", msg("user", "q1"), msg("assistant", "a1")))
			require.NoError(t, repo.Append(ctx, "s1", msg("user", "q2")))
			require.NoError(t, repo.Append(ctx, "s2", msg("user", "other")))
			require.NoError(t, repo.Append(ctx, "s1"))

			h, err := repo.History(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, h, 3)
			assert.Equal(t, "q1", h[0].Content)
			assert.Equal(t, "assistant", h[1].Role)
			assert.Equal(t, "q2", h[2].Content)
			assert.True(t, h[0].Timestamp.Equal(msg("", "").Timestamp))
		})
	}
}

func TestConversationRepository_KeepsMostRecent(t *testing.T) {
	for name, repo := range conversationRepos(t, 4) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 10; i++ {
				require.NoError(t, repo.Append(ctx, "s", msg("user", fmt.Sprintf("m%d", i))))
			}
			h, err := repo.History(ctx, "s")
			require.NoError(t, err)
			require.Len(t, h, 4)
			assert.Equal(t, "m6", h[0].Content)
			assert.Equal(t, "m9", h[3].Content)
		})
	}
}

func TestRedisConversationRepository_SetsTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	repo := NewConversationRepository(client, 0)
	require.NoError(t, repo.Append(context.Background(), "s", msg("user", "hi")))
	assert.Equal(t, conversationTTL, mr.TTL(conversationKey("s")))
}

func TestMemoryDocumentRepository(t *testing.T) {
	repo := NewMemoryDocumentRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &model.DocumentRecord{SessionID: "a", FileName: "one.pdf"}))
	require.NoError(t, repo.Create(ctx, &model.DocumentRecord{SessionID: "b", FileName: "x.pdf"}))
	rec := &model.DocumentRecord{SessionID: "a", FileName: "two.pdf"}
	require.NoError(t, repo.Create(ctx, rec))
	assert.EqualValues(t, 3, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := repo.FindBySession(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "two.pdf", got[0].FileName)
	assert.Equal(t, "one.pdf", got[1].FileName)

	none, err := repo.FindBySession(ctx, "zzz")
	require.NoError(t, err)
	assert.Empty(t, none)
}
