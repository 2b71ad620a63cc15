package helpers

import (
	"context"
	"testing"

	"github.com/xiaot623/nudge/internal/domain"
	"github.com/xiaot623/nudge/internal/repository"
)

func NewTestSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

// SeedGroup mirrors a group with the given members, each with one push token
// named "tok-<user>", and a task t1.
func SeedGroup(t *testing.T, s store.Store, groupID, taEmail string, members ...string) {
	t.Helper()
	ctx := context.Background()

	for _, m := range members {
		if err := s.UpsertUser(ctx, &domain.User{UserID: m, Name: m, PushTokens: []string{"tok-" + m}}); err != nil {
			t.Fatalf("UpsertUser %s: %v", m, err)
		}
	}
	if err := s.UpsertGroup(ctx, &domain.Group{GroupID: groupID, Name: groupID, TAEmail: taEmail, Members: members}); err != nil {
		t.Fatalf("UpsertGroup %s: %v", groupID, err)
	}
	if err := s.UpsertTask(ctx, &domain.Task{TaskID: "t1", GroupID: groupID, Title: "Write the report"}); err != nil {
		t.Fatalf("UpsertTask: %v", err)
	}
}
