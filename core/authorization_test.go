package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryAuthorizationStore_PutGetRevoke(t *testing.T) {
	store := NewMemoryAuthorizationStore()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if _, ok, err := store.GetGrant(ctx, "alice", "fitbit"); err != nil || ok {
		t.Fatalf("expected missing grant to be a normal result, got ok=%v err=%v", ok, err)
	}

	stored, err := store.PutGrant(ctx, AuthorizationGrant{
		Username:    " alice ",
		Domain:      "FitBit",
		AccessToken: "tok",
		Extras:      map[string]any{"user_id": "ABC"},
	})
	if err != nil {
		t.Fatalf("put grant: %v", err)
	}
	if stored.Domain != "fitbit" || !stored.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected stored grant %+v", stored)
	}

	got, ok, err := store.GetGrant(ctx, "alice", "fitbit")
	if err != nil || !ok {
		t.Fatalf("expected grant, ok=%v err=%v", ok, err)
	}
	got.Extras["user_id"] = "mutated"
	again, _, _ := store.GetGrant(ctx, "alice", "fitbit")
	if value, _ := again.Extra("user_id"); value != "ABC" {
		t.Fatalf("expected stored extras to be isolated, got %q", value)
	}

	if err := store.RevokeGrant(ctx, "alice", "fitbit"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, ok, _ := store.GetGrant(ctx, "alice", "fitbit"); ok {
		t.Fatalf("expected grant to be revoked")
	}
	if err := store.RevokeGrant(ctx, "alice", "fitbit"); err != nil {
		t.Fatalf("expected revoking a missing grant to be a no-op: %v", err)
	}
}

func TestMemoryAuthorizationStore_ReplacesGrant(t *testing.T) {
	store := NewMemoryAuthorizationStore(testGrant("alice", "fitbit"))
	ctx := context.Background()
	replacement := testGrant("alice", "fitbit")
	replacement.AccessToken = "tok_new"
	if _, err := store.PutGrant(ctx, replacement); err != nil {
		t.Fatalf("put grant: %v", err)
	}
	got, _, _ := store.GetGrant(ctx, "alice", "fitbit")
	if got.AccessToken != "tok_new" {
		t.Fatalf("expected replacement token, got %q", got.AccessToken)
	}
	users, _ := store.ListUsernames(ctx)
	if len(users) != 1 {
		t.Fatalf("expected one user, got %v", users)
	}
}

func TestMemoryAuthorizationStore_ConcurrentReadersSeeWholeGrants(t *testing.T) {
	store := NewMemoryAuthorizationStore(testGrant("alice", "fitbit"))
	ctx := context.Background()
	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for index := 0; index < 100; index++ {
				if worker%2 == 0 {
					grant := testGrant("alice", "fitbit")
					grant.RefreshToken = grant.AccessToken
					_, _ = store.PutGrant(ctx, grant)
					continue
				}
				grant, ok, err := store.GetGrant(ctx, "alice", "fitbit")
				if err != nil || !ok || grant.AccessToken == "" {
					t.Errorf("expected a complete grant, ok=%v err=%v", ok, err)
					return
				}
			}
		}(worker)
	}
	wg.Wait()
}

func TestMemoryAuthorizationStore_ListUsernamesSorted(t *testing.T) {
	store := NewMemoryAuthorizationStore(
		testGrant("carol", "fitbit"),
		testGrant("alice", "fitbit"),
		testGrant("alice", "withings"),
	)
	users, err := store.ListUsernames(context.Background())
	if err != nil {
		t.Fatalf("list usernames: %v", err)
	}
	if len(users) != 2 || users[0] != "alice" || users[1] != "carol" {
		t.Fatalf("unexpected users %v", users)
	}
}

func TestMemoryAuthorizationStore_NilReceiver(t *testing.T) {
	var store *MemoryAuthorizationStore
	ctx := context.Background()
	if _, ok, err := store.GetGrant(ctx, "alice", "fitbit"); ok || err != nil {
		t.Fatalf("expected empty lookup, got ok=%v err=%v", ok, err)
	}
	if err := store.RevokeGrant(ctx, "alice", "fitbit"); err != nil {
		t.Fatalf("expected revoke on nil store to be a no-op, got %v", err)
	}
	users, err := store.ListUsernames(ctx)
	if err != nil || len(users) != 0 {
		t.Fatalf("expected no users, got %v err=%v", users, err)
	}
	if _, err := store.PutGrant(ctx, testGrant("alice", "fitbit")); err == nil {
		t.Fatalf("expected put on nil store to fail")
	}
}

func TestUserDirectories_UnionSortedAndDeduplicated(t *testing.T) {
	grants := NewMemoryAuthorizationStore(testGrant("bob", "fitbit"), testGrant("alice", "fitbit"))
	data := NewMemoryDataStore(testPoints("carol", "omh:internal:steps", 1, fixedTime())...)
	if err := data.StoreData(context.Background(), testPoints("alice", "omh:internal:steps", 2, fixedTime())); err != nil {
		t.Fatalf("store data: %v", err)
	}

	users, err := UserDirectories{grants, nil, data}.ListUsernames(context.Background())
	if err != nil {
		t.Fatalf("list usernames: %v", err)
	}
	if len(users) != 3 || users[0] != "alice" || users[1] != "bob" || users[2] != "carol" {
		t.Fatalf("unexpected users %v", users)
	}
}
