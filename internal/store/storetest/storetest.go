// Package storetest holds the behavioural checks every store.Store backend
// must pass.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/signalsfoundry/rocketflight/internal/store"
)

// Run exercises s. Each subtest uses its own collection.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("InsertGetRoundTrip", func(t *testing.T) {
		doc := store.Document{"latitude": 32.99, "name": "spaceport", "tags": []any{"a", "b"}}
		id, err := s.Insert(ctx, "roundtrip", doc)
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if id == "" {
			t.Fatalf("Insert returned empty id")
		}
		got, err := s.Get(ctx, "roundtrip", id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got[store.IDField] != id {
			t.Fatalf("Get %s = %v, want %q", store.IDField, got[store.IDField], id)
		}
		if got["latitude"] != 32.99 || got["name"] != "spaceport" {
			t.Fatalf("Get = %v, want stored fields", got)
		}
	})

	t.Run("InsertIgnoresSuppliedID", func(t *testing.T) {
		id, err := s.Insert(ctx, "ids", store.Document{store.IDField: "client-chosen", "v": 1})
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if id == "client-chosen" {
			t.Fatalf("Insert kept the client id")
		}
		if _, err := s.Get(ctx, "ids", "client-chosen"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("Get(client id) err = %v, want ErrNotFound", err)
		}
	})

	t.Run("ReplaceOverwrites", func(t *testing.T) {
		id, err := s.Insert(ctx, "replace", store.Document{"a": 1.0, "b": 2.0})
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if err := s.Replace(ctx, "replace", id, store.Document{"a": 3.0}); err != nil {
			t.Fatalf("Replace: %v", err)
		}
		got, err := s.Get(ctx, "replace", id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got["a"] != 3.0 {
			t.Fatalf("a = %v, want 3", got["a"])
		}
		if _, ok := got["b"]; ok {
			t.Fatalf("b survived the replace: %v", got)
		}
	})

	t.Run("ReplaceMissing", func(t *testing.T) {
		missing := missingID(t, s, "replace-missing")
		err := s.Replace(ctx, "replace-missing", missing, store.Document{"a": 1.0})
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("Replace err = %v, want ErrNotFound", err)
		}
	})

	t.Run("DeleteThenGet", func(t *testing.T) {
		id, err := s.Insert(ctx, "delete", store.Document{"a": 1.0})
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if err := s.Delete(ctx, "delete", id); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := s.Get(ctx, "delete", id); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("Get after delete err = %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, "delete", id); err != nil {
			t.Fatalf("second Delete: %v", err)
		}
	})

	t.Run("FindFilters", func(t *testing.T) {
		for i := 0; i < 4; i++ {
			kind := "SOLID"
			if i%2 == 1 {
				kind = "LIQUID"
			}
			if _, err := s.Insert(ctx, "find", store.Document{"motor_kind": kind, "n": float64(i)}); err != nil {
				t.Fatalf("Insert: %v", err)
			}
		}
		var ns []float64
		for doc, err := range s.Find(ctx, "find", store.Filter{"motor_kind": "LIQUID"}) {
			if err != nil {
				t.Fatalf("Find: %v", err)
			}
			ns = append(ns, doc["n"].(float64))
		}
		if len(ns) != 2 || ns[0] != 1 || ns[1] != 3 {
			t.Fatalf("Find = %v, want [1 3]", ns)
		}

		count := 0
		for range s.Find(ctx, "find", nil) {
			count++
			break
		}
		if count != 1 {
			t.Fatalf("early break yielded %d, want 1", count)
		}
	})

	t.Run("ListPages", func(t *testing.T) {
		var ids []string
		for i := 0; i < 5; i++ {
			id, err := s.Insert(ctx, "list", store.Document{"n": float64(i)})
			if err != nil {
				t.Fatalf("Insert: %v", err)
			}
			ids = append(ids, id)
		}
		page, err := s.List(ctx, "list", 1, 2)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if page.Total != 5 {
			t.Fatalf("Total = %d, want 5", page.Total)
		}
		if len(page.Items) != 2 {
			t.Fatalf("len(Items) = %d, want 2", len(page.Items))
		}
		if page.Items[0][store.IDField] != ids[1] || page.Items[1][store.IDField] != ids[2] {
			t.Fatalf("page ids = [%v %v], want [%s %s]", page.Items[0][store.IDField], page.Items[1][store.IDField], ids[1], ids[2])
		}

		tail, err := s.List(ctx, "list", 4, 10)
		if err != nil {
			t.Fatalf("List tail: %v", err)
		}
		if len(tail.Items) != 1 {
			t.Fatalf("tail len = %d, want 1", len(tail.Items))
		}

		empty, err := s.List(ctx, "list-empty", 0, 10)
		if err != nil {
			t.Fatalf("List empty: %v", err)
		}
		if empty.Total != 0 || len(empty.Items) != 0 {
			t.Fatalf("empty page = %+v", empty)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := s.Ping(ctx); err != nil {
			t.Fatalf("Ping: %v", err)
		}
	})
}

// missingID returns an identifier that was valid for the backend but no
// longer exists.
func missingID(t *testing.T, s store.Store, collection string) string {
	t.Helper()
	ctx := context.Background()
	id, err := s.Insert(ctx, collection, store.Document{"tmp": true})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Delete(ctx, collection, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	return id
}
