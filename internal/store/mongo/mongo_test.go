package mongo

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/signalsfoundry/rocketflight/internal/store"
	"github.com/signalsfoundry/rocketflight/internal/store/storetest"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

// testURIEnv names a reachable server for the contract suite.
const testURIEnv = "MONGODB_TEST_URI"

func TestStoreContract(t *testing.T) {
	uri := os.Getenv(testURIEnv)
	if uri == "" {
		t.Skipf("%s not set", testURIEnv)
	}
	ctx := context.Background()
	s, err := Open(ctx, Config{URI: uri, Database: "rocketflight_test_" + primitive.NewObjectID().Hex()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		_ = s.db.Drop(context.Background())
		_ = s.Close(context.Background())
	})
	storetest.Run(t, s)
}

func TestOpenRequiresURI(t *testing.T) {
	if _, err := Open(context.Background(), Config{Database: "rocketpy"}); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("Open err = %v, want ErrUnavailable", err)
	}
}

func TestClientOptionsTimeoutFloor(t *testing.T) {
	cases := []struct {
		connect time.Duration
		want    time.Duration
	}{
		{0, MinTimeout},
		{5 * time.Second, MinTimeout},
		{45 * time.Second, 45 * time.Second},
	}
	for _, c := range cases {
		opts := clientOptions(Config{URI: "mongodb://localhost:27017", ConnectTimeout: c.connect})
		if opts.ConnectTimeout == nil || *opts.ConnectTimeout != c.want {
			t.Fatalf("ConnectTimeout(%v) = %v, want %v", c.connect, opts.ConnectTimeout, c.want)
		}
		if opts.ServerSelectionTimeout == nil || *opts.ServerSelectionTimeout != c.want {
			t.Fatalf("ServerSelectionTimeout(%v) = %v, want %v", c.connect, opts.ServerSelectionTimeout, c.want)
		}
		if opts.MaxConnIdleTime != nil {
			t.Fatalf("MaxConnIdleTime = %v, want unset", *opts.MaxConnIdleTime)
		}
	}

	opts := clientOptions(Config{URI: "mongodb://localhost:27017", IdleTimeout: time.Minute})
	if opts.MaxConnIdleTime == nil || *opts.MaxConnIdleTime != time.Minute {
		t.Fatalf("MaxConnIdleTime = %v, want 1m", opts.MaxConnIdleTime)
	}
}

func TestQueryTranslatesIdentifier(t *testing.T) {
	oid := primitive.NewObjectID()
	q, err := query(store.Filter{store.IDField: oid.Hex(), "motor_kind": "SOLID"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if q[store.IDField] != oid {
		t.Fatalf("_id = %#v, want ObjectID %s", q[store.IDField], oid.Hex())
	}
	if q["motor_kind"] != "SOLID" {
		t.Fatalf("motor_kind = %v, want SOLID", q["motor_kind"])
	}

	for _, bad := range []any{"zz", 42} {
		if _, err := query(store.Filter{store.IDField: bad}); err == nil {
			t.Fatalf("query(%v) succeeded, want an error", bad)
		}
	}
}

func TestDocumentConvertsDriverValues(t *testing.T) {
	oid := primitive.NewObjectID()
	when := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	raw := bson.M{
		"_id":  oid,
		"date": primitive.NewDateTimeFromTime(when),
		"nose": primitive.D{{Key: "length", Value: 0.55}, {Key: "kind", Value: "vonKarman"}},
		"fins": primitive.A{primitive.M{"n": int32(4), "root": primitive.A{1.0, 2.0}}},
		"tail": map[string]any{"radius": 0.04},
	}

	got := document(raw)
	if date, ok := got["date"].(time.Time); !ok || !date.Equal(when) || date.Location() != time.UTC {
		t.Fatalf("date = %#v, want %v in UTC", got["date"], when)
	}
	delete(got, "date")
	want := store.Document{
		"_id":  oid.Hex(),
		"nose": map[string]any{"length": 0.55, "kind": "vonKarman"},
		"fins": []any{map[string]any{"n": int32(4), "root": []any{1.0, 2.0}}},
		"tail": map[string]any{"radius": 0.04},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("document = %#v\nwant %#v", got, want)
	}
}

func mockStore(mt *mtest.T) *Store {
	return newStore(mt.Client, mt.DB.Name())
}

func TestStoreAgainstMockDeployment(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	ns := "rocketpy.motor"

	mt.Run("insert returns hex id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		id, err := mockStore(mt).Insert(ctx, "motor", store.Document{store.IDField: "client", "burn_time": 3.9})
		if err != nil {
			mt.Fatalf("Insert: %v", err)
		}
		if _, err := primitive.ObjectIDFromHex(id); err != nil {
			mt.Fatalf("Insert id %q is not ObjectID hex: %v", id, err)
		}
		docs := mt.GetStartedEvent().Command.Lookup("documents").Array()
		sent, err := docs.Values()
		if err != nil || len(sent) != 1 {
			mt.Fatalf("documents = %v (%v), want one", docs, err)
		}
		if got := sent[0].Document().Lookup("_id").ObjectID().Hex(); got != id {
			mt.Fatalf("sent _id = %s, want %s", got, id)
		}
	})

	mt.Run("get converts document", func(mt *mtest.T) {
		oid := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: oid},
			{Key: "motor_kind", Value: "SOLID"},
			{Key: "grains", Value: bson.A{bson.D{{Key: "number", Value: int32(5)}}}},
		}))
		doc, err := mockStore(mt).Get(ctx, "motor", oid.Hex())
		if err != nil {
			mt.Fatalf("Get: %v", err)
		}
		if doc[store.IDField] != oid.Hex() || doc["motor_kind"] != "SOLID" {
			mt.Fatalf("Get = %v", doc)
		}
		grains, ok := doc["grains"].([]any)
		if !ok || len(grains) != 1 {
			mt.Fatalf("grains = %#v, want one entry", doc["grains"])
		}
		if g, ok := grains[0].(map[string]any); !ok || g["number"] != int32(5) {
			mt.Fatalf("grain = %#v, want number 5", grains[0])
		}
	})

	mt.Run("get missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		_, err := mockStore(mt).Get(ctx, "motor", primitive.NewObjectID().Hex())
		if !errors.Is(err, store.ErrNotFound) {
			mt.Fatalf("Get err = %v, want ErrNotFound", err)
		}
	})

	mt.Run("invalid hex never reaches the server", func(mt *mtest.T) {
		s := mockStore(mt)
		if _, err := s.Get(ctx, "motor", "not-an-object-id"); !errors.Is(err, store.ErrNotFound) {
			mt.Fatalf("Get err = %v, want ErrNotFound", err)
		}
		if err := s.Replace(ctx, "motor", "zz", store.Document{"a": 1.0}); !errors.Is(err, store.ErrNotFound) {
			mt.Fatalf("Replace err = %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, "motor", "zz"); err != nil {
			mt.Fatalf("Delete err = %v, want nil", err)
		}
		for doc, err := range s.Find(ctx, "motor", store.Filter{store.IDField: "zz"}) {
			mt.Fatalf("Find yielded %v, %v for an invalid id", doc, err)
		}
		if n := len(mt.GetAllStartedEvents()); n != 0 {
			mt.Fatalf("%d commands sent, want none", n)
		}
	})

	mt.Run("get server error is unavailable", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "bad value"}))
		_, err := mockStore(mt).Get(ctx, "motor", primitive.NewObjectID().Hex())
		if !errors.Is(err, store.ErrUnavailable) {
			mt.Fatalf("Get err = %v, want ErrUnavailable", err)
		}
	})

	mt.Run("replace matched and unmatched", func(mt *mtest.T) {
		s := mockStore(mt)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
		)
		id := primitive.NewObjectID().Hex()
		if err := s.Replace(ctx, "motor", id, store.Document{store.IDField: id, "burn_time": 4.0}); err != nil {
			mt.Fatalf("Replace: %v", err)
		}
		if err := s.Replace(ctx, "motor", id, store.Document{"burn_time": 4.0}); !errors.Is(err, store.ErrNotFound) {
			mt.Fatalf("Replace err = %v, want ErrNotFound", err)
		}
	})

	mt.Run("delete", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		if err := mockStore(mt).Delete(ctx, "motor", primitive.NewObjectID().Hex()); err != nil {
			mt.Fatalf("Delete: %v", err)
		}
		if name := mt.GetStartedEvent().CommandName; name != "delete" {
			mt.Fatalf("command = %s, want delete", name)
		}
	})

	mt.Run("find sends filter", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "motor_kind", Value: "LIQUID"}},
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "motor_kind", Value: "LIQUID"}},
		))
		count := 0
		for doc, err := range mockStore(mt).Find(ctx, "motor", store.Filter{"motor_kind": "LIQUID"}) {
			if err != nil {
				mt.Fatalf("Find: %v", err)
			}
			if doc["motor_kind"] != "LIQUID" {
				mt.Fatalf("doc = %v", doc)
			}
			count++
		}
		if count != 2 {
			mt.Fatalf("Find yielded %d, want 2", count)
		}
		filter := mt.GetStartedEvent().Command.Lookup("filter", "motor_kind").StringValue()
		if filter != "LIQUID" {
			mt.Fatalf("filter motor_kind = %q, want LIQUID", filter)
		}
	})

	mt.Run("list counts then pages", func(mt *mtest.T) {
		first, second := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(7)}}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				bson.D{{Key: "_id", Value: first}},
				bson.D{{Key: "_id", Value: second}},
			),
		)
		page, err := mockStore(mt).List(ctx, "motor", 1, 2)
		if err != nil {
			mt.Fatalf("List: %v", err)
		}
		if page.Total != 7 {
			mt.Fatalf("Total = %d, want 7", page.Total)
		}
		if len(page.Items) != 2 || page.Items[0][store.IDField] != first.Hex() || page.Items[1][store.IDField] != second.Hex() {
			mt.Fatalf("Items = %v", page.Items)
		}
	})

	mt.Run("list with zero limit only counts", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(3)}}))
		page, err := mockStore(mt).List(ctx, "motor", 0, 0)
		if err != nil {
			mt.Fatalf("List: %v", err)
		}
		if page.Total != 3 || len(page.Items) != 0 {
			mt.Fatalf("page = %+v, want total 3 and no items", page)
		}
		if n := len(mt.GetAllStartedEvents()); n != 1 {
			mt.Fatalf("%d commands sent, want only the count", n)
		}
	})

	mt.Run("ping", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		if err := mockStore(mt).Ping(ctx); err != nil {
			mt.Fatalf("Ping: %v", err)
		}
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 13, Name: "Unauthorized", Message: "denied"}))
		if err := mockStore(mt).Ping(ctx); !errors.Is(err, store.ErrUnavailable) {
			mt.Fatalf("Ping err = %v, want ErrUnavailable", err)
		}
	})
}
