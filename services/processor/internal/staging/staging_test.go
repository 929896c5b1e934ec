package staging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/models"
)

func TestValueFromBSON(t *testing.T) {
	t.Parallel()

	ts := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	dec, err := primitive.ParseDecimal128("21.25")
	require.NoError(t, err)

	tests := []struct {
		name string
		in   any
		want models.Value
	}{
		{name: "nil", in: nil, want: models.NullValue()},
		{name: "bson null", in: primitive.Null{}, want: models.NullValue()},
		{name: "double", in: 21.5, want: models.NumberValue(21.5)},
		{name: "int32", in: int32(7), want: models.NumberValue(7)},
		{name: "int64", in: int64(1700000000), want: models.NumberValue(1700000000)},
		{name: "decimal", in: dec, want: models.NumberValue(21.25)},
		{name: "string", in: "12.5", want: models.StringValue("12.5")},
		{name: "datetime", in: primitive.NewDateTimeFromTime(ts), want: models.TimeValue(ts)},
		{name: "bool", in: true, want: models.BoolValue(true)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ValueFromBSON(tt.in))
		})
	}

	arr := bson.A{1, 2}
	assert.Equal(t, models.KindOther, ValueFromBSON(arr).Kind)
}

func TestDocumentFromBSONKeepsOrder(t *testing.T) {
	t.Parallel()

	oid := primitive.NewObjectID()
	doc := DocumentFromBSON(bson.D{
		{Key: "_id", Value: oid},
		{Key: "UUID", Value: "S-1"},
		{Key: "umid", Value: 60.0},
		{Key: "tempC", Value: 21.5},
	})

	assert.Equal(t, oid, doc.ID)
	assert.Equal(t, oid.Hex(), doc.IDString())
	keys := make([]string, 0, len(doc.Fields))
	for _, f := range doc.Fields {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"_id", "UUID", "umid", "tempC"}, keys)
}

func TestParseMessage(t *testing.T) {
	t.Parallel()

	doc, err := ParseMessage([]byte(`{"_id":{"$oid":"6553f1a0c3b5d2e4f7a8b9c0"},"UUID":"S-1","unixtime":1700000000,"tempC":"21.5"}`))
	require.NoError(t, err)

	oid, ok := ObjectIDFrom(doc.ID)
	require.True(t, ok)
	assert.Equal(t, "6553f1a0c3b5d2e4f7a8b9c0", oid.Hex())

	v, ok := doc.Get("unixtime")
	require.True(t, ok)
	assert.Equal(t, models.NumberValue(1700000000), v)

	v, ok = doc.Get("tempC")
	require.True(t, ok)
	assert.Equal(t, models.StringValue("21.5"), v)

	_, err = ParseMessage([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseMessage([]byte(`[1,2,3]`))
	assert.Error(t, err)
}

func TestObjectIDFrom(t *testing.T) {
	t.Parallel()

	oid := primitive.NewObjectID()

	tests := []struct {
		name string
		in   any
		ok   bool
	}{
		{name: "native", in: oid, ok: true},
		{name: "hex string", in: oid.Hex(), ok: true},
		{name: "oid document", in: bson.D{{Key: "$oid", Value: oid.Hex()}}, ok: true},
		{name: "oid map", in: bson.M{"$oid": oid.Hex()}, ok: true},
		{name: "zero", in: primitive.NilObjectID, ok: false},
		{name: "short string", in: "abc", ok: false},
		{name: "number", in: 42, ok: false},
		{name: "nil", in: nil, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ObjectIDFrom(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, oid, got)
			}
		})
	}
}

func TestIterate(t *testing.T) {
	t.Parallel()

	cur, err := mongo.NewCursorFromDocuments([]any{
		bson.D{{Key: "_id", Value: int32(1)}, {Key: "UUID", Value: "S-1"}},
		bson.D{{Key: "_id", Value: int32(2)}, {Key: "UUID", Value: "S-2"}},
		bson.D{{Key: "_id", Value: int32(3)}, {Key: "UUID", Value: "S-3"}},
	}, nil, nil)
	require.NoError(t, err)

	var ids []any
	for doc, err := range iterate(context.Background(), cur) {
		require.NoError(t, err)
		ids = append(ids, doc.ID)
		if len(ids) == 2 {
			break
		}
	}
	assert.Equal(t, []any{int32(1), int32(2)}, ids)
}

type fakeCursor struct {
	docs   []bson.D
	err    error
	pos    int
	closed bool
}

func (c *fakeCursor) Next(context.Context) bool {
	if c.pos >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *fakeCursor) Decode(val any) error {
	*(val.(*bson.D)) = c.docs[c.pos-1]
	return nil
}

func (c *fakeCursor) Err() error { return c.err }

func (c *fakeCursor) Close(context.Context) error {
	c.closed = true
	return nil
}

func TestIterateYieldsCursorError(t *testing.T) {
	t.Parallel()

	cur := &fakeCursor{
		docs: []bson.D{{{Key: "_id", Value: "a"}}},
		err:  errors.New("cursor killed"),
	}

	var docs int
	var gotErr error
	for _, err := range iterate(context.Background(), cur) {
		if err != nil {
			gotErr = err
			continue
		}
		docs++
	}
	assert.Equal(t, 1, docs)
	assert.ErrorContains(t, gotErr, "cursor killed")
	assert.True(t, cur.closed)
}

// fakeStream delivers ids from a channel until it is closed or ctx ends.
type fakeStream struct {
	ids    chan any
	err    error
	cur    any
	mu     sync.Mutex
	closed bool
}

func (s *fakeStream) Next(ctx context.Context) bool {
	select {
	case id, ok := <-s.ids:
		if !ok {
			return false
		}
		s.cur = id
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *fakeStream) Decode(val any) error {
	ev := val.(*insertEvent)
	ev.DocumentKey.ID = s.cur
	return nil
}

func (s *fakeStream) Err() error { return s.err }

func (s *fakeStream) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestSubscriptionDeliversInserts(t *testing.T) {
	t.Parallel()

	stream := &fakeStream{ids: make(chan any, 2)}
	sub := newSubscription(context.Background(), stream)

	stream.ids <- "a"
	stream.ids <- "b"

	ev := <-sub.Events()
	assert.Equal(t, "a", ev.DocumentID)
	assert.NoError(t, ev.Err)
	ev = <-sub.Events()
	assert.Equal(t, "b", ev.DocumentID)

	require.NoError(t, sub.Close())
	_, open := <-sub.Events()
	assert.False(t, open)
	assert.True(t, stream.closed)
}

func TestSubscriptionReportsUnexpectedEnd(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "server error", err: errors.New("resume token expired")},
		{name: "clean close", wantErr: ErrFeedClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stream := &fakeStream{ids: make(chan any), err: tt.err}
			sub := newSubscription(context.Background(), stream)
			close(stream.ids)

			ev, open := <-sub.Events()
			require.True(t, open)
			require.Error(t, ev.Err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, ev.Err, tt.wantErr)
			} else {
				assert.Equal(t, tt.err, ev.Err)
			}

			_, open = <-sub.Events()
			assert.False(t, open)
			assert.NoError(t, sub.Close())
		})
	}
}
