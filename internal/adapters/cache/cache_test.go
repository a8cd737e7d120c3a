package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/okian/ladder/internal/adapters/cache"
	. "github.com/smartystreets/goconvey/convey"
)

func newTestCache(t *testing.T, opts ...cache.Option) (*cache.RowCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	c, err := cache.New(context.Background(), "redis://"+mr.Addr()+"/0", opts...)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRowCache(t *testing.T) {
	Convey("Given an empty cache", t, func() {
		ctx := context.Background()
		c, mr := newTestCache(t, cache.WithPrefix("sheet-1"), cache.WithRetention(time.Hour))

		Convey("When reading", func() {
			_, _, err := c.Get(ctx)

			Convey("Then it is a miss", func() {
				So(errors.Is(err, cache.ErrMiss), ShouldBeTrue)
			})
		})

		Convey("When rows are stored", func() {
			at := time.Date(2024, 1, 10, 18, 0, 0, 123, time.UTC)
			rows := [][]string{
				{"1/10/2024 18:00:00", "", "A", "", "Player 1", "B"},
				{"1/10/2024 19:00:00", "", "B", "", "Player 2", "C"},
			}
			So(c.Put(ctx, rows, at), ShouldBeNil)

			Convey("Then they read back with their fetch time", func() {
				got, fetchedAt, err := c.Get(ctx)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, rows)
				So(fetchedAt.Equal(at), ShouldBeTrue)
			})

			Convey("Then the key is namespaced and expires after the retention", func() {
				So(mr.Exists("sheet-1:rows"), ShouldBeTrue)
				So(mr.TTL("sheet-1:rows"), ShouldEqual, time.Hour)

				mr.FastForward(2 * time.Hour)
				_, _, err := c.Get(ctx)
				So(errors.Is(err, cache.ErrMiss), ShouldBeTrue)
			})

			Convey("Then a later put replaces them", func() {
				So(c.Put(ctx, nil, at.Add(time.Minute)), ShouldBeNil)
				got, _, err := c.Get(ctx)
				So(err, ShouldBeNil)
				So(got, ShouldBeEmpty)
			})
		})

		Convey("When the stored entry is corrupt", func() {
			mr.HSet("sheet-1:rows", "data", "not json")
			mr.HSet("sheet-1:rows", "fetched_at", "12")

			_, _, err := c.Get(ctx)

			Convey("Then a corrupt error is returned", func() {
				So(errors.Is(err, cache.ErrCorrupt), ShouldBeTrue)
			})
		})

		Convey("When the server goes away", func() {
			mr.Close()

			_, _, err := c.Get(ctx)

			Convey("Then reads report unavailability", func() {
				So(errors.Is(err, cache.ErrUnavailable), ShouldBeTrue)
				So(errors.Is(c.Put(ctx, [][]string{{"x"}}, time.Now()), cache.ErrUnavailable), ShouldBeTrue)
				So(errors.Is(c.Ping(ctx), cache.ErrUnavailable), ShouldBeTrue)
			})
		})
	})
}

func TestNew_Errors(t *testing.T) {
	Convey("Given bad connection settings", t, func() {
		ctx := context.Background()

		_, err := cache.New(ctx, "not-a-url")
		So(errors.Is(err, cache.ErrUnavailable), ShouldBeTrue)

		ctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		_, err = cache.New(ctx, "redis://127.0.0.1:1/0")
		So(errors.Is(err, cache.ErrUnavailable), ShouldBeTrue)
	})

	Convey("Given a caller-owned client", t, func() {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer func() { _ = rdb.Close() }()

		c := cache.NewWithClient(rdb)
		So(c.Close(), ShouldBeNil)
		So(rdb.Ping(context.Background()).Err(), ShouldBeNil)
	})
}
