package sheets_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/ladder/internal/adapters/sheets"
	. "github.com/smartystreets/goconvey/convey"
)

const valuesBody = `{"range":"'Match History'!A2:F3","majorDimension":"ROWS","values":[
 ["1/10/2024 18:00:00","","A","","Player 1","B"],
 ["1/10/2024 19:00:00","","B","","Player 2","C"]]}`

func newClient(srvURL string, mode string, opts ...sheets.Option) *sheets.Client {
	e := sheets.Endpoint{Mode: mode, BaseURL: srvURL, SpreadsheetID: "sheet-1", Range: "Match History!A2:F9999", APIKey: "k"}
	if mode == sheets.ModeProxy {
		e = sheets.Endpoint{Mode: mode, ProxyURL: srvURL + "/fetchData"}
	}
	opts = append([]sheets.Option{sheets.WithBackoff(time.Millisecond), sheets.WithTimeout(2 * time.Second)}, opts...)
	c, err := sheets.NewClient(e, opts...)
	So(err, ShouldBeNil)
	return c
}

func TestClient_Fetch(t *testing.T) {
	Convey("Given a values API", t, func() {
		var gotPath, gotKey string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotKey = r.URL.Query().Get("key")
			_, _ = w.Write([]byte(valuesBody))
		}))
		defer srv.Close()

		Convey("When fetching in direct mode", func() {
			rows, err := newClient(srv.URL, sheets.ModeDirect).Fetch(context.Background())

			Convey("Then rows are returned as-is", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 2)
				So(rows[0][2], ShouldEqual, "A")
				So(rows[1][4], ShouldEqual, "Player 2")
			})

			Convey("Then the sheet and range are in the path and the key in the query", func() {
				So(gotPath, ShouldEqual, "/sheet-1/values/Match History!A2:F9999")
				So(gotKey, ShouldEqual, "k")
			})
		})
	})

	Convey("Given a proxy that wraps values in a data envelope", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":` + valuesBody + `}`))
		}))
		defer srv.Close()

		rows, err := newClient(srv.URL, sheets.ModeProxy).Fetch(context.Background())

		So(err, ShouldBeNil)
		So(rows, ShouldHaveLength, 2)
	})

	Convey("Given an empty sheet", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"range":"A2:F2","majorDimension":"ROWS"}`))
		}))
		defer srv.Close()

		rows, err := newClient(srv.URL, sheets.ModeDirect).Fetch(context.Background())

		So(err, ShouldBeNil)
		So(rows, ShouldBeEmpty)
	})
}

func TestClient_Failures(t *testing.T) {
	Convey("Given a source that fails twice with 503", t, func() {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) <= 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(valuesBody))
		}))
		defer srv.Close()

		Convey("When two retries are allowed", func() {
			rows, err := newClient(srv.URL, sheets.ModeDirect, sheets.WithRetry(2)).Fetch(context.Background())

			Convey("Then the third attempt succeeds", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 2)
				So(calls.Load(), ShouldEqual, 3)
			})
		})

		Convey("When retries are disabled", func() {
			_, err := newClient(srv.URL, sheets.ModeDirect, sheets.WithRetry(0)).Fetch(context.Background())

			Convey("Then the status error surfaces", func() {
				So(errors.Is(err, sheets.ErrStatus), ShouldBeTrue)
				So(calls.Load(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a source that answers 403", t, func() {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "API key not valid", http.StatusForbidden)
		}))
		defer srv.Close()

		_, err := newClient(srv.URL, sheets.ModeDirect, sheets.WithRetry(3)).Fetch(context.Background())

		So(errors.Is(err, sheets.ErrStatus), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "403")
		So(calls.Load(), ShouldEqual, 1)
	})

	Convey("Given a source that returns garbage", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>oops</html>`))
		}))
		defer srv.Close()

		_, err := newClient(srv.URL, sheets.ModeDirect).Fetch(context.Background())
		So(errors.Is(err, sheets.ErrDecode), ShouldBeTrue)

		_, err = newClient(srv.URL, sheets.ModeProxy).Fetch(context.Background())
		So(errors.Is(err, sheets.ErrDecode), ShouldBeTrue)
	})

	Convey("Given a proxy response without the data envelope", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(valuesBody))
		}))
		defer srv.Close()

		_, err := newClient(srv.URL, sheets.ModeProxy).Fetch(context.Background())
		So(errors.Is(err, sheets.ErrDecode), ShouldBeTrue)
	})

	Convey("Given a cancelled context", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(valuesBody))
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newClient(srv.URL, sheets.ModeDirect).Fetch(ctx)

		So(errors.Is(err, sheets.ErrRequest), ShouldBeTrue)
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})
}

func TestEndpoint_URL(t *testing.T) {
	Convey("Given endpoint descriptions", t, func() {
		Convey("Then direct mode escapes the range and key", func() {
			u, err := sheets.Endpoint{BaseURL: "https://x.test/v4/spreadsheets/", SpreadsheetID: "id", Range: "Match History!A2:F9", APIKey: "a b"}.URL()
			So(err, ShouldBeNil)
			So(u, ShouldEqual, "https://x.test/v4/spreadsheets/id/values/Match%20History%21A2:F9?key=a+b")
		})

		Convey("Then missing pieces are rejected", func() {
			_, err := sheets.Endpoint{Mode: sheets.ModeDirect, BaseURL: "https://x.test"}.URL()
			So(errors.Is(err, sheets.ErrEndpoint), ShouldBeTrue)

			_, err = sheets.Endpoint{Mode: sheets.ModeProxy}.URL()
			So(errors.Is(err, sheets.ErrEndpoint), ShouldBeTrue)

			_, err = sheets.NewClient(sheets.Endpoint{Mode: "ftp"})
			So(errors.Is(err, sheets.ErrEndpoint), ShouldBeTrue)
		})
	})
}
