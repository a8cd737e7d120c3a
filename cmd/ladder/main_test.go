package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/ladder/internal/adapters/sheets"
	"github.com/okian/ladder/internal/config"
	"github.com/okian/ladder/internal/domain/matches"
	"github.com/okian/ladder/internal/domain/types"
	"github.com/okian/ladder/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func sheetServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"values": [][]string{
			{"1/10/2024 18:00:00", "", "A", "", "Player 1", "B"},
			{"1/10/2024 19:00:00", "", "B", "", "Player 2", "C"},
			{"1/10/2024 20:00:00", "", "A", "", "Player 1", "C"},
		}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) *config.Config {
	cfg := config.New()
	cfg.SheetsBaseURL = baseURL
	cfg.SheetsSpreadsheetID = "ladder-sheet"
	cfg.SheetsRetries = 0
	return cfg
}

func TestParseOptions(t *testing.T) {
	convey.Convey("Given configuration for the row parser", t, func() {
		cfg := config.New()

		convey.Convey("When the defaults are used", func() {
			opts, err := parseOptions(cfg)

			convey.Convey("Then policy, winner mode and location are set", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(opts, convey.ShouldHaveLength, 3)
			})
		})

		convey.Convey("When custom date layouts are configured", func() {
			cfg.DateLayouts = []string{"02.01.2006"}
			opts, err := parseOptions(cfg)

			convey.Convey("Then they are passed on", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(opts, convey.ShouldHaveLength, 4)

				res, err := matches.Parse(context.Background(),
					[][]string{{"10.01.2024", "", "A", "", "Player 1", "B"}}, opts...)
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.Matches, convey.ShouldHaveLength, 1)
			})
		})

		convey.Convey("When the policy is unknown", func() {
			cfg.RowPolicy = "ignore"
			_, err := parseOptions(cfg)
			convey.So(err, convey.ShouldWrap, matches.ErrInvalidPolicy)
		})

		convey.Convey("When the location is unknown", func() {
			cfg.Location = "Mars/Olympus"
			_, err := parseOptions(cfg)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestCachePrefix(t *testing.T) {
	convey.Convey("Given sheet settings", t, func() {
		cfg := testConfig("http://sheets")

		convey.So(cachePrefix(cfg), convey.ShouldEqual, "ladder:ladder-sheet:Match History!A2:F9999")

		cfg.SheetsMode = config.SheetsModeProxy
		cfg.SheetsProxyURL = "http://proxy/sheet"
		convey.So(cachePrefix(cfg), convey.ShouldEqual, "ladder:http://proxy/sheet:Match History!A2:F9999")
	})
}

func TestBuildService(t *testing.T) {
	convey.Convey("Given a sheet API", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv := sheetServer(t)
		log := logger.Nop()

		convey.Convey("When building without redis", func() {
			svc, cleanup, err := buildService(ctx, testConfig(srv.URL), log)
			convey.So(err, convey.ShouldBeNil)
			defer cleanup()

			convey.Convey("Then the service computes ratings from the sheet", func() {
				snap, err := svc.Refresh(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(snap.FromCache, convey.ShouldBeFalse)
				convey.So(snap.State.Len(), convey.ShouldEqual, 3)
				convey.So(svc.GetStats()["cache_enabled"], convey.ShouldEqual, false)
			})
		})

		convey.Convey("When building with redis", func() {
			mr := miniredis.RunT(t)
			cfg := testConfig(srv.URL)
			cfg.RedisURL = "redis://" + mr.Addr() + "/0"

			svc, cleanup, err := buildService(ctx, cfg, log)
			convey.So(err, convey.ShouldBeNil)
			defer cleanup()

			convey.Convey("Then fetched rows are cached under the sheet prefix", func() {
				_, err := svc.Refresh(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(mr.Exists(cachePrefix(cfg)+":rows"), convey.ShouldBeTrue)
				convey.So(svc.GetStats()["cache_enabled"], convey.ShouldEqual, true)
			})
		})

		convey.Convey("When redis is unreachable", func() {
			cfg := testConfig(srv.URL)
			cfg.RedisURL = "redis://127.0.0.1:1/0"

			svc, cleanup, err := buildService(ctx, cfg, log)

			convey.Convey("Then the service runs uncached", func() {
				convey.So(err, convey.ShouldBeNil)
				defer cleanup()
				convey.So(svc.GetStats()["cache_enabled"], convey.ShouldEqual, false)
			})
		})

		convey.Convey("When the sheet mode is unknown", func() {
			cfg := testConfig(srv.URL)
			cfg.SheetsMode = "ftp"

			_, _, err := buildService(ctx, cfg, log)
			convey.So(err, convey.ShouldWrap, sheets.ErrEndpoint)
		})
	})
}

func TestRoutes(t *testing.T) {
	convey.Convey("Given the full HTTP mux", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		svc, cleanup, err := buildService(ctx, testConfig(sheetServer(t).URL), logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		defer cleanup()

		ts := httptest.NewServer(newHTTPServer(":0", newMux(ctx, svc, 10)).Handler)
		defer ts.Close()

		get := func(path string) *http.Response {
			resp, err := http.Get(ts.URL + path)
			convey.So(err, convey.ShouldBeNil)
			return resp
		}

		convey.Convey("When nothing has been computed yet", func() {
			resp := get("/readyz")
			defer resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusServiceUnavailable)
		})

		convey.Convey("When the service has started", func() {
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop()

			convey.Convey("Then the leaderboard is served", func() {
				resp := get("/leaderboard?limit=2")
				defer resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)

				var top []types.PlayerSummary
				convey.So(json.NewDecoder(resp.Body).Decode(&top), convey.ShouldBeNil)
				convey.So(top, convey.ShouldHaveLength, 2)
				convey.So(top[0].Name, convey.ShouldEqual, "A")
				convey.So(top[0].Ranking, convey.ShouldEqual, 1)
			})

			convey.Convey("Then the configured limit is enforced", func() {
				resp := get("/leaderboard?limit=11")
				defer resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
			})

			convey.Convey("Then the API docs are served", func() {
				resp := get("/openapi.yaml")
				defer resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.Convey("Then a single update does not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("Then the loop returns once the context is done", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			done := make(chan struct{})
			go func() {
				startSystemMetricsUpdater(ctx)
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("metrics updater did not stop")
			}
		})
	})
}
