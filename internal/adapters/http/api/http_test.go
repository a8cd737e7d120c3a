package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/okian/ladder/internal/adapters/http/api"
	service "github.com/okian/ladder/internal/app"
	"github.com/okian/ladder/internal/domain/matches"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/rating"
	"github.com/okian/ladder/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2024, 1, 10, 18, 0, 0, 0, time.UTC)

// mockDeps is an in-memory stand-in for the service.
type mockDeps struct {
	players    []types.PlayerSummary
	history    []types.HistoryPoint
	err        error
	refreshErr error
	snap       *service.Snapshot

	gotLimit  int
	gotNames  []string
	reloaded  bool
	refreshed bool
}

func (m *mockDeps) Players(context.Context) ([]types.PlayerSummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.players, nil
}

func (m *mockDeps) Player(_ context.Context, name string) (types.PlayerSummary, error) {
	if m.err != nil {
		return types.PlayerSummary{}, m.err
	}
	for _, p := range m.players {
		if p.Name == name {
			return p, nil
		}
	}
	return types.PlayerSummary{}, fmt.Errorf("%w: %s", service.ErrPlayerNotFound, name)
}

func (m *mockDeps) Leaderboard(_ context.Context, n int) ([]types.PlayerSummary, error) {
	m.gotLimit = n
	if m.err != nil {
		return nil, m.err
	}
	return m.players[:min(n, len(m.players))], nil
}

func (m *mockDeps) History(_ context.Context, name string) ([]types.HistoryPoint, error) {
	if _, err := m.Player(context.Background(), name); err != nil {
		return nil, err
	}
	return m.history, nil
}

func (m *mockDeps) Histories(_ context.Context, names []string) ([]types.Series, error) {
	m.gotNames = names
	if m.err != nil {
		return nil, m.err
	}
	out := make([]types.Series, len(names))
	for i, n := range names {
		out[i] = types.Series{Player: n, Points: m.history}
	}
	return out, nil
}

func (m *mockDeps) Refresh(context.Context) (*service.Snapshot, error) {
	m.refreshed = true
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	return m.snap, nil
}

func (m *mockDeps) Reload(ctx context.Context) (*service.Snapshot, error) {
	m.reloaded = true
	return m.Refresh(ctx)
}

func (m *mockDeps) Snapshot() *service.Snapshot { return m.snap }

func (m *mockDeps) GetStats() map[string]any {
	return map[string]any{"started": true, "players": len(m.players)}
}

func newDeps() *mockDeps {
	ms := []model.Match{{Player1: "A", Player2: "B", Winner: model.Player1, OccurredAt: t0}}
	return &mockDeps{
		players: []types.PlayerSummary{
			{Name: "A", Rating: 1025, RatingExact: 1025, Ranking: 1, Wins: 1, StartDate: t0},
			{Name: "B", Rating: 975, RatingExact: 975, Ranking: 2, Losses: 1, StartDate: t0},
		},
		history: []types.HistoryPoint{{Date: t0, Rating: 1025, Delta: 25, Opponent: "B", Won: true}},
		snap: &service.Snapshot{
			Generation: uuid.New(),
			BuiltAt:    t0.Add(time.Hour),
			Matches:    ms,
			State:      rating.Compute(ms),
			Skipped:    []matches.RowError{{Index: 4, Reason: "blank participant", Err: matches.ErrMalformedRow}},
		},
	}
}

func serve(deps api.Dependencies, method, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	api.NewServer(deps, 100).Register(context.Background(), mux)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
	return body
}

func TestServer_HealthAndStats(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := newDeps()

		Convey("Then /healthz serves the metrics registry", func() {
			w := serve(deps, http.MethodGet, "/healthz")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "ladder_ratings_")
		})

		Convey("Then /readyz follows the published snapshot", func() {
			w := serve(deps, http.MethodGet, "/readyz")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, deps.snap.Generation.String())

			deps.snap = nil
			w = serve(deps, http.MethodGet, "/readyz")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("Then /stats returns the provider's map", func() {
			w := serve(deps, http.MethodGet, "/stats")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			var stats map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &stats), ShouldBeNil)
			So(stats["players"], ShouldEqual, 2)
		})
	})
}

func TestServer_Players(t *testing.T) {
	Convey("Given player summaries", t, func() {
		deps := newDeps()

		Convey("When listing players", func() {
			w := serve(deps, http.MethodGet, "/players")

			Convey("Then all summaries are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var got []types.PlayerSummary
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got, ShouldHaveLength, 2)
				So(got[0].Name, ShouldEqual, "A")
				So(got[0].Rating, ShouldEqual, 1025)
			})
		})

		Convey("When fetching one player", func() {
			w := serve(deps, http.MethodGet, "/players/B")

			Convey("Then that summary is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var got types.PlayerSummary
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got.Ranking, ShouldEqual, 2)
			})
		})

		Convey("When fetching a player with a space in the name", func() {
			deps.players = append(deps.players, types.PlayerSummary{Name: "Ann Lee", Ranking: 3})
			w := serve(deps, http.MethodGet, "/players/Ann%20Lee")

			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When fetching an unknown player", func() {
			w := serve(deps, http.MethodGet, "/players/Z")

			Convey("Then 404 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decodeError(w)["code"], ShouldEqual, "not_found")
			})
		})

		Convey("When no ratings have been computed", func() {
			deps.err = service.ErrNoData
			w := serve(deps, http.MethodGet, "/players")

			Convey("Then 503 data_unavailable is returned", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(decodeError(w)["code"], ShouldEqual, "data_unavailable")
			})
		})

		Convey("When the service fails unexpectedly", func() {
			deps.err = errors.New("boom")
			w := serve(deps, http.MethodGet, "/players")

			So(w.Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestServer_History(t *testing.T) {
	Convey("Given rating histories", t, func() {
		deps := newDeps()

		Convey("When fetching one player's history", func() {
			w := serve(deps, http.MethodGet, "/players/A/history")

			Convey("Then the points come back with the player", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body struct {
					Player  string               `json:"player"`
					History []types.HistoryPoint `json:"history"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Player, ShouldEqual, "A")
				So(body.History, ShouldHaveLength, 1)
				So(body.History[0].Opponent, ShouldEqual, "B")
			})
		})

		Convey("When fetching an unknown player's history", func() {
			w := serve(deps, http.MethodGet, "/players/Z/history")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When requesting several players", func() {
			w := serve(deps, http.MethodGet, "/history?players=A,%20,B,A")

			Convey("Then names are trimmed and de-duplicated", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.gotNames, ShouldResemble, []string{"A", "B"})
				var got []types.Series
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got, ShouldHaveLength, 2)
			})
		})

		Convey("When requesting without players", func() {
			w := serve(deps, http.MethodGet, "/history")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.gotNames, ShouldBeNil)
		})
	})
}

func TestServer_Leaderboard(t *testing.T) {
	Convey("Given a leaderboard", t, func() {
		deps := newDeps()

		cases := []struct {
			query string
			code  int
			kind  string
		}{
			{"limit=abc", http.StatusBadRequest, "bad_request"},
			{"limit=0", http.StatusBadRequest, "bad_request"},
			{"limit=-3", http.StatusBadRequest, "bad_request"},
			{"limit=101", http.StatusBadRequest, "limit_exceeded"},
		}
		for _, tc := range cases {
			Convey("When the query is "+tc.query, func() {
				w := serve(deps, http.MethodGet, "/leaderboard?"+tc.query)

				Convey("Then it is rejected", func() {
					So(w.Code, ShouldEqual, tc.code)
					So(decodeError(w)["code"], ShouldEqual, tc.kind)
				})
			})
		}

		Convey("When a valid limit is given", func() {
			w := serve(deps, http.MethodGet, "/leaderboard?limit=1")

			Convey("Then the top entries are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.gotLimit, ShouldEqual, 1)
				var got []types.PlayerSummary
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got, ShouldHaveLength, 1)
				So(got[0].Name, ShouldEqual, "A")
			})
		})

		Convey("When no limit is given", func() {
			w := serve(deps, http.MethodGet, "/leaderboard")

			Convey("Then the maximum is used", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.gotLimit, ShouldEqual, 100)
			})
		})
	})
}

func TestServer_Refresh(t *testing.T) {
	Convey("Given a refreshable service", t, func() {
		deps := newDeps()

		Convey("When posting a refresh", func() {
			w := serve(deps, http.MethodPost, "/refresh")

			Convey("Then the new snapshot is described", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.refreshed, ShouldBeTrue)
				So(deps.reloaded, ShouldBeFalse)

				var body map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["generation"], ShouldEqual, deps.snap.Generation.String())
				So(body["players"], ShouldEqual, 2)
				So(body["matches"], ShouldEqual, 1)
				So(body["skipped"], ShouldHaveLength, 1)
			})
		})

		Convey("When forcing a refresh", func() {
			w := serve(deps, http.MethodPost, "/refresh?force=true")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.reloaded, ShouldBeTrue)
		})

		Convey("When the source is unreachable", func() {
			deps.refreshErr = fmt.Errorf("%w: dial tcp: refused", service.ErrFetch)
			w := serve(deps, http.MethodPost, "/refresh")

			Convey("Then 502 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadGateway)
				body := decodeError(w)
				So(body["code"], ShouldEqual, "upstream_error")
				So(body["message"], ShouldStartWith, "api.refresh:")
			})
		})

		Convey("When the rebuild is cut short", func() {
			deps.refreshErr = fmt.Errorf("%w: %w", service.ErrFetch, context.DeadlineExceeded)
			w := serve(deps, http.MethodPost, "/refresh")

			Convey("Then 503 cancelled is returned rather than an upstream error", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(decodeError(w)["code"], ShouldEqual, "cancelled")
			})
		})

		Convey("When the caller gives up", func() {
			deps.refreshErr = context.Canceled
			w := serve(deps, http.MethodPost, "/refresh")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When the data is rejected", func() {
			deps.refreshErr = fmt.Errorf("%w: row 3: unparseable date", service.ErrDataQuality)
			w := serve(deps, http.MethodPost, "/refresh")

			Convey("Then 422 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(decodeError(w)["code"], ShouldEqual, "data_quality")
			})
		})

		Convey("When using the wrong method", func() {
			w := serve(deps, http.MethodGet, "/refresh")

			Convey("Then the mux refuses it", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(strings.Contains(w.Header().Get("Allow"), http.MethodPost), ShouldBeTrue)
			})
		})
	})
}
