package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/castcount/internal/config"
	"github.com/user/castcount/internal/handler"
	"github.com/user/castcount/internal/model"
	"github.com/user/castcount/internal/repository"
	"github.com/user/castcount/internal/router"
	"github.com/user/castcount/internal/service"
	"github.com/user/castcount/internal/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubRefresher struct {
	mu     sync.Mutex
	calls  []int64
	forced []bool
	result *service.RefreshResult
	err    error
}

func (s *stubRefresher) RefreshPerformer(ctx context.Context, id int64, force bool) (*service.RefreshResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, id)
	s.forced = append(s.forced, force)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
}

type testServer struct {
	engine    *gin.Engine
	repos     *repository.Repositories
	refresher *stubRefresher
}

func newTestServer(t *testing.T, adminToken string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, repository.Migrate(db))
	repos := repository.NewRepositories(db)

	utils.InitCache()
	refresher := &stubRefresher{}
	cfg := &config.Config{AdminToken: adminToken}
	h := handler.NewHandler(repos, cfg, refresher, hclog.NewNullLogger())

	r := gin.New()
	router.RegisterRoutes(r, h)
	return &testServer{engine: r, repos: repos, refresher: refresher}
}

func (s *testServer) do(t *testing.T, method, path, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var body envelope
	if path != "/health" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	}
	return w, body
}

func (s *testServer) seedPerformers(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	seed := []model.Performer{
		{TMDBID: 1, Name: "Alpha", Gender: model.GenderFemale, FilePath: "/a.jpg", CntAll: 3, CntLast5: 1,
			ListAll: pq.StringArray{"A by X, 2020", "B by Y, 2010", "C by Z, 2000"}, ListLast5: pq.StringArray{"A by X, 2020"}},
		{TMDBID: 2, Name: "Beta", Gender: model.GenderMale, CntAll: 1, CntLast5: 1,
			ListAll: pq.StringArray{"D by W, 2023"}, ListLast5: pq.StringArray{"D by W, 2023"}},
	}
	for i := range seed {
		seed[i].Updated = time.Now()
		require.NoError(t, s.repos.Performer.Upsert(ctx, &seed[i]))
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "")
	w, _ := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestLeaderboard(t *testing.T) {
	s := newTestServer(t, "")
	s.seedPerformers(t)

	w, body := s.do(t, http.MethodGet, "/api/performers", "")
	require.Equal(t, http.StatusOK, w.Code)
	var entries []model.LeaderboardEntry
	require.NoError(t, json.Unmarshal(body.Data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "Alpha", entries[0].Name)
	assert.Equal(t, 3, entries[0].Count)
	assert.Len(t, entries[0].List, 3)
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/a.jpg", entries[0].ImageURL)
	assert.Empty(t, entries[1].ImageURL)

	_, body = s.do(t, http.MethodGet, "/api/performers?time=5&gender=2", "")
	entries = nil
	require.NoError(t, json.Unmarshal(body.Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Beta", entries[0].Name)
	assert.Equal(t, []string{"D by W, 2023"}, entries[0].List)
}

func TestLeaderboard_InvalidQuery(t *testing.T) {
	s := newTestServer(t, "")
	for _, q := range []string{"time=7", "gender=x", "limit=0x", "limit=1000"} {
		w, body := s.do(t, http.MethodGet, "/api/performers?"+q, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.False(t, body.Success)
	}
}

func TestLeaderboard_IsCached(t *testing.T) {
	s := newTestServer(t, "")
	s.seedPerformers(t)

	s.do(t, http.MethodGet, "/api/performers?limit=5", "")
	require.NoError(t, s.repos.Performer.Upsert(context.Background(), &model.Performer{
		TMDBID: 3, Name: "Gamma", CntAll: 9, Updated: time.Now(),
	}))

	_, body := s.do(t, http.MethodGet, "/api/performers?limit=5", "")
	var entries []model.LeaderboardEntry
	require.NoError(t, json.Unmarshal(body.Data, &entries))
	assert.Len(t, entries, 2, "cached response is served until invalidated")

	utils.CacheClear()
	_, body = s.do(t, http.MethodGet, "/api/performers?limit=5", "")
	entries = nil
	require.NoError(t, json.Unmarshal(body.Data, &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, "Gamma", entries[0].Name)
}

func TestPerformerDetail(t *testing.T) {
	s := newTestServer(t, "")
	ctx := context.Background()

	film := &model.Film{TMDBID: 50, Title: "Film", Updated: time.Now()}
	require.NoError(t, s.repos.Film.Upsert(ctx, film))
	require.NoError(t, s.repos.Performer.Upsert(ctx, &model.Performer{
		TMDBID: 7, Name: "Seven", MovieIDs: pq.Int64Array{int64(film.ID)}, MoviesTotal: 1, Updated: time.Now(),
	}))

	w, body := s.do(t, http.MethodGet, "/api/performers/7", "")
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Performer model.Performer `json:"performer"`
		Films     []model.Film    `json:"films"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.Equal(t, "Seven", data.Performer.Name)
	require.Len(t, data.Films, 1)
	assert.Equal(t, "Film", data.Films[0].Title)

	w, _ = s.do(t, http.MethodGet, "/api/performers/8", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/performers/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefreshPerformer(t *testing.T) {
	s := newTestServer(t, "secret")
	s.refresher.result = &service.RefreshResult{
		Outcome:   service.OutcomeRefreshed,
		Performer: &model.Performer{TMDBID: 9, Name: "Nine"},
		Films:     4,
	}

	w, _ := s.do(t, http.MethodPost, "/api/admin/performers/9/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, s.refresher.calls)

	w, body := s.do(t, http.MethodPost, "/api/admin/performers/9/refresh", "secret")
	require.Equal(t, http.StatusOK, w.Code)
	var result service.RefreshResult
	require.NoError(t, json.Unmarshal(body.Data, &result))
	assert.Equal(t, service.OutcomeRefreshed, result.Outcome)
	assert.Equal(t, 4, result.Films)
	assert.Equal(t, []int64{9}, s.refresher.calls)
	assert.Equal(t, []bool{true}, s.refresher.forced)
}

func TestRefreshPerformer_NotActing(t *testing.T) {
	s := newTestServer(t, "")
	s.refresher.result = &service.RefreshResult{Outcome: service.OutcomeNotActing}

	w, body := s.do(t, http.MethodPost, "/api/admin/performers/9/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	var result service.RefreshResult
	require.NoError(t, json.Unmarshal(body.Data, &result))
	assert.Equal(t, service.OutcomeNotActing, result.Outcome)
}

func TestRefreshPerformer_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("person 9: %w", service.ErrNotFound), http.StatusNotFound},
		{"transient", fmt.Errorf("person 9: %w", service.ErrTransient), http.StatusBadGateway},
		{"upstream failure", fmt.Errorf("person 9: %w", service.ErrUpstreamFailure), http.StatusBadGateway},
		{"storage", fmt.Errorf("%w: upsert performer: disk full", service.ErrStorage), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, "")
			s.refresher.err = tc.err
			w, body := s.do(t, http.MethodPost, "/api/admin/performers/9/refresh", "")
			assert.Equal(t, tc.want, w.Code)
			assert.False(t, body.Success)
		})
	}
}
