package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
	"github.com/user/castcount/internal/config"
	"github.com/user/castcount/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

// fakeCatalog 内存版上游
type fakeCatalog struct {
	mu          sync.Mutex
	persons     map[int64]*PersonPayload
	movies      map[int64]*MoviePayload
	pages       map[int][]PersonSummary
	personErr   map[int64]error
	movieErr    map[int64]error
	pageErr     map[int]error
	personCalls map[int64]int
	movieCalls  map[int64]int
	pageCalls   []int
	totalPages  int            // 0 表示上游未给出总页数
	onMovie     func(id int64) // 在返回电影数据前调用
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		persons:     map[int64]*PersonPayload{},
		movies:      map[int64]*MoviePayload{},
		pages:       map[int][]PersonSummary{},
		personErr:   map[int64]error{},
		movieErr:    map[int64]error{},
		pageErr:     map[int]error{},
		personCalls: map[int64]int{},
		movieCalls:  map[int64]int{},
	}
}

func (f *fakeCatalog) FetchPerson(ctx context.Context, id int64) (*PersonPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.personCalls[id]++
	if err := f.personErr[id]; err != nil {
		return nil, err
	}
	p, ok := f.persons[id]
	if !ok {
		return nil, wrapCatalogError("person", id, ErrNotFound)
	}
	clone := *p
	return &clone, nil
}

func (f *fakeCatalog) FetchMovie(ctx context.Context, id int64) (*MoviePayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.movieCalls[id]++
	if f.onMovie != nil {
		f.onMovie(id)
	}
	if err := f.movieErr[id]; err != nil {
		return nil, err
	}
	m, ok := f.movies[id]
	if !ok {
		return nil, wrapCatalogError("movie", id, ErrNotFound)
	}
	clone := *m
	return &clone, nil
}

func (f *fakeCatalog) FetchPopularPersons(ctx context.Context, page int) (*PopularPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls = append(f.pageCalls, page)
	if err := f.pageErr[page]; err != nil {
		return nil, err
	}
	return &PopularPage{Page: page, TotalPages: f.totalPages, Results: f.pages[page]}, nil
}

func (f *fakeCatalog) setMovieErr(id int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.movieErr[id] = err
}

func (f *fakeCatalog) moviesFetched(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.movieCalls[id]
}

func transientErr(op string, id int64) error {
	return wrapCatalogError(op, id, fmt.Errorf("%w: status 503", ErrTransient))
}

func newTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, repository.Migrate(db))
	return repository.NewRepositories(db)
}

type testEnv struct {
	repos      *repository.Repositories
	catalog    *fakeCatalog
	films      *FilmResolver
	aggregator *PerformerAggregator
	clock      *time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repos := newTestRepos(t)
	catalog := newFakeCatalog()
	policy := NewFreshnessPolicy(config.StaleConfig{PerformerDays: 7, FilmDays: 7, DirectorDays: 7})
	logger := hclog.NewNullLogger()

	clock := testNow
	now := func() time.Time { return clock }

	films := NewFilmResolver(repos, catalog, policy, logger)
	films.now = now
	aggregator := NewPerformerAggregator(repos, films, catalog, policy, logger)
	aggregator.now = now

	return &testEnv{repos: repos, catalog: catalog, films: films, aggregator: aggregator, clock: &clock}
}

func (e *testEnv) advance(d time.Duration) {
	*e.clock = e.clock.Add(d)
}

// movieFixture 构造上游电影数据
type movieFixture struct {
	id          int64
	title       string
	date        string
	runtime     int
	status      string
	imdb        string
	language    string
	revenue     int64
	documentary bool
	directors   []MovieCrewCredit
	cast        []MovieCastCredit
}

func eligibleMovie(id int64, title, date string, directors ...MovieCrewCredit) movieFixture {
	return movieFixture{
		id:        id,
		title:     title,
		date:      date,
		runtime:   100,
		status:    "Released",
		imdb:      fmt.Sprintf("tt%07d", id),
		language:  "en",
		directors: directors,
	}
}

func director(id int64, name string, gender int) MovieCrewCredit {
	return MovieCrewCredit{ID: id, Name: name, Gender: gender, Job: "Director", Department: "Directing", KnownForDepartment: "Directing"}
}

func (s movieFixture) payload() *MoviePayload {
	m := &MoviePayload{
		ID:               s.id,
		Title:            s.title,
		OriginalTitle:    s.title,
		ReleaseDate:      s.date,
		OriginalLanguage: s.language,
		Runtime:          s.runtime,
		Status:           s.status,
		Revenue:          s.revenue,
	}
	if s.imdb != "" {
		imdb := s.imdb
		m.IMDbID = &imdb
	}
	if s.documentary {
		m.Genres = append(m.Genres, Genre{ID: 99, Name: "Documentary"})
	}
	m.Credits.Crew = append(m.Credits.Crew, s.directors...)
	m.Credits.Crew = append(m.Credits.Crew, MovieCrewCredit{ID: 9000 + s.id, Name: "Someone", Job: "Producer"})
	m.Credits.Cast = s.cast
	return m
}

func (f *fakeCatalog) addMovie(s movieFixture) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.movies[s.id] = s.payload()
}

func (f *fakeCatalog) addPerson(id int64, name, department string, credits ...PersonCastCredit) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &PersonPayload{
		ID:                 id,
		Name:               name,
		Gender:             1,
		KnownForDepartment: department,
		Popularity:         10,
		Birthday:           "1980-01-02",
	}
	p.Images.Profiles = append(p.Images.Profiles, ProfileImage{FilePath: fmt.Sprintf("/%d.jpg", id)})
	p.MovieCredits.Cast = credits
	f.persons[id] = p
}

func credit(filmID int64, date string) PersonCastCredit {
	return PersonCastCredit{ID: filmID, ReleaseDate: date, Character: "Lead"}
}
