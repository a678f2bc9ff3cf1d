package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/user/castcount/internal/config"
	"github.com/user/castcount/internal/utils"
	"golang.org/x/time/rate"
)

// Catalog 上游目录（TMDB）访问接口
type Catalog interface {
	FetchPerson(ctx context.Context, id int64) (*PersonPayload, error)
	FetchMovie(ctx context.Context, id int64) (*MoviePayload, error)
	FetchPopularPersons(ctx context.Context, page int) (*PopularPage, error)
}

// PersonPayload GET /person/{id}?append_to_response=images,movie_credits
type PersonPayload struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	OriginalName       string  `json:"original_name"`
	Gender             int     `json:"gender"`
	KnownForDepartment string  `json:"known_for_department"`
	Popularity         float64 `json:"popularity"`
	ProfilePath        string  `json:"profile_path"`
	Birthday           string  `json:"birthday"`
	Deathday           string  `json:"deathday"`
	Images             struct {
		Profiles []ProfileImage `json:"profiles"`
	} `json:"images"`
	MovieCredits struct {
		Cast []PersonCastCredit `json:"cast"`
	} `json:"movie_credits"`
}

// ProfileImage 人物头像
type ProfileImage struct {
	FilePath string `json:"file_path"`
}

// Genre 电影类型
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// PersonCastCredit 演员作品表中的一条
type PersonCastCredit struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	OriginalTitle    string `json:"original_title"`
	ReleaseDate      string `json:"release_date"`
	OriginalLanguage string `json:"original_language"`
	Character        string `json:"character"`
	Adult            bool   `json:"adult"`
}

// MoviePayload GET /movie/{id}?append_to_response=credits
type MoviePayload struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	OriginalTitle    string  `json:"original_title"`
	ReleaseDate      string  `json:"release_date"`
	OriginalLanguage string  `json:"original_language"`
	Runtime          int     `json:"runtime"`
	Status           string  `json:"status"`
	Budget           int64   `json:"budget"`
	Revenue          int64   `json:"revenue"`
	IMDbID           *string `json:"imdb_id"`
	Genres           []Genre `json:"genres"`
	Credits          struct {
		Cast []MovieCastCredit `json:"cast"`
		Crew []MovieCrewCredit `json:"crew"`
	} `json:"credits"`
}

// MovieCastCredit 电影演员表中的一条，Order 越小番位越高
type MovieCastCredit struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Character string `json:"character"`
	Order     int    `json:"order"`
}

// MovieCrewCredit 电影剧组中的一条
type MovieCrewCredit struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	OriginalName       string `json:"original_name"`
	Gender             int    `json:"gender"`
	Job                string `json:"job"`
	Department         string `json:"department"`
	KnownForDepartment string `json:"known_for_department"`
}

// PersonSummary 热门人物列表中的一条
type PersonSummary struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	KnownForDepartment string  `json:"known_for_department"`
	Popularity         float64 `json:"popularity"`
	Adult              bool    `json:"adult"`
}

// PopularPage 热门人物列表的一页
type PopularPage struct {
	Page       int             `json:"page"`
	TotalPages int             `json:"total_pages"`
	Results    []PersonSummary `json:"results"`
}

// statusEnvelope TMDB 失败时的响应体，HTTP 200 也可能带 success=false
type statusEnvelope struct {
	Success       *bool  `json:"success"`
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

// TMDBClient 限速的 TMDB 客户端
type TMDBClient struct {
	baseURL  string
	apiKey   string
	language string
	timeout  time.Duration
	http     *utils.HTTPClient
	limiter  *rate.Limiter
	notFound *utils.TTLCache[bool]
	logger   hclog.Logger
}

// NewTMDBClient notFoundTTL 内不会重复请求已确认不存在的 ID
func NewTMDBClient(cfg config.TMDBConfig, notFoundTTL time.Duration, logger hclog.Logger) *TMDBClient {
	return &TMDBClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		language: cfg.Language,
		timeout:  cfg.Timeout,
		http:     utils.NewHTTPClient(cfg.Timeout, "castcount/1.0"),
		limiter:  rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		notFound: utils.NewTTLCache[bool](4096, notFoundTTL),
		logger:   logger,
	}
}

// FetchPerson 获取人物详情、头像和电影作品表
func (c *TMDBClient) FetchPerson(ctx context.Context, id int64) (*PersonPayload, error) {
	var payload PersonPayload
	path := "/person/" + strconv.FormatInt(id, 10)
	if err := c.getJSON(ctx, "person", id, path, url.Values{"append_to_response": {"images,movie_credits"}}, &payload); err != nil {
		return nil, err
	}
	if payload.ID == 0 {
		return nil, wrapCatalogError("person", id, fmt.Errorf("%w: missing id", ErrUpstreamFailure))
	}
	return &payload, nil
}

// FetchMovie 获取电影详情和演职员表
func (c *TMDBClient) FetchMovie(ctx context.Context, id int64) (*MoviePayload, error) {
	var payload MoviePayload
	path := "/movie/" + strconv.FormatInt(id, 10)
	if err := c.getJSON(ctx, "movie", id, path, url.Values{"append_to_response": {"credits"}}, &payload); err != nil {
		return nil, err
	}
	if payload.ID == 0 {
		return nil, wrapCatalogError("movie", id, fmt.Errorf("%w: missing id", ErrUpstreamFailure))
	}
	return &payload, nil
}

// FetchPopularPersons 获取热门人物列表的一页
func (c *TMDBClient) FetchPopularPersons(ctx context.Context, page int) (*PopularPage, error) {
	var payload PopularPage
	query := url.Values{"page": {strconv.Itoa(page)}}
	if err := c.getJSON(ctx, "popular", int64(page), "/person/popular", query, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *TMDBClient) getJSON(ctx context.Context, op string, id int64, path string, query url.Values, target interface{}) error {
	memoKey := op + ":" + strconv.FormatInt(id, 10)
	if op != "popular" {
		if _, ok := c.notFound.Get(memoKey); ok {
			return wrapCatalogError(op, id, ErrNotFound)
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return wrapCatalogError(op, id, fmt.Errorf("%w: rate limit wait: %v", ErrTransient, err))
	}

	query.Set("api_key", c.apiKey)
	query.Set("language", c.language)
	reqURL := c.baseURL + path + "?" + query.Encode()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Trace("tmdb request", "op", op, "id", id)
	status, body, err := c.http.GetBody(callCtx, reqURL)
	if err != nil {
		return wrapCatalogError(op, id, fmt.Errorf("%w: %v", ErrTransient, err))
	}

	switch {
	case status == http.StatusNotFound:
		c.notFound.Set(memoKey, true)
		return wrapCatalogError(op, id, ErrNotFound)
	case status == http.StatusTooManyRequests || status >= 500:
		return wrapCatalogError(op, id, fmt.Errorf("%w: status %d", ErrTransient, status))
	case status != http.StatusOK:
		return wrapCatalogError(op, id, fmt.Errorf("%w: status %d: %s", ErrTransient, status, envelopeMessage(body)))
	}

	var envelope statusEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return wrapCatalogError(op, id, fmt.Errorf("%w: decode: %v", ErrUpstreamFailure, err))
	}
	if envelope.Success != nil && !*envelope.Success {
		return wrapCatalogError(op, id, fmt.Errorf("%w: %d %s", ErrUpstreamFailure, envelope.StatusCode, envelope.StatusMessage))
	}
	if err := json.Unmarshal(body, target); err != nil {
		return wrapCatalogError(op, id, fmt.Errorf("%w: decode: %v", ErrUpstreamFailure, err))
	}
	return nil
}

func envelopeMessage(body []byte) string {
	var envelope statusEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.StatusMessage == "" {
		return strings.TrimSpace(string(body))
	}
	return envelope.StatusMessage
}

// IsNotFound 上游确认不存在
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
