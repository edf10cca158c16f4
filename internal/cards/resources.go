package cards

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"strconv"

	"github.com/guarzo/pkmprice/internal/model"
)

// DefaultPageSize is the page size the catalog uses when none is requested.
const DefaultPageSize = 250

type envelope[T any] struct {
	Data *T `json:"data"`
}

type pageEnvelope[T any] struct {
	Data       *[]T `json:"data"`
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	Count      int  `json:"count"`
	TotalCount int  `json:"totalCount"`
}

// Find fetches one resource by id from {base}/{path}/{id}.
//
// A missing resource yields ErrNotFound; types that can't be fetched by id
// yield ErrNotFindable without touching the network.
func Find[T Resource](ctx context.Context, c *Client, id string) (T, error) {
	var zero T
	if !zero.Findable() {
		return zero, fmt.Errorf("%w: %s", ErrNotFindable, zero.ResourcePath())
	}
	if id == "" {
		return zero, fmt.Errorf("%w: empty %s id", ErrNotFound, zero.ResourcePath())
	}

	path := zero.ResourcePath() + "/" + url.PathEscape(id)
	body, err := c.get(ctx, path, nil)
	if err != nil {
		return zero, err
	}

	var env envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return zero, fmt.Errorf("%w: %s: %v", ErrEnvelope, path, err)
	}
	if env.Data == nil {
		return zero, fmt.Errorf("%w: %s: no data field", ErrEnvelope, path)
	}
	return *env.Data, nil
}

// Where lists resources matching filters (sent as query parameters).
//
// When filters carries "page", exactly that page is fetched. Otherwise pages
// are requested from 1 until the server says there is nothing left: an empty
// page, page*pageSize reaching totalCount, or, when the server sends no
// counts, a page shorter than the requested page size. On error the items
// gathered so far are returned with it.
func Where[T Resource](ctx context.Context, c *Client, filters map[string]string) ([]T, error) {
	var zero T
	path := zero.ResourcePath()

	query := maps.Clone(filters)
	if query == nil {
		query = map[string]string{}
	}

	if _, fixed := query["page"]; fixed {
		env, err := fetchPage[T](ctx, c, path, query)
		if err != nil {
			return nil, err
		}
		return *env.Data, nil
	}

	pageSize := DefaultPageSize
	if v, ok := query["pageSize"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			pageSize = n
		}
	}

	var out []T
	for page := 1; ; page++ {
		query["page"] = strconv.Itoa(page)
		env, err := fetchPage[T](ctx, c, path, query)
		if err != nil {
			return out, err
		}
		out = append(out, *env.Data...)

		if env.exhausted(page, pageSize) {
			c.log.Debug().Str("path", path).Int("pages", page).Int("items", len(out)).Msg("listing complete")
			return out, nil
		}
	}
}

// All lists every resource of type T.
func All[T Resource](ctx context.Context, c *Client) ([]T, error) {
	return Where[T](ctx, c, nil)
}

func fetchPage[T Resource](ctx context.Context, c *Client, path string, query map[string]string) (pageEnvelope[T], error) {
	var env pageEnvelope[T]

	body, err := c.get(ctx, path, query)
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return env, fmt.Errorf("%w: %s: %v", ErrEnvelope, path, err)
	}
	if env.Data == nil {
		return env, fmt.Errorf("%w: %s: no data field", ErrEnvelope, path)
	}
	return env, nil
}

func (e pageEnvelope[T]) exhausted(requested, pageSize int) bool {
	n := len(*e.Data)
	if n == 0 {
		return true
	}

	if e.TotalCount > 0 {
		page, size := e.Page, e.PageSize
		if page <= 0 {
			page = requested
		}
		if size <= 0 {
			size = pageSize
		}
		return page*size >= e.TotalCount
	}

	return n < pageSize
}

// Card fetches a single card by catalog id, e.g. "sv1-123".
func (c *Client) Card(ctx context.Context, id string) (model.Card, error) {
	return Find[model.Card](ctx, c, id)
}

// Sets lists every set, oldest release first.
func (c *Client) Sets(ctx context.Context) ([]model.Set, error) {
	return Where[model.Set](ctx, c, map[string]string{"orderBy": "releaseDate"})
}
