// Package generator talks to the services that write chapter content and
// look up tutorial videos. Both run outside this process and are reached
// over HTTP.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/learnify/internal/metrics"
	"github.com/sakif/learnify/internal/model"
)

// ErrNotConfigured is returned by a generator with no endpoint.
var ErrNotConfigured = errors.New("generator: content generator not configured")

// maxParallelChapters bounds concurrent calls to the generator.
const maxParallelChapters = 4

// ContentGenerator writes the material for one chapter of a course.
type ContentGenerator interface {
	GenerateChapter(ctx context.Context, layout model.CourseLayout, chapter model.Chapter) (json.RawMessage, error)
}

// VideoFinder searches for tutorial videos matching a query.
type VideoFinder interface {
	Search(ctx context.Context, query string) ([]model.Video, error)
}

// NewHTTPClient returns a client whose outbound calls are traced.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// HTTPGenerator posts {course, chapter} to an endpoint and stores whatever
// JSON comes back.
type HTTPGenerator struct {
	endpoint string
	client   *http.Client
}

func NewHTTPGenerator(endpoint string, client *http.Client) *HTTPGenerator {
	return &HTTPGenerator{endpoint: endpoint, client: client}
}

func (g *HTTPGenerator) GenerateChapter(ctx context.Context, layout model.CourseLayout, chapter model.Chapter) (json.RawMessage, error) {
	if g.endpoint == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(struct {
		Course  model.CourseLayout `json:"course"`
		Chapter model.Chapter      `json:"chapter"`
	}{layout, chapter})
	if err != nil {
		return nil, fmt.Errorf("generator: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("generator: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out json.RawMessage
	if err := doJSON(g.client, req, &out); err != nil {
		return nil, fmt.Errorf("generator: chapter %q: %w", chapter.ChapterName, err)
	}
	if !model.ContentPresent(out) {
		return nil, fmt.Errorf("generator: chapter %q: empty content", chapter.ChapterName)
	}
	return out, nil
}

// HTTPVideoFinder queries a video search endpoint with ?q=. An empty
// endpoint finds nothing.
type HTTPVideoFinder struct {
	endpoint string
	client   *http.Client
}

func NewHTTPVideoFinder(endpoint string, client *http.Client) *HTTPVideoFinder {
	return &HTTPVideoFinder{endpoint: endpoint, client: client}
}

func (f *HTTPVideoFinder) Search(ctx context.Context, query string) ([]model.Video, error) {
	if f.endpoint == "" {
		return []model.Video{}, nil
	}

	u, err := url.Parse(f.endpoint)
	if err != nil {
		return nil, fmt.Errorf("video search: bad endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("video search: building request: %w", err)
	}

	var out struct {
		Items []model.Video `json:"items"`
	}
	if err := doJSON(f.client, req, &out); err != nil {
		return nil, fmt.Errorf("video search: %w", err)
	}
	if out.Items == nil {
		out.Items = []model.Video{}
	}
	return out.Items, nil
}

func doJSON(client *http.Client, req *http.Request, into any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Pipeline generates every chapter of a layout, in parallel.
type Pipeline struct {
	content ContentGenerator
	videos  VideoFinder
	logger  *slog.Logger
}

func NewPipeline(content ContentGenerator, videos VideoFinder, logger *slog.Logger) *Pipeline {
	return &Pipeline{content: content, videos: videos, logger: logger}
}

// Run returns one ChapterContent per chapter, in chapter order. A failed
// chapter fails the whole run; a failed video search only leaves that
// chapter without videos.
func (p *Pipeline) Run(ctx context.Context, layout model.CourseLayout) ([]model.ChapterContent, error) {
	if len(layout.Chapters) == 0 {
		return nil, errors.New("generator: course has no chapters")
	}

	out := make([]model.ChapterContent, len(layout.Chapters))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelChapters)

	for i, chapter := range layout.Chapters {
		g.Go(func() error {
			data, err := p.content.GenerateChapter(gctx, layout, chapter)
			if err != nil {
				metrics.ChapterGenerations.WithLabelValues("content", "error").Inc()
				return err
			}
			metrics.ChapterGenerations.WithLabelValues("content", "ok").Inc()

			videos, err := p.videos.Search(gctx, layout.Name+": "+chapter.ChapterName)
			if err != nil {
				metrics.ChapterGenerations.WithLabelValues("video", "error").Inc()
				p.logger.Warn("video search failed",
					slog.String("chapter", chapter.ChapterName),
					slog.String("error", err.Error()),
				)
				videos = []model.Video{}
			} else {
				metrics.ChapterGenerations.WithLabelValues("video", "ok").Inc()
			}

			out[i] = model.ChapterContent{CourseData: data, YoutubeVideo: videos}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
