// Package words supplies the list of secret words rounds are played with.
package words

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/maxi0604/hangtheman/cacher"
	"github.com/maxi0604/hangtheman/game"
)

// Default is the built-in word list.
var Default = []string{
	"Socket",
	"Oktober",
	"Client",
	"Rechnerkommunikation",
	"Server",
	"China",
	"Pipeline",
	"Rechner",
	"Mikroarchitektur",
	"Krabbe",
	"Taschenratte",
	"Keith",
	"C++",
}

// Source provides the current word list. Implementations return
// game.ErrEmptyWordList rather than an empty list.
type Source interface {
	Words(ctx context.Context) ([]string, error)
}

// StaticSource serves a fixed in-memory list.
type StaticSource []string

// Words implements Source.
func (s StaticSource) Words(ctx context.Context) ([]string, error) {
	if len(s) == 0 {
		return nil, game.ErrEmptyWordList
	}

	return slices.Clone(s), nil
}

// FileSource reads one word per line from a file. Blank lines and lines
// starting with '#' are skipped.
type FileSource struct {
	Path string
}

// Words implements Source.
func (s FileSource) Words(ctx context.Context) ([]string, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open word file: %w", err)
	}
	defer f.Close()

	list, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read word file %s: %w", s.Path, err)
	}

	return list, nil
}

// Parse reads a newline separated word list.
func Parse(r io.Reader) ([]string, error) {
	var list []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		list = append(list, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(list) == 0 {
		return nil, game.ErrEmptyWordList
	}

	return list, nil
}

// HTTPSource fetches a JSON array of words, the format served by common
// random-word APIs.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// NewHTTPSource returns an HTTPSource with a bounded request timeout.
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		URL:    url,
		Client: &http.Client{Timeout: 20 * time.Second},
	}
}

// Words implements Source.
func (s *HTTPSource) Words(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build word request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch words: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch words: unexpected status %d", resp.StatusCode)
	}

	var raw []string
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode words: %w", err)
	}

	list := make([]string, 0, len(raw))
	for _, w := range raw {
		if w = strings.TrimSpace(w); w != "" {
			list = append(list, w)
		}
	}

	if len(list) == 0 {
		return nil, game.ErrEmptyWordList
	}

	return list, nil
}

// CachedSource serves the list of another Source from a cache so it is not
// re-read every round.
type CachedSource struct {
	Source Source
	Cache  cacher.Cacher[[]string]
	Key    string
	TTL    time.Duration
}

// Words implements Source.
func (s *CachedSource) Words(ctx context.Context) ([]string, error) {
	return s.Cache.GetOrFetch(ctx, s.Key, s.TTL, s.Source.Words)
}
