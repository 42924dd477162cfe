package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"ragchat/internal/domain"
	"ragchat/internal/vectorstore"
)

// Storage is a minimal REST client to Qdrant.
// It uses cosine distance and creates the collection on first upsert.
// Points are keyed by a UUIDv5 of the segment fingerprint, so repeated
// ingestion across runs never duplicates a segment.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu     sync.Mutex
	ready  bool
	seqGen atomic.Int64
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	s := &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
	s.seqGen.Store(time.Now().UnixNano())
	return s
}

// PointID maps a segment fingerprint to the Qdrant point ID.
func PointID(fingerprint string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fingerprint)).String()
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

func (s *Storage) ensureCollection(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	status, err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil, nil)
	if err != nil && status != http.StatusNotFound {
		return err
	}
	if status == http.StatusNotFound {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dimension,
				"distance": "Cosine",
			},
		}
		if _, err := s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil); err != nil {
			return err
		}
	}
	s.ready = true
	return nil
}

func (s *Storage) existing(ctx context.Context, ids []string) (map[string]bool, error) {
	req := map[string]any{
		"ids":          ids,
		"with_payload": false,
		"with_vector":  false,
	}
	var resp struct {
		Result []struct {
			ID any `json:"id"`
		} `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL("/points"), req, &resp); err != nil {
		return nil, err
	}
	found := make(map[string]bool, len(resp.Result))
	for _, r := range resp.Result {
		found[fmt.Sprint(r.ID)] = true
	}
	return found, nil
}

func (s *Storage) Upsert(ctx context.Context, segments []domain.Segment, vectors [][]float32) (int, error) {
	dim, err := vectorstore.CheckBatch(segments, vectors, 0)
	if err != nil || len(segments) == 0 {
		return 0, err
	}
	if err := s.ensureCollection(ctx, dim); err != nil {
		return 0, vectorstore.Wrap("create collection", err)
	}
	ids := make([]string, len(segments))
	for i := range segments {
		ids[i] = PointID(segments[i].Fingerprint)
	}
	found, err := s.existing(ctx, ids)
	if err != nil {
		return 0, vectorstore.Wrap("retrieve points", err)
	}
	points := make([]map[string]any, 0, len(segments))
	for i, seg := range segments {
		if found[ids[i]] {
			continue
		}
		found[ids[i]] = true
		points = append(points, map[string]any{
			"id":     ids[i],
			"vector": vectors[i],
			"payload": map[string]any{
				"fingerprint": seg.Fingerprint,
				"source":      seg.Source,
				"offset":      seg.Offset,
				"index":       seg.Index,
				"text":        seg.Text,
				"seq":         s.seqGen.Add(1),
			},
		})
	}
	if len(points) == 0 {
		return 0, nil
	}
	body := map[string]any{"points": points}
	if _, err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), body, nil); err != nil {
		return 0, vectorstore.Wrap("upsert points", err)
	}
	return len(points), nil
}

func (s *Storage) Query(ctx context.Context, vector []float32, k int) ([]domain.Match, error) {
	if k <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload struct {
				Fingerprint string `json:"fingerprint"`
				Source      string `json:"source"`
				Offset      int    `json:"offset"`
				Index       int    `json:"index"`
				Text        string `json:"text"`
				Seq         int64  `json:"seq"`
			} `json:"payload"`
		} `json:"result"`
	}
	status, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, vectorstore.Wrap("search", err)
	}
	candidates := make([]vectorstore.Ranked, 0, len(resp.Result))
	for _, r := range resp.Result {
		p := r.Payload
		candidates = append(candidates, vectorstore.Ranked{
			Match: domain.Match{
				Segment: domain.Segment{
					Fingerprint: p.Fingerprint,
					Source:      p.Source,
					Offset:      p.Offset,
					Index:       p.Index,
					Text:        p.Text,
				},
				Distance: 1 - r.Score,
			},
			Seq: p.Seq,
		})
	}
	return vectorstore.TopK(candidates, k), nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	status, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/count"), map[string]any{"exact": true}, &resp)
	if status == http.StatusNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, vectorstore.Wrap("count", err)
	}
	return resp.Result.Count, nil
}

func (s *Storage) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// do sends a JSON request and decodes the response into out when non-nil.
// The HTTP status is returned even when err is non-nil.
func (s *Storage) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s %s", method, url, resp.Status, bytes.TrimSpace(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding qdrant response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
