package citation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	sharederrors "github.com/jordigilh/docflow/pkg/shared/errors"
	sharedhttp "github.com/jordigilh/docflow/pkg/shared/http"

	"github.com/jordigilh/docflow/pkg/cache"
)

const userAgent = "docflow-workflow-engine/1.0 (mailto:ops@docflow.example)"

// Resolver resolves and searches bibliographic records against a
// CrossRef-compatible endpoint, caching results by canonical DOI / query.
type Resolver struct {
	baseURL string
	client  *http.Client
	cache   cache.Cache
}

func NewResolver(baseURL string, c cache.Cache) *Resolver {
	if baseURL == "" {
		baseURL = "https://api.crossref.org"
	}
	return &Resolver{
		baseURL: baseURL,
		client:  sharedhttp.NewClient(sharedhttp.CrossRefClientConfig()),
		cache:   c,
	}
}

// crossRefWork is the subset of a CrossRef /works response this system
// maps into a Record; unknown fields are ignored.
type crossRefWork struct {
	Message crossRefMessage `json:"message"`
}

type crossRefMessage struct {
	DOI       string              `json:"DOI"`
	Title     []string            `json:"title"`
	Author    []crossRefAuthor    `json:"author"`
	Published crossRefDatePart    `json:"published"`
	Publisher string              `json:"publisher"`
	Volume    string              `json:"volume"`
	Page      string              `json:"page"`
	URL       string              `json:"URL"`
	Abstract  string              `json:"abstract"`
	Score     float64             `json:"score"`
}

type crossRefAuthor struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}

type crossRefDatePart struct {
	DateParts [][]int `json:"date-parts"`
}

type crossRefSearchResponse struct {
	Message crossRefSearchMessage `json:"message"`
}

type crossRefSearchMessage struct {
	Items []crossRefMessage `json:"items"`
}

func (m crossRefMessage) toRecord() Record {
	var authors []string
	for _, a := range m.Author {
		name := a.Given
		if name != "" {
			name += " "
		}
		name += a.Family
		authors = append(authors, name)
	}
	year := 0
	if len(m.Published.DateParts) > 0 && len(m.Published.DateParts[0]) > 0 {
		year = m.Published.DateParts[0][0]
	}
	title := ""
	if len(m.Title) > 0 {
		title = m.Title[0]
	}
	return Record{
		DOI:            NormalizeDOI(m.DOI),
		Title:          title,
		Authors:        authors,
		Year:           year,
		Journal:        m.Publisher,
		Volume:         m.Volume,
		Pages:          m.Page,
		URL:            m.URL,
		Abstract:       m.Abstract,
		IsValid:        true,
		ValidationDate: time.Now(),
	}
}

// Resolve consults the cache first; on miss, calls the external
// bibliographic service and caches the result for 24h.
func (r *Resolver) Resolve(ctx context.Context, doi string) (*Record, error) {
	canonical := NormalizeDOI(doi)

	if cached, ok := r.cache.Get(ctx, cache.NamespaceCitation, canonical); ok {
		var record Record
		if err := json.Unmarshal([]byte(cached), &record); err == nil {
			return &record, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/works/%s", r.baseURL, url.PathEscape(canonical)), nil)
	if err != nil {
		return nil, sharederrors.Wrapf(err, "build crossref request for doi %s", canonical)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, sharederrors.NetworkError("resolve doi", r.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, sharederrors.NetworkError("resolve doi", r.baseURL, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var work crossRefWork
	if err := json.NewDecoder(resp.Body).Decode(&work); err != nil {
		return nil, sharederrors.ParseError("crossref response", "json", err)
	}

	record := work.Message.toRecord()
	data, _ := json.Marshal(record)
	_ = r.cache.Set(ctx, cache.NamespaceCitation, canonical, string(data))

	return &record, nil
}

// Search queries the bibliographic service by free text, caching the
// query+limit combination for 1h.
func (r *Resolver) Search(ctx context.Context, query string, maxResults int) ([]Record, error) {
	cacheKey := fmt.Sprintf("%s|%d", query, maxResults)
	if cached, ok := r.cache.Get(ctx, cache.NamespaceCrossRefSearch, cacheKey); ok {
		var records []Record
		if err := json.Unmarshal([]byte(cached), &records); err == nil {
			return records, nil
		}
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("rows", strconv.Itoa(maxResults))
	q.Set("sort", "relevance")
	q.Set("order", "desc")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/works?%s", r.baseURL, q.Encode()), nil)
	if err != nil {
		return nil, sharederrors.Wrapf(err, "build crossref search request")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, sharederrors.NetworkError("search citations", r.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, sharederrors.NetworkError("search citations", r.baseURL, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var searchResp crossRefSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, sharederrors.ParseError("crossref search response", "json", err)
	}

	records := make([]Record, 0, len(searchResp.Message.Items))
	for _, item := range searchResp.Message.Items {
		records = append(records, item.toRecord())
	}

	data, _ := json.Marshal(records)
	_ = r.cache.Set(ctx, cache.NamespaceCrossRefSearch, cacheKey, string(data))

	return records, nil
}

// BestMatchScore returns the relevance score of a search's most relevant
// item, used by validate_bibliography's author-year matching rule.
func (r *Resolver) BestMatchScore(ctx context.Context, query string) (float64, error) {
	cacheKey := fmt.Sprintf("score|%s", query)
	if cached, ok := r.cache.Get(ctx, cache.NamespaceCrossRefSearch, cacheKey); ok {
		if score, err := strconv.ParseFloat(cached, 64); err == nil {
			return score, nil
		}
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("rows", "1")
	q.Set("sort", "relevance")
	q.Set("order", "desc")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/works?%s", r.baseURL, q.Encode()), nil)
	if err != nil {
		return 0, sharederrors.Wrapf(err, "build crossref relevance request")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, sharederrors.NetworkError("search citations", r.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, sharederrors.NetworkError("search citations", r.baseURL, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var searchResp crossRefSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return 0, sharederrors.ParseError("crossref search response", "json", err)
	}
	if len(searchResp.Message.Items) == 0 {
		return 0, nil
	}

	score := searchResp.Message.Items[0].Score
	_ = r.cache.Set(ctx, cache.NamespaceCrossRefSearch, cacheKey, strconv.FormatFloat(score, 'f', -1, 64))
	return score, nil
}
