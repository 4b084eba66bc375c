package atlas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/errgroup"

	"atlas-advisor-backend/internal/apperr"
	"atlas-advisor-backend/internal/types"
	"atlas-advisor-backend/internal/validation"
)

// DefaultPortalURL is ArcGIS Online.
const DefaultPortalURL = "https://www.arcgis.com"

// PortalConfig configures the live ArcGIS portal searcher.
type PortalConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	// Filter is appended to every query, e.g. `owner:esri*`.
	Filter string
}

// PortalSearcher queries the ArcGIS portal item search REST endpoint.
type PortalSearcher struct {
	httpClient *http.Client
	baseAPI    string
	filter     string
}

// NewPortalSearcher builds a searcher. With client credentials set, the
// HTTP client fetches and refreshes an app token via OAuth2.
func NewPortalSearcher(cfg PortalConfig) *PortalSearcher {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultPortalURL
	}
	client := &http.Client{Timeout: 20 * time.Second}
	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		cc := clientcredentials.Config{
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			TokenURL:       base + "/sharing/rest/oauth2/token",
			EndpointParams: url.Values{"f": {"json"}},
			AuthStyle:      oauth2.AuthStyleInParams,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
		client = cc.Client(ctx)
	}
	return &PortalSearcher{httpClient: client, baseAPI: base, filter: strings.TrimSpace(cfg.Filter)}
}

// portalFacetSize bounds the number of item types the portal counts.
const portalFacetSize = 50

type portalSearchResponse struct {
	Total   int `json:"total"`
	Results []struct {
		ID          string   `json:"id"`
		Title       string   `json:"title"`
		Snippet     string   `json:"snippet"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
		Owner       string   `json:"owner"`
		Type        string   `json:"type"`
		URL         string   `json:"url"`
		Modified    int64    `json:"modified"` // epoch ms
		NumViews    int      `json:"numViews"`
	} `json:"results"`
	Aggregations struct {
		Counts []struct {
			FieldName   string `json:"fieldName"`
			FieldValues []struct {
				Value string `json:"value"`
				Count int    `json:"count"`
			} `json:"fieldValues"`
		} `json:"counts"`
	} `json:"aggregations"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

var portalSortFields = map[string][2]string{
	validation.SortTitle:      {"title", "asc"},
	validation.SortModified:   {"modified", "desc"},
	validation.SortPopularity: {"numviews", "desc"},
}

// Search pages through the filtered query. Category facets are the portal's
// type counts over the unfiltered query, so with a category set they come
// from a second request issued alongside the first.
func (p *PortalSearcher) Search(ctx context.Context, in types.SearchInput) (Page, error) {
	qv := url.Values{}
	qv.Set("q", p.buildQuery(in, true))
	qv.Set("num", strconv.Itoa(in.Limit))
	qv.Set("start", strconv.Itoa(in.Offset+1)) // portal paging is 1-based
	if sf, ok := portalSortFields[in.SortBy]; ok {
		qv.Set("sortField", sf[0])
		qv.Set("sortOrder", sf[1])
	}
	if in.Category == "" {
		setTypeCounts(qv)
	}

	var body, facets portalSearchResponse
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		body, err = p.search(gctx, qv)
		return err
	})
	if in.Category != "" {
		fv := url.Values{}
		fv.Set("q", p.buildQuery(in, false))
		fv.Set("num", "1")
		setTypeCounts(fv)
		g.Go(func() error {
			var err error
			facets, err = p.search(gctx, fv)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Page{}, err
	}
	if in.Category == "" {
		facets = body
	}

	page := Page{
		Total:      body.Total,
		Results:    make([]types.Dataset, 0, len(body.Results)),
		Categories: typeCounts(facets),
	}
	for _, it := range body.Results {
		desc := it.Snippet
		if desc == "" {
			desc = it.Description
		}
		var modified string
		if it.Modified > 0 {
			modified = time.UnixMilli(it.Modified).UTC().Format("2006-01-02")
		}
		page.Results = append(page.Results, types.Dataset{
			ID:          it.ID,
			Title:       it.Title,
			Description: desc,
			Category:    it.Type,
			Tags:        it.Tags,
			Owner:       it.Owner,
			ItemType:    it.Type,
			URL:         it.URL,
			Modified:    modified,
			Views:       it.NumViews,
		})
	}
	return page, nil
}

func setTypeCounts(qv url.Values) {
	qv.Set("countFields", "type")
	qv.Set("countSize", strconv.Itoa(portalFacetSize))
}

func typeCounts(resp portalSearchResponse) []types.CategoryCount {
	out := []types.CategoryCount{}
	for _, c := range resp.Aggregations.Counts {
		if !strings.EqualFold(c.FieldName, "type") {
			continue
		}
		for _, v := range c.FieldValues {
			if v.Count > 0 {
				out = append(out, types.CategoryCount{Category: v.Value, Count: v.Count})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func (p *PortalSearcher) search(ctx context.Context, qv url.Values) (portalSearchResponse, error) {
	qv.Set("f", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseAPI+"/sharing/rest/search?"+qv.Encode(), nil)
	if err != nil {
		return portalSearchResponse{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		// A rejected token request surfaces wrapped in *url.Error; keep only
		// the portal's answer so it is not mistaken for a network failure.
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return portalSearchResponse{}, &apperr.UpstreamError{Origin: apperr.OriginData, StatusCode: re.Response.StatusCode, Err: re}
		}
		return portalSearchResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return portalSearchResponse{}, &apperr.UpstreamError{
			Origin:     apperr.OriginData,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("portal search failed: %s", strings.TrimSpace(string(b))),
		}
	}

	var body portalSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return portalSearchResponse{}, &apperr.UpstreamError{Origin: apperr.OriginData, Err: fmt.Errorf("decode portal response: %w", err)}
	}
	// The portal reports errors in a 200 body.
	if body.Error != nil {
		return portalSearchResponse{}, &apperr.UpstreamError{
			Origin:     apperr.OriginData,
			StatusCode: body.Error.Code,
			Err:        errors.New(body.Error.Message),
		}
	}
	return body, nil
}

func (p *PortalSearcher) buildQuery(in types.SearchInput, withCategory bool) string {
	parts := []string{in.Query}
	if withCategory && in.Category != "" {
		parts = append(parts, fmt.Sprintf("type:%q", in.Category))
	}
	if p.filter != "" {
		parts = append(parts, p.filter)
	}
	return strings.Join(parts, " AND ")
}
