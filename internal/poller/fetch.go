package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/xela07ax/sitesboard/internal/console/grpcapi"
	"github.com/xela07ax/sitesboard/internal/console/service"
	"github.com/xela07ax/sitesboard/internal/domain"
	"github.com/xela07ax/sitesboard/internal/infra"
)

// HTTPFetcher ходит в HTTP API дашборда (GET /api/v1/sites).
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

func NewHTTPFetcher(baseURL string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (f *HTTPFetcher) FetchReport(ctx context.Context, p Params) (*domain.Report, error) {
	v := url.Values{}
	setIfNotEmpty(v, "period", p.Period)
	setIfNotEmpty(v, "date", p.Date)
	setIfNotEmpty(v, "segment", p.Segment)
	setIfNotEmpty(v, "pattern", p.Pattern)
	v.Set("filter_limit", strconv.Itoa(p.Limit))
	v.Set("filter_offset", strconv.Itoa(p.Offset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/api/v1/sites?"+v.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("poller: build request: %w", err)
	}
	req.Header.Set(infra.TraceHeader, infra.TraceID(ctx))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poller: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &body) != nil || body.Error == "" {
			body.Error = strings.TrimSpace(string(data))
		}
		return nil, fmt.Errorf("poller: server returned %d: %s", resp.StatusCode, body.Error)
	}

	var report domain.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("poller: decode report: %w", err)
	}
	return &report, nil
}

func setIfNotEmpty(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

// GRPCFetcher получает отчет через sitesboard.v1.Dashboard.
type GRPCFetcher struct {
	client *grpcapi.Client
}

func NewGRPCFetcher(client *grpcapi.Client) *GRPCFetcher {
	return &GRPCFetcher{client: client}
}

func (f *GRPCFetcher) FetchReport(ctx context.Context, p Params) (*domain.Report, error) {
	req, err := grpcapi.EncodeQuery(service.ReportQuery{
		Period:  p.Period,
		Date:    p.Date,
		Segment: p.Segment,
		Pattern: p.Pattern,
		Limit:   p.Limit,
		Offset:  p.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("poller: encode query: %w", err)
	}

	resp, err := f.client.GetAllWithGroups(grpcapi.WithTraceID(ctx, infra.TraceID(ctx)), req)
	if err != nil {
		return nil, fmt.Errorf("poller: grpc call failed: %w", err)
	}
	return grpcapi.DecodeReport(resp)
}
