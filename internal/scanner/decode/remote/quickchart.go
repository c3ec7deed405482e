package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// DefaultQuickChartURL is the public QuickChart QR reader.
const DefaultQuickChartURL = "https://quickchart.io/qr/read"

// QuickChart talks to services answering with a flat {"text": "..."} object.
type QuickChart struct {
	uploader
}

func NewQuickChart(id, endpoint string, client *http.Client) *QuickChart {
	if endpoint == "" {
		endpoint = DefaultQuickChartURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &QuickChart{uploader{id: id, endpoint: endpoint, client: client}}
}

func (q *QuickChart) ID() string {
	return q.id
}

func (q *QuickChart) Decode(ctx context.Context, jpeg []byte) (string, error) {
	status, body, err := q.post(ctx, jpeg)
	if err != nil {
		return "", err
	}
	return parseQuickChartResponse(q.id, status, body)
}

type quickChartResponse struct {
	Text *string `json:"text"`
}

func parseQuickChartResponse(providerID string, status int, body []byte) (string, error) {
	if !isSuccess(status) {
		return "", statusError(providerID, status)
	}
	var resp quickChartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", NewProviderError(ErrorBadData, providerID, "malformed response", err)
	}
	if resp.Text == nil || strings.TrimSpace(*resp.Text) == "" {
		return "", ErrNoCode
	}
	return *resp.Text, nil
}
