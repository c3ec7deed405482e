package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// DefaultQRServerURL is the goqr.me read endpoint.
const DefaultQRServerURL = "https://api.qrserver.com/v1/read-qr-code/"

// QRServer talks to services answering with the nested symbol array:
//
//	[{"type":"qrcode","symbol":[{"seq":0,"data":"...","error":null}]}]
type QRServer struct {
	uploader
}

func NewQRServer(id, endpoint string, client *http.Client) *QRServer {
	if endpoint == "" {
		endpoint = DefaultQRServerURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &QRServer{uploader{id: id, endpoint: endpoint, client: client}}
}

func (q *QRServer) ID() string {
	return q.id
}

func (q *QRServer) Decode(ctx context.Context, jpeg []byte) (string, error) {
	status, body, err := q.post(ctx, jpeg)
	if err != nil {
		return "", err
	}
	return parseQRServerResponse(q.id, status, body)
}

type qrServerResult struct {
	Type   string           `json:"type"`
	Symbol []qrServerSymbol `json:"symbol"`
}

type qrServerSymbol struct {
	Seq   int     `json:"seq"`
	Data  *string `json:"data"`
	Error *string `json:"error"`
}

func parseQRServerResponse(providerID string, status int, body []byte) (string, error) {
	if !isSuccess(status) {
		return "", statusError(providerID, status)
	}
	var results []qrServerResult
	if err := json.Unmarshal(body, &results); err != nil {
		return "", NewProviderError(ErrorBadData, providerID, "malformed response", err)
	}
	for _, r := range results {
		for _, sym := range r.Symbol {
			if sym.Error != nil && *sym.Error != "" {
				continue
			}
			if sym.Data != nil && strings.TrimSpace(*sym.Data) != "" {
				return *sym.Data, nil
			}
		}
	}
	return "", ErrNoCode
}
