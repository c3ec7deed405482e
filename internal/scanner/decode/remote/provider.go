package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

const maxResponseBytes = 1 << 20

// Provider is an external QR decode service.
type Provider interface {
	// ID returns a unique identifier for this provider instance
	ID() string

	// Decode uploads a JPEG and returns the decoded text. It returns ErrNoCode
	// when the service saw no code and a *ProviderError for every failure.
	Decode(ctx context.Context, jpeg []byte) (string, error)
}

// uploader holds the multipart POST shared by the HTTP providers.
type uploader struct {
	id       string
	endpoint string
	client   *http.Client
}

// post sends jpeg as the "file" field and returns status and body. Transport
// failures come back already categorized.
func (u uploader) post(ctx context.Context, jpeg []byte) (int, []byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="scan.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(header)
	if err != nil {
		return 0, nil, NewProviderError(ErrorInternal, u.id, "build multipart body", err)
	}
	if _, err := part.Write(jpeg); err != nil {
		return 0, nil, NewProviderError(ErrorInternal, u.id, "build multipart body", err)
	}
	if err := mw.Close(); err != nil {
		return 0, nil, NewProviderError(ErrorInternal, u.id, "build multipart body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, &body)
	if err != nil {
		return 0, nil, NewProviderError(ErrorInternal, u.id, "build request", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, nil, NewProviderError(ErrorTimeout, u.id, "request timed out", err)
		}
		return 0, nil, NewProviderError(ErrorProviderOutage, u.id, "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, NewProviderError(ErrorProviderOutage, u.id, "read response", err)
	}
	return resp.StatusCode, data, nil
}

// statusError categorizes non-2xx answers.
func statusError(providerID string, status int) error {
	msg := fmt.Sprintf("unexpected status %d", status)
	switch {
	case status == http.StatusTooManyRequests:
		return NewProviderError(ErrorRateLimited, providerID, msg, nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewProviderError(ErrorAuthentication, providerID, msg, nil)
	default:
		return NewProviderError(ErrorProviderOutage, providerID, msg, nil)
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
