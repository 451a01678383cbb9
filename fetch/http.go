package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dnldd/stocketl/shared"
)

const (
	// defaultTimeout is the default timeout for remote api requests.
	defaultTimeout = time.Second * 10
	// maxErrorBody is the maximum number of response body bytes kept on a failed request.
	maxErrorBody = 1024
)

// formURL creates full urls including parameters for an api.
func formURL(buf *bytes.Buffer, baseURL string, path string, params string) string {
	buf.WriteString(baseURL)
	buf.WriteString(path)
	if params != "" {
		buf.WriteString("?")
		buf.WriteString(params)
	}
	url := buf.String()
	buf.Reset()

	return url
}

// getBody performs a GET request and returns the body of a successful response.
func getBody(ctx context.Context, httpc *http.Client, formedURL string, desc string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, formedURL, nil)
	if err != nil {
		return nil, shared.NewRemoteFetchError(fmt.Sprintf("creating request for %s", desc), 0, "", err)
	}

	resp, err := httpc.Do(req)
	if err != nil {
		return nil, shared.NewRemoteFetchError(fmt.Sprintf("fetching %s", desc), 0, "", err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, shared.NewRemoteFetchError(fmt.Sprintf("reading %s response body", desc), resp.StatusCode, "", err)
	}

	if resp.StatusCode != http.StatusOK {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, shared.NewRemoteFetchError(fmt.Sprintf("fetching %s", desc), resp.StatusCode, string(body), nil)
	}

	return body, nil
}
