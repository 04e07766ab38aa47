package retry

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/unkn0wn-root/guardcache/fault"
)

const snippetLimit = 512

// AssertResponseOK returns nil for 2xx. Otherwise it reads a short body
// snippet and returns fault.KindClientRejection for 4xx and
// fault.KindUpstreamFailure for everything else, both carrying the status.
func AssertResponseOK(resp *http.Response, message string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, snippetLimit))
	snippet := strings.TrimSpace(string(b))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return fault.ClientRejection(resp.StatusCode, "%s: status %d: %s", message, resp.StatusCode, snippet)
	}
	return fault.Upstream(resp.StatusCode, nil, "%s: status %d: %s", message, resp.StatusCode, snippet)
}

// DecodeJSON is a ResponseHandler for JSON APIs. A body that does not decode
// is an upstream failure.
func DecodeJSON[T any](message string) ResponseHandler[T] {
	return func(resp *http.Response) (T, error) {
		var out T
		if err := AssertResponseOK(resp, message); err != nil {
			return out, err
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return out, fault.Upstream(resp.StatusCode, err, "%s: malformed response: %v", message, err)
		}
		return out, nil
	}
}
