package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/and161185/taskkeeper/internal/errs"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// errorEnvelope is the remote error shape: {"error": {"code", "message", "status"}}.
type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Call describes one JSON request.
type Call struct {
	Op     string // used in error messages, e.g. "add task"
	Method string
	URL    string
	Bearer string // optional bearer token
	Body   any    // encoded as JSON when non-nil
	// Fallback is the message used when a failed response carries none.
	Fallback string
}

// DoJSON performs c and decodes a 2xx response body into out (skipped when out is nil).
// A transport failure is returned wrapped in errs.ErrNetwork; a non-2xx status as
// *errs.RemoteError carrying the remote-reported message verbatim.
func DoJSON(ctx context.Context, client *http.Client, c Call, out any) error {
	var body io.Reader
	if c.Body != nil {
		b, err := json.Marshal(c.Body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", c.Op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, c.Method, c.URL, body)
	if err != nil {
		return fmt.Errorf("%s: %w", c.Op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		// *url.Error repeats the full URL, query (API key) included
		var ue *url.Error
		if errors.As(err, &ue) {
			err = fmt.Errorf("%s %s: %w", ue.Op, withoutQuery(req.URL), ue.Err)
		}
		return errs.Network(c.Op, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var env errorEnvelope
		msg := c.Fallback
		if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
			msg = env.Error.Message
		}
		return &errs.RemoteError{Op: c.Op, Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("%s: decode response: %w", c.Op, err)
	}
	return nil
}

func withoutQuery(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	c.Fragment = ""
	c.User = nil
	return c.String()
}
