package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront/domain"
	"storefront/metrics"
)

// ErrRenewalFailed is the terminal session condition: the refresh
// token was rejected or unusable. By the time a caller sees it the
// session manager has already torn the session down.
var ErrRenewalFailed = errors.New("session renewal failed")

// CredentialSource is what the pipeline needs from the session
// manager: the current credential and a single-flight renewal.
type CredentialSource interface {
	Credential() domain.Credential
	Renew(ctx context.Context) (domain.Credential, error)
}

type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   interface{}
}

type Response struct {
	Status int
	Body   []byte
}

// Decode unmarshals the response body into target.
func (r *Response) Decode(target interface{}) error {
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, target)
}

// Pipeline wraps every outbound backend call: it attaches the current
// access credential, detects an authorization rejection, drives one
// renewal, and retries the identical request exactly once. Every other
// failure class passes through untouched as a typed Failure.
type Pipeline struct {
	baseURL    string
	creds      CredentialSource
	httpClient *http.Client
}

func NewPipeline(baseURL string, creds CredentialSource, timeout time.Duration) *Pipeline {
	return &Pipeline{
		baseURL:    strings.TrimRight(baseURL, "/"),
		creds:      creds,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithHTTPClient substitutes the underlying HTTP client (tests).
func (p *Pipeline) WithHTTPClient(c *http.Client) *Pipeline {
	p.httpClient = c
	return p
}

func (p *Pipeline) Do(ctx context.Context, req Request) (*Response, error) {
	resp, err := p.do(ctx, req)
	metrics.RecordRequest(req.Method, outcomeLabel(err))
	return resp, err
}

func (p *Pipeline) do(ctx context.Context, req Request) (*Response, error) {
	var payload []byte
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &Failure{Kind: FailureValidation, Message: "encode request body", Err: err}
		}
		payload = raw
	}

	cred := p.creds.Credential()
	resp, err := p.dispatch(ctx, req, payload, cred.AccessToken)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusUnauthorized {
		return classify(resp)
	}

	// Authorization failure. An anonymous call has nothing to renew;
	// the caller must log in first.
	if cred.IsZero() {
		return nil, authFailure(resp)
	}

	// A slow 401 can land after another request already drove the
	// renewal. Only renew when the token we attached is still the
	// current one; otherwise retry with the rotated credential.
	renewed := p.creds.Credential()
	if renewed.IsZero() || renewed.AccessToken == cred.AccessToken {
		var err error
		renewed, err = p.creds.Renew(ctx)
		if err != nil {
			if errors.Is(err, ErrRenewalFailed) {
				return nil, &Failure{Kind: FailureRenewal, Message: "credential renewal failed", Err: err}
			}
			return nil, &Failure{Kind: FailureNetwork, Message: "credential renewal interrupted", Err: err}
		}
	}

	resp, err = p.dispatch(ctx, req, payload, renewed.AccessToken)
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusUnauthorized {
		return nil, authFailure(resp)
	}
	return classify(resp)
}

func (p *Pipeline) dispatch(ctx context.Context, req Request, payload []byte, accessToken string) (*Response, error) {
	target := p.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, &Failure{Kind: FailureNetwork, Message: "build request", Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	}

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		// Timeouts are network failures, never auth failures.
		return nil, &Failure{Kind: FailureNetwork, Message: "dispatch request", Err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, &Failure{Kind: FailureNetwork, Message: "read response", Err: err}
	}
	return &Response{Status: httpResp.StatusCode, Body: raw}, nil
}

func classify(resp *Response) (*Response, error) {
	switch {
	case resp.Status >= 200 && resp.Status < 300:
		return resp, nil
	case resp.Status >= 400 && resp.Status < 500:
		return nil, &Failure{Kind: FailureValidation, Status: resp.Status, Message: errorMessage(resp.Body)}
	default:
		return nil, &Failure{Kind: FailureServer, Status: resp.Status, Message: errorMessage(resp.Body)}
	}
}

func authFailure(resp *Response) *Failure {
	return &Failure{Kind: FailureAuth, Status: resp.Status, Message: errorMessage(resp.Body)}
}

func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = "request failed"
	}
	return msg
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	return string(KindOf(err))
}
