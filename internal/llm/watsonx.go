package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"symptom-guide/internal/config"
	"symptom-guide/internal/core"
)

const (
	watsonxAPIVersion = "2023-05-29"
	// tokenSlack refreshes the IAM token this long before it expires.
	tokenSlack = time.Minute
)

// WatsonxClient calls the IBM watsonx.ai text generation endpoint.
type WatsonxClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	iamURL     string
	projectID  string
	model      string

	mu     sync.Mutex
	token  string
	expiry time.Time
}

var _ core.Generator = (*WatsonxClient)(nil)

// NewWatsonxClient builds a client for cfg. The endpoint defaults to
// https://{region}.ml.cloud.ibm.com.
func NewWatsonxClient(cfg config.GenerationConfig, httpClient *http.Client) *WatsonxClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	base := cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.ml.cloud.ibm.com", cfg.Region)
	}
	return &WatsonxClient{
		httpClient: httpClient,
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(base, "/"),
		iamURL:     cfg.IAMURL,
		projectID:  cfg.ProjectID,
		model:      cfg.Model,
	}
}

type watsonxParams struct {
	DecodingMethod string `json:"decoding_method"`
	MaxNewTokens   int    `json:"max_new_tokens"`
}

type watsonxRequest struct {
	Input      string        `json:"input"`
	ModelID    string        `json:"model_id"`
	ProjectID  string        `json:"project_id"`
	Parameters watsonxParams `json:"parameters"`
}

type watsonxResponse struct {
	Results []struct {
		GeneratedText string `json:"generated_text"`
		StopReason    string `json:"stop_reason"`
	} `json:"results"`
}

type iamToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Generate runs one text generation request.
func (c *WatsonxClient) Generate(ctx context.Context, prompt string, d core.Decoding) (string, error) {
	if c.apiKey == "" || c.projectID == "" {
		return "", errors.New("watsonx credentials are not configured")
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	method := d.Method
	if method == "" {
		method = "greedy"
	}
	body, err := json.Marshal(watsonxRequest{
		Input:      prompt,
		ModelID:    c.model,
		ProjectID:  c.projectID,
		Parameters: watsonxParams{DecodingMethod: method, MaxNewTokens: d.MaxNewTokens},
	})
	if err != nil {
		return "", err
	}

	endpoint := c.baseURL + "/ml/v1/text/generation?version=" + watsonxAPIVersion
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("watsonx unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", statusError("watsonx", resp)
	}

	var out watsonxResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode watsonx response: %w", err)
	}
	if len(out.Results) == 0 {
		return "", nil
	}
	return out.Results[0].GeneratedText, nil
}

// accessToken exchanges the API key for an IAM bearer token, reusing it
// until shortly before expiry.
func (c *WatsonxClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.expiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ibm:params:oauth:grant-type:apikey")
	form.Set("apikey", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.iamURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("iam unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", statusError("iam", resp)
	}

	var tok iamToken
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode iam token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("iam returned an empty token")
	}
	c.token = tok.AccessToken
	c.expiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenSlack)
	return c.token, nil
}

func statusError(service string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(snippet))
	if msg == "" {
		return fmt.Errorf("%s returned status %d", service, resp.StatusCode)
	}
	return fmt.Errorf("%s returned status %d: %s", service, resp.StatusCode, msg)
}
