// Package gemini implements the search.Provider interface on top of Gemini's
// Google Search grounding, using the official google.golang.org/genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MrWong99/aura/pkg/provider/search"
	"google.golang.org/genai"
)

// Compile-time assertion that Provider satisfies search.Provider.
var _ search.Provider = (*Provider)(nil)

// ErrEmptyAnswer is returned when the model produced no text.
var ErrEmptyAnswer = errors.New("gemini: empty search answer")

const defaultModel = "gemini-2.5-flash"

// Option is a functional option for configuring a Provider.
type Option func(*options)

type options struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

// WithModel sets the Gemini model used for grounded generation.
func WithModel(model string) Option {
	return func(o *options) {
		if model != "" {
			o.model = model
		}
	}
}

// WithBaseURL overrides the REST endpoint. Primarily used in tests to point at
// a local fake server.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithHTTPClient sets the HTTP client used by the SDK.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// Provider answers queries with Google-Search-grounded Gemini generations.
type Provider struct {
	client *genai.Client
	model  string
}

// New creates a Provider authenticated with apiKey against the Gemini API
// backend.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	o := options{model: defaultModel}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
	}
	if o.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: o.baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Provider{client: client, model: o.model}, nil
}

// Model returns the configured model name.
func (p *Provider) Model() string { return p.model }

// Search asks the model to answer query with the Google Search tool enabled
// and collects the web grounding chunks of the first candidate.
func (p *Provider) Search(ctx context.Context, query string) (*search.Result, error) {
	cfg := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}
	res, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(query), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}

	answer := strings.TrimSpace(res.Text())
	if answer == "" {
		return nil, ErrEmptyAnswer
	}

	out := &search.Result{Answer: answer}
	if len(res.Candidates) > 0 && res.Candidates[0].GroundingMetadata != nil {
		for _, chunk := range res.Candidates[0].GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" || chunk.Web.Title == "" {
				continue
			}
			out.Sources = append(out.Sources, search.Source{URI: chunk.Web.URI, Title: chunk.Web.Title})
		}
	}
	return out, nil
}
