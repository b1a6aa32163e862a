package llms

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ProviderOptions are shared by the HTTP backed providers.
type ProviderOptions struct {
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

type ProviderOption func(*ProviderOptions)

func WithModel(model string) ProviderOption {
	return func(o *ProviderOptions) {
		if model != "" {
			o.Model = model
		}
	}
}

// WithBaseURL points the provider at a different endpoint, mostly for tests
// and proxies.
func WithBaseURL(url string) ProviderOption {
	return func(o *ProviderOptions) {
		if url != "" {
			o.BaseURL = url
		}
	}
}

func WithHTTPClient(client *http.Client) ProviderOption {
	return func(o *ProviderOptions) {
		if client != nil {
			o.HTTPClient = client
		}
	}
}

// NewProviderOptions applies opts over the given defaults.
func NewProviderOptions(model, baseURL string, opts ...ProviderOption) ProviderOptions {
	options := ProviderOptions{
		Model:      model,
		BaseURL:    baseURL,
		HTTPClient: DefaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func DefaultHTTPClient() *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
			return operationName + " " + request.URL.Path
		}),
	)}
}

type RouterOption func(*Router)

func WithProvider(backend Backend, provider Provider) RouterOption {
	return func(r *Router) {
		if provider != nil {
			r.providers[backend] = provider
		}
	}
}

// WithTimeout bounds every Answer call. Zero or negative disables the bound.
func WithTimeout(timeout time.Duration) RouterOption {
	return func(r *Router) {
		r.timeout = timeout
	}
}

func WithInstructions(instructions string) RouterOption {
	return func(r *Router) {
		if instructions != "" {
			r.instructions = instructions
		}
	}
}
