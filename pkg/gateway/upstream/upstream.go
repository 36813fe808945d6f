// Package upstream adapts provider SDKs to the gateway's completion contract.
package upstream

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"

	"github.com/aunorthrop/nora/pkg/core/types"
)

// Provider turns a conversation into one reply.
type Provider interface {
	Complete(ctx context.Context, messages []types.Message, params types.SamplingParams) (string, error)
}

// Options configures provider construction.
type Options struct {
	OpenAIKey string
	GeminiKey string

	// Model overrides the provider's default model when set.
	Model string

	// SocksAddr routes upstream traffic through a SOCKS5 proxy when set.
	SocksAddr string

	// HTTPClient overrides the default upstream client; SocksAddr is ignored
	// when set.
	HTTPClient *http.Client
}

// New builds the provider for name ("openai" or "gemini").
func New(ctx context.Context, name string, opts Options) (Provider, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		var err error
		httpClient, err = newHTTPClient(opts.SocksAddr)
		if err != nil {
			return nil, err
		}
	}

	switch name {
	case "openai":
		if opts.OpenAIKey == "" {
			return nil, fmt.Errorf("openai api key not configured")
		}
		return newOpenAI(opts.OpenAIKey, httpClient).WithModel(opts.Model), nil
	case "gemini":
		if opts.GeminiKey == "" {
			return nil, fmt.Errorf("gemini api key not configured")
		}
		p, err := newGemini(ctx, opts.GeminiKey, httpClient)
		if err != nil {
			return nil, err
		}
		return p.WithModel(opts.Model), nil
	default:
		return nil, fmt.Errorf("unknown upstream provider %q", name)
	}
}

func newHTTPClient(socksAddr string) (*http.Client, error) {
	if socksAddr == "" {
		return &http.Client{Timeout: 120 * time.Second}, nil
	}

	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks proxy %s: %w", socksAddr, err)
	}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		},
	}
	return &http.Client{Transport: transport, Timeout: 120 * time.Second}, nil
}
