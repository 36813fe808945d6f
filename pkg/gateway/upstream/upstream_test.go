package upstream

import (
	"context"
	"errors"
	"net/http"
	"testing"

	openai "github.com/openai/openai-go/v3"

	"github.com/aunorthrop/nora/pkg/core"
)

func TestNewOpenAIProvider(t *testing.T) {
	p, err := New(context.Background(), "openai", Options{OpenAIKey: "test-key"})
	if err != nil {
		t.Fatalf("New returned err=%v", err)
	}
	if p == nil {
		t.Fatal("provider is nil")
	}
}

func TestNewRejectsMissingKey(t *testing.T) {
	if _, err := New(context.Background(), "openai", Options{}); err == nil {
		t.Fatal("expected error for missing openai key")
	}
	if _, err := New(context.Background(), "gemini", Options{}); err == nil {
		t.Fatal("expected error for missing gemini key")
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	if _, err := New(context.Background(), "cohere", Options{}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestClassifyOpenAIErrorQuota(t *testing.T) {
	err := classifyOpenAIError(&openai.Error{Code: "insufficient_quota", StatusCode: http.StatusTooManyRequests})
	var coreErr *core.Error
	if !errors.As(err, &coreErr) {
		t.Fatalf("err %T is not *core.Error", err)
	}
	if coreErr.Type != core.ErrQuota {
		t.Fatalf("type = %s, want %s", coreErr.Type, core.ErrQuota)
	}
}

func TestClassifyOpenAIErrorAuth(t *testing.T) {
	for _, in := range []*openai.Error{
		{Code: "invalid_api_key", StatusCode: http.StatusUnauthorized},
		{StatusCode: http.StatusUnauthorized},
		{StatusCode: http.StatusForbidden},
	} {
		err := classifyOpenAIError(in)
		var coreErr *core.Error
		if !errors.As(err, &coreErr) {
			t.Fatalf("err %T is not *core.Error", err)
		}
		if coreErr.Type != core.ErrAuthentication {
			t.Fatalf("type for %+v = %s, want %s", in, coreErr.Type, core.ErrAuthentication)
		}
	}
}

func TestClassifyOpenAIErrorRateLimit(t *testing.T) {
	err := classifyOpenAIError(&openai.Error{StatusCode: http.StatusTooManyRequests, Message: "slow down"})
	var coreErr *core.Error
	if !errors.As(err, &coreErr) {
		t.Fatalf("err %T is not *core.Error", err)
	}
	if coreErr.Type != core.ErrRateLimit {
		t.Fatalf("type = %s, want %s", coreErr.Type, core.ErrRateLimit)
	}
}

func TestClassifyOpenAIErrorNetwork(t *testing.T) {
	err := classifyOpenAIError(errors.New("connection refused"))
	var coreErr *core.Error
	if !errors.As(err, &coreErr) {
		t.Fatalf("err %T is not *core.Error", err)
	}
	if coreErr.Type != core.ErrNetwork {
		t.Fatalf("type = %s, want %s", coreErr.Type, core.ErrNetwork)
	}
}
