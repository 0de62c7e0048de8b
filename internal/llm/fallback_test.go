package llm

import (
	"context"
	"errors"
	"testing"
)

func TestFallbackClient(t *testing.T) {
	failing := ClientFunc(func(context.Context, Request) (Response, error) {
		return Response{}, errors.New("primary down")
	})
	ok := ClientFunc(func(context.Context, Request) (Response, error) {
		return Response{Text: "from fallback"}, nil
	})

	resp, err := NewFallbackClient(failing, ok, nil).Complete(context.Background(), Request{})
	if err != nil || resp.Text != "from fallback" {
		t.Fatalf("expected fallback response, got %q, %v", resp.Text, err)
	}

	if _, err := NewFallbackClient(failing, nil, nil).Complete(context.Background(), Request{}); err == nil || err.Error() != "primary down" {
		t.Fatalf("expected primary error without fallback, got %v", err)
	}

	resp, err = NewFallbackClient(ok, failing, nil).Complete(context.Background(), Request{})
	if err != nil || resp.Text != "from fallback" {
		t.Fatalf("primary success should short-circuit, got %q, %v", resp.Text, err)
	}
}
