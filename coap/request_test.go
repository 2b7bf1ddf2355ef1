package coap

import (
	"context"
	"testing"
)

func TestNewRequestDefaultsMethodToGET(t *testing.T) {
	req, err := NewRequest("", "coap://example.com/res", nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if req.Method != "GET" {
		t.Errorf("Method = %q, want GET", req.Method)
	}
	if !req.Confirmable {
		t.Error("expected a new request to be Confirmable by default")
	}
}

func TestNewRequestRejectsInvalidMethod(t *testing.T) {
	if _, err := NewRequest("PATCH", "coap://example.com/res", nil); err == nil {
		t.Fatal("expected an error for an unsupported method")
	}
}

func TestNewRequestStripsEmptyPort(t *testing.T) {
	req, err := NewRequest("GET", "coap://example.com:/res", nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if req.URL.Host != "example.com" {
		t.Errorf("Host = %q, want %q", req.URL.Host, "example.com")
	}
}

func TestRequestWithContextDoesNotMutateOriginal(t *testing.T) {
	req, err := NewRequest("GET", "coap://example.com/res", nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	ctx := context.WithValue(context.Background(), ctxKey{}, "v")
	req2 := req.WithContext(ctx)

	if req.Context() == ctx {
		t.Error("original request's context should be unaffected by WithContext")
	}
	if req2.Context() != ctx {
		t.Error("WithContext should carry the new context")
	}
}

type ctxKey struct{}

func TestValidMethod(t *testing.T) {
	for _, m := range []string{"EMPTY", "GET", "POST", "PUT", "DELETE"} {
		if !ValidMethod(m) {
			t.Errorf("ValidMethod(%q) = false, want true", m)
		}
	}
	if ValidMethod("PATCH") {
		t.Error("ValidMethod(\"PATCH\") = true, want false")
	}
}
