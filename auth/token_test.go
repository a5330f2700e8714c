package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func tokenServer(t *testing.T, exchanges *atomic.Int64, expiresIn int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm() error = %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "urn:ietf:params:oauth:grant-type:token-exchange" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("subject_token_type"); got != "urn:yandex:params:oauth:token-type:uid" {
			t.Errorf("subject_token_type = %q", got)
		}
		if got := r.PostForm.Get("client_id"); got != "client-id" {
			t.Errorf("client_id = %q", got)
		}
		if got := r.PostForm.Get("client_secret"); got != "client-secret" {
			t.Errorf("client_secret = %q", got)
		}
		if got := r.PostForm.Get("subject_token"); got != "1130000000000001" {
			t.Errorf("subject_token = %q", got)
		}

		n := exchanges.Add(1)
		fmt.Fprintf(w, `{"access_token":"token-%d","expires_in":%d,"token_type":"bearer"}`, n, expiresIn)
	}))
}

func TestHolder_Token_CachesFreshCredential(t *testing.T) {
	var exchanges atomic.Int64
	srv := tokenServer(t, &exchanges, 3600)
	defer srv.Close()

	p := NewProvider(Options{TokenURL: srv.URL, ClientID: "client-id", ClientSecret: "client-secret"})
	holder := p.HolderFor(1130000000000001)

	first, err := holder.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	second, err := holder.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	if first != "token-1" || second != "token-1" {
		t.Errorf("tokens = %q, %q, want both %q", first, second, "token-1")
	}
	if got := exchanges.Load(); got != 1 {
		t.Errorf("exchanges = %d, want 1", got)
	}
}

func TestHolder_Token_RefreshesStaleCredential(t *testing.T) {
	var exchanges atomic.Int64
	// Expiry shorter than the staleness margin, so every call re-exchanges.
	srv := tokenServer(t, &exchanges, 30)
	defer srv.Close()

	p := NewProvider(Options{TokenURL: srv.URL, ClientID: "client-id", ClientSecret: "client-secret"})
	holder := p.HolderFor(1130000000000001)

	if _, err := holder.Token(context.Background()); err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	token, err := holder.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	if token != "token-2" {
		t.Errorf("token = %q, want %q", token, "token-2")
	}
	if got := exchanges.Load(); got != 2 {
		t.Errorf("exchanges = %d, want 2", got)
	}
}

func TestProvider_TokenFor_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewProvider(Options{TokenURL: srv.URL, ClientID: "client-id", ClientSecret: "client-secret"})
	if _, err := p.TokenFor(context.Background(), 1130000000000001); err == nil {
		t.Error("expected error on HTTP 400")
	}
}

func TestCredential_Fresh(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		cred Credential
		want bool
	}{
		{"empty", Credential{}, false},
		{"plenty of time left", Credential{Value: "t", ExpiresAt: now.Add(time.Hour)}, true},
		{"inside the margin", Credential{Value: "t", ExpiresAt: now.Add(30 * time.Second)}, false},
		{"already expired", Credential{Value: "t", ExpiresAt: now.Add(-time.Minute)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cred.Fresh(now); got != tt.want {
				t.Errorf("Fresh() = %v, want %v", got, tt.want)
			}
		})
	}
}
