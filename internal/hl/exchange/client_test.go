package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testPrivKey = "4f3edf983ac636a65a842ce7c78d9aa706d3b113bce036f81af8f9b72d3d80b2"

func TestClientNonceMonotonic(t *testing.T) {
	signer, err := NewSigner(testPrivKey, true)
	if err != nil {
		t.Fatalf("signer error: %v", err)
	}
	client, err := NewClient("", time.Second, signer, "")
	if err != nil {
		t.Fatalf("client error: %v", err)
	}
	prev := uint64(0)
	for i := 0; i < 100; i++ {
		n := client.nextNonce()
		if n <= prev {
			t.Fatalf("nonce went backwards: %d after %d", n, prev)
		}
		prev = n
	}
}

func TestClientPlaceOrderRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/exchange" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var payload SignedAction
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload.Nonce == 0 || payload.Signature.R == "" {
			t.Errorf("payload missing nonce or signature: %+v", payload)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "err", "response": "Insufficient margin"}`))
	}))
	defer server.Close()

	signer, err := NewSigner(testPrivKey, true)
	if err != nil {
		t.Fatalf("signer error: %v", err)
	}
	client, err := NewClient(server.URL, time.Second, signer, "")
	if err != nil {
		t.Fatalf("client error: %v", err)
	}
	order, err := LimitOrderWire(1, true, 2.5, 100.0, false, TifIoc, "")
	if err != nil {
		t.Fatalf("order wire error: %v", err)
	}
	if _, err := client.PlaceOrder(context.Background(), order); err == nil {
		t.Fatal("expected rejection error")
	}
}

func TestNewClientRequiresSigner(t *testing.T) {
	if _, err := NewClient("", time.Second, nil, ""); err == nil {
		t.Fatal("expected error for nil signer")
	}
}
