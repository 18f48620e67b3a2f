// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package blizzard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolveStaticNamespace(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler(nil))
	mux.HandleFunc("/data/wow/achievement-category/index", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"_links": {"self": {"href": "https://eu.api.blizzard.com/data/wow/achievement-category/index?namespace=static-11.2.0_62213-eu"}}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server, testConfig())

	ns, err := client.ResolveStaticNamespace(context.Background())
	if err != nil {
		t.Fatalf("ResolveStaticNamespace() error = %v", err)
	}
	if ns != "static-11.2.0_62213-eu" {
		t.Errorf("namespace = %q, want the versioned namespace from the self link", ns)
	}
}

func TestResolveStaticNamespaceFallbackOnError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler(nil))
	mux.HandleFunc("/data/wow/achievement-category/index", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server, testConfig())

	ns, err := client.ResolveStaticNamespace(context.Background())
	if err != nil {
		t.Fatalf("ResolveStaticNamespace() error = %v", err)
	}
	if ns != "static-eu" {
		t.Errorf("namespace = %q, want generic alias static-eu", ns)
	}
}

func TestResolveStaticNamespaceFallbackWithoutHref(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler(nil))
	mux.HandleFunc("/data/wow/achievement-category/index", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"_links": {}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server, testConfig())

	ns, err := client.ResolveStaticNamespace(context.Background())
	if err != nil {
		t.Fatalf("ResolveStaticNamespace() error = %v", err)
	}
	if ns != "static-eu" {
		t.Errorf("namespace = %q, want static-eu", ns)
	}
}

func TestNamespaceFromHref(t *testing.T) {
	t.Parallel()

	tests := []struct {
		href string
		want string
	}{
		{"https://eu.api.blizzard.com/x?namespace=static-11.2.0_62213-eu", "static-11.2.0_62213-eu"},
		{"https://eu.api.blizzard.com/x?namespace=static-eu&locale=en_US", "static-eu"},
		{"https://eu.api.blizzard.com/x?locale=en_US", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := namespaceFromHref(tt.href); got != tt.want {
			t.Errorf("namespaceFromHref(%q) = %q, want %q", tt.href, got, tt.want)
		}
	}
}
