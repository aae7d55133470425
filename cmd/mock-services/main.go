package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/longhornrumble/dealprep/internal/artifact/fsstore"
	"github.com/longhornrumble/dealprep/internal/mockstore"
)

func main() {
	addr := defaultString("MOCK_SERVICES_ADDR", ":8080")
	token := defaultString("MOCK_SERVICES_TOKEN", "")
	apiKey := defaultString("MOCK_SERVICES_API_KEY", "")
	dataDir := defaultString("MOCK_SERVICES_DATA_DIR", "")

	fs := flag.NewFlagSet("mock-services", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&token, "token", token, "Bearer token required on bucket and CRM requests; empty disables the check")
	fs.StringVar(&apiKey, "api-key", apiKey, "X-API-Key required on Motion requests; empty disables the check")
	fs.StringVar(&dataDir, "data-dir", dataDir, "Persist the bucket under this directory instead of memory")
	_ = fs.Parse(os.Args[1:])

	var opts []mockstore.Option
	if dataDir != "" {
		store, err := fsstore.New(dataDir)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "open data dir: %v\n", err)
			os.Exit(1)
		}
		opts = append(opts, mockstore.WithStore(store))
	}
	srv := mockstore.New(opts...)
	srv.RequireBearerToken(token)
	srv.RequireAPIKey(apiKey)

	bucket := "memory"
	if dataDir != "" {
		bucket = dataDir
	}
	_, _ = fmt.Fprintf(os.Stdout, "mock-services listening on %s (bucket=%s)\n", addr, bucket)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
