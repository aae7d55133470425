package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A missing .env is fine; a malformed one is not.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		_, _ = fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(2)
	}

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	var code int
	switch os.Args[1] {
	case "help", "-h", "--help":
		usage(os.Stdout)
	case "run":
		code = runOne(ctx, os.Args[2:])
	case "batch":
		code = runBatch(ctx, os.Args[2:])
	case "runid":
		code = runID(os.Args[2:])
	case "validate":
		code = runValidate(os.Args[2:])
	case "status":
		code = runStatus(ctx, os.Args[2:])
	case "delete":
		code = runDelete(ctx, os.Args[2:])
	case "relay":
		code = runRelay(ctx, os.Args[2:])
	case "version":
		code = runVersion(os.Stdout)
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		code = 2
	}
	stop()
	os.Exit(code)
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintf(w, `dealprep: deal preparation briefs from inbound and outbound triggers

Usage:
  dealprep <command> [flags]

Commands:
  run       Run the full pipeline for one trigger JSON file
  batch     Run an outbound lead CSV through the worker pool
  runid     Print the run id a trigger maps to
  validate  Validate a brief JSON file and print the report
  status    Print a stored run record
  delete    Delete a run, or one artifact of it
  relay     Long-poll the trigger relay and process queued jobs
  version   Print the version

Examples:
  dealprep run --input trigger.json
  dealprep batch --input leads.csv --workers 4
  dealprep validate --brief brief.json

Environment:
  DEALPREP_CONFIG             Config file (.yaml, .yml or .toml); same as --config
  DEALPREP_STORE_DRIVER       memory, fs, sqlite, postgres, badger or remote
  DEALPREP_SERVICE_DISCOVERY  YAML file mapping artifact_store/crm/motion to URLs
  LLM_PROVIDER                gemini (default) or openai
  GEMINI_API_KEY              Gemini API key (or OPENAI_API_KEY for openai)
  CRM_BASE_URL, MOTION_BASE_URL, GMAIL_SENDER  enable the delivery channels
  RELAY_URL, RELAY_TOKEN      Trigger relay endpoint for the relay command

`)
}
