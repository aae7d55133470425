package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnv overrides file values with any environment variables that are set.
func applyEnv(c *Config) error {
	envString(&c.Log.Level, "DEALPREP_LOG_LEVEL")
	envString(&c.Log.File, "DEALPREP_LOG_FILE")
	envString(&c.Log.Format, "DEALPREP_LOG_FORMAT")

	envString(&c.Store.Driver, "DEALPREP_STORE_DRIVER")
	envString(&c.Store.Dir, "DEALPREP_STORE_DIR")
	envString(&c.Store.DSN, "DEALPREP_STORE_DSN")
	envString(&c.Store.BaseURL, "DEALPREP_STORE_URL")
	envString(&c.Store.Token, "DEALPREP_STORE_TOKEN")
	envString(&c.Store.CAPath, "DEFAULT_CA_PATH")

	envString(&c.LLM.Provider, "LLM_PROVIDER")
	switch c.LLM.Provider {
	case "openai":
		envString(&c.LLM.APIKey, "OPENAI_API_KEY")
		envString(&c.LLM.Model, "OPENAI_MODEL")
		envString(&c.LLM.BaseURL, "OPENAI_BASE_URL")
	default:
		envString(&c.LLM.APIKey, "GEMINI_API_KEY")
		envString(&c.LLM.Model, "GEMINI_MODEL")
		envString(&c.LLM.BaseURL, "GEMINI_BASE_URL")
	}

	envString(&c.Scrape.UserAgent, "SCRAPE_USER_AGENT")
	envString(&c.Validation.NotFoundMarker, "NOT_FOUND_MARKER")

	envString(&c.Delivery.CRM.BaseURL, "CRM_BASE_URL")
	envString(&c.Delivery.CRM.Token, "CRM_TOKEN")
	envString(&c.Delivery.Email.Sender, "GMAIL_SENDER")
	envString(&c.Delivery.Email.ClientID, "GMAIL_CLIENT_ID")
	envString(&c.Delivery.Email.ClientSecret, "GMAIL_CLIENT_SECRET")
	envString(&c.Delivery.Email.RefreshToken, "GMAIL_REFRESH_TOKEN")
	envString(&c.Delivery.Email.AccessToken, "GMAIL_ACCESS_TOKEN")
	envString(&c.Delivery.Motion.BaseURL, "MOTION_BASE_URL")
	envString(&c.Delivery.Motion.APIKey, "MOTION_API_KEY")

	envString(&c.Relay.URL, "RELAY_URL")
	envString(&c.Relay.Token, "RELAY_TOKEN")

	var err error
	if c.LLM.GoogleSearch, err = envBool("GEMINI_GOOGLE_SEARCH", c.LLM.GoogleSearch); err != nil {
		return err
	}
	if c.LLM.URLContext, err = envBool("GEMINI_URL_CONTEXT", c.LLM.URLContext); err != nil {
		return err
	}
	if c.LLM.Timeout, err = envDuration("LLM_TIMEOUT", c.LLM.Timeout); err != nil {
		return err
	}
	if c.Scrape.MaxPages, err = envInt("SCRAPE_MAX_PAGES", c.Scrape.MaxPages); err != nil {
		return err
	}
	if c.Scrape.Timeout, err = envDuration("SCRAPE_TIMEOUT", c.Scrape.Timeout); err != nil {
		return err
	}
	if c.Scrape.RateLimitRPS, err = envFloat("SCRAPE_RATE_LIMIT_RPS", c.Scrape.RateLimitRPS); err != nil {
		return err
	}
	if c.Scrape.Disabled, err = envBool("SCRAPE_DISABLED", c.Scrape.Disabled); err != nil {
		return err
	}
	if c.Validation.SkipSourceValidation, err = envBool("SKIP_SOURCE_VALIDATION", c.Validation.SkipSourceValidation); err != nil {
		return err
	}
	if c.Validation.MaxSynthesisAttempts, err = envInt("MAX_SYNTHESIS_ATTEMPTS", c.Validation.MaxSynthesisAttempts); err != nil {
		return err
	}
	if c.Worker.Workers, err = envInt("WORKERS", c.Worker.Workers); err != nil {
		return err
	}
	if c.Worker.MaxRetries, err = envInt("MAX_RETRIES", c.Worker.MaxRetries); err != nil {
		return err
	}
	if c.Worker.RequestTimeout, err = envDuration("REQUEST_TIMEOUT", c.Worker.RequestTimeout); err != nil {
		return err
	}
	if c.Worker.RateLimitRPS, err = envFloat("RATE_LIMIT_RPS", c.Worker.RateLimitRPS); err != nil {
		return err
	}
	if c.Worker.FailFast, err = envBool("FAIL_FAST", c.Worker.FailFast); err != nil {
		return err
	}
	return nil
}

func envString(dst *string, varName string) {
	if v := strings.TrimSpace(os.Getenv(varName)); v != "" {
		*dst = v
	}
}

func envInt(varName string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envFloat(varName string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envDuration(varName string, fallback Duration) (Duration, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return Duration(out), nil
}

func envBool(varName string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}
