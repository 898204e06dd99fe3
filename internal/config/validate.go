package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBrowser(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBrowser() error {
	if strings.TrimSpace(c.Browser.APIURL) == "" {
		return errors.New("browser.api_url must be set")
	}
	if !strings.HasPrefix(c.Browser.APIURL, "http://") && !strings.HasPrefix(c.Browser.APIURL, "https://") {
		return fmt.Errorf("browser.api_url must be an http(s) URL, got %q", c.Browser.APIURL)
	}
	if c.Browser.Capacity <= 0 {
		return errors.New("browser.capacity must be positive")
	}
	return ensurePositiveMap(map[string]int{
		"browser.open_timeout_seconds":    c.Browser.OpenTimeoutSeconds,
		"browser.request_timeout_seconds": c.Browser.RequestTimeoutSeconds,
	})
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.Workers <= 0 {
		return errors.New("pipeline.workers must be positive")
	}
	if c.Pipeline.MaxRetries < 0 {
		return errors.New("pipeline.max_retries must not be negative")
	}
	if err := ensurePositiveMap(map[string]int{
		"pipeline.acquire_timeout_seconds": c.Pipeline.AcquireTimeoutSeconds,
		"pipeline.step_timeout_seconds":    c.Pipeline.StepTimeoutSeconds,
		"pipeline.backoff_seconds":         c.Pipeline.BackoffSeconds,
	}); err != nil {
		return err
	}
	if c.Pipeline.BackoffMaxSeconds < c.Pipeline.BackoffSeconds {
		return errors.New("pipeline.backoff_max_seconds must not be less than pipeline.backoff_seconds")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if strings.TrimSpace(c.Notifications.NtfyTopic) == "" {
		return nil
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateEvents() error {
	return ensurePositiveMap(map[string]int{
		"events.buffer_size":       c.Events.BufferSize,
		"events.subscriber_buffer": c.Events.SubscriberBuffer,
	})
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
