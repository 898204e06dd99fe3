package config

import "strings"

// normalize expands filesystem paths and fills zero-valued fields with defaults.
func (c *Config) normalize() error {
	def := Default()

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = def.Paths.DataDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = def.Paths.LogDir
	}

	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	c.Browser.APIURL = strings.TrimRight(strings.TrimSpace(c.Browser.APIURL), "/")
	if c.Browser.APIURL == "" {
		c.Browser.APIURL = def.Browser.APIURL
	}
	if c.Browser.Capacity == 0 {
		c.Browser.Capacity = def.Browser.Capacity
	}
	if c.Browser.OpenTimeoutSeconds == 0 {
		c.Browser.OpenTimeoutSeconds = def.Browser.OpenTimeoutSeconds
	}
	if c.Browser.RequestTimeoutSeconds == 0 {
		c.Browser.RequestTimeoutSeconds = def.Browser.RequestTimeoutSeconds
	}

	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = def.Pipeline.Workers
	}
	if c.Pipeline.AcquireTimeoutSeconds == 0 {
		c.Pipeline.AcquireTimeoutSeconds = def.Pipeline.AcquireTimeoutSeconds
	}
	if c.Pipeline.StepTimeoutSeconds == 0 {
		c.Pipeline.StepTimeoutSeconds = def.Pipeline.StepTimeoutSeconds
	}
	if c.Pipeline.BackoffSeconds == 0 {
		c.Pipeline.BackoffSeconds = def.Pipeline.BackoffSeconds
	}
	if c.Pipeline.BackoffMaxSeconds == 0 {
		c.Pipeline.BackoffMaxSeconds = def.Pipeline.BackoffMaxSeconds
	}

	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = def.Notifications.RequestTimeout
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)

	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = def.Logging.Format
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = def.Logging.Level
	}

	if c.Events.BufferSize == 0 {
		c.Events.BufferSize = def.Events.BufferSize
	}
	if c.Events.SubscriberBuffer == 0 {
		c.Events.SubscriberBuffer = def.Events.SubscriberBuffer
	}

	return nil
}
