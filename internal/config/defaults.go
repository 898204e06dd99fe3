package config

const (
	defaultDataDir               = "~/.local/share/gantry"
	defaultLogDir                = "~/.local/share/gantry/logs"
	defaultBrowserAPIURL         = "http://127.0.0.1:54345"
	defaultBrowserCapacity       = 4
	defaultBrowserOpenTimeout    = 60
	defaultBrowserRequestTimeout = 30
	defaultPipelineWorkers       = 4
	defaultAcquireTimeout        = 120
	defaultStepTimeout           = 600
	defaultMaxRetries            = 3
	defaultBackoffSeconds        = 5
	defaultBackoffMaxSeconds     = 120
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "text"
	defaultLogLevel              = "info"
	defaultEventBufferSize       = 512
	defaultSubscriberBuffer      = 64
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Browser: Browser{
			APIURL:                defaultBrowserAPIURL,
			Capacity:              defaultBrowserCapacity,
			OpenTimeoutSeconds:    defaultBrowserOpenTimeout,
			RequestTimeoutSeconds: defaultBrowserRequestTimeout,
		},
		Pipeline: Pipeline{
			Workers:               defaultPipelineWorkers,
			AcquireTimeoutSeconds: defaultAcquireTimeout,
			StepTimeoutSeconds:    defaultStepTimeout,
			MaxRetries:            defaultMaxRetries,
			BackoffSeconds:        defaultBackoffSeconds,
			BackoffMaxSeconds:     defaultBackoffMaxSeconds,
			AutoAdvance:           true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			PipelineDone:   true,
			Errors:         true,
			Batch:          true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Events: Events{
			BufferSize:       defaultEventBufferSize,
			SubscriberBuffer: defaultSubscriberBuffer,
		},
	}
}
