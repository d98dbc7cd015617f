package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetSlopesConfig() (*SlopesData, error)
	GetStorageConfig() (*StorageData, error)
	GetIngestConfig() (*IngestData, error)
	GetRESTConfig() (*RESTServerData, error)
	GetTuning() (*TuningData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Slopes  SlopesData      `json:"slopes"`
	Storage StorageData     `json:"storage,omitempty"`
	Ingest  *IngestData     `json:"ingest,omitempty"`
	REST    *RESTServerData `json:"rest,omitempty"`
	Tuning  TuningData      `json:"tuning,omitempty"`
}

// SlopesData points at the resort slope database (.json, .yaml or .geojson)
type SlopesData struct {
	File string `json:"file,omitempty"`
}

// StorageData holds the configuration for the run recorders.
// More than one recorder can be used simultaneously
type StorageData struct {
	SQLite      *SQLiteData      `json:"sqlite,omitempty"`
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty"`
	Log         *LogData         `json:"log,omitempty"`
}

type SQLiteData struct {
	Path string `json:"path"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string"`
}

type LogData struct {
	Enabled bool `json:"enabled"`
}

// IngestData configures the TCP sample feed listener
type IngestData struct {
	ListenAddr string `json:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty"`
	Multicore  bool   `json:"multicore,omitempty"`
}

// RESTServerData configures the live read API
type RESTServerData struct {
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	Port       int    `json:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty"`
}

// TuningData overrides classifier thresholds. Zero means "use the default".
type TuningData struct {
	NoiseMaxDurationSeconds   float64 `json:"noise_max_duration_seconds,omitempty"`
	NoiseMaxDrop              float64 `json:"noise_max_drop,omitempty"`
	ConfirmWindowSeconds      float64 `json:"confirm_window_seconds,omitempty"`
	PendingRestTimeoutSeconds float64 `json:"pending_rest_timeout_seconds,omitempty"`
	LiftStopSeconds           float64 `json:"lift_stop_seconds,omitempty"`
	RideEntrySpeedKmh         float64 `json:"ride_entry_speed_kmh,omitempty"`
	RestMaxSpeedKmh           float64 `json:"rest_max_speed_kmh,omitempty"`
	ResumeSpeedKmh            float64 `json:"resume_speed_kmh,omitempty"`
	RestingLiftAscent         float64 `json:"resting_lift_ascent,omitempty"`
	RidingLiftAscent          float64 `json:"riding_lift_ascent,omitempty"`
	BaroLossTimeoutSeconds    float64 `json:"baro_loss_timeout_seconds,omitempty"`
	RouteIntervalRiding       float64 `json:"route_interval_riding,omitempty"`
	RouteIntervalIdle         float64 `json:"route_interval_idle,omitempty"`
	StartFinishRadius         float64 `json:"start_finish_radius,omitempty"`
	TagInterval               float64 `json:"tag_interval,omitempty"`
	UnloadBoostSeconds        float64 `json:"unload_boost_seconds,omitempty"`
}

// knobs maps the stored tuning names onto the struct fields.
func (t *TuningData) knobs() map[string]*float64 {
	return map[string]*float64{
		"noise-max-duration-seconds":   &t.NoiseMaxDurationSeconds,
		"noise-max-drop":               &t.NoiseMaxDrop,
		"confirm-window-seconds":       &t.ConfirmWindowSeconds,
		"pending-rest-timeout-seconds": &t.PendingRestTimeoutSeconds,
		"lift-stop-seconds":            &t.LiftStopSeconds,
		"ride-entry-speed-kmh":         &t.RideEntrySpeedKmh,
		"rest-max-speed-kmh":           &t.RestMaxSpeedKmh,
		"resume-speed-kmh":             &t.ResumeSpeedKmh,
		"resting-lift-ascent":          &t.RestingLiftAscent,
		"riding-lift-ascent":           &t.RidingLiftAscent,
		"baro-loss-timeout-seconds":    &t.BaroLossTimeoutSeconds,
		"route-interval-riding":        &t.RouteIntervalRiding,
		"route-interval-idle":          &t.RouteIntervalIdle,
		"start-finish-radius":          &t.StartFinishRadius,
		"tag-interval":                 &t.TagInterval,
		"unload-boost-seconds":         &t.UnloadBoostSeconds,
	}
}
