package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// configYAML is the on-disk layout, with dashed keys
type configYAML struct {
	Slopes struct {
		File string `yaml:"file"`
	} `yaml:"slopes"`
	Storage struct {
		SQLite *struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite,omitempty"`
		TimescaleDB *struct {
			ConnectionString string `yaml:"connection-string"`
		} `yaml:"timescaledb,omitempty"`
		Log *struct {
			Enabled bool `yaml:"enabled"`
		} `yaml:"log,omitempty"`
	} `yaml:"storage,omitempty"`
	Ingest *struct {
		ListenAddr string `yaml:"listen-addr,omitempty"`
		Port       int    `yaml:"port,omitempty"`
		Multicore  bool   `yaml:"multicore,omitempty"`
	} `yaml:"ingest,omitempty"`
	REST *struct {
		Cert       string `yaml:"cert,omitempty"`
		Key        string `yaml:"key,omitempty"`
		Port       int    `yaml:"port,omitempty"`
		ListenAddr string `yaml:"listen-addr,omitempty"`
	} `yaml:"rest,omitempty"`
	Tuning map[string]float64 `yaml:"tuning,omitempty"`
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	if y.config != nil {
		return y.config, nil
	}

	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	var yamlConfig configYAML
	if err := yaml.Unmarshal(cfgFile, &yamlConfig); err != nil {
		return nil, err
	}

	config := &ConfigData{
		Slopes: SlopesData{File: yamlConfig.Slopes.File},
	}

	if yamlConfig.Storage.SQLite != nil {
		config.Storage.SQLite = &SQLiteData{Path: yamlConfig.Storage.SQLite.Path}
	}
	if yamlConfig.Storage.TimescaleDB != nil {
		config.Storage.TimescaleDB = &TimescaleDBData{
			ConnectionString: yamlConfig.Storage.TimescaleDB.ConnectionString,
		}
	}
	if yamlConfig.Storage.Log != nil {
		config.Storage.Log = &LogData{Enabled: yamlConfig.Storage.Log.Enabled}
	}

	if yamlConfig.Ingest != nil {
		config.Ingest = &IngestData{
			ListenAddr: yamlConfig.Ingest.ListenAddr,
			Port:       yamlConfig.Ingest.Port,
			Multicore:  yamlConfig.Ingest.Multicore,
		}
	}
	if yamlConfig.REST != nil {
		config.REST = &RESTServerData{
			Cert:       yamlConfig.REST.Cert,
			Key:        yamlConfig.REST.Key,
			Port:       yamlConfig.REST.Port,
			ListenAddr: yamlConfig.REST.ListenAddr,
		}
	}

	knobs := config.Tuning.knobs()
	for name, value := range yamlConfig.Tuning {
		field, ok := knobs[name]
		if !ok {
			return nil, fmt.Errorf("unknown tuning parameter %q", name)
		}
		*field = value
	}

	y.config = config
	return config, nil
}

// GetSlopesConfig returns the slope database location
func (y *YAMLProvider) GetSlopesConfig() (*SlopesData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &config.Slopes, nil
}

// GetStorageConfig returns storage configuration from YAML
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &config.Storage, nil
}

// GetIngestConfig returns the ingest listener configuration, nil if disabled
func (y *YAMLProvider) GetIngestConfig() (*IngestData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return config.Ingest, nil
}

// GetRESTConfig returns the REST server configuration, nil if disabled
func (y *YAMLProvider) GetRESTConfig() (*RESTServerData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return config.REST, nil
}

// GetTuning returns the threshold overrides
func (y *YAMLProvider) GetTuning() (*TuningData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &config.Tuning, nil
}

// IsReadOnly returns true since YAML provider is read-only
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}
