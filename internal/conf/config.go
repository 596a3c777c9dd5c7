// Package conf provides configuration management for segmentlab.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/segmentlab/internal/logger"
	"github.com/tphakala/segmentlab/internal/secrets"
)

// Settings holds the complete application configuration.
type Settings struct {
	Debug bool `yaml:"debug" mapstructure:"debug"`

	Main struct {
		Name string               `yaml:"name" mapstructure:"name"`
		Log  logger.LoggingConfig `yaml:"log" mapstructure:"log"`
	} `yaml:"main" mapstructure:"main"`

	Storage      StorageSettings      `yaml:"storage" mapstructure:"storage"`
	Database     DatabaseSettings     `yaml:"database" mapstructure:"database"`
	Segmentation SegmentationSettings `yaml:"segmentation" mapstructure:"segmentation"`
	Codec        CodecSettings        `yaml:"codec" mapstructure:"codec"`
	Training     TrainingSettings     `yaml:"training" mapstructure:"training"`
	Inference    InferenceSettings    `yaml:"inference" mapstructure:"inference"`
	Queue        QueueSettings        `yaml:"queue" mapstructure:"queue"`
	WebServer    WebServerSettings    `yaml:"webserver" mapstructure:"webserver"`
	MQTT         MQTTSettings         `yaml:"mqtt" mapstructure:"mqtt"`
	Notification NotificationSettings `yaml:"notification" mapstructure:"notification"`
	Telemetry    TelemetrySettings    `yaml:"telemetry" mapstructure:"telemetry"`
}

// StorageSettings contains filesystem locations. Relative paths resolve against DataDir.
type StorageSettings struct {
	DataDir         string  `yaml:"datadir" mapstructure:"datadir"`
	UploadsDir      string  `yaml:"uploadsdir" mapstructure:"uploadsdir"`           // uploaded source recordings
	ResultsDir      string  `yaml:"resultsdir" mapstructure:"resultsdir"`           // per-job segment artifacts
	TempModelsDir   string  `yaml:"tempmodelsdir" mapstructure:"tempmodelsdir"`     // auto-label model uploads
	TrainingRunsDir string  `yaml:"trainingrunsdir" mapstructure:"trainingrunsdir"` // datasets and training results
	LocksDir        string  `yaml:"locksdir" mapstructure:"locksdir"`
	MinFreePercent  float64 `yaml:"minfreepercent" mapstructure:"minfreepercent"` // refuse processing below this
}

// DatabaseSettings selects and configures the relational store.
type DatabaseSettings struct {
	Type   string `yaml:"type" mapstructure:"type"` // sqlite or mysql
	SQLite struct {
		Path string `yaml:"path" mapstructure:"path"`
	} `yaml:"sqlite" mapstructure:"sqlite"`
	MySQL struct {
		Host     string `yaml:"host" mapstructure:"host"`
		Port     string `yaml:"port" mapstructure:"port"`
		Username string `yaml:"username" mapstructure:"username"`
		Password string `yaml:"password" mapstructure:"password"`
		Database string `yaml:"database" mapstructure:"database"`
	} `yaml:"mysql" mapstructure:"mysql"`
	SlowQueryThreshold time.Duration `yaml:"slowquerythreshold" mapstructure:"slowquerythreshold"`
}

// SegmentationSettings are the defaults applied to new audio jobs.
type SegmentationSettings struct {
	SegmentDuration float64 `yaml:"segmentduration" mapstructure:"segmentduration"` // seconds
	Overlap         float64 `yaml:"overlap" mapstructure:"overlap"`                 // percent, 0-99
	SampleRate      int     `yaml:"samplerate" mapstructure:"samplerate"`           // 0 keeps source rate
	Channels        string  `yaml:"channels" mapstructure:"channels"`               // mono or stereo
	SpecType        string  `yaml:"spectype" mapstructure:"spectype"`               // mel or linear
	MaxSegments     int     `yaml:"maxsegments" mapstructure:"maxsegments"`         // per job, 0 for no limit
}

// CodecSettings configures the external ffmpeg tooling.
type CodecSettings struct {
	FfmpegPath    string        `yaml:"ffmpegpath" mapstructure:"ffmpegpath"`
	FfprobePath   string        `yaml:"ffprobepath" mapstructure:"ffprobepath"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"` // per ffmpeg invocation
	DisplayWidth  int           `yaml:"displaywidth" mapstructure:"displaywidth"`
	DisplayHeight int           `yaml:"displayheight" mapstructure:"displayheight"`
	TrainingSize  int           `yaml:"trainingsize" mapstructure:"trainingsize"` // square edge in pixels
}

// TrainingSettings configures the training sidecar client.
type TrainingSettings struct {
	ServiceURL   string        `yaml:"serviceurl" mapstructure:"serviceurl"`
	Epochs       int           `yaml:"epochs" mapstructure:"epochs"`
	ImageSize    int           `yaml:"imagesize" mapstructure:"imagesize"`
	DefaultModel string        `yaml:"defaultmodel" mapstructure:"defaultmodel"`
	PollInterval time.Duration `yaml:"pollinterval" mapstructure:"pollinterval"`
}

// InferenceSettings configures the model runtimes used by auto-labeling.
type InferenceSettings struct {
	Threads         int    `yaml:"threads" mapstructure:"threads"`
	ONNXRuntimePath string `yaml:"onnxruntimepath" mapstructure:"onnxruntimepath"` // shared library
}

// QueueSettings sizes the task worker pool.
type QueueSettings struct {
	Workers  int `yaml:"workers" mapstructure:"workers"`
	Capacity int `yaml:"capacity" mapstructure:"capacity"`
}

// WebServerSettings configures the HTTP API.
type WebServerSettings struct {
	Listen        string `yaml:"listen" mapstructure:"listen"`
	UploadLimitMB int    `yaml:"uploadlimitmb" mapstructure:"uploadlimitmb"`
}

// MQTTSettings configures job status publishing.
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Broker   string `yaml:"broker" mapstructure:"broker"`
	ClientID string `yaml:"clientid" mapstructure:"clientid"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Topic    string `yaml:"topic" mapstructure:"topic"` // prefix
}

// NotificationSettings configures terminal-state notifications through shoutrrr URLs.
type NotificationSettings struct {
	Enabled bool     `yaml:"enabled" mapstructure:"enabled"`
	URLs    []string `yaml:"urls" mapstructure:"urls"`
}

// TelemetrySettings configures Sentry error reporting.
type TelemetrySettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	DSN     string `yaml:"dsn" mapstructure:"dsn"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configuration into the global viper instance and stores the result
// as the current settings. An empty configFile searches the default paths and
// writes a default config.yaml if none exists.
func Load(configFile string) (*Settings, error) {
	settings, err := LoadWith(viper.GetViper(), configFile)
	if err != nil {
		return nil, err
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()
	return settings, nil
}

// LoadWith loads settings using the given viper instance.
func LoadWith(v *viper.Viper, configFile string) (*Settings, error) {
	if err := initViper(v, configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	settings.resolvePaths()
	if err := settings.resolveSecrets(); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

func initViper(v *viper.Viper, configFile string) error {
	setDefaultConfig(v)

	v.SetEnvPrefix("SEGMENTLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		return v.ReadInConfig()
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	err = v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createDefaultConfig(v, configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// createDefaultConfig writes the defaults to dir/config.yaml and reads it back
func createDefaultConfig(v *viper.Viper, dir string) error {
	defaults := &Settings{}
	if err := v.Unmarshal(defaults); err != nil {
		return fmt.Errorf("error building default settings: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	configPath := filepath.Join(dir, "config.yaml")
	if err := SaveYAMLConfig(configPath, defaults); err != nil {
		return err
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	v.SetConfigFile(configPath)
	return v.ReadInConfig()
}

// resolvePaths anchors relative storage paths under DataDir.
func (s *Settings) resolvePaths() {
	anchor := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(s.Storage.DataDir, p)
	}
	s.Storage.UploadsDir = anchor(s.Storage.UploadsDir)
	s.Storage.ResultsDir = anchor(s.Storage.ResultsDir)
	s.Storage.TempModelsDir = anchor(s.Storage.TempModelsDir)
	s.Storage.TrainingRunsDir = anchor(s.Storage.TrainingRunsDir)
	s.Storage.LocksDir = anchor(s.Storage.LocksDir)
	if s.Database.Type == DBTypeSQLite {
		s.Database.SQLite.Path = anchor(s.Database.SQLite.Path)
	}
}

// resolveSecrets replaces ${VAR} and file: references in credential fields.
func (s *Settings) resolveSecrets() error {
	fields := []*string{
		&s.Database.MySQL.Password,
		&s.MQTT.Password,
		&s.Telemetry.DSN,
		&s.Training.ServiceURL,
	}
	for i := range s.Notification.URLs {
		fields = append(fields, &s.Notification.URLs[i])
	}
	for _, f := range fields {
		v, err := secrets.Resolve(*f)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}

// GetSettings returns the settings stored by the last successful Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath through a temporary file and rename.
// Comments in an existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}
	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
