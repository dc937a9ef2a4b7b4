package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// SimConfig holds simulator gateway connection settings.
type SimConfig struct {
	Host              string        `json:"host" mapstructure:"host"`
	Ports             []int         `json:"ports" mapstructure:"ports"`
	AttemptTimeout    time.Duration `json:"attemptTimeout" mapstructure:"attemptTimeout"`
	RetryBackoff      time.Duration `json:"retryBackoff" mapstructure:"retryBackoff"`
	MaxRetries        int           `json:"maxRetries" mapstructure:"maxRetries"`
	FixedDeltaSeconds float64       `json:"fixedDeltaSeconds" mapstructure:"fixedDeltaSeconds"`
}

// VehicleConfig holds the blueprint preference and cosmetics for the spawned
// vehicle.
type VehicleConfig struct {
	PreferredBlueprint string `json:"preferredBlueprint" mapstructure:"preferredBlueprint"`
	RoleName           string `json:"roleName" mapstructure:"roleName"`
	Color              string `json:"color" mapstructure:"color"`
}

// CameraConfig holds chase camera placement settings.
type CameraConfig struct {
	Distance float64 `json:"distance" mapstructure:"distance"`
	Height   float64 `json:"height" mapstructure:"height"`
	Pitch    float64 `json:"pitch" mapstructure:"pitch"`
}

// TelemetryConfig holds drive telemetry recording settings. When Postgres is
// unreachable the recorder falls back to a local SQLite file under logsDir.
type TelemetryConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// GeoConfig anchors the map's local frame to a WGS84 origin so recorded
// poses can carry a geotag.
type GeoConfig struct {
	OriginLongitude float64 `json:"originLongitude" mapstructure:"originLongitude"`
	OriginLatitude  float64 `json:"originLatitude" mapstructure:"originLatitude"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./teledrivelogs")

	viper.SetDefault("sim.host", "127.0.0.1")
	viper.SetDefault("sim.ports", []int{2000, 2001, 2002})
	viper.SetDefault("sim.attemptTimeout", "2s")
	viper.SetDefault("sim.retryBackoff", "1s")
	viper.SetDefault("sim.maxRetries", 10)
	viper.SetDefault("sim.fixedDeltaSeconds", 1.0/60.0)

	viper.SetDefault("vehicle.preferredBlueprint", "vehicle.tesla.model3")
	viper.SetDefault("vehicle.roleName", "hero")
	viper.SetDefault("vehicle.color", "255,0,0")

	viper.SetDefault("camera.distance", 7.5)
	viper.SetDefault("camera.height", 3.0)
	viper.SetDefault("camera.pitch", -12.0)

	viper.SetDefault("telemetry.enabled", true)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "teledrive")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "teledrive-metrics")
	viper.SetDefault("influx.bucket", "drive_telemetry")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "teledrive")
	viper.SetDefault("otel.batchTimeout", "5s")

	viper.SetDefault("geo.originLongitude", 0.0)
	viper.SetDefault("geo.originLatitude", 0.0)

	viper.SetConfigName("teledrive.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetSimConfig returns the simulator connection section.
func GetSimConfig() SimConfig {
	return SimConfig{
		Host:              viper.GetString("sim.host"),
		Ports:             viper.GetIntSlice("sim.ports"),
		AttemptTimeout:    viper.GetDuration("sim.attemptTimeout"),
		RetryBackoff:      viper.GetDuration("sim.retryBackoff"),
		MaxRetries:        viper.GetInt("sim.maxRetries"),
		FixedDeltaSeconds: viper.GetFloat64("sim.fixedDeltaSeconds"),
	}
}

// GetVehicleConfig returns the vehicle section.
func GetVehicleConfig() VehicleConfig {
	return VehicleConfig{
		PreferredBlueprint: viper.GetString("vehicle.preferredBlueprint"),
		RoleName:           viper.GetString("vehicle.roleName"),
		Color:              viper.GetString("vehicle.color"),
	}
}

// GetCameraConfig returns the chase camera section.
func GetCameraConfig() CameraConfig {
	return CameraConfig{
		Distance: viper.GetFloat64("camera.distance"),
		Height:   viper.GetFloat64("camera.height"),
		Pitch:    viper.GetFloat64("camera.pitch"),
	}
}

// GetGeoConfig returns the geo-reference origin section.
func GetGeoConfig() GeoConfig {
	return GeoConfig{
		OriginLongitude: viper.GetFloat64("geo.originLongitude"),
		OriginLatitude:  viper.GetFloat64("geo.originLatitude"),
	}
}
