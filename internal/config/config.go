package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/iggydv12/voxelink/internal/api/wire"
	"github.com/iggydv12/voxelink/internal/storage"
	"github.com/iggydv12/voxelink/internal/world"
)

// Config is the root configuration struct
type Config struct {
	Client    ClientConfig    `mapstructure:"client"`
	BuildArea BuildAreaConfig `mapstructure:"buildArea"`
	Server    ServerConfig    `mapstructure:"server"`
	SelfTest  SelfTestConfig  `mapstructure:"selftest"`
}

// ClientConfig holds the access layer settings
type ClientConfig struct {
	ServerURL        string        `mapstructure:"serverURL"`
	Timeout          time.Duration `mapstructure:"timeout"`
	Caching          bool          `mapstructure:"caching"`
	Buffering        bool          `mapstructure:"buffering"`
	BufferLimit      int           `mapstructure:"bufferLimit"`
	BatchSize        int           `mapstructure:"batchSize"`
	FlushConcurrency int           `mapstructure:"flushConcurrency"`
	CacheMaxSize     int           `mapstructure:"cacheMaxSize"`
	MaxRegionVolume  int           `mapstructure:"maxRegionVolume"`
}

// BuildAreaConfig optionally pins the build area. When unset the client
// asks the server.
type BuildAreaConfig struct {
	Set   bool `mapstructure:"set"`
	XFrom int  `mapstructure:"xFrom"`
	YFrom int  `mapstructure:"yFrom"`
	ZFrom int  `mapstructure:"zFrom"`
	XTo   int  `mapstructure:"xTo"`
	YTo   int  `mapstructure:"yTo"`
	ZTo   int  `mapstructure:"zTo"`
}

// ServerConfig holds the reference world store settings
type ServerConfig struct {
	Addr          string `mapstructure:"addr"`
	DBPath        string `mapstructure:"dbPath"`
	PaletteFile   string `mapstructure:"paletteFile"`
	StrictPalette bool   `mapstructure:"strictPalette"`
	DefaultBlock  string `mapstructure:"defaultBlock"`
	// Reset clears every stored block on startup.
	Reset bool `mapstructure:"reset"`
}

// SelfTestConfig holds the self-test settings
type SelfTestConfig struct {
	Size int   `mapstructure:"size"`
	Seed int64 `mapstructure:"seed"`
}

// Box returns the configured build area, or nil when unset.
func (b BuildAreaConfig) Box() *world.Box {
	if !b.Set {
		return nil
	}
	box := world.NewBox(world.C(b.XFrom, b.YFrom, b.ZFrom), world.C(b.XTo, b.YTo, b.ZTo))
	return &box
}

// Storage converts the client section into an access layer config.
func (c *Config) Storage() storage.Config {
	return storage.Config{
		Options: storage.Options{
			Caching:   c.Client.Caching,
			Buffering: c.Client.Buffering,
		},
		BufferLimit:      c.Client.BufferLimit,
		CacheMaxSize:     c.Client.CacheMaxSize,
		BatchSize:        c.Client.BatchSize,
		FlushConcurrency: c.Client.FlushConcurrency,
		BuildArea:        c.BuildArea.Box(),
	}
}

// Load reads configuration from file and environment
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("client.serverURL", "http://localhost:9000")
	v.SetDefault("client.timeout", 30*time.Second)
	v.SetDefault("client.caching", false)
	v.SetDefault("client.buffering", false)
	v.SetDefault("client.bufferLimit", 1024)
	v.SetDefault("client.batchSize", storage.DefaultBatchSize)
	v.SetDefault("client.flushConcurrency", storage.DefaultFlushConcurrency)
	v.SetDefault("client.cacheMaxSize", 8192)
	v.SetDefault("client.maxRegionVolume", wire.MaxRegionVolume)
	v.SetDefault("buildArea.set", false)
	v.SetDefault("buildArea.xFrom", 0)
	v.SetDefault("buildArea.yFrom", 0)
	v.SetDefault("buildArea.zFrom", 0)
	v.SetDefault("buildArea.xTo", 255)
	v.SetDefault("buildArea.yTo", 255)
	v.SetDefault("buildArea.zTo", 255)
	v.SetDefault("server.addr", "0.0.0.0:9000")
	v.SetDefault("server.dbPath", "/tmp/voxelink-world")
	v.SetDefault("server.paletteFile", "")
	v.SetDefault("server.strictPalette", false)
	v.SetDefault("server.defaultBlock", "minecraft:air")
	v.SetDefault("server.reset", false)
	v.SetDefault("selftest.size", 16)
	v.SetDefault("selftest.seed", 0)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("voxelink")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
