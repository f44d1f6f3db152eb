package cmd

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/spigell/rozgar/internal/jobs"
	"github.com/spigell/rozgar/internal/matching"
	"github.com/spigell/rozgar/internal/media"
	"github.com/spigell/rozgar/internal/server"
	"github.com/spigell/rozgar/internal/storage"
)

const (
	app = "rozgar"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	AI           AIConfig           `mapstructure:"ai"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Matching     MatchingConfig     `mapstructure:"matching"`
	Applications ApplicationsConfig `mapstructure:"applications"`
	Session      SessionConfig      `mapstructure:"session"`
	Events       EventsConfig       `mapstructure:"events"`
	Media        MediaConfig        `mapstructure:"media"`
}

type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	Port           string `mapstructure:"port"`
	server.Options `mapstructure:",squash"`
}

type AIConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Gemini  GeminiConfig  `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type StorageConfig struct {
	storage.Config `mapstructure:",squash"`
	// SeedDemo fills an empty store with the bundled demo jobs on start.
	SeedDemo bool `mapstructure:"seed-demo"`
}

type MatchingConfig struct {
	DefaultRadius float64 `mapstructure:"default-radius"`
	// Origin is where stored distances are measured from.
	Origin *jobs.Coordinates `mapstructure:"origin"`
}

type ApplicationsConfig struct {
	TransitionPolicy string `mapstructure:"transition-policy"`
}

type SessionConfig struct {
	Secret     string        `mapstructure:"secret"`
	SecretFile string        `mapstructure:"secret-file"`
	TTL        time.Duration `mapstructure:"ttl"`
}

type EventsConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type MediaConfig struct {
	media.Config  `mapstructure:",squash"`
	SecretKeyFile string `mapstructure:"secret-key-file"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "rozgar matches blue-collar workers with local jobs from spoken requests",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is rozgar.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
	if err := bindEnv(viper.GetViper()); err != nil {
		log.Fatalf("binding environment variables: %v", err)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.rate-limit", server.DefaultRateLimit)
	v.SetDefault("server.rate-burst", server.DefaultRateBurst)
	v.SetDefault("ai.timeout", "5s")
	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini.max-log-length", 200)
	v.SetDefault("storage.driver", storage.DriverMemory)
	v.SetDefault("storage.seed-demo", true)
	v.SetDefault("matching.default-radius", matching.DefaultRadiusKm)
	v.SetDefault("applications.transition-policy", string(jobs.PolicyStrict))
	v.SetDefault("session.ttl", "720h")
	v.SetDefault("media.path-style", true)
}

func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"ai.gemini.api-key": {"GEMINI_API_KEY", "API_KEY"},
		"session.secret":    {"ROZGAR_SESSION_SECRET"},
		"server.port":       {"PORT"},
		"storage.url":       {"DATABASE_URL", "REDIS_URL"},
		"events.url":        {"RABBITMQ_URL"},
		"media.access-key":  {"S3_ACCESS_KEY_ID"},
		"media.secret-key":  {"S3_SECRET_ACCESS_KEY"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("binding %s: %w", strings.Join(envs, "/"), err)
		}
	}
	return nil
}

func initConfig() {
	// .env is optional. Variables already set in the environment win.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Without an explicit --config the defaults and environment are enough.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate normalises derived fields and rejects unusable values.
func (c *Config) Validate() error {
	if c.Server.Port != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(c.Server.Port, ":")
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	if c.AI.Timeout <= 0 {
		return errors.New("ai.timeout must be positive")
	}
	if _, err := jobs.ParseTransitionPolicy(c.Applications.TransitionPolicy); err != nil {
		return fmt.Errorf("applications.transition-policy: %w", err)
	}
	if c.Matching.DefaultRadius < matching.MinRadiusKm || c.Matching.DefaultRadius > matching.MaxRadiusKm {
		return fmt.Errorf("matching.default-radius must be between %d and %d", matching.MinRadiusKm, matching.MaxRadiusKm)
	}
	return nil
}
