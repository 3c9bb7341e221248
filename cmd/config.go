package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/unblockhq/unblock/types"
)

const (
	configName = ".unblock"
	envPrefix  = "UNBLOCK"
)

// GlobalAppConfig holds the global application configuration instance.
var GlobalAppConfig types.AppConfig

// validate is a single instance of Validate, it caches struct info
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// validateAppConfig performs validation on the AppConfig struct.
func validateAppConfig(config *types.AppConfig) error {
	return validate.Struct(config)
}

// InitConfig reads in config file and ENV variables if set.
func InitConfig() {
	// Load .env file first if present. It's okay if it doesn't exist.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix) // e.g., UNBLOCK_SERVER_PORT
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfgFileFlag := viper.GetString("config")
	if cfgFileFlag != "" {
		viper.SetConfigFile(cfgFileFlag)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home) // $HOME/.unblock.yaml
		}
		viper.AddConfigPath(".") // ./.unblock.yaml
		viper.SetConfigName(configName)
	}

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if cfgFileFlag != "" {
				fmt.Fprintln(os.Stderr, "Error: Specified config file not found:", cfgFileFlag)
			} else if viper.GetBool("verbose") {
				fmt.Fprintln(os.Stderr, "No config file found. Using defaults and environment variables.")
			}
		} else {
			fmt.Fprintln(os.Stderr, "Error reading config file:", viper.ConfigFileUsed(), "-", err)
		}
	}

	// Set default values
	viper.SetDefault("server.port", 8080)

	viper.SetDefault("market.supervisorScoreThreshold", 60)
	viper.SetDefault("market.subscriberPaymentShare", 0.7)
	viper.SetDefault("market.auditSampleRate", 0.20)
	viper.SetDefault("market.autoApproveSubscriberMinTrust", 40)
	viper.SetDefault("market.subscriberMinClaimTrust", 10)
	viper.SetDefault("market.calibrationScoreTolerance", 15)

	viper.SetDefault("escrow.mock", true)
	viper.SetDefault("ledger.path", "")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	if err := viper.Unmarshal(&GlobalAppConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshaling config: %s\n", err)
		os.Exit(1)
	}

	if err := validateAppConfig(&GlobalAppConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation error: %s\n", err)
		os.Exit(1)
	}
}

// WatchConfig re-unmarshals the live configuration whenever the config
// file changes on disk. Only the policy knobs under market.* are safe to
// change at runtime; onChange receives the freshly validated config.
func WatchConfig(onChange func(types.AppConfig)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		var next types.AppConfig
		if err := viper.Unmarshal(&next); err != nil {
			fmt.Fprintf(os.Stderr, "Ignoring config change (%s): %s\n", e.Name, err)
			return
		}
		if err := validateAppConfig(&next); err != nil {
			fmt.Fprintf(os.Stderr, "Ignoring invalid config change (%s): %s\n", e.Name, err)
			return
		}
		GlobalAppConfig = next
		if onChange != nil {
			onChange(next)
		}
	})
	viper.WatchConfig()
}

// GetConfig returns a pointer to the global types.AppConfig instance.
func GetConfig() *types.AppConfig {
	return &GlobalAppConfig
}
