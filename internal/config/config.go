package config

import "github.com/spf13/viper"

// Config carries everything the pipeline and the query API need. Values
// come from configs/config.yaml and can be overridden by environment
// variables of the same name.
type Config struct {
	DBSource      string `mapstructure:"DB_SOURCE"`
	ServerAddress string `mapstructure:"SERVER_ADDRESS"`

	PostcodesCSV  string `mapstructure:"POSTCODES_CSV"`
	StreetsCSV    string `mapstructure:"STREETS_CSV"`
	OALookupCSV   string `mapstructure:"OA_LOOKUP_CSV"`
	BoundariesDir string `mapstructure:"BOUNDARIES_DIR"`
	OutputDir     string `mapstructure:"OUTPUT_DIR"`

	AddressAPIBaseURL string `mapstructure:"ADDRESS_API_BASE_URL"`
	AddressAPIKey     string `mapstructure:"ADDRESS_API_KEY"`
	RequestsPerSecond int    `mapstructure:"REQUESTS_PER_SECOND"`
	DailyQuota        int    `mapstructure:"DAILY_QUOTA"`

	Workers          int     `mapstructure:"WORKERS"`
	LocalityRadiusKm float64 `mapstructure:"LOCALITY_RADIUS_KM"`
	EnrichAddresses  bool    `mapstructure:"ENRICH_ADDRESSES"`
}

// LoadConfig reads configuration from the given directory, letting the
// environment override file values.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
