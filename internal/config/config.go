package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Environment   string `mapstructure:"environment"`
	DevModeBypass bool   `mapstructure:"dev_mode_bypass"`
	DB            struct {
		Host        string `mapstructure:"host"`
		Port        int    `mapstructure:"port"`
		User        string `mapstructure:"user"`
		Password    string `mapstructure:"password"`
		Name        string `mapstructure:"name"`
		SSLMode     string `mapstructure:"sslmode"`
		MaxConns    int32  `mapstructure:"max_conns"`
		AutoMigrate bool   `mapstructure:"auto_migrate"`
	} `mapstructure:"db"`
	Server struct {
		Addr         string        `mapstructure:"addr"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"server"`
	Log struct {
		Mode string `mapstructure:"mode"`
	} `mapstructure:"log"`
	Auth struct {
		OktaDomain      string `mapstructure:"okta_domain"`
		ClientID        string `mapstructure:"client_id"`
		ClientSecret    string `mapstructure:"client_secret"`
		RedirectURL     string `mapstructure:"redirect_url"`
		SwaggerClientID string `mapstructure:"swagger_client_id"`
		RoleClaim       string `mapstructure:"role_claim"`
		DevRole         string `mapstructure:"dev_role"`
	} `mapstructure:"auth"`
	Worker struct {
		// Token authenticates the generation worker on the internal routes.
		Token string `mapstructure:"token"`
		// DefaultURL is used for tenants without an entry in Endpoints.
		DefaultURL string            `mapstructure:"default_url"`
		Endpoints  map[string]string `mapstructure:"endpoints"`
		Timeout    time.Duration     `mapstructure:"timeout"`
		// TriggersPerMinute bounds relay calls per tenant.
		TriggersPerMinute int `mapstructure:"triggers_per_minute"`
	} `mapstructure:"worker"`
	MCP struct {
		// Token authenticates operators on /mcp. It must differ from
		// worker.token.
		Token string `mapstructure:"token"`
		// Tenants lists the tenant ids the MCP tools may act on. Empty
		// allows none.
		Tenants []string `mapstructure:"tenants"`
	} `mapstructure:"mcp"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
}

// LoadConfig loads the configuration from a file and the environment. An
// empty path searches for config.yaml in . and ./config; a missing file is
// not an error so the service can run from environment variables alone.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || path != "" {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// normalize OKTA issuer url (strip trailing slash if any)
	config.Auth.OktaDomain = normalizeOktaIssuer(config.Auth.OktaDomain)

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "DEV")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.name", "huddle")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("log.mode", "dev")
	v.SetDefault("auth.role_claim", "role")
	v.SetDefault("auth.dev_role", "TENANT_ADMIN")
	v.SetDefault("worker.timeout", 10*time.Second)
	v.SetDefault("worker.triggers_per_minute", 6)
}

// normalizeOktaIssuer strips surrounding whitespace and any trailing slash so
// the issuer can be pasted straight from the Okta admin console.
func normalizeOktaIssuer(input string) string {
	return strings.TrimRight(strings.TrimSpace(input), "/")
}
