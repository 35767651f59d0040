package config

import "time"

// ServerConfig holds settings for the reference store server.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	DBPath            string        `mapstructure:"db_path" yaml:"db_path"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	JWTSecret         string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer         string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience       string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL            time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`
	MessageRateLimit  int           `mapstructure:"message_rate_limit" yaml:"message_rate_limit"`
}

// ClientConfig holds settings for the terminal client.
type ClientConfig struct {
	ServerURL      string        `mapstructure:"server_url" yaml:"server_url"`
	Room           string        `mapstructure:"room" yaml:"room"`
	SendTimeout    time.Duration `mapstructure:"send_timeout" yaml:"send_timeout"`
	OptimisticEcho bool          `mapstructure:"optimistic_echo" yaml:"optimistic_echo"`
}

// Config holds all configuration values for both binaries.
type Config struct {
	LogLevel string       `mapstructure:"log_level" yaml:"log_level"`
	Server   ServerConfig `mapstructure:"server" yaml:"server"`
	Client   ClientConfig `mapstructure:"client" yaml:"client"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			Addr:              ":8080",
			DBPath:            "ctins.db",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   5 * time.Second,
			JWTSecret:         "dev-secret-change-me",
			JWTIssuer:         "ctins",
			JWTAudience:       "ctins-client",
			JWTTTL:            24 * time.Hour,
			MessageRateLimit:  10,
		},
		Client: ClientConfig{
			ServerURL:      "http://localhost:8080",
			Room:           "lobby",
			SendTimeout:    10 * time.Second,
			OptimisticEcho: true,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.DBPath != "" {
		c.Server.DBPath = other.Server.DBPath
	}
	if other.Server.ReadHeaderTimeout != 0 {
		c.Server.ReadHeaderTimeout = other.Server.ReadHeaderTimeout
	}
	if other.Server.ShutdownTimeout != 0 {
		c.Server.ShutdownTimeout = other.Server.ShutdownTimeout
	}
	if other.Server.JWTSecret != "" {
		c.Server.JWTSecret = other.Server.JWTSecret
	}
	if other.Server.JWTIssuer != "" {
		c.Server.JWTIssuer = other.Server.JWTIssuer
	}
	if other.Server.JWTAudience != "" {
		c.Server.JWTAudience = other.Server.JWTAudience
	}
	if other.Server.JWTTTL != 0 {
		c.Server.JWTTTL = other.Server.JWTTTL
	}
	if other.Server.MessageRateLimit != 0 {
		c.Server.MessageRateLimit = other.Server.MessageRateLimit
	}
	if other.Client.ServerURL != "" {
		c.Client.ServerURL = other.Client.ServerURL
	}
	if other.Client.Room != "" {
		c.Client.Room = other.Client.Room
	}
	if other.Client.SendTimeout != 0 {
		c.Client.SendTimeout = other.Client.SendTimeout
	}
}
