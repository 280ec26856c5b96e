package app

import (
	"fmt"
	"strconv"

	"projectdb-go/internal/blob"
	"projectdb-go/internal/config"
)

// Environment variables read once at startup.
const (
	EnvDBUser        = "KARABO_PROJECT_DB_USER"
	EnvDBPassword    = "KARABO_PROJECT_DB_PASSWORD"
	EnvDBHost        = "KARABO_PROJECT_DB_HOST"
	EnvDBPort        = "KARABO_PROJECT_DB_PORT"
	EnvS3AccessKey   = "PROJECTDB_S3_ACCESS_KEY_ID"
	EnvS3SecretKey   = "PROJECTDB_S3_SECRET_ACCESS_KEY"
	EnvKeyPassphrase = "PROJECTDB_PASSPHRASE"
)

// Credentials are the secrets and connection overrides that do not live in
// the config file.
type Credentials struct {
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     int
	S3         blob.Credentials
	Passphrase string // unlocks the age private key
}

// CredentialsFromEnv reads Credentials through getenv, normally os.Getenv.
func CredentialsFromEnv(getenv func(string) string) (Credentials, error) {
	c := Credentials{
		DBUser:     getenv(EnvDBUser),
		DBPassword: getenv(EnvDBPassword),
		DBHost:     getenv(EnvDBHost),
		S3: blob.Credentials{
			AccessKeyID:     getenv(EnvS3AccessKey),
			SecretAccessKey: getenv(EnvS3SecretKey),
		},
		Passphrase: getenv(EnvKeyPassphrase),
	}
	if p := getenv(EnvDBPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return Credentials{}, fmt.Errorf("invalid %s %q", EnvDBPort, p)
		}
		c.DBPort = port
	}
	return c, nil
}

// Apply fills the remote database fields cfg leaves empty. Values from the
// config file win.
func (c Credentials) Apply(cfg *config.DatabaseConfig) {
	if cfg.User == "" {
		cfg.User = c.DBUser
	}
	if cfg.Password == "" {
		cfg.Password = c.DBPassword
	}
	if cfg.Host == "" {
		cfg.Host = c.DBHost
	}
	if c.DBPort != 0 && (cfg.Port == 0 || cfg.Port == config.DefaultPort) {
		cfg.Port = c.DBPort
	}
}

// NeedsPassword reports whether a remote connection would go out without
// a password.
func NeedsPassword(cfg *config.Config) bool {
	return cfg.Backend == config.BackendRelational && !cfg.Database.LocalMode && cfg.Database.Password == ""
}

// NeedsPassphrase reports whether opening the document store requires the
// age key passphrase.
func NeedsPassphrase(cfg *config.Config) bool {
	return cfg.Backend == config.BackendDocument && cfg.Documents.Encryption.Type == "age"
}
