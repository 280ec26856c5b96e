package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Backend names accepted in Config.Backend.
const (
	BackendRelational = "relational"
	BackendDocument   = "document"
)

// Config represents the main configuration for projectdb.
type Config struct {
	Backend       string         `toml:"backend"` // "relational" (default) or "document"
	RemoveOrphans bool           `toml:"remove_orphans"`
	BaseDir       string         `toml:"base_dir"`
	LogDir        string         `toml:"log_dir"`
	Database      DatabaseConfig `toml:"database"`
	Documents     DocumentConfig `toml:"documents"`
}

// DatabaseConfig configures the relational backend. LocalMode selects a
// sqlite file under DataDir; otherwise a mysql server is used.
type DatabaseConfig struct {
	LocalMode bool   `toml:"local_mode"`
	DataDir   string `toml:"data_dir,omitempty"` // local mode; ":memory:" keeps the store in memory
	DBName    string `toml:"db_name"`

	// Remote-mode fields. User, Password, Host and Port fall back to the
	// KARABO_PROJECT_DB_* environment variables when empty.
	Host     string `toml:"host,omitempty"`
	Port     int    `toml:"port,omitempty"`
	User     string `toml:"user,omitempty"`
	Password string `toml:"password,omitempty"`

	PoolSize           int `toml:"pool_size,omitempty"`
	MaxOverflow        int `toml:"max_overflow,omitempty"`
	PoolRecycleSeconds int `toml:"pool_recycle_seconds,omitempty"`
}

// DocumentConfig configures the legacy document backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DocumentConfig struct {
	Root string `toml:"root"` // collection root inside the store, e.g. "/db/krb_config"
	Type string `toml:"type"` // "filesystem", "memory" or "s3"

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"`

	Encryption EncryptionConfig `toml:"encryption"`
}

// EncryptionConfig holds paths to the age key pair used to encrypt stored
// documents.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path,omitempty"`
	PrivateKeyPath string `toml:"private_key_path,omitempty"`
}

// Defaults used by NewConfig and ApplyDefaults.
const (
	DefaultDBName       = "projectdb"
	DefaultPort         = 3306
	DefaultPoolSize     = 5
	DefaultMaxOverflow  = 10
	DefaultPoolRecycle  = 3600
	DefaultDocumentRoot = "/db/krb_config"
)

// NewConfig creates a local relational configuration rooted at baseDir.
func NewConfig(baseDir string) *Config {
	cfg := &Config{
		Backend: BackendRelational,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			LocalMode: true,
			DataDir:   filepath.Join(baseDir, "data"),
		},
		Documents: DocumentConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(baseDir, "documents"),
			Encryption: EncryptionConfig{
				Type:           "none",
				PublicKeyPath:  filepath.Join(baseDir, "keys", "projectdb.pub"),
				PrivateKeyPath: filepath.Join(baseDir, "keys", "projectdb.key"),
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field that has a default.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendRelational
	}
	db := &c.Database
	if db.DBName == "" {
		db.DBName = DefaultDBName
	}
	if db.Port == 0 {
		db.Port = DefaultPort
	}
	if db.PoolSize == 0 {
		db.PoolSize = DefaultPoolSize
	}
	if db.MaxOverflow == 0 {
		db.MaxOverflow = DefaultMaxOverflow
	}
	if db.PoolRecycleSeconds == 0 {
		db.PoolRecycleSeconds = DefaultPoolRecycle
	}
	if c.Documents.Root == "" {
		c.Documents.Root = DefaultDocumentRoot
	}
	if c.Documents.Encryption.Type == "" {
		c.Documents.Encryption.Type = "none"
	}
}

// Validate reports configuration that cannot be opened.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendRelational:
		if c.Database.LocalMode && c.Database.DataDir == "" {
			return fmt.Errorf("database.data_dir required in local mode")
		}
	case BackendDocument:
		if c.Documents.Type == "" {
			return fmt.Errorf("documents.type required for the document backend")
		}
	default:
		return fmt.Errorf("unknown backend: %q", c.Backend)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader and applies defaults.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to path. It refuses to replace an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
