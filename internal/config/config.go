package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up by Search.
const FileName = "settlers.yaml"

// Store backends accepted in Settings.Store.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Settings is the complete server configuration.
type Settings struct {
	Addr            string        `yaml:"addr"`
	ResourcesPath   string        `yaml:"resources_path"`
	MaxBodySize     int64         `yaml:"max_body_size"`
	MaxAPIBodySize  int64         `yaml:"max_api_body_size"`
	MaxMessageSize  int64         `yaml:"max_message_size"`
	MaxConnections  int           `yaml:"max_connections"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	TLS             TLS           `yaml:"tls"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	Relay           Relay         `yaml:"relay"`
	Store           string        `yaml:"store"`
	Database        Database      `yaml:"database"`
	Dev             bool          `yaml:"dev"`
	Telemetry       bool          `yaml:"telemetry"`
	BuildAssets     bool          `yaml:"build_assets"`
}

// TLS points at PEM encoded certificate material. Both paths empty serves
// plain HTTP.
type TLS struct {
	CertPath string `yaml:"cert_path"`
	KeyPath  string `yaml:"key_path"`
}

// Enabled reports whether TLS material is configured.
func (t TLS) Enabled() bool {
	return t.CertPath != "" || t.KeyPath != ""
}

type Relay struct {
	Policy       string        `yaml:"policy"`
	PingInterval time.Duration `yaml:"ping_interval"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type Database struct {
	URL             string        `yaml:"url"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConns        int32         `yaml:"max_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// Search returns the configuration files that exist, lowest precedence
// first: the system file, the user file, then every settlers.yaml from the
// filesystem root down to dir.
func Search(dir string) ([]string, error) {
	var candidates []string

	candidates = append(candidates, filepath.Join("/etc", "settlers", FileName))

	if userDir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(userDir, "settlers", FileName))
	}

	var walked []string
	for d := filepath.Clean(dir); ; {
		walked = append(walked, filepath.Join(d, FileName))
		parent := filepath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}
	for i := len(walked) - 1; i >= 0; i-- {
		candidates = append(candidates, walked[i])
	}

	var found []string
	for _, p := range candidates {
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file %s: %w", p, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("config file %s is a directory: %w", p, ErrInvalidConfig)
		}
		found = append(found, p)
	}
	return found, nil
}

// Load decodes each file in order into a single Settings value, later files
// overriding keys set by earlier ones. ${VAR} references are expanded from
// the environment before decoding.
func Load(paths ...string) (*Settings, error) {
	s := &Settings{}
	for _, p := range paths {
		if err := s.merge(p); err != nil {
			return nil, err
		}
		log.Debug().Str("path", p).Msg("Config source added")
	}
	return s, nil
}

func (s *Settings) merge(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))
	if strings.TrimSpace(expanded) == "" {
		return nil
	}

	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyDefaults fills every unset field.
func (s *Settings) ApplyDefaults() {
	if s.Addr == "" {
		s.Addr = "0.0.0.0:8080"
	}
	if s.ResourcesPath == "" {
		s.ResourcesPath = "public"
	}
	if s.MaxBodySize == 0 {
		s.MaxBodySize = 8 << 20 // 8MiB
	}
	if s.MaxAPIBodySize == 0 {
		s.MaxAPIBodySize = 1024
	}
	if s.MaxMessageSize == 0 {
		s.MaxMessageSize = 64 << 10 // 64KiB
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 10 * time.Second
	}
	if s.Relay.Policy == "" {
		s.Relay.Policy = "echo"
	}
	if s.Relay.PingInterval == 0 {
		s.Relay.PingInterval = 30 * time.Second
	}
	if s.Relay.WriteTimeout == 0 {
		s.Relay.WriteTimeout = 10 * time.Second
	}
	if s.Store == "" {
		s.Store = StoreMemory
	}
	if s.Database.MinConns == 0 {
		s.Database.MinConns = 1
	}
	if s.Database.MaxConns == 0 {
		s.Database.MaxConns = 32
	}
	if s.Database.ConnectTimeout == 0 {
		s.Database.ConnectTimeout = 10 * time.Second
	}
}

// Validate checks the settings after defaults have been applied.
func (s *Settings) Validate() error {
	var errs []error

	if s.MaxBodySize < 0 {
		errs = append(errs, errors.New("max_body_size must not be negative"))
	}
	if s.MaxAPIBodySize < 0 {
		errs = append(errs, errors.New("max_api_body_size must not be negative"))
	}
	if s.MaxMessageSize < 0 {
		errs = append(errs, errors.New("max_message_size must not be negative"))
	}
	if s.MaxConnections < 0 {
		errs = append(errs, errors.New("max_connections must not be negative"))
	}

	if s.TLS.Enabled() {
		if err := checkFile("tls.cert_path", s.TLS.CertPath); err != nil {
			errs = append(errs, err)
		}
		if err := checkFile("tls.key_path", s.TLS.KeyPath); err != nil {
			errs = append(errs, err)
		}
	}

	switch s.Store {
	case StoreMemory:
	case StorePostgres:
		if s.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for the postgres store"))
		}
		if s.Database.MinConns > s.Database.MaxConns {
			errs = append(errs, errors.New("database.min_conns cannot exceed database.max_conns"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", s.Store))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func checkFile(field, path string) error {
	if path == "" {
		return fmt.Errorf("%s is required when TLS is enabled", field)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s must point to a file", field)
	}
	return nil
}
