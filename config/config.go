package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/creasty/defaults"
	"gopkg.in/yaml.v2"
)

const DefaultLocation = "/etc/scribe/config.yml"

// DefaultToken is the token used when nothing else has been configured. The
// daemon will run with it, but loudly complains on boot.
const DefaultToken = "change-me"

var (
	mu      sync.RWMutex
	_config *Configuration
)

// ApiConfiguration defines the configuration for the internal API that is
// exposed by the daemon webserver.
type ApiConfiguration struct {
	// The interface that the internal webserver should bind to.
	Host string `default:"0.0.0.0" yaml:"host"`

	// The port that the internal webserver should bind to.
	Port int `default:"4040" yaml:"port"`

	// SSL configuration for the daemon.
	Ssl struct {
		Enabled         bool   `json:"enabled" yaml:"enabled"`
		CertificateFile string `json:"cert" yaml:"cert"`
		KeyFile         string `json:"key" yaml:"key"`
	}

	// The maximum size of a request body in bytes. Anything larger than this
	// is rejected before it is written to the disk.
	UploadLimit int64 `default:"10485760" json:"upload_limit" yaml:"upload_limit"`

	// A list of IP address of proxies that may send a X-Forwarded-For header to
	// set the true requesting IP address.
	TrustedProxies []string `json:"trusted_proxies" yaml:"trusted_proxies"`
}

// SystemConfiguration defines basic system configuration settings.
type SystemConfiguration struct {
	// The directory that all writes are confined to. Defaults to the working
	// directory of the process when left empty.
	RootDirectory string `yaml:"root_directory"`

	// Directory where logs for the daemon are written to.
	LogDirectory string `default:"/var/log/scribe" yaml:"log_directory"`

	// When enabled, writes evaluate symlinks that already exist on the disk and
	// refuse to follow one that leads out of the root directory.
	CheckSymlinks bool `default:"true" yaml:"check_symlinks"`

	// A list of gitignore style patterns that can never be written to, even
	// when they are inside the root directory.
	Denylist []string `yaml:"denylist"`
}

type Configuration struct {
	// The location from which this configuration instance was instantiated.
	path string

	// Determines if the daemon should be running in debug mode. This value is
	// ignored if the debug flag is passed through the command line arguments.
	Debug bool

	// The token used when performing operations. Requests to this instance must
	// present it in the TokenHeader.
	AuthenticationToken string `yaml:"token"`

	// The name of the request header the token is read from.
	TokenHeader string `default:"X-Admin-Token" yaml:"token_header"`

	Api    ApiConfiguration    `json:"api" yaml:"api"`
	System SystemConfiguration `json:"system" yaml:"system"`

	// AllowedOrigins is a list of allowed request origins. The requests are
	// allowed from any origin when this is empty.
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
}

// NewAtPath creates a new struct and set the path where it should be stored.
// This function does not modify the currently stored global configuration.
func NewAtPath(path string) (*Configuration, error) {
	var c Configuration
	// Configures the default values for many of the configuration options present
	// in the structs. Values set in the configuration file will be overridden by
	// these, so anything not set is guaranteed to have a sane value.
	if err := defaults.Set(&c); err != nil {
		return nil, err
	}
	c.path = path
	return &c, nil
}

// Set the global configuration instance. This is a blocking operation such that
// anything trying to set a different configuration value, or read the configuration
// will be paused until it is complete.
func Set(c *Configuration) {
	mu.Lock()
	_config = c
	mu.Unlock()
}

// Get returns a copy of the global configuration instance. This is a read-only
// copy, any changes made to it are not persisted.
func Get() *Configuration {
	mu.RLock()
	// Create a copy of the struct so that all modifications made beyond this
	// point are immutable.
	//goland:noinspection GoVetCopyLock
	c := *_config
	mu.RUnlock()
	return &c
}

// Update performs an in-situ update of the global configuration object using
// a thread-safe mutex lock.
func Update(callback func(c *Configuration)) {
	mu.Lock()
	callback(_config)
	mu.Unlock()
}

// GetPath returns the location of the configuration file.
func (c *Configuration) GetPath() string {
	return c.path
}

// FromFile reads the configuration from the provided file and stores it in the
// global singleton for this instance. A missing file is not an error, the
// defaults and environment are used instead.
func FromFile(path string) error {
	c, err := NewAtPath(path)
	if err != nil {
		return err
	}
	b, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.WithStack(err)
	}
	if err == nil {
		// Replace environment variables within the configuration file with their
		// values from the host system.
		b = []byte(os.ExpandEnv(string(b)))
		if err := yaml.Unmarshal(b, c); err != nil {
			return errors.WithStack(err)
		}
	} else {
		log.WithField("path", path).Debug("configuration file does not exist, using defaults")
	}
	if err := c.applyEnvironment(); err != nil {
		return err
	}
	if err := c.System.ConfigureRootDirectory(); err != nil {
		return err
	}
	Set(c)
	return nil
}

// Reads the ADMIN_TOKEN, PROJECT_ROOT and PORT environment variables and uses
// them in place of anything set in the file.
func (c *Configuration) applyEnvironment() error {
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.AuthenticationToken = v
	}
	if v := os.Getenv("PROJECT_ROOT"); v != "" {
		c.System.RootDirectory = v
	}
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "config: PORT is not a valid number")
		}
		c.Api.Port = p
	}
	if c.AuthenticationToken == "" {
		c.AuthenticationToken = DefaultToken
	}
	return nil
}

// ConfigureRootDirectory resolves the root directory to a clean absolute path,
// falling back to the working directory of the process. This only happens once
// at boot, the value is not validated again afterwards.
func (sc *SystemConfiguration) ConfigureRootDirectory() error {
	if sc.RootDirectory == "" {
		wd, err := os.Getwd()
		if err != nil {
			return errors.Wrap(err, "config: failed to determine working directory")
		}
		sc.RootDirectory = wd
	}
	p, err := filepath.Abs(sc.RootDirectory)
	if err != nil {
		return errors.Wrap(err, "config: failed to resolve root directory")
	}
	sc.RootDirectory = filepath.Clean(p)
	return nil
}

// WriteToDisk writes the configuration to the disk. This is a blocking operation
// and will block all other attempts to read or write the configuration.
func WriteToDisk(c *Configuration) error {
	if c.path == "" {
		return errors.New("cannot write configuration, no path defined in struct")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return errors.WithStack(err)
	}
	if err := os.WriteFile(c.path, b, 0o600); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
