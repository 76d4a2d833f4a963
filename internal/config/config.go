package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gaspardpetit/lsrelay/internal/logx"
	"github.com/gaspardpetit/lsrelay/internal/rewrite"
)

// ErrInvalid marks a configuration the relay refuses to start with.
var ErrInvalid = errors.New("invalid configuration")

// RelayConfig holds configuration for the relay.
type RelayConfig struct {
	HostRoot      string        `yaml:"host_root"`
	ContainerRoot string        `yaml:"container_root"`
	LogLevel      string        `yaml:"log_level"`
	LogFile       string        `yaml:"log_file"`
	StatusAddr    string        `yaml:"status_addr"`
	GracePeriod   time.Duration `yaml:"grace_period"`
	Server        ServerConfig  `yaml:"server"`
	ConfigFile    string        `yaml:"-"`
}

// ServerConfig describes how to spawn the downstream language server.
type ServerConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Env     []string `yaml:"env"`
}

// BindFlags populates the struct with defaults from environment
// variables and binds command line flags so main can call flag.Parse().
// The server command itself is taken from the positional arguments
// after flag parsing (or from the config file).
func (c *RelayConfig) BindFlags() {
	c.ConfigFile = getEnv("CONFIG_FILE", "")
	c.LogLevel = getEnv("LOG_LEVEL", "")
	if c.LogLevel == "" {
		if strings.EqualFold(getEnv("DEBUG", ""), "true") {
			c.LogLevel = "debug"
		} else {
			c.LogLevel = "info"
		}
	}
	c.LogFile = getEnv("LOG_FILE", logx.DefaultLogFile)
	c.HostRoot = getEnv("HOST_ROOT", "")
	c.ContainerRoot = getEnv("CONTAINER_ROOT", "")
	sa := getEnv("STATUS_ADDR", "")
	if sa != "" && !strings.Contains(sa, ":") {
		sa = ":" + sa
	}
	c.StatusAddr = sa
	if v, err := strconv.ParseFloat(getEnv("SHUTDOWN_GRACE", "5"), 64); err == nil {
		c.GracePeriod = time.Duration(v * float64(time.Second))
	} else {
		c.GracePeriod = 5 * time.Second
	}

	flag.StringVar(&c.ConfigFile, "config", c.ConfigFile, "relay config file path")
	flag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log verbosity (all, debug, info, warn, error, fatal, none)")
	flag.StringVar(&c.LogFile, "log-file", c.LogFile, "log file path (empty disables the file sink)")
	flag.StringVar(&c.HostRoot, "host-root", c.HostRoot, "project root as seen by the editor")
	flag.StringVar(&c.ContainerRoot, "container-root", c.ContainerRoot, "project root as seen by the language server")
	flag.StringVar(&c.StatusAddr, "status-addr", c.StatusAddr, "status/metrics listen address or port (disabled when empty; e.g. 127.0.0.1:9090 or 9090)")
	flag.Func("grace", "seconds to wait for the server to exit before killing it", func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.GracePeriod = time.Duration(f * float64(time.Second))
		return nil
	})
}

// LoadFile populates the config from a YAML file. Fields already set
// remain unless overwritten by corresponding entries in the file.
func (c *RelayConfig) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, c)
}

// Validate normalizes the path mapping and rejects configurations the
// rewrite rules cannot work with. It must run before the mapping is
// used.
func (c *RelayConfig) Validate() error {
	if c.HostRoot == "" || c.ContainerRoot == "" {
		return fmt.Errorf("%w: HOST_ROOT and CONTAINER_ROOT are required", ErrInvalid)
	}
	host := normalizeRoot(c.HostRoot)
	container := normalizeRoot(c.ContainerRoot)
	if !filepath.IsAbs(host) || !filepath.IsAbs(container) {
		return fmt.Errorf("%w: path roots must be absolute (host %q, container %q)", ErrInvalid, host, container)
	}
	if host == "/" || container == "/" {
		return fmt.Errorf("%w: filesystem root cannot be a mapping root", ErrInvalid)
	}
	if host == container {
		return fmt.Errorf("%w: host and container roots are identical (%q)", ErrInvalid, host)
	}
	if strings.HasPrefix(host, container+"/") || strings.HasPrefix(container, host+"/") {
		return fmt.Errorf("%w: one mapping root is nested inside the other (%q, %q)", ErrInvalid, host, container)
	}
	c.HostRoot = host
	c.ContainerRoot = container

	if c.Server.Command == "" {
		return fmt.Errorf("%w: no language server command given", ErrInvalid)
	}
	return nil
}

// Mapping returns the validated path mapping.
func (c *RelayConfig) Mapping() rewrite.Mapping {
	return rewrite.Mapping{HostRoot: c.HostRoot, ContainerRoot: c.ContainerRoot}
}

// normalizeRoot cleans a root path and strips any trailing slash so
// prefix matching works on whole segments.
func normalizeRoot(p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

func getEnv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
