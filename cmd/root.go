package cmd

import (
	"crypto/tls"
	"fmt"
	log2 "log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"emperror.dev/errors"
	"github.com/NYTimes/logrotate"
	"github.com/apex/log"
	"github.com/apex/log/handlers/multi"
	"github.com/joho/godotenv"
	"github.com/mitchellh/colorstring"
	"github.com/spf13/cobra"

	"github.com/pterodactyl/scribe/access"
	"github.com/pterodactyl/scribe/config"
	"github.com/pterodactyl/scribe/filesystem"
	"github.com/pterodactyl/scribe/loggers/cli"
	"github.com/pterodactyl/scribe/router"
	"github.com/pterodactyl/scribe/system"
)

var (
	configPath   = config.DefaultLocation
	debug        = false
	rootOverride = ""
	portOverride = 0
)

var rootCommand = &cobra.Command{
	Use:   "scribe",
	Short: "Writes files into a single directory tree on behalf of authenticated callers.",
	PreRun: func(cmd *cobra.Command, args []string) {
		initConfig()
		initLogging()
	},
	Run: rootCmdRun,
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Prints the current executable version and exits.",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Printf("scribe v%s\n", system.Version)
	},
}

func Execute() {
	if err := rootCommand.Execute(); err != nil {
		log2.Fatalf("failed to execute command: %s", err)
	}
}

func init() {
	rootCommand.PersistentFlags().StringVar(&configPath, "config", config.DefaultLocation, "set the location for the configuration file")
	rootCommand.PersistentFlags().BoolVar(&debug, "debug", false, "pass in order to run scribe in debug mode")
	rootCommand.Flags().StringVar(&rootOverride, "root", "", "the directory all writes are confined to, overrides the configuration file")
	rootCommand.Flags().IntVar(&portOverride, "port", 0, "the port the webserver listens on, overrides the configuration file")

	rootCommand.AddCommand(versionCommand)
	rootCommand.AddCommand(newConfigureCommand())
	rootCommand.AddCommand(newDiagnosticsCommand())
}

func rootCmdRun(cmd *cobra.Command, _ []string) {
	printLogo()
	log.Debug("running in debug mode")
	log.WithField("config_file", configPath).Info("loading configuration from file")

	c := config.Get()
	if c.AuthenticationToken == config.DefaultToken {
		log.Warn("running with the default authentication token, set ADMIN_TOKEN or the token in the configuration file before exposing this instance")
	}

	if s, err := os.Stat(c.System.RootDirectory); err != nil {
		log.WithField("root", c.System.RootDirectory).WithField("error", err).Fatal("failed to stat root directory")
		return
	} else if !s.IsDir() {
		log.WithField("root", c.System.RootDirectory).Fatal("root directory is not a directory")
		return
	}

	fs := filesystem.New(
		c.System.RootDirectory,
		filesystem.WithDenylist(c.System.Denylist),
		filesystem.WithSymlinkCheck(c.System.CheckSymlinks),
	)
	guard := access.NewGuard(c.AuthenticationToken)

	log.WithFields(log.Fields{
		"use_ssl":       c.Api.Ssl.Enabled,
		"host_address":  c.Api.Host,
		"host_port":     c.Api.Port,
		"root":          fs.Path(),
		"token_header":  c.TokenHeader,
		"symlink_check": c.System.CheckSymlinks,
	}).Info("configuring internal webserver")

	s := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", c.Api.Host, c.Api.Port),
		Handler: router.Configure(fs, guard),
		TLSConfig: &tls.Config{
			NextProtos: []string{"h2", "http/1.1"},
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS13,
		},
	}

	if c.Api.Ssl.Enabled {
		if err := s.ListenAndServeTLS(c.Api.Ssl.CertificateFile, c.Api.Ssl.KeyFile); err != nil {
			log.WithFields(log.Fields{"error": err}).Fatal("failed to configure HTTPS server")
		}
		return
	}

	s.TLSConfig = nil
	if err := s.ListenAndServe(); err != nil {
		log.WithField("error", err).Fatal("failed to configure HTTP server")
	}
}

// Reads the configuration from the disk and then sets up the global singleton
// with all the configuration values. A .env file in the working directory is
// loaded into the environment first.
func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log2.Fatalf("cmd/root: failed to load .env file: %s", err)
	}
	if !strings.HasPrefix(configPath, "/") {
		d, err := os.Getwd()
		if err != nil {
			log2.Fatalf("cmd/root: could not determine directory: %s", err)
		}
		configPath = filepath.Clean(filepath.Join(d, configPath))
	}
	if err := config.FromFile(configPath); err != nil {
		log2.Fatalf("cmd/root: error while reading configuration file: %s", err)
	}
	var err error
	config.Update(func(c *config.Configuration) {
		if debug {
			c.Debug = true
		}
		if portOverride != 0 {
			c.Api.Port = portOverride
		}
		if rootOverride != "" {
			c.System.RootDirectory = rootOverride
			err = c.System.ConfigureRootDirectory()
		}
	})
	if err != nil {
		log2.Fatalf("cmd/root: %s", err)
	}
}

// Configures the global logger so that we can call it from any location in the
// code without having to pass around a logger instance. Output goes to the
// terminal and to a rotating file in the log directory.
func initLogging() {
	c := config.Get()
	if c.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	handlers := []log.Handler{cli.New(os.Stderr, true, c.Debug)}
	if err := os.MkdirAll(c.System.LogDirectory, 0o700); err != nil {
		log.SetHandler(multi.New(handlers...))
		log.WithField("error", err).Warn("failed to create log directory, only logging to stderr")
		return
	}
	p := filepath.Join(c.System.LogDirectory, "scribe.log")
	w, err := logrotate.NewFile(p)
	if err != nil {
		log2.Fatalf("cmd/root: failed to open log file: %s", err)
	}
	handlers = append(handlers, cli.New(w.File, false, true))
	log.SetHandler(multi.New(handlers...))
	log.WithField("path", p).Info("writing log files to disk")
}

func printLogo() {
	fmt.Printf(colorstring.Color(`
 [blue][bold]scribe[reset] [bold]v%s[reset]

Writes files into one directory tree for callers holding the shared token.%s`), system.Version, "\n\n")
}
