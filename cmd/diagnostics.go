package cmd

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/pterodactyl/scribe/config"
	"github.com/pterodactyl/scribe/loggers/cli"
	"github.com/pterodactyl/scribe/system"
)

var diagnosticsArgs struct {
	IncludeToken bool
}

func newDiagnosticsCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "diagnostics",
		Short: "Report information about this instance and its configuration to assist in debugging.",
		PreRun: func(cmd *cobra.Command, args []string) {
			initConfig()
			log.SetHandler(cli.New(os.Stderr, true, false))
		},
		Run: func(cmd *cobra.Command, args []string) {
			writeDiagnostics(os.Stdout, config.Get())
		},
	}
	command.Flags().BoolVar(&diagnosticsArgs.IncludeToken, "include-token", false, "print the authentication token instead of redacting it")
	return command
}

// writeDiagnostics collects diagnostics about the daemon and its configuration,
// including whether the root directory can actually be written to.
func writeDiagnostics(output io.Writer, cfg *config.Configuration) {
	fmt.Fprintln(output, "scribe - Diagnostics Report")
	printHeader(output, "Versions")
	fmt.Fprintln(output, "              scribe:", system.Version)
	fmt.Fprintln(output, "                  Go:", runtime.Version())
	fmt.Fprintln(output, "                  OS:", runtime.GOOS+"/"+runtime.GOARCH)

	printHeader(output, "Configuration")
	fmt.Fprintln(output, "  Configuration File:", cfg.GetPath())
	fmt.Fprintln(output, "  Internal Webserver:", cfg.Api.Host, ":", cfg.Api.Port)
	fmt.Fprintln(output, "         SSL Enabled:", cfg.Api.Ssl.Enabled)
	fmt.Fprintln(output, "        Upload Limit:", cfg.Api.UploadLimit)
	fmt.Fprintln(output, "")
	fmt.Fprintln(output, "        Token Header:", cfg.TokenHeader)
	if diagnosticsArgs.IncludeToken {
		fmt.Fprintln(output, "               Token:", cfg.AuthenticationToken)
	} else {
		fmt.Fprintln(output, "               Token:", redact(cfg.AuthenticationToken))
	}
	fmt.Fprintln(output, "       Default Token:", cfg.AuthenticationToken == config.DefaultToken)
	fmt.Fprintln(output, "")
	fmt.Fprintln(output, "      Root Directory:", cfg.System.RootDirectory)
	fmt.Fprintln(output, "      Logs Directory:", cfg.System.LogDirectory)
	fmt.Fprintln(output, "      Check Symlinks:", cfg.System.CheckSymlinks)
	fmt.Fprintln(output, "            Denylist:", strings.Join(cfg.System.Denylist, ", "))
	fmt.Fprintln(output, "         Server Time:", time.Now().Format(time.RFC1123Z))
	fmt.Fprintln(output, "          Debug Mode:", cfg.Debug)

	printHeader(output, "Root Directory")
	fmt.Fprintln(output, "            Writable:", checkWritable(cfg.System.RootDirectory))
}

// Creates and removes a temporary file in the directory to confirm writes will
// succeed. Returns "yes" or the reason they will not.
func checkWritable(dir string) string {
	st, err := os.Stat(dir)
	if err != nil {
		return "no (" + err.Error() + ")"
	}
	if !st.IsDir() {
		return "no (not a directory)"
	}
	f, err := os.CreateTemp(dir, ".scribe-diagnostics-*")
	if err != nil {
		return "no (" + err.Error() + ")"
	}
	f.Close()
	_ = os.Remove(f.Name())
	return "yes"
}

func redact(s string) string {
	if s == "" {
		return "{not set}"
	}
	return "{redacted}"
}

func printHeader(w io.Writer, title string) {
	fmt.Fprintln(w, "\n|\n|", title)
	fmt.Fprintln(w, "| ------------------------------")
}
