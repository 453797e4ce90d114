package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/seaflow/pkg/connector/registry"
	"github.com/ajitpratap0/seaflow/pkg/logger"
	"github.com/ajitpratap0/seaflow/pkg/plugin"

	// Register the bundled connectors
	_ "github.com/ajitpratap0/seaflow/pkg/connector/sinks"
	_ "github.com/ajitpratap0/seaflow/pkg/connector/sources"
	_ "github.com/ajitpratap0/seaflow/pkg/connector/transforms"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Flags of the executing command are
// bound to v, so every flag can also be set through a SEAFLOW_ environment
// variable (--plugin-dir becomes SEAFLOW_PLUGIN_DIR).
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("seaflow")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "seaflow",
		Short: "Seaflow - plugin orchestration for batch and streaming jobs",
		Long: `Seaflow reads a job file describing sources, transforms and sinks,
resolves each plugin, wires them into a stream graph and runs it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			return logger.Init(logger.Config{
				Level:       v.GetString("log-level"),
				Encoding:    v.GetString("log-encoding"),
				OutputPaths: []string{"stderr"},
			})
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-encoding", "console", "Log encoding (console or json)")

	root.AddCommand(
		newVersionCmd(),
		newListCmd(),
		newRunCmd(v),
		newCheckCmd(v),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Seaflow v%s (engine %s)\n", version, plugin.EngineKind)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newListCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available plugins",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			printCatalog(out, "Sources", registry.Catalog(plugin.KindSource), verbose)
			fmt.Fprintln(out)
			printCatalog(out, "Transforms", registry.Catalog(plugin.KindTransform), verbose)
			fmt.Fprintln(out)
			printCatalog(out, "Sinks", registry.Catalog(plugin.KindSink), verbose)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show capabilities and options")
	return cmd
}

func printCatalog(out io.Writer, title string, infos []*plugin.Info, verbose bool) {
	fmt.Fprintf(out, "Available %s:\n", title)
	for _, info := range infos {
		if info.Description == "" {
			fmt.Fprintf(out, "  - %s\n", info.Name)
		} else {
			fmt.Fprintf(out, "  - %s: %s\n", info.Name, info.Description)
		}
		if !verbose {
			continue
		}
		if len(info.Capabilities) > 0 {
			fmt.Fprintf(out, "      capabilities: %s\n", strings.Join(info.Capabilities, ", "))
		}
		for _, key := range sortedKeys(info.ConfigSchema) {
			fmt.Fprintf(out, "      %s: %v\n", key, info.ConfigSchema[key])
		}
	}
}
