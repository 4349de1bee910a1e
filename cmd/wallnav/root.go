package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"wall-navigation/wall_nav"
)

var (
	cfgFile      string
	outputFormat string

	v = wall_nav.NewViper()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "wallnav",
	Short: "Reactive wall-following controller and rotation executor",
	Long: `wallnav drives a mobile robot forward until the front sector of its ranging sensor
sees a wall, then hands an in-place turn to the rotation executor and resumes driving.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to YAML or JSON config.")
	flags.StringVar(&outputFormat, "output", "table", "Output format: table or json.")

	flags.Float64("wall-distance-threshold", 0.5, "Front-sector distance (m) that triggers a turn.")
	flags.Float64("forward-speed", 0.2, "Forward speed (m/s) while driving.")
	flags.Float64("rotation-angle", 90.0, "Signed turn angle (degrees) per detection.")
	flags.Float64("rotation-speed", 0.5, "Angular speed (rad/s) of the executor.")
	flags.String("live-addr", "", "Ranging UDP listen addr (host:port).")
	flags.String("output-addr", "", "Velocity UDP output addr (host:port).")
	flags.String("http-addr", "", "HTTP listen addr (host:port).")
	flags.String("rotation-addr", "", "HTTP listen addr of the rotate command (host:port).")
	flags.String("rotation-url", "", "Base URL of a remote rotation executor.")
	flags.String("history", "", "SQLite goal history path.")

	bindFlag(flags, "navigation.wall_distance_threshold", "wall-distance-threshold")
	bindFlag(flags, "navigation.forward_speed", "forward-speed")
	bindFlag(flags, "navigation.rotation_angle", "rotation-angle")
	bindFlag(flags, "rotation.rotation_speed", "rotation-speed")
	bindFlag(flags, "live.udp_addr", "live-addr")
	bindFlag(flags, "output.udp_addr", "output-addr")
	bindFlag(flags, "http.addr", "http-addr")
	bindFlag(flags, "http.rotation_addr", "rotation-addr")
	bindFlag(flags, "http.rotation_url", "rotation-url")
	bindFlag(flags, "history.path", "history")
}

// bindFlag ties a flag to a config key; unset flags fall through to file, env, and defaults.
func bindFlag(flags *pflag.FlagSet, key, name string) {
	if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", name, err))
	}
}

// loadConfig resolves the effective configuration and validates it.
func loadConfig() (wall_nav.AppConfig, error) {
	if err := readConfigFile(v); err != nil {
		return wall_nav.AppConfig{}, err
	}
	cfg, err := wall_nav.DecodeConfig(v)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func readConfigFile(v *viper.Viper) error {
	if cfgFile == "" {
		return nil
	}
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("load config %q: %w", cfgFile, err)
	}
	return nil
}

// isJSONOutput returns true if JSON output is requested
func isJSONOutput() bool {
	return outputFormat == "json"
}
