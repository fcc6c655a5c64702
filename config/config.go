package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/namsral/flag"
	"github.com/spf13/viper"
)

type Config struct {
	viper.Viper
	args []string
}

const (
	ConfigRows            = "rows"
	ConfigCols            = "cols"
	ConfigWinLength       = "win-length"
	ConfigGravity         = "gravity"
	ConfigAIMode          = "ai-mode"
	ConfigAITimeLimit     = "ai-time-limit"
	ConfigAIMaxDepth      = "ai-max-depth"
	ConfigAIThreads       = "ai-threads"
	ConfigAIRandomize     = "ai-randomize"
	ConfigComputerPlays   = "computer-plays"
	ConfigTTFractionOfMem = "tt-fraction-of-mem"
	ConfigTTMinSizePower  = "tt-min-size-power"
	ConfigAutoplayLog     = "autoplay-log"
	ConfigGameDBPath      = "gamedb-path"
	ConfigDataPath        = "data-path"
	ConfigDebug           = "debug"
	ConfigCPUProfile      = "cpu-profile"
	ConfigMemProfile      = "mem-profile"
)

type setting struct {
	name  string
	def   any
	usage string
}

var settings = []setting{
	{ConfigRows, 3, "number of board rows (m)"},
	{ConfigCols, 3, "number of board columns (n)"},
	{ConfigWinLength, 3, "marks in a row needed to win (k)"},
	{ConfigGravity, false, "marks fall to the lowest free cell of a column"},
	{ConfigAIMode, "alphabeta", "computer strategy: random, random_weighted, first_sorted, negamax, alphabeta, pvs, alphabeta_hashing, alphabeta_optimized"},
	{ConfigAITimeLimit, 4.0, "seconds the computer may think per move"},
	{ConfigAIMaxDepth, 0, "maximum search depth, 0 for no limit"},
	{ConfigAIThreads, 1, "search threads for alphabeta_optimized"},
	{ConfigAIRandomize, false, "pick randomly among equally good moves"},
	{ConfigComputerPlays, false, "the computer makes the first move"},
	{ConfigTTFractionOfMem, 0.05, "fraction of system memory for the transposition table"},
	{ConfigTTMinSizePower, 16, "minimum transposition table size, as a power of 2"},
	{ConfigAutoplayLog, "/tmp/mnk-autoplay.csv", "per-move log file for autoplay"},
	{ConfigGameDBPath, "", "sqlite file for saved games; empty keeps them in memory"},
	{ConfigDataPath, "./data", "directory for relative gamedb-path and autoplay-log files"},
	{ConfigDebug, false, "debug logging on"},
	{ConfigCPUProfile, "", "write a CPU profile to this file"},
	{ConfigMemProfile, "", "write a memory profile to this file"},
}

func (c *Config) setDefaults() {
	for _, s := range settings {
		c.SetDefault(s.name, s.def)
	}
}

// Load reads settings from command-line flags and MNK_* environment
// variables, in that order of precedence.
func (c *Config) Load(args []string) error {
	c.Viper = *viper.New()
	c.SetEnvPrefix("mnk")
	c.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.AutomaticEnv()
	c.setDefaults()

	fs := flag.NewFlagSetWithEnvPrefix("mnkgame", "MNK", flag.ContinueOnError)
	for _, s := range settings {
		switch d := s.def.(type) {
		case int:
			fs.Int(s.name, d, s.usage)
		case bool:
			fs.Bool(s.name, d, s.usage)
		case float64:
			fs.Float64(s.name, d, s.usage)
		case string:
			fs.String(s.name, d, s.usage)
		}
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	c.args = fs.Args()
	// Flags given on the command line or as MNK_* variables override the
	// defaults.
	fs.Visit(func(f *flag.Flag) {
		c.Set(f.Name, f.Value.String())
	})
	return nil
}

// Args returns the command-line arguments left after the flags.
func (c *Config) Args() []string {
	return c.args
}

// AdjustRelativePaths makes the data path absolute, relative to basepath
// (usually the executable's directory). Relative game database and
// autoplay log paths are then taken to be inside the data path.
func (c *Config) AdjustRelativePaths(basepath string) {
	dataPath := c.GetString(ConfigDataPath)
	if dataPath != "" && !filepath.IsAbs(dataPath) {
		dataPath = filepath.Join(basepath, dataPath)
		c.Set(ConfigDataPath, dataPath)
	}
	for _, key := range []string{ConfigGameDBPath, ConfigAutoplayLog} {
		p := c.GetString(key)
		if p != "" && !filepath.IsAbs(p) {
			c.Set(key, filepath.Join(dataPath, p))
		}
	}
}

// AITimeLimit is the configured thinking time per move.
func (c *Config) AITimeLimit() time.Duration {
	return time.Duration(c.GetFloat64(ConfigAITimeLimit) * float64(time.Second))
}

// SanitizedSettings lists the settings for logging.
func (c *Config) SanitizedSettings() map[string]any {
	out := map[string]any{}
	for _, s := range settings {
		out[s.name] = c.Get(s.name)
	}
	return out
}

func (c *Config) String() string {
	return fmt.Sprintf("%v", c.SanitizedSettings())
}

// DefaultConfig returns a config holding only the defaults. It does not
// read the environment.
func DefaultConfig() Config {
	c := Config{Viper: *viper.New()}
	c.setDefaults()
	return c
}
