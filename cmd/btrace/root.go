package main

import (
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "btrace",
	Short: "symbolize addresses against a binary's debug info",
	Long: `btrace resolves instruction-pointer addresses to source file,
line, function name, and inline-call chain by reading a binary's DWARF
debug info, following build-id/debuglink/dSYM indirections when the
primary file carries none itself.`,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.btrace.yaml)")
}

// initConfig reads ~/.btrace.yaml (or the --config file) through
// viper, mirroring the teacher's own cobra+viper+go-homedir config
// discovery convention (SPEC_FULL §2 "Configuration"). No key from it
// is consulted afterwards: debug-file search uses only the fixed paths
// in internal/resolve.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".btrace")
	}

	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
