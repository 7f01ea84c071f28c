package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "studyd",
	Short: "Studyd runs a browser-delivered coding study session",
	Long: `Studyd serves the study pages to the participant's browser and keeps
their work safe: it provisions the per-participant git repositories,
switches them to the branch of the current study stage, and commits and
mirrors work to the remote in the background.

The daemon is single-tenant: one participant per machine, resolved from
the instance metadata service or from development overrides.
`,
}

var config *Config

// used to patch over calls to os.Exit() during test
var logFatalln = log.Fatalln
var osExit = os.Exit

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		osExit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)
	addConfigFlags(rootCmd.PersistentFlags())
}

// addConfigFlags declares the flags shared by every subcommand and
// binds them to viper, so flag > env > config file > default.
func addConfigFlags(fs *flag.FlagSet) {
	fs.String("listen", ":8080", "address the study server listens on")
	fs.String("org", "coding-study-lab", "GitHub organization holding the participant repositories")
	fs.String("workspace", "", "directory the participant repositories are cloned into")
	fs.String("loglevel", "info", "log level (debug, info, warn, error)")
	fs.Bool("dev", false, "development mode: relaxed participant resolution, verbose logs")
	for _, name := range []string{"listen", "org", "workspace", "loglevel", "dev"} {
		_ = viper.BindPFlag(name, fs.Lookup(name))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetDefault("listen", ":8080")
	viper.SetDefault("org", "coding-study-lab")
	viper.SetDefault("workspace", defaultWorkspace())
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("recordings", defaultRecordings())

	if os.Getenv("STUDYD_CONFIG") != "" {
		viper.SetConfigFile(os.Getenv("STUDYD_CONFIG"))
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.studyd")
		viper.AddConfigPath("/etc/studyd")
		viper.SetConfigName("studyd")
	}

	viper.AutomaticEnv() // read in environment variables that match
	if err := viper.ReadInConfig(); err == nil {
		log.Println("Using config file:", viper.ConfigFileUsed())
	}
	var err error
	config, err = newConfig()
	if err != nil {
		logFatalln(err)
	}
}
