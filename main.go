// Package main provides the entry point for the dramaplay CLI.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/dramaplay/internal/audio"
	"github.com/dgnsrekt/dramaplay/internal/config"
	"github.com/dgnsrekt/dramaplay/internal/script"
	"github.com/dgnsrekt/dramaplay/internal/sequencer"
	"github.com/dgnsrekt/dramaplay/internal/speech"
	"github.com/dgnsrekt/dramaplay/internal/synth"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	cfg        config.Config

	rootCmd = &cobra.Command{
		Use:   "dramaplay [SCRIPT]",
		Short: "Play audio drama scripts in the terminal",
		Long: paragraph(
			fmt.Sprintf("\nPlay audio drama scripts in the terminal, %s.", keyword("one voice at a time")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return loadConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runPlay(cmd, args[0])
		},
	}
)

func loadConfig() error {
	v := viper.GetViper()
	if err := config.ConfigureViper(v, configFile); err != nil {
		return err
	}
	if err := config.Read(v); err != nil {
		return err
	}
	c, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = c
	if cfg.Secrets.Debug {
		log.SetLevel(log.DebugLevel)
	}
	return nil
}

// resolveMode picks the flag, then the script's own mode.
func resolveMode(cmd *cobra.Command, s *script.Script) (script.Mode, error) {
	if cmd.Flags().Changed("mode") || s == nil || s.Mode == "" {
		return script.ParseMode(cfg.Playback.Mode)
	}
	return s.Mode, nil
}

// newSynthesizer builds the remote client, wrapped in the disk cache when
// enabled. The returned closer is never nil.
func newSynthesizer() (*synth.Client, sequencer.Synthesizer, func() error) {
	client := synth.NewClient(synth.Config{
		APIKey:            cfg.Secrets.ElevenLabsKey,
		BaseURL:           cfg.ElevenLabs.BaseURL,
		OutputFormat:      cfg.ElevenLabs.OutputFormat,
		Timeout:           cfg.ElevenLabs.Timeout,
		RequestsPerMinute: cfg.ElevenLabs.RequestsPM,
	})
	if cfg.Secrets.ElevenLabsKey == "" {
		log.Warn("ELEVENLABS_API_KEY is not set, every item will use the local voice")
	}

	noop := func() error { return nil }
	if !cfg.Cache.Enabled {
		return client, client, noop
	}
	store, err := openDiskStore()
	if err != nil {
		log.Warn("disk cache disabled", "error", err)
		return client, client, noop
	}
	return client, synth.NewCaching(client, store, client.OutputFormat()), store.Close
}

func newEngine() (*audio.Engine, error) {
	acfg := audio.DefaultConfig()
	acfg.SampleRate = cfg.Playback.SampleRate
	engine, err := audio.NewEngine(acfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create audio engine: %w", err)
	}
	return engine, nil
}

func newSpeaker() speech.Speaker {
	return speech.New(speech.Config{
		Engine: cfg.Fallback.Engine,
		Binary: cfg.Fallback.Binary,
		Voice:  cfg.Fallback.Voice,
		Speed:  cfg.Fallback.Speed,
		Volume: cfg.Fallback.Volume,
	})
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (default searches the config directories for dramaplay.yml)")
	pf.String("mode", "", "script mode: children_book or exam_passage")
	pf.String("voice", "", "ElevenLabs voice ID")
	pf.String("model", "", "ElevenLabs model ID")

	_ = viper.BindPFlag("playback.mode", pf.Lookup("mode"))
	_ = viper.BindPFlag("elevenlabs.voice", pf.Lookup("voice"))
	_ = viper.BindPFlag("elevenlabs.model", pf.Lookup("model"))

	initPlayFlags(rootCmd)
	initPlayFlags(playCmd)

	rootCmd.AddCommand(
		playCmd,
		exportCmd,
		generateCmd,
		voicesCmd,
		modelsCmd,
		scriptCmd,
		scriptsCmd,
		cacheCmd,
		configCmd,
		manCmd,
	)
}
