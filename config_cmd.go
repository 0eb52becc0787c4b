package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/dgnsrekt/dramaplay/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# ElevenLabs remote synthesis. The API key is read from ELEVENLABS_API_KEY.
elevenlabs:
  base_url: "https://api.elevenlabs.io"
  model: "eleven_turbo_v2_5"
  # voice ID; empty picks the default voice of the script's mode
  voice: ""
  output_format: "mp3_44100_128"
  # client side pacing, 0 disables it
  requests_per_minute: 120
  timeout: "30s"

playback:
  # children_book or exam_passage, used when a script has no mode
  mode: "children_book"
  # items synthesized ahead of the one playing
  lookahead: 2
  # 44100 or 48000, must match the rate in elevenlabs.output_format
  sample_rate: 44100

# persistent cache of synthesized clips
cache:
  enabled: true
  # dir: "~/.cache/dramaplay"
  max_size_mb: 200
  # zstd level, 0 stores clips uncompressed
  compression: 3

# local voice used when remote synthesis or playback fails
fallback:
  # espeak or none
  engine: "espeak"
  # binary: "/usr/bin/espeak-ng"
  # voice: "en-us"
  speed: 1.0
  volume: 1.0

# script generation. The API key is read from OPENAI_API_KEY.
generate:
  # base_url: "https://api.openai.com/v1"
  model: "gpt-4o-mini"
  temperature: 0.7
  # beginner, intermediate or advanced
  level: "intermediate"
  # language: "English"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the dramaplay config file",
	Long:    paragraph(fmt.Sprintf("\n%s the dramaplay config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("dramaplay config\ndramaplay config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	// a broken file must stay editable, so it is located but not loaded
	PersistentPreRunE: func(*cobra.Command, []string) error {
		v := viper.GetViper()
		if err := config.ConfigureViper(v, configFile); err != nil {
			return err
		}
		_ = v.ReadInConfig()
		return nil
	},
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("dramaplay", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
	}
	if configFile == "" {
		f, err := config.DefaultConfigFile()
		if err != nil {
			return err
		}
		configFile = f
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
