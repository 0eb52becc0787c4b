package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/dramaplay/internal/config"
	"github.com/dgnsrekt/dramaplay/internal/script"
	"github.com/dgnsrekt/dramaplay/internal/sequencer"
	"github.com/dgnsrekt/dramaplay/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var playCmd = &cobra.Command{
	Use:     "play SCRIPT",
	Short:   "Play a script",
	Long:    paragraph(fmt.Sprintf("\n%s a script with remote voices, falling back to the local voice when the remote service fails.", keyword("Play"))),
	Example: paragraph("dramaplay play story.json\ndramaplay play --mode exam_passage --autoplay passage.json"),
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlay(cmd, args[0])
	},
}

func initPlayFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("autoplay", "a", false, "start playing immediately")
	cmd.Flags().IntP("lookahead", "l", 0, "items to synthesize ahead of playback")
	cmd.Flags().BoolP("mouse", "m", false, "enable mouse wheel")
	_ = cmd.Flags().MarkHidden("mouse")
}

func runPlay(cmd *cobra.Command, path string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("play needs a terminal, use export for non-interactive output")
	}

	s, err := script.Load(path)
	if err != nil {
		return err
	}
	mode, err := resolveMode(cmd, s)
	if err != nil {
		return err
	}
	lookahead := cfg.Playback.Lookahead
	if cmd.Flags().Changed("lookahead") {
		lookahead, _ = cmd.Flags().GetInt("lookahead")
	}

	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer func() { _ = engine.Destroy() }()

	_, synthesizer, closeStore := newSynthesizer()
	defer func() { _ = closeStore() }()

	events := ui.NewEvents()
	ctrl, err := sequencer.New(sequencer.Config{
		Items:       s.Items,
		Mode:        mode,
		VoiceID:     cfg.VoiceFor(mode),
		ModelID:     cfg.ElevenLabs.Model,
		Lookahead:   lookahead,
		Synthesizer: synthesizer,
		Player:      engine,
		Fallback:    newSpeaker(),
		Callbacks:   events.Callbacks(),
	})
	if err != nil {
		return err
	}

	// Read environment to get debugging stuff
	uiCfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	uiCfg.Title = s.Title
	uiCfg.Mode = mode
	uiCfg.VoiceID = cfg.VoiceFor(mode)
	uiCfg.ModelID = cfg.ElevenLabs.Model
	uiCfg.AutoPlay, _ = cmd.Flags().GetBool("autoplay")
	uiCfg.EnableMouse, _ = cmd.Flags().GetBool("mouse")

	p := ui.NewProgram(uiCfg, ctrl, events)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if used := viper.ConfigFileUsed(); used != "" {
		watchConfig(ctx, used, mode, p)
	}

	log.Info("playing script", "path", path, "items", len(s.Items), "mode", mode)
	_, runErr := p.Run()

	// pending callbacks must be released before the controller waits on them
	events.Close()
	ctrl.Close()

	if runErr != nil {
		return fmt.Errorf("unable to run tui program: %w", runErr)
	}
	return nil
}

// watchConfig forwards voice and model changes in the config file to the
// running program until ctx is done.
func watchConfig(ctx context.Context, path string, mode script.Mode, p *tea.Program) {
	v := viper.GetViper()
	err := config.Watch(ctx, path, func() {
		if err := config.Read(v); err != nil {
			log.Warn("ignoring config change", "error", err)
			return
		}
		c, err := config.Load(v)
		if err != nil {
			log.Warn("ignoring invalid config change", "error", err)
			return
		}
		p.Send(ui.SynthesisParamsMsg{Voice: c.VoiceFor(mode), Model: c.ElevenLabs.Model})
	})
	if err != nil {
		log.Warn("config changes will not be picked up", "error", err)
	}
}
