package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/dramaplay/internal/audio"
	"github.com/dgnsrekt/dramaplay/internal/export"
	"github.com/dgnsrekt/dramaplay/internal/script"
	"github.com/dgnsrekt/dramaplay/internal/sequencer"
	"github.com/dgnsrekt/dramaplay/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var exportCmd = &cobra.Command{
	Use:   "export SCRIPT",
	Short: "Export subtitles, a transcript or the items of a script",
	Long: paragraph(fmt.Sprintf("\n%s a script as SRT subtitles, a plain text transcript or JSON. "+
		"Subtitles need the audio of every item, which is synthesized (or read from the cache) first.", keyword("Export"))),
	Example: paragraph("dramaplay export story.json -o story.srt\ndramaplay export --format txt story.json"),
	Args:    cobra.ExactArgs(1),
	RunE:    runExport,
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "output file, - for stdout (default derived from the format)")
	exportCmd.Flags().StringP("format", "f", "", "srt, txt or json (default from the output extension, else srt)")
}

func exportFormat(cmd *cobra.Command, out string) (export.Format, error) {
	if f, _ := cmd.Flags().GetString("format"); f != "" {
		return export.ParseFormat(f)
	}
	if out != "" && out != "-" {
		if f, err := export.FormatFromPath(out); err == nil {
			return f, nil
		}
	}
	return export.SRT, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	s, err := script.Load(args[0])
	if err != nil {
		return err
	}
	out, _ := cmd.Flags().GetString("output")
	format, err := exportFormat(cmd, out)
	if err != nil {
		return err
	}
	if out == "" {
		out = format.DefaultFilename()
	}

	var clips map[int][]byte
	if format.NeedsAudio() {
		if clips, err = fetchAudio(cmd, s); err != nil {
			return err
		}
	}

	data, err := export.Render(format, s.Items, clips, audio.Duration)
	if err != nil {
		return err
	}

	if out == "-" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("unable to write export: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%s)\n", keyword(out), export.Summary(s.Items, clips))
	return nil
}

// fetchAudio resolves every item's audio, drawing a progress bar on a
// terminal.
func fetchAudio(cmd *cobra.Command, s *script.Script) (map[int][]byte, error) {
	mode, err := resolveMode(cmd, s)
	if err != nil {
		return nil, err
	}
	engine, err := newEngine()
	if err != nil {
		return nil, err
	}
	defer func() { _ = engine.Destroy() }()

	_, synthesizer, closeStore := newSynthesizer()
	defer func() { _ = closeStore() }()

	ctrl, err := sequencer.New(sequencer.Config{
		Items:       s.Items,
		Mode:        mode,
		VoiceID:     cfg.VoiceFor(mode),
		ModelID:     cfg.ElevenLabs.Model,
		Synthesizer: synthesizer,
		Player:      engine,
	})
	if err != nil {
		return nil, err
	}
	defer ctrl.Close()

	w := cmd.ErrOrStderr()
	report := progressReporter(w, mode)
	clips, err := ctrl.FetchAllAudio(cmd.Context(), report)
	fmt.Fprintln(w)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch audio: %w", err)
	}
	if missing := len(s.Items) - len(clips); missing > 0 {
		log.Warn("items without audio are left out of the subtitles", "count", missing)
		fmt.Fprintf(w, "%d of %d items have no audio\n", missing, len(s.Items))
	}
	return clips, nil
}

func progressReporter(w io.Writer, mode script.Mode) func(sequencer.Progress) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return func(p sequencer.Progress) {
			log.Debug("export progress", "processed", p.Processed, "total", p.Total, "percent", p.Percent())
		}
	}

	pal := ui.PaletteFor(mode)
	bar := progress.New(progress.WithGradient(pal.Primary, pal.Secondary), progress.WithWidth(40))
	return func(p sequencer.Progress) {
		fmt.Fprintf(w, "\r  Synthesizing %s %d/%d", bar.ViewAs(p.Fraction()), p.Processed, p.Total)
	}
}
