package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgnsrekt/dramaplay/internal/synth"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
)

var voicesCmd = &cobra.Command{
	Use:     "voices",
	Short:   "List the voices available to your ElevenLabs key",
	Example: paragraph("dramaplay voices\ndramaplay voices --filter narrator"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, _, closeStore := newSynthesizer()
		defer func() { _ = closeStore() }()

		voices, err := client.ListVoices(cmd.Context())
		if err != nil {
			return err
		}
		filter, _ := cmd.Flags().GetString("filter")
		printVoices(cmd.OutOrStdout(), filterVoices(voices, filter))
		return nil
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the synthesis models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		w := cmd.OutOrStdout()
		for _, m := range synth.Models() {
			marker := "  "
			if m.ID == cfg.ElevenLabs.Model {
				marker = keyword("• ")
			}
			fmt.Fprintf(w, "%s%-24s %s\n", marker, m.ID, faintStyle.Render(m.Name+", "+strings.ToLower(m.Description)))
		}
		return nil
	},
}

func init() {
	voicesCmd.Flags().StringP("filter", "f", "", "fuzzy match on name, category and labels")
}

type voiceSource []synth.Voice

func (v voiceSource) Len() int { return len(v) }

func (v voiceSource) String(i int) string {
	parts := []string{v[i].Name, v[i].Category}
	for _, l := range v[i].Labels {
		parts = append(parts, l)
	}
	return strings.Join(parts, " ")
}

// filterVoices returns the voices matching pattern, best match first.
func filterVoices(voices []synth.Voice, pattern string) []synth.Voice {
	if pattern == "" {
		return voices
	}
	matches := fuzzy.FindFrom(pattern, voiceSource(voices))
	out := make([]synth.Voice, 0, len(matches))
	for _, m := range matches {
		out = append(out, voices[m.Index])
	}
	return out
}

func printVoices(w io.Writer, voices []synth.Voice) {
	if len(voices) == 0 {
		fmt.Fprintln(w, "No voices found.")
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-24s %-22s %s", "VOICE ID", "NAME", "CATEGORY")))
	for _, v := range voices {
		fmt.Fprintf(w, "%-24s %-22s %s\n", v.ID, v.Name, faintStyle.Render(v.Category))
	}
}
