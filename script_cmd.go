package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/dramaplay/internal/script"
	"github.com/dustin/go-humanize"
	"github.com/muesli/gitcha"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Inspect script files",
}

var scriptShowCmd = &cobra.Command{
	Use:     "show SCRIPT",
	Short:   "Render a script in the terminal",
	Example: paragraph("dramaplay script show story.json\ndramaplay script show --copy story.json"),
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := script.Load(args[0])
		if err != nil {
			return err
		}
		md := s.Markdown()

		if yes, _ := cmd.Flags().GetBool("copy"); yes {
			termenv.Copy(md)
			if err := clipboard.WriteAll(md); err != nil {
				log.Debug("native clipboard unavailable", "error", err)
			}
		}

		out, err := renderMarkdown(md)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	},
}

var scriptsCmd = &cobra.Command{
	Use:   "scripts [DIR]",
	Short: "Find script files below a directory",
	Long:  paragraph(fmt.Sprintf("\n%s JSON scripts below DIR (default the working directory), honouring .gitignore.", keyword("Find"))),
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		ch, err := gitcha.FindFilesExcept(dir, []string{"*.json"}, nil)
		if err != nil {
			return fmt.Errorf("unable to search %s: %w", dir, err)
		}

		w := cmd.OutOrStdout()
		found := 0
		for res := range ch {
			s, err := script.Load(res.Path)
			if err != nil {
				// not every json file is a script
				log.Debug("skipping file", "path", res.Path, "error", err)
				continue
			}
			found++
			rel, err := filepath.Rel(dir, res.Path)
			if err != nil {
				rel = res.Path
			}
			title := s.Title
			if title == "" {
				title = "Untitled"
			}
			fmt.Fprintf(w, "%s  %s\n", keyword(rel), title)
			fmt.Fprintln(w, faintStyle.Render(fmt.Sprintf("    %s, %d items, modified %s",
				s.Mode.Title(), len(s.Items), humanize.Time(res.Info.ModTime()))))
		}
		if found == 0 {
			fmt.Fprintln(w, "No scripts found.")
		}
		return nil
	},
}

func init() {
	scriptShowCmd.Flags().BoolP("copy", "c", false, "also copy the rendered markdown to the clipboard")
	scriptCmd.AddCommand(scriptShowCmd)
}

func renderMarkdown(md string) (string, error) {
	width := 80
	style := glamour.WithAutoStyle()
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			width = min(w, 120)
		}
	} else {
		style = glamour.WithStandardStyle(styles.NoTTYStyle)
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		style,
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("unable to create renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("unable to render markdown: %w", err)
	}
	return out, nil
}
