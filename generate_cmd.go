package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/dramaplay/internal/scriptgen"
	"github.com/spf13/cobra"
)

var markdownExtensions = []string{".md", ".mdown", ".mkdn", ".mkd", ".markdown"}

var generateCmd = &cobra.Command{
	Use:   "generate SOURCE",
	Short: "Adapt a text into a script with a language model",
	Long: paragraph(fmt.Sprintf("\n%s a script from a text or markdown file (or - for stdin). "+
		"Needs OPENAI_API_KEY.", keyword("Generate"))),
	Example: paragraph("dramaplay generate fox.md -o fox.json\ndramaplay generate --mode exam_passage --level advanced passage.txt"),
	Args:    cobra.ExactArgs(1),
	RunE:    runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringP("output", "o", "", "script file to write (default stdout)")
	f.StringP("title", "t", "", "script title")
	f.String("level", "", "reading level: beginner, intermediate or advanced")
	f.String("language", "", "narration language")
}

func readSource(path string) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(os.Stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("unable to read source: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range markdownExtensions {
		if ext == e {
			return scriptgen.PlainText(string(b)), nil
		}
	}
	return string(b), nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	text, err := readSource(args[0])
	if err != nil {
		return err
	}
	mode, err := resolveMode(cmd, nil)
	if err != nil {
		return err
	}

	levelName := cfg.Generate.Level
	if l, _ := cmd.Flags().GetString("level"); l != "" {
		levelName = l
	}
	level, err := scriptgen.ParseLevel(levelName)
	if err != nil {
		return err
	}
	language := cfg.Generate.Language
	if l, _ := cmd.Flags().GetString("language"); l != "" {
		language = l
	}
	title, _ := cmd.Flags().GetString("title")
	if title == "" && args[0] != "-" {
		base := filepath.Base(args[0])
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	gen, err := scriptgen.NewGenerator(scriptgen.Config{
		APIKey:      cfg.Secrets.OpenAIKey,
		BaseURL:     cfg.Generate.BaseURL,
		Model:       cfg.Generate.Model,
		Temperature: cfg.Generate.Temperature,
	})
	if err != nil {
		return err
	}

	log.Info("generating script", "source", args[0], "mode", mode, "level", level)
	s, err := gen.Generate(cmd.Context(), scriptgen.Request{
		Text:     text,
		Title:    title,
		Mode:     mode,
		Level:    level,
		Language: language,
	})
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("output")
	if out == "" || out == "-" {
		b, err := s.MarshalIndent()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	}
	if err := s.Save(out); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d items to %s\n", len(s.Items), keyword(out))
	return nil
}
