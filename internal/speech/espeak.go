package speech

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// ESpeak speaks through the espeak-ng or espeak command.
type ESpeak struct {
	path   string
	voice  string
	speed  float64
	volume float64
}

// FindESpeak locates an espeak binary on PATH.
func FindESpeak() (string, error) {
	for _, candidate := range []string{"espeak-ng", "espeak"} {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", errors.New("espeak executable not found in PATH")
}

// NewESpeak checks the binary and picks a voice.
func NewESpeak(cfg Config) (*ESpeak, error) {
	path := cfg.Binary
	if path == "" {
		var err error
		if path, err = FindESpeak(); err != nil {
			return nil, err
		}
	} else if _, err := exec.LookPath(path); err != nil {
		return nil, fmt.Errorf("espeak binary %q: %w", path, err)
	}

	e := &ESpeak{path: path, voice: cfg.Voice, speed: cfg.Speed, volume: cfg.Volume}
	if e.speed <= 0 {
		e.speed = 1.0
	}
	if e.volume <= 0 {
		e.volume = 1.0
	}

	if e.voice == "" {
		voices, err := e.Voices()
		if err != nil {
			log.Debug("unable to list espeak voices", "error", err)
		}
		e.voice = PreferEnglish(voices)
	}

	log.Debug("local speech ready", "binary", path, "voice", e.voice)
	return e, nil
}

// Speak implements Speaker. Text is passed on stdin.
func (e *ESpeak) Speak(ctx context.Context, text string) <-chan error {
	if strings.TrimSpace(text) == "" {
		return settled(nil)
	}

	cmd := exec.CommandContext(ctx, e.path, e.args()...) //nolint:gosec
	cmd.Stdin = strings.NewReader(text)
	cmd.WaitDelay = time.Second
	configureProcess(cmd)

	if err := cmd.Start(); err != nil {
		return settled(&Error{Engine: "espeak", Cause: err})
	}

	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		err := cmd.Wait()
		switch {
		case ctx.Err() != nil:
			ch <- ctx.Err()
		case err != nil:
			ch <- &Error{Engine: "espeak", Cause: err}
		default:
			ch <- nil
		}
	}()
	return ch
}

func (e *ESpeak) args() []string {
	args := []string{"--stdin"}
	if e.voice != "" {
		args = append(args, "-v", e.voice)
	}
	args = append(args,
		"-s", strconv.Itoa(int(175*e.speed)),
		"-a", strconv.Itoa(int(100*e.volume)),
	)
	return args
}

// VoiceInfo is one line of espeak's voice list.
type VoiceInfo struct {
	Language string
	Name     string
}

// Voices lists the installed espeak voices.
func (e *ESpeak) Voices() ([]VoiceInfo, error) {
	out, err := exec.Command(e.path, "--voices").Output() //nolint:gosec
	if err != nil {
		return nil, err
	}
	return parseVoices(string(out)), nil
}

// parseVoices reads the table printed by --voices:
// Pty Language Age/Gender VoiceName File Other Languages
func parseVoices(output string) []VoiceInfo {
	var voices []VoiceInfo
	for i, line := range strings.Split(output, "\n") {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 4 {
			voices = append(voices, VoiceInfo{Language: fields[1], Name: fields[3]})
		}
	}
	return voices
}

// PreferEnglish picks a US English voice, then any English voice, then
// espeak's own default.
func PreferEnglish(voices []VoiceInfo) string {
	for _, v := range voices {
		if v.Language == "en-us" {
			return v.Language
		}
	}
	for _, v := range voices {
		if strings.HasPrefix(v.Language, "en") {
			return v.Language
		}
	}
	return ""
}
