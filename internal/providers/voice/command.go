package voice

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers"
)

// Command speaks by running a local TTS program. edge-tts is invoked with its
// own flags; any other program gets --text and --output, and a .py path is
// run with python3.
type Command struct {
	command string
	voice   string
	ffprobe string
}

func NewCommand(command, voice, ffprobe string) *Command {
	return &Command{
		command: strings.TrimSpace(command),
		voice:   strings.TrimSpace(voice),
		ffprobe: strings.TrimSpace(ffprobe),
	}
}

func (c *Command) Name() string { return "tts:" + filepath.Base(c.command) }

func (c *Command) Available(ctx context.Context) providers.Availability {
	if c.command == "" {
		return providers.Unavailable("TTS_COMMAND not set", false)
	}
	bin := c.command
	if strings.HasSuffix(bin, ".py") {
		bin = "python3"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return providers.Unavailable(fmt.Sprintf("%s not found", bin), false)
	}
	return providers.Ready
}

func (c *Command) Speak(ctx context.Context, line Line) (*Clip, error) {
	dir, err := os.MkdirTemp("", "storyforge-tts-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	out := filepath.Join(dir, "line.mp3")

	cmd := c.build(ctx, line, out)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("tts command: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("tts command output: %w", err)
	}
	return &Clip{Data: data, MIME: "audio/mpeg", Duration: c.probeDuration(ctx, out)}, nil
}

func (c *Command) build(ctx context.Context, line Line, out string) *exec.Cmd {
	voice := c.voice
	if line.VoiceID != "" && strings.Contains(line.VoiceID, "Neural") {
		voice = line.VoiceID
	}
	switch {
	case filepath.Base(c.command) == "edge-tts":
		args := []string{"--text", line.Text, "--write-media", out}
		if voice != "" {
			args = append([]string{"--voice", voice}, args...)
		}
		if rate := emotionRate(line.Emotion); rate != "" {
			args = append(args, "--rate", rate)
		}
		return exec.CommandContext(ctx, c.command, args...)
	case strings.HasSuffix(c.command, ".py"):
		return exec.CommandContext(ctx, "python3", c.command, "--text", line.Text, "--output", out)
	default:
		return exec.CommandContext(ctx, c.command, "--text", line.Text, "--output", out)
	}
}

func emotionRate(emotion string) string {
	switch emotion {
	case EmotionExcited, EmotionHappy:
		return "+10%"
	case EmotionSad, EmotionCalm:
		return "-10%"
	}
	return ""
}

// probeDuration asks ffprobe for the clip length; zero when unavailable.
func (c *Command) probeDuration(ctx context.Context, file string) float64 {
	if c.ffprobe == "" {
		return 0
	}
	out, err := exec.CommandContext(ctx, c.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		file,
	).Output()
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0
	}
	return d
}
