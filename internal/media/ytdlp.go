package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultAudioFormat = "mp3"

// YtdlpConfig holds settings for the external yt-dlp downloader
type YtdlpConfig struct {
	Binary        string
	CookiesFile   string
	AudioCacheDir string
	Timeout       time.Duration
}

// YtdlpExtractor shells out to the yt-dlp binary to extract audio from a
// media URL. Platform-specific extraction lives entirely inside the tool;
// this adapter only builds arguments, enforces a timeout, and classifies
// failures.
type YtdlpExtractor struct {
	config *YtdlpConfig
	logger *slog.Logger
}

// NewYtdlpExtractor creates a new yt-dlp based extractor
func NewYtdlpExtractor(config *YtdlpConfig, logger *slog.Logger) *YtdlpExtractor {
	return &YtdlpExtractor{
		config: config,
		logger: logger,
	}
}

// ExtractAudio downloads the best audio stream of sourceURL into the audio
// cache dir and returns a handle to it. May block for minutes; the caller
// controls cancellation through ctx.
func (e *YtdlpExtractor) ExtractAudio(ctx context.Context, sourceURL string) (*Audio, error) {
	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	if err := os.MkdirAll(e.config.AudioCacheDir, 0o755); err != nil {
		return nil, extractionError(true, fmt.Errorf("failed to create audio cache dir: %w", err))
	}

	audio := &Audio{
		Format:   defaultAudioFormat,
		Title:    "Unknown",
		Platform: platformFromURL(sourceURL),
	}

	// Metadata probe is best-effort: a failure here falls through to the
	// download, which produces the authoritative error.
	e.probeMetadata(ctx, sourceURL, audio)

	uid := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	outTemplate := filepath.Join(e.config.AudioCacheDir, uid+".%(ext)s")

	args := []string{
		"-f", "bestaudio/best",
		"-x", "--audio-format", defaultAudioFormat,
		"--audio-quality", "192",
		"-o", outTemplate,
		"--no-playlist",
	}
	args = e.appendCommonArgs(args)
	args = append(args, sourceURL)

	e.logger.Info("Extracting audio",
		slog.String("url", sourceURL),
		slog.String("platform", audio.Platform),
	)

	start := time.Now()
	if output, err := e.run(ctx, args); err != nil {
		transient := execTransient(err) || classifyToolFailure(output)
		return nil, extractionError(transient, fmt.Errorf("yt-dlp failed: %s", firstLine(output, err)))
	}

	path, err := e.findOutput(uid)
	if err != nil {
		return nil, extractionError(true, err)
	}
	audio.Path = path

	e.logger.Info("Audio extracted",
		slog.String("path", path),
		slog.Duration("took", time.Since(start)),
	)

	return audio, nil
}

// probeMetadata fills title/id/duration from `yt-dlp -J`. Errors are ignored.
func (e *YtdlpExtractor) probeMetadata(ctx context.Context, sourceURL string, audio *Audio) {
	args := []string{"--skip-download", "-J", "--no-playlist"}
	args = e.appendCommonArgs(args)
	args = append(args, sourceURL)

	cmd := exec.CommandContext(ctx, e.config.Binary, args...)
	out, err := cmd.Output()
	if err != nil {
		e.logger.Debug("Metadata probe failed",
			slog.String("url", sourceURL),
			slog.String("error", err.Error()),
		)
		return
	}

	var info struct {
		ID       string  `json:"id"`
		Title    string  `json:"title"`
		Duration float64 `json:"duration"`
	}
	if err := json.Unmarshal(out, &info); err != nil {
		return
	}

	if info.Title != "" {
		audio.Title = info.Title
	}
	audio.VideoID = info.ID
	audio.Duration = info.Duration
}

func (e *YtdlpExtractor) appendCommonArgs(args []string) []string {
	if e.config.CookiesFile != "" {
		if _, err := os.Stat(e.config.CookiesFile); err == nil {
			args = append(args, "--cookies", e.config.CookiesFile)
		}
	}
	return args
}

// run executes yt-dlp and returns its combined output on failure
func (e *YtdlpExtractor) run(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, e.config.Binary, args...)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	if err != nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return buf.String(), err
}

// findOutput locates the produced file; yt-dlp may pick a different
// extension than requested.
func (e *YtdlpExtractor) findOutput(uid string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(e.config.AudioCacheDir, uid+".*"))
	if err != nil {
		return "", fmt.Errorf("failed to scan audio cache dir: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("extraction completed but audio file not found")
	}
	return matches[0], nil
}

func firstLine(output string, err error) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(line), "error") {
			return line
		}
	}
	if trimmed := strings.TrimSpace(output); trimmed != "" {
		lines := strings.Split(trimmed, "\n")
		return lines[len(lines)-1]
	}
	return err.Error()
}
