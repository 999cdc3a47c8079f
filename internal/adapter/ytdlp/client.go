package ytdlp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"chaptercut/internal/common"
	"chaptercut/internal/config"
)

// Chapter files end up as "<title> [<chapter_number>] [<chapter>].mp3".
const chapterTemplate = "chapter:%(title)s [%(section_number)d] [%(section_title)s].%(ext)s"

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) error
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) error {
	cmd := exec.CommandContext(ctx, binary, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &common.DownloadError{Err: err, Output: strings.TrimSpace(stderr.String())}
	}

	return nil
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps yt-dlp CLI interactions.
type Client struct {
	binary  string
	timeout time.Duration
	exec    Executor
	log     *slog.Logger
}

func New(cfg *config.ExtractorConfig, log *slog.Logger, opts ...Option) (*Client, error) {
	binary := strings.TrimSpace(cfg.Binary)
	if binary == "" {
		return nil, fmt.Errorf("yt-dlp binary required")
	}

	client := &Client{
		binary:  binary,
		timeout: cfg.Timeout,
		exec:    commandExecutor{},
		log:     log.With(slog.String("item", "YtDlpClient")),
	}
	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

/*
Download extracts the audio of the video at rawURL into destDir: one MP3 per
chapter, the thumbnail and the info.json document next to them. The URL and
the destination are passed as separate argument vector elements, nothing is
interpreted by a shell. The call blocks until the process exits.
*/
func (c *Client) Download(ctx context.Context, rawURL, destDir string) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{
		"-x",
		"--audio-format", "mp3",
		"--write-info-json",
		"--write-thumbnail",
		"--split-chapters",
		"--no-warnings",
		"--paths", destDir,
		"-o", chapterTemplate,
		rawURL,
	}

	c.log.Info("Run downloader", slog.String("binary", c.binary), slog.String("dest_dir", destDir))

	if err := c.exec.Run(ctx, c.binary, args); err != nil {
		c.log.Error("Downloader failed", slog.String("url", rawURL), slog.Any("error", err))

		return err
	}

	return nil
}
