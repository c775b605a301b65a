// internal/services/meminator/apply-phrase/annotator.go
package applyphrase

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"meminator/internal/common/logger"
)

// Annotator captions an image on disk and writes the result to OutputPath.
type Annotator interface {
	Annotate(ctx context.Context, req AnnotateRequest) error
}

// ImageMagick runs the convert binary.
type ImageMagick struct {
	binary  string
	timeout time.Duration
	logger  logger.Logger
}

func NewImageMagick(binary string, timeout time.Duration, log logger.Logger) *ImageMagick {
	if binary == "" {
		binary = "convert"
	}
	return &ImageMagick{
		binary:  binary,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "imagemagick"}),
	}
}

func (m *ImageMagick) Annotate(ctx context.Context, req AnnotateRequest) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	args := buildArgs(req)
	cmd := exec.CommandContext(ctx, m.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// Children that inherit stderr must not hold Wait open after a kill.
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if err != nil {
		fields := map[string]interface{}{
			"binary":   m.binary,
			"input":    req.InputPath,
			"output":   req.OutputPath,
			"stderr":   strings.TrimSpace(stderr.String()),
			"duration": duration.String(),
		}
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			fields["exitCode"] = exitErr.ExitCode()
		}
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			m.logger.Error("annotation timed out", fields)
			return fmt.Errorf("%s timed out after %s: %w", m.binary, m.timeout, ctx.Err())
		}
		m.logger.Error("annotation command failed", fields)
		return fmt.Errorf("%s: %w", m.binary, err)
	}

	m.logger.Debug("annotation command finished", map[string]interface{}{
		"output":   req.OutputPath,
		"duration": duration.String(),
	})
	return nil
}

// buildArgs never upscales (the ">" geometry flag) and forces PNG output
// regardless of the output file's extension.
func buildArgs(req AnnotateRequest) []string {
	return []string{
		req.InputPath,
		"-resize", fmt.Sprintf("%dx%d>", req.MaxWidth, req.MaxHeight),
		"-gravity", req.Gravity,
		"-pointsize", strconv.Itoa(req.PointSize),
		"-fill", req.Fill,
		"-undercolor", req.Undercolor,
		"-font", req.Font,
		"-annotate", "0", escapeText(req.Text),
		"png:" + req.OutputPath,
	}
}

// escapeText keeps caller text literal: "%" starts an ImageMagick format
// escape and a leading "@" reads the caption from a file.
func escapeText(text string) string {
	text = strings.ReplaceAll(text, "%", "%%")
	if strings.HasPrefix(text, "@") {
		text = `\` + text
	}
	return text
}
