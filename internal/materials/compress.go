package materials

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"os/exec"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/digi-kul/backend/internal/models"
)

// Compressor shrinks uploaded materials for low-bandwidth delivery. Each
// material type has its own strategy; when a strategy fails the original
// bytes are kept so the upload never fails on compression alone.
type Compressor struct {
	imageQuality int
	audioBitrate string
	logger       *zap.Logger
}

// NewCompressor creates a compressor with the configured quality settings.
func NewCompressor(imageQuality int, audioBitrate string, logger *zap.Logger) *Compressor {
	if imageQuality <= 0 || imageQuality > 100 {
		imageQuality = 70
	}
	if audioBitrate == "" {
		audioBitrate = "64k"
	}
	return &Compressor{imageQuality: imageQuality, audioBitrate: audioBitrate, logger: logger}
}

// DetectType sniffs the content and classifies it for compression.
func DetectType(data []byte) (models.MaterialType, string) {
	mt := mimetype.Detect(data)
	switch {
	case mimetype.EqualsAny(mt.String(), "image/jpeg", "image/png", "image/gif", "image/webp"):
		return models.MaterialImage, mt.String()
	case mt.Is("application/pdf") || mt.Is("text/plain") ||
		mimetype.EqualsAny(mt.String(),
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/vnd.ms-powerpoint",
			"application/vnd.openxmlformats-officedocument.presentationml.presentation"):
		return models.MaterialDocument, mt.String()
	default:
		if len(mt.String()) >= 6 && mt.String()[:6] == "audio/" {
			return models.MaterialAudio, mt.String()
		}
		return models.MaterialOther, mt.String()
	}
}

// Compress returns the compressed copy of data plus its content type.
// Falls back to the original bytes if the result would be larger.
func (c *Compressor) Compress(ctx context.Context, fileType models.MaterialType, contentType string, data []byte) ([]byte, string) {
	var (
		out []byte
		ct  string
		err error
	)
	switch fileType {
	case models.MaterialImage:
		out, err = c.compressImage(data)
		ct = "image/jpeg"
	case models.MaterialAudio:
		out, err = c.compressAudio(ctx, data)
		ct = "audio/mpeg"
	default:
		out, err = c.compressGzip(data)
		ct = "application/gzip"
	}
	if err != nil {
		c.logger.Warn("compression failed, storing original copy",
			zap.String("file_type", string(fileType)), zap.Error(err))
		return data, contentType
	}
	if len(out) >= len(data) {
		return data, contentType
	}
	return out, ct
}

// compressImage re-encodes any supported image as JPEG at the configured
// quality.
func (c *Compressor) compressImage(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.imageQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// compressAudio transcodes audio to low-bitrate MP3 with ffmpeg. Requires
// ffmpeg on PATH; the caller falls back to the original when it is missing.
func (c *Compressor) compressAudio(ctx context.Context, data []byte) ([]byte, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, err
	}
	in, err := os.CreateTemp("", "material-in-*")
	if err != nil {
		return nil, err
	}
	defer os.Remove(in.Name())
	if _, err := in.Write(data); err != nil {
		in.Close()
		return nil, err
	}
	in.Close()

	out, err := os.CreateTemp("", "material-out-*.mp3")
	if err != nil {
		return nil, err
	}
	outName := out.Name()
	out.Close()
	defer os.Remove(outName)

	cmd := exec.CommandContext(ctx, "ffmpeg", "-y", "-i", in.Name(),
		"-b:a", c.audioBitrate, "-ac", "1", outName)
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return os.ReadFile(outName)
}

// compressGzip gzips documents and other binary material.
func (c *Compressor) compressGzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
