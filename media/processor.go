package media

import (
	"bytes"
	"fmt"
	"image"
	"log"
	"strings"

	"github.com/camden-git/imagestore/utils"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// ValidationStage names the decode pass that rejected an image payload.
type ValidationStage string

const (
	// StageDecode covers reading the header and the full pixel load; it catches
	// unknown formats and truncated data.
	StageDecode ValidationStage = "decode"
	// StageVerify checks the header against the pixel limit and the decoded
	// pixels; it catches payloads whose structure disagrees with their content.
	StageVerify ValidationStage = "verify"
)

// ValidationError reports why a payload was not accepted as an image.
type ValidationError struct {
	Stage ValidationStage
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("image %s failed: %v", e.Stage, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DecodedImage describes a payload that passed both validation passes.
type DecodedImage struct {
	Format string
	Width  int
	Height int
}

// DefaultMaxImagePixels is the largest width*height accepted before the pixels
// are loaded. Same default as Pillow's MAX_IMAGE_PIXELS.
const DefaultMaxImagePixels = 89478485

// Processor validates image payloads and persists the accepted ones. it relies
// on a Store implementation for saving.
type Processor struct {
	store     Store
	maxPixels int64
}

func NewProcessor(store Store) *Processor {
	return &Processor{store: store, maxPixels: DefaultMaxImagePixels}
}

// SetMaxPixels changes the pixel limit. Non-positive values keep the current one.
func (p *Processor) SetMaxPixels(n int64) {
	if n > 0 {
		p.maxPixels = n
	}
}

// Validate reads the header first and rejects images declaring more than the
// pixel limit, so no pixel buffer is allocated for them. The payload is then
// fully loaded and its format and dimensions must agree with the header.
func (p *Processor) Validate(data []byte) (*DecodedImage, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &ValidationError{Stage: StageDecode, Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &ValidationError{Stage: StageVerify, Err: fmt.Errorf("invalid dimensions %dx%d", cfg.Width, cfg.Height)}
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > p.maxPixels {
		return nil, &ValidationError{
			Stage: StageVerify,
			Err:   fmt.Errorf("%dx%d is %d pixels, more than the limit of %d", cfg.Width, cfg.Height, pixels, p.maxPixels),
		}
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &ValidationError{Stage: StageDecode, Err: err}
	}
	bounds := img.Bounds()
	if bounds.Dx() != cfg.Width || bounds.Dy() != cfg.Height {
		return nil, &ValidationError{
			Stage: StageVerify,
			Err:   fmt.Errorf("header declares %dx%d but pixels are %dx%d", cfg.Width, cfg.Height, bounds.Dx(), bounds.Dy()),
		}
	}

	return &DecodedImage{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// SaveOriginal stores an accepted payload under images/<dirHint>/ using the
// sanitized base name of originalName. returns the store relative path.
func (p *Processor) SaveOriginal(dirHint, originalName, format string, data []byte) (string, error) {
	filename := utils.SanitizeFilename(utils.BaseName(originalName))
	if filename == "" || strings.TrimSuffix(filename, "."+format) == "" {
		filename = uuid.NewString() + "." + format
	}

	savedRelPath, err := p.store.Save(AssetTypeImage, dirHint, filename, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to save image via store: %w", err)
	}

	log.Printf("processor: Saved original %s at %s", originalName, savedRelPath)
	return savedRelPath, nil
}
