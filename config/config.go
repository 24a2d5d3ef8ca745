// Package config loads the pdfocr settings from defaults and an optional
// TOML file. Command line flags are applied on top by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/wudi/pdfocr/observability"
	"github.com/wudi/pdfocr/ocr"
	"github.com/wudi/pdfocr/raster"
	"github.com/wudi/pdfocr/recognize"
)

// Config is the complete application configuration.
type Config struct {
	Server ServerConfig `toml:"server"`
	Raster RasterConfig `toml:"raster"`
	OCR    OCRConfig    `toml:"ocr"`
	Log    LogConfig    `toml:"log"`
}

type ServerConfig struct {
	Addr        string `toml:"addr" validate:"required,hostname_port"`
	MaxUploadMB int    `toml:"max_upload_mb" validate:"min=1,max=2048"`
	// MaxConnections caps concurrent connections; 0 means unlimited.
	MaxConnections int `toml:"max_connections" validate:"min=0"`
}

type RasterConfig struct {
	Backend string `toml:"backend" validate:"oneof=embedded poppler"`
	// Scale applies to the embedded backend, DPI and Pdftoppm to poppler.
	Scale    float64 `toml:"scale" validate:"gt=0,lte=8"`
	DPI      int     `toml:"dpi" validate:"min=36,max=1200"`
	Pdftoppm string  `toml:"pdftoppm" validate:"required_if=Backend poppler"`
}

type OCRConfig struct {
	Language     string `toml:"language" validate:"oneof=rus eng rus+eng"`
	Cleanup      bool   `toml:"cleanup"`
	DPI          int    `toml:"dpi" validate:"min=0,max=1200"`
	PSM          int    `toml:"psm" validate:"min=-1,max=13"`
	CacheEntries int    `toml:"cache_entries" validate:"min=0"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn warning error"`
	Format string `toml:"format" validate:"oneof=text json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: "127.0.0.1:8501", MaxUploadMB: 200, MaxConnections: 64},
		Raster: RasterConfig{
			Backend:  "embedded",
			Scale:    raster.DefaultScale,
			DPI:      raster.DefaultDPI,
			Pdftoppm: "pdftoppm",
		},
		OCR: OCRConfig{
			Language:     ocr.DefaultLanguage.String(),
			Cleanup:      true,
			PSM:          -1,
			CacheEntries: 256,
		},
		Log: LogConfig{Level: "warn", Format: "text"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := Decode(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode merges TOML data into cfg. Unknown keys are rejected.
func Decode(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// Encode renders cfg as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every field and reports all violations at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// Namespace is "Config.raster.backend"; drop the root type.
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		msg := fmt.Sprintf("%s fails %q", field, fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s fails %q (%s)", field, fe.Tag(), fe.Param())
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// RecognizeOptions returns the initial OCR options of a session.
func (c *Config) RecognizeOptions() recognize.Options {
	lang, err := ocr.ParseLanguage(c.OCR.Language)
	if err != nil {
		lang = ocr.DefaultLanguage
	}
	return recognize.Options{
		Language:    lang,
		Cleanup:     c.OCR.Cleanup,
		DPI:         c.OCR.DPI,
		PageSegMode: c.OCR.PSM,
	}
}

// Rasterizer builds the configured rasterizer backend.
func (c *Config) Rasterizer(logger observability.Logger) raster.Rasterizer {
	if c.Raster.Backend == "poppler" {
		return raster.NewPoppler(c.Raster.Pdftoppm, c.Raster.DPI, logger)
	}
	return raster.NewEmbedded(c.Raster.Scale, logger)
}

// MaxUploadBytes is the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 { return int64(c.Server.MaxUploadMB) << 20 }
