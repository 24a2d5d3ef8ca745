package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/wudi/pdfocr/config"
	"github.com/wudi/pdfocr/export"
	"github.com/wudi/pdfocr/observability"
	"github.com/wudi/pdfocr/ocr"
	"github.com/wudi/pdfocr/ocr/tesseract"
	"github.com/wudi/pdfocr/report"
	"github.com/wudi/pdfocr/server"
	"github.com/wudi/pdfocr/session"
)

// Version is set at build time.
var Version = "dev"

func defaultEngine() ocr.Engine { return tesseract.New() }

// versionString appends the OCR engine version when the engine reports one.
func versionString(e ocr.Engine) string {
	v, ok := e.(interface{ Version() string })
	if !ok {
		return Version
	}
	return fmt.Sprintf("%s (%s %s)", Version, e.Name(), v.Version())
}

type env struct {
	cfg    *config.Config
	logger observability.Logger
	svc    *session.Service
}

func newApp(stdout, stderr io.Writer, engine func() ocr.Engine) *cli.App {
	setup := func(c *cli.Context) (*env, error) {
		cfg, err := loadConfig(c)
		if err != nil {
			return nil, err
		}
		logger := observability.NewLogrus(observability.NewLogrusFor(stderr, cfg.Log.Level, cfg.Log.Format))
		svc := session.NewService(cfg.Rasterizer(logger), engine(), cfg.OCR.CacheEntries, logger, nil)
		return &env{cfg: cfg, logger: logger, svc: svc}, nil
	}

	return &cli.App{
		Name:      "pdfocr",
		Usage:     "OCR scanned PDFs page by page and export the text to DOCX",
		Version:   versionString(engine()),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "TOML config file", EnvVars: []string{"PDFOCR_CONFIG"}},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", EnvVars: []string{"LOG_LEVEL"}},
			&cli.StringFlag{Name: "log-format", Usage: "text or json", EnvVars: []string{"LOG_FORMAT"}},
			&cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Usage: "OCR language: rus, eng or rus+eng", EnvVars: []string{"PDFOCR_LANG"}},
			&cli.BoolFlag{Name: "cleanup", Usage: "grayscale, blur and binarize pages before OCR", EnvVars: []string{"PDFOCR_CLEANUP"}},
			&cli.StringFlag{Name: "rasterizer", Usage: "embedded or poppler", EnvVars: []string{"PDFOCR_RASTERIZER"}},
			&cli.Float64Flag{Name: "scale", Usage: "resolution multiplier of the embedded rasterizer"},
			&cli.IntFlag{Name: "dpi", Usage: "render resolution of the poppler rasterizer"},
			&cli.StringFlag{Name: "pdftoppm", Usage: "path of the pdftoppm binary", EnvVars: []string{"PDFTOPPM"}},
			&cli.IntFlag{Name: "psm", Usage: "Tesseract page segmentation mode (-1 keeps the default)"},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the web interface",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address", EnvVars: []string{"PDFOCR_ADDR"}},
				},
				Action: func(c *cli.Context) error {
					rt, err := setup(c)
					if err != nil {
						return err
					}
					if c.IsSet("addr") {
						rt.cfg.Server.Addr = c.String("addr")
					}
					srv, err := server.New(rt.svc, server.Options{
						MaxUploadBytes: rt.cfg.MaxUploadBytes(),
						MaxConnections: rt.cfg.Server.MaxConnections,
						Defaults:       rt.cfg.RecognizeOptions(),
					}, rt.logger)
					if err != nil {
						return err
					}
					color.New(color.FgGreen).Fprintf(stderr, "Web UI available at http://%s\n", rt.cfg.Server.Addr)
					return srv.ListenAndServe(c.Context, rt.cfg.Server.Addr)
				},
			},
			{
				Name:      "preview",
				Usage:     "print the OCR text of every selected page",
				ArgsUsage: "<file.pdf>",
				Flags: append(selectionFlags(),
					&cli.BoolFlag{Name: "html", Usage: "render the report as HTML instead of Markdown"},
				),
				Action: func(c *cli.Context) error {
					rt, err := setup(c)
					if err != nil {
						return err
					}
					sess, err := openSession(c, rt)
					if err != nil {
						return err
					}
					previews := rt.svc.Preview(c.Context, sess)
					warn := color.New(color.FgYellow)
					for _, pv := range previews {
						if pv.Err != nil {
							warn.Fprintf(stderr, "page %d: %v\n", pv.Page.Number, pv.Err)
						}
					}
					md := report.Markdown(sess.Name, previews)
					if !c.Bool("html") {
						_, err = stdout.Write(md)
						return err
					}
					out, err := report.HTML(md)
					if err != nil {
						return err
					}
					_, err = stdout.Write(out)
					return err
				},
			},
			{
				Name:      "export",
				Usage:     "write the OCR text of the selected pages to a DOCX file",
				ArgsUsage: "<file.pdf>",
				Flags: append(selectionFlags(),
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: export.Filename, Usage: "output file"},
				),
				Action: func(c *cli.Context) error {
					rt, err := setup(c)
					if err != nil {
						return err
					}
					sess, err := openSession(c, rt)
					if err != nil {
						return err
					}
					status := color.New(color.FgCyan)
					doc, err := rt.svc.Export(c.Context, sess, func(done, total int) {
						status.Fprintf(stderr, "Generating DOCX: Page %d of %d\n", done, total)
					})
					if err != nil {
						return err
					}
					if err := os.WriteFile(c.String("out"), doc.Data, 0o644); err != nil {
						return fmt.Errorf("write %s: %w", c.String("out"), err)
					}
					color.New(color.FgGreen).Fprintf(stderr, "DOCX ready: %s (%d pages)\n", c.String("out"), len(doc.Segments))
					return nil
				},
			},
			{
				Name:  "config",
				Usage: "print the effective configuration as TOML",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					data, err := cfg.Encode()
					if err != nil {
						return err
					}
					_, err = stdout.Write(data)
					return err
				},
			},
		},
	}
}

func selectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "pages", Aliases: []string{"p"}, Usage: `pages to include, e.g. "1-3,5"`},
		&cli.StringFlag{Name: "select", Usage: `JavaScript predicate over page, e.g. "page.number % 2 == 1"`},
	}
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
	if c.IsSet("lang") {
		cfg.OCR.Language = c.String("lang")
	}
	if c.IsSet("cleanup") {
		cfg.OCR.Cleanup = c.Bool("cleanup")
	}
	if c.IsSet("psm") {
		cfg.OCR.PSM = c.Int("psm")
	}
	if c.IsSet("rasterizer") {
		cfg.Raster.Backend = c.String("rasterizer")
	}
	if c.IsSet("scale") {
		cfg.Raster.Scale = c.Float64("scale")
	}
	if c.IsSet("dpi") {
		cfg.Raster.DPI = c.Int("dpi")
	}
	if c.IsSet("pdftoppm") {
		cfg.Raster.Pdftoppm = c.String("pdftoppm")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openSession(c *cli.Context, rt *env) (*session.Session, error) {
	path := c.Args().First()
	if path == "" {
		return nil, errors.New("missing PDF file argument")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	sess, err := rt.svc.Open(c.Context, path, data, rt.cfg.RecognizeOptions())
	if err != nil {
		return nil, err
	}
	switch {
	case c.String("pages") != "":
		err = sess.SelectRanges(c.String("pages"))
	case c.String("select") != "":
		err = sess.SelectScript(c.Context, c.String("select"))
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}
