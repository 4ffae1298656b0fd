package convert

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"text/template"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"

	"mdeck/archive"
	"mdeck/common"
	"mdeck/config"
	"mdeck/deck"
	"mdeck/markdown"
	"mdeck/state"
)

var deckExtensions = []string{".md", ".markdown"}

func isDeckName(name string) bool {
	ext := filepath.Ext(name)
	for _, e := range deckExtensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// renderer keeps everything needed to process decks during single run.
type renderer struct {
	deck   *deck.Deck
	format common.OutputFmt
	tmpl   *template.Template
	env    *state.LocalEnv
	log    *zap.Logger
}

// Render compiles Markdown deck(s) into HTML documents or JSON.
func Render(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("render")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	format := env.Cfg.Output.Format
	if cmd.IsSet("to") {
		if format, err = common.ParseOutputFmt(cmd.String("to")); err != nil {
			log.Warn("Unknown output format requested, switching to html", zap.Error(err))
			format = common.OutputFmtHTML
		}
	}
	if cmd.IsSet("svg") {
		env.Cfg.Deck.InlineSVG.Enable = cmd.Bool("svg")
	}
	if cmd.IsSet("printable") {
		env.Cfg.Deck.Printable = cmd.Bool("printable")
	}
	if cmd.IsSet("html") {
		env.Cfg.Deck.HTML = cmd.Bool("html")
	}
	env.Overwrite = cmd.Bool("overwrite")

	if err := env.LoadThemes(); err != nil {
		return fmt.Errorf("unable to load themes: %w", err)
	}
	if name := cmd.String("theme"); name != "" {
		if err := env.Themes.SetDefault(name); err != nil {
			return fmt.Errorf("unable to select theme: %w", err)
		}
	}

	r, err := newRenderer(env, format, log)
	if err != nil {
		return err
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst), zap.Stringer("format", format))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return r.process(ctx, src, dst)
}

func newRenderer(env *state.LocalEnv, format common.OutputFmt, log *zap.Logger) (*renderer, error) {
	d, err := env.NewDeck()
	if err != nil {
		return nil, err
	}
	r := &renderer{deck: d, format: format, env: env, log: log}
	if format == common.OutputFmtHTML {
		if r.tmpl, err = loadDocumentTemplate(env.Cfg.Output.DocumentTemplate); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// process determines the input type (directory, archive, path inside archive
// or single file) and processes it accordingly.
func (r *renderer) process(ctx context.Context, src, dst string) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			return r.processDir(ctx, head, dst)
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		isZip, err := archive.IsArchive(head)
		if err != nil {
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if isZip {
			pathIn := filepath.ToSlash(strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator)))
			if err := r.processArchive(ctx, head, pathIn, "", dst); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			return nil
		}

		if len(tail) != 0 {
			return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}
		file, err := os.Open(head)
		if err != nil {
			return err
		}
		defer file.Close()
		return r.processDeck(ctx, file, filepath.Base(head), dst)
	}
	return fmt.Errorf("input source was not found (%s)", src)
}

// processDir walks directory tree and processes every deck and archive.
// Failures of individual decks are logged, processing continues.
func (r *renderer) processDir(ctx context.Context, dir, dst string) error {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			r.log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		if isDeckName(path) {
			count++
			file, err := os.Open(path)
			if err != nil {
				r.log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
				return nil
			}
			defer file.Close()
			if err := r.processDeck(ctx, file, rel, dst); err != nil {
				r.log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
			}
			return nil
		}

		isZip, err := archive.IsArchive(path)
		if err != nil {
			r.log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if isZip {
			count++
			if err := r.processArchive(ctx, path, "", filepath.Dir(rel), dst); err != nil {
				r.log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
			}
		}
		return nil
	})
	if err == nil && count == 0 {
		r.log.Debug("Nothing to process", zap.String("dir", dir))
	}
	return err
}

// processArchive processes decks inside archive under "pathIn", "pathOut" is
// prepended to entry names when building output path.
func (r *renderer) processArchive(ctx context.Context, path, pathIn, pathOut, dst string) error {
	count := 0
	match := archive.All(archive.WithPrefix(pathIn), isDeckName)
	err := archive.Walk(path, match, func(arc string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		count++
		data, err := archive.ReadFile(f)
		if err != nil {
			r.log.Error("Unable to read file in archive", zap.String("archive", arc), zap.String("file", f.Name), zap.Error(err))
			return nil
		}
		if err := r.processDeck(ctx, bytes.NewReader(data), filepath.Join(pathOut, filepath.FromSlash(f.Name)), dst); err != nil {
			r.log.Error("Unable to process file in archive", zap.String("archive", arc), zap.String("file", f.Name), zap.Error(err))
		}
		return nil
	})
	if err == nil && count == 0 {
		r.log.Debug("Nothing to process", zap.String("archive", path))
	}
	return err
}

var (
	bomUTF32BE = []byte{0x00, 0x00, 0xFE, 0xFF}
	bomUTF32LE = []byte{0xFF, 0xFE, 0x00, 0x00}
)

// readSource reads deck source, UTF-16 and UTF-32 input with BOM is
// converted and UTF-8 BOM is dropped.
func readSource(in io.Reader) ([]byte, error) {
	br := bufio.NewReader(in)
	head, _ := br.Peek(4)

	dec := unicode.BOMOverride(transform.Nop)
	switch {
	case bytes.HasPrefix(head, bomUTF32BE):
		dec = utf32.UTF32(utf32.BigEndian, utf32.ExpectBOM).NewDecoder()
	case bytes.HasPrefix(head, bomUTF32LE):
		dec = utf32.UTF32(utf32.LittleEndian, utf32.ExpectBOM).NewDecoder()
	}
	return io.ReadAll(transform.NewReader(br, dec))
}

// processDeck renders single deck. "src" is path of the deck relative to
// processed root (always including file name), "dst" is the destination
// directory.
func (r *renderer) processDeck(ctx context.Context, in io.Reader, src, dst string) (rerr error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	var outputName string

	r.log.Info("Rendering starting", zap.String("from", src))
	defer func(start time.Time) {
		if p := recover(); p != nil {
			r.log.Error("Rendering ended with panic",
				zap.Any("panic", p), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("rendering panic: %v", p)
		} else if rerr == nil {
			r.log.Info("Rendering completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName))
		}
	}(time.Now())

	data, err := readSource(in)
	if err != nil {
		return fmt.Errorf("unable to read deck source (%s): %w", src, err)
	}
	r.env.Rpt.StoreData("source/"+filepath.ToSlash(src), data)

	res, err := r.deck.Render(string(data), deck.RenderOptions{
		HTMLAsArray: r.format == common.OutputFmtJSON && r.env.Cfg.Output.SlidesAsArray,
	})
	if err != nil {
		return fmt.Errorf("unable to render deck (%s): %w", src, err)
	}
	r.env.Rpt.StoreData("tokens/"+filepath.ToSlash(src)+".txt", []byte(markdown.Dump(res.Tokens)))

	values := buildValues(res, src, r.format)
	outputName = buildOutputPath(src, dst, values, r.format, r.env)

	if _, err := os.Stat(outputName); err == nil {
		if !r.env.Overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		r.log.Warn("Overwriting existing file", zap.String("file", outputName))
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	buf := new(bytes.Buffer)
	switch r.format {
	case common.OutputFmtHTML:
		title, err := expandTemplate(config.TitleTemplateFieldName, r.env.Cfg.Output.TitleTemplate, values)
		if err != nil {
			r.log.Warn("Unable to prepare document title", zap.Error(err))
			title = values.Title
		}
		err = writeDocument(buf, r.tmpl, res, values, strings.TrimSpace(title))
		if err != nil {
			return fmt.Errorf("unable to generate document: %w", err)
		}
	case common.OutputFmtJSON:
		if err := writeJSON(buf, res, values); err != nil {
			return fmt.Errorf("unable to generate json: %w", err)
		}
	}
	if err := os.WriteFile(outputName, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}

	r.env.Rpt.Store("result/"+filepath.ToSlash(src)+r.format.Ext(), outputName)
	return nil
}
