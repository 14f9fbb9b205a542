package writer

import (
	"bufio"
	"fmt"
	"image/png"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/achilleasa/darkray/frame"
	"github.com/achilleasa/darkray/log"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

type Format uint8

// Supported output formats.
const (
	PPM Format = iota
	PNG
	BMP
	TIFF
)

func (f Format) String() string {
	switch f {
	case PPM:
		return "ppm"
	case PNG:
		return "png"
	case BMP:
		return "bmp"
	case TIFF:
		return "tiff"
	}
	return "unknown"
}

var logger = log.New("frame writer")

// Select an output format based on the file extension.
func FormatFromFilename(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".ppm":
		return PPM, nil
	case ".png":
		return PNG, nil
	case ".bmp":
		return BMP, nil
	case ".tif", ".tiff":
		return TIFF, nil
	}
	return PPM, fmt.Errorf("frame writer: unsupported output format for %q", filename)
}

// Encode frame using the given format.
func Encode(w io.Writer, f *frame.Frame, format Format) error {
	switch format {
	case PPM:
		return encodePPM(w, f)
	case PNG:
		return png.Encode(w, f.RGBA())
	case BMP:
		return bmp.Encode(w, f.RGBA())
	case TIFF:
		return tiff.Encode(w, f.RGBA(), &tiff.Options{Compression: tiff.Deflate})
	}
	return fmt.Errorf("frame writer: unsupported format %d", format)
}

// Write frame to a file. The format is selected by the file extension. The
// frame is first encoded into a temporary file in the same folder which is
// renamed to filename only if encoding succeeds; no partial output is ever
// left behind.
func WriteFrame(f *frame.Frame, filename string) error {
	format, err := FormatFromFilename(filename)
	if err != nil {
		return err
	}

	logger.Infof("writing %s frame to %s", format, filename)
	start := time.Now()

	tmpFile, err := createTemp(filename)
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()
	defer os.Remove(tmpName)

	err = Encode(tmpFile, f, format)
	if err != nil {
		tmpFile.Close()
		return err
	}
	if err = tmpFile.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmpName, filename); err != nil {
		return err
	}

	logger.Infof("wrote frame in %d ms", time.Since(start).Nanoseconds()/1e6)
	return nil
}

// Create an empty temp file next to filename. New frames get 0666 permissions
// filtered by the process umask; overwritten frames keep their current mode.
func createTemp(filename string) (*os.File, error) {
	perm, keepMode := os.FileMode(0666), false
	if info, err := os.Stat(filename); err == nil && info.Mode().IsRegular() {
		perm, keepMode = info.Mode().Perm(), true
	}

	prefix := filepath.Join(filepath.Dir(filename), "."+filepath.Base(filename)+".")
	for attempt := 0; attempt < 100; attempt++ {
		tmpName := prefix + strconv.FormatUint(uint64(rand.Uint32()), 36)
		tmpFile, err := os.OpenFile(tmpName, os.O_RDWR|os.O_CREATE|os.O_EXCL, perm)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}

		// The umask does not apply to an explicit chmod.
		if keepMode {
			if err = tmpFile.Chmod(perm); err != nil {
				tmpFile.Close()
				os.Remove(tmpName)
				return nil, err
			}
		}
		return tmpFile, nil
	}
	return nil, fmt.Errorf("writer: could not create a temp file for %s", filename)
}

// Encode frame as a binary (P6) portable pixmap. Pixels are written in
// row-major order starting from the top row.
func encodePPM(w io.Writer, f *frame.Frame) error {
	bw := bufio.NewWriter(w)
	_, err := fmt.Fprintf(bw, "P6\n%d %d\n255\n", f.Width(), f.Height())
	if err != nil {
		return err
	}

	for y := 0; y < f.Height(); y++ {
		for x := 0; x < f.Width(); x++ {
			c, err := f.Pixel(x, y)
			if err != nil {
				return err
			}
			r, g, b := c.RGB8()
			if _, err = bw.Write([]byte{r, g, b}); err != nil {
				return err
			}
		}
	}

	return bw.Flush()
}
