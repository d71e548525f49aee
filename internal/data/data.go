// Package data reads and writes measured resistivity soundings as
// whitespace or comma separated text: one sample per row with the probe
// depth in the first column and the apparent resistivity in the second.
// Further columns are ignored, and so are blank lines and '#' comments.
package data

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/cwbudde/soilfit/internal/fit"
)

// ParseError reports a malformed row
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Load reads a curve from a file
func Load(path string) (fit.Curve, error) {
	f, err := os.Open(path)
	if err != nil {
		return fit.Curve{}, fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	c, err := Read(f)
	if err != nil {
		return fit.Curve{}, fmt.Errorf("%s: %w", path, err)
	}
	slog.Debug("Loaded curve", "path", path, "samples", c.Len())
	return c, nil
}

// Read parses a curve and validates it against the model preconditions
func Read(r io.Reader) (fit.Curve, error) {
	var depths, res []float64

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text, _, _ := strings.Cut(sc.Text(), "#")
		fields := strings.FieldsFunc(text, isSeparator)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return fit.Curve{}, &ParseError{Line: line, Reason: fmt.Sprintf("expected 2 columns, got %d", len(fields))}
		}

		a, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return fit.Curve{}, &ParseError{Line: line, Reason: fmt.Sprintf("bad depth %q", fields[0])}
		}
		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return fit.Curve{}, &ParseError{Line: line, Reason: fmt.Sprintf("bad resistivity %q", fields[1])}
		}
		depths = append(depths, a)
		res = append(res, y)
	}
	if err := sc.Err(); err != nil {
		return fit.Curve{}, fmt.Errorf("read data: %w", err)
	}

	return fit.NewCurve(depths, res)
}

// Write emits the curve in the format accepted by Read
func Write(w io.Writer, c fit.Curve) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# depth_m resistivity_ohm_m")
	for i := range c.Depths {
		fmt.Fprintf(bw, "%s %s\n",
			strconv.FormatFloat(c.Depths[i], 'g', -1, 64),
			strconv.FormatFloat(c.Resistivities[i], 'g', -1, 64))
	}
	return bw.Flush()
}

func isSeparator(r rune) bool {
	return r == ' ' || r == '\t' || r == ',' || r == ';' || r == '\r'
}
