package infrastructure

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"qfm-surfaces/internal/domain"
)

type FmtFunc func(float64) string

// ScientificFmt formats values in exponent notation with the given number of
// decimals.
func ScientificFmt(decimals int) FmtFunc {
	return func(v float64) string {
		return strconv.FormatFloat(v, 'e', decimals, 64)
	}
}

type TXTFileWriter struct {
	logger    *zap.Logger
	formatter FmtFunc
}

func NewTXTFileWriter(logger *zap.Logger, formatter FmtFunc) *TXTFileWriter {
	return &TXTFileWriter{logger: logger, formatter: formatter}
}

// WriteSurface writes a tab separated table: a header with label,
// resolution and run id, the column names, then one row per (m, n).
func (w *TXTFileWriter) WriteSurface(filename string, surface *domain.Surface) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "%s\t%s\t%d\t%d\t%s\n", surfaceTag, surface.Label,
		surface.Radius.Mpol, surface.Radius.Ntor, surface.RunID)
	fmt.Fprintln(writer, strings.Join(surfaceColumns, "\t"))

	for _, row := range surface.Modes() {
		fmt.Fprintf(writer, "%d\t%d\t%s\n", row.M, row.N, strings.Join([]string{
			w.formatter(row.RCos),
			w.formatter(row.RSin),
			w.formatter(row.TCos),
			w.formatter(row.TSin),
		}, "\t"))
	}

	if err := writer.Flush(); err != nil {
		return err
	}

	w.logger.Debug("Surface written",
		zap.String("file", filename),
		zap.Stringer("label", surface.Label))
	return nil
}

// WriteStraightened writes iota and the lambda spectrum of a straightened
// boundary.
func (w *TXTFileWriter) WriteStraightened(filename string, result *domain.Straightened) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "rho\t%s\tiota\t%s\titerations\t%d\tconverged\t%t\n",
		w.formatter(result.Rho), w.formatter(result.Iota), result.Iterations, result.Converged)
	fmt.Fprintln(writer, "m\tn\tlambda_cos\tlambda_sin")

	l := result.Lambda
	for m := 0; m <= l.Mpol; m++ {
		for n := -l.Ntor; n <= l.Ntor; n++ {
			j := l.Col(n)
			fmt.Fprintf(writer, "%d\t%d\t%s\t%s\n", m, n, w.formatter(l.Cos.At(m, j)), w.formatter(l.Sin.At(m, j)))
		}
	}

	return writer.Flush()
}
