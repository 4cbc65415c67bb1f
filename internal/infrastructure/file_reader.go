package infrastructure

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"qfm-surfaces/internal/domain"
	"qfm-surfaces/pkg/spectral"
)

const surfaceTag = "QFM"

var surfaceColumns = []string{"m", "n", "rcos", "rsin", "tcos", "tsin"}

type TXTFileReader struct {
	logger *zap.Logger
}

func NewTXTFileReader(logger *zap.Logger) *TXTFileReader {
	return &TXTFileReader{logger: logger}
}

// ReadSurface parses a table written by TXTFileWriter.WriteSurface. Every
// (m, n) mode must appear exactly once, so a file cut off mid-write is
// rejected. The curves are not stored and come back empty.
func (r *TXTFileReader) ReadSurface(filename string) (*domain.Surface, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(lines) < 2 {
		return nil, domain.ErrInvalidFileFormat
	}

	// Первая строка: метка, разрешение, идентификатор запуска
	head := strings.Fields(lines[0])
	if len(head) != 5 || head[0] != surfaceTag {
		return nil, fmt.Errorf("%w: bad header %q", domain.ErrInvalidFileFormat, lines[0])
	}
	label, err := parseLabel(head[1])
	if err != nil {
		return nil, err
	}
	mpol, err1 := strconv.Atoi(head[2])
	ntor, err2 := strconv.Atoi(head[3])
	if err1 != nil || err2 != nil || mpol < 0 || ntor < 0 {
		return nil, fmt.Errorf("%w: bad resolution in %q", domain.ErrInvalidFileFormat, lines[0])
	}
	runID, err := uuid.Parse(head[4])
	if err != nil {
		return nil, fmt.Errorf("%w: run id: %v", domain.ErrInvalidFileFormat, err)
	}

	s := &domain.Surface{
		Label:  label,
		RunID:  runID,
		Radius: spectral.NewSpectrum2D(mpol, ntor),
		Angle:  spectral.NewSpectrum2D(mpol, ntor),
	}

	rows := 0
	seen := make(map[[2]int]bool)
	for i := 2; i < len(lines); i++ {
		fields := strings.Fields(lines[i])
		if len(fields) == 0 {
			continue
		}
		if len(fields) != len(surfaceColumns) {
			return nil, fmt.Errorf("%w: line %d has %d columns", domain.ErrInvalidFileFormat, i+1, len(fields))
		}

		m, err1 := strconv.Atoi(fields[0])
		n, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil || m < 0 || m > mpol || n < -ntor || n > ntor {
			return nil, fmt.Errorf("%w: line %d: bad mode (%s, %s)", domain.ErrInvalidFileFormat, i+1, fields[0], fields[1])
		}
		if seen[[2]int{m, n}] {
			return nil, fmt.Errorf("%w: line %d: duplicate mode (%d, %d)", domain.ErrInvalidFileFormat, i+1, m, n)
		}
		seen[[2]int{m, n}] = true

		var v [4]float64
		for k := range v {
			if v[k], err = strconv.ParseFloat(fields[2+k], 64); err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", domain.ErrInvalidFileFormat, i+1, err)
			}
		}
		j := s.Radius.Col(n)
		s.Radius.Cos.Set(m, j, v[0])
		s.Radius.Sin.Set(m, j, v[1])
		s.Angle.Cos.Set(m, j, v[2])
		s.Angle.Sin.Set(m, j, v[3])
		rows++
	}

	if want := (mpol + 1) * (2*ntor + 1); rows != want {
		r.logger.Warn("Surface table is incomplete",
			zap.String("file", filename),
			zap.Int("rows", rows),
			zap.Int("want", want))
		return nil, fmt.Errorf("%w: %d of %d modes", domain.ErrInvalidFileFormat, rows, want)
	}

	return s, nil
}

func parseLabel(s string) (domain.Rational, error) {
	p, q, ok := strings.Cut(s, "/")
	if !ok {
		return domain.Rational{}, fmt.Errorf("%w: bad label %q", domain.ErrInvalidFileFormat, s)
	}
	pp, err1 := strconv.Atoi(p)
	qq, err2 := strconv.Atoi(q)
	if err1 != nil || err2 != nil {
		return domain.Rational{}, fmt.Errorf("%w: bad label %q", domain.ErrInvalidFileFormat, s)
	}
	label := domain.Rational{P: pp, Q: qq}
	return label, label.Validate()
}

// SurfaceFileName is the output name of a label, e.g. "surface_2_3.txt".
func SurfaceFileName(label domain.Rational) string {
	return fmt.Sprintf("surface_%d_%d.txt", label.P, label.Q)
}
