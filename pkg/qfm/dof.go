package qfm

import (
	"errors"
	"fmt"

	"qfm-surfaces/internal/domain"
)

// ErrDOFLength is returned when an unknown vector or a curve table does not
// match the number of modes it is decoded with.
var ErrDOFLength = errors.New("qfm: unknown vector has wrong length")

// DOFLength is the size of the flat unknown vector of a curve with qN modes.
func DOFLength(qN int) int { return 4*qN + 1 }

// Pack flattens o as
//
//	[nu, RCos[0..qN], TSin[1..qN-1], RSin[1..qN-1], TCos[0..qN]] + 1
//
// The pinned sine endpoints are dropped. The unit offset keeps the solver
// away from exact zeros.
func Pack(dst []float64, o domain.Orbit) ([]float64, error) {
	qN := o.Modes()
	if qN < 1 || len(o.TSin) != qN+1 || len(o.RSin) != qN+1 || len(o.TCos) != qN+1 {
		return nil, fmt.Errorf("%w: malformed orbit with %d modes", ErrDOFLength, qN)
	}
	n := DOFLength(qN)
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]

	dst[0] = o.Nu
	k := 1
	k += copy(dst[k:], o.RCos)
	k += copy(dst[k:], o.TSin[1:qN])
	k += copy(dst[k:], o.RSin[1:qN])
	copy(dst[k:], o.TCos)

	for i := range dst {
		dst[i]++
	}
	return dst, nil
}

// Unpack is the inverse of Pack. TSin and RSin get zero endpoints.
func Unpack(x []float64, qN int) (domain.Orbit, error) {
	if qN < 1 || len(x) != DOFLength(qN) {
		return domain.Orbit{}, fmt.Errorf("%w: got %d, want %d", ErrDOFLength, len(x), DOFLength(qN))
	}

	o := domain.NewOrbit(qN)
	o.Nu = x[0] - 1
	for i := 0; i <= qN; i++ {
		o.RCos[i] = x[1+i] - 1
		o.TCos[i] = x[3*qN+i] - 1
	}
	for i := 1; i < qN; i++ {
		o.TSin[i] = x[qN+1+i] - 1
		o.RSin[i] = x[2*qN+i] - 1
	}
	return o, nil
}
