package optimization

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestUsableSolve(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"solved", nil, true},
		{"ill conditioned", mat.Condition(1e17), true},
		{"wrapped condition", fmt.Errorf("cholesky: %w", mat.Condition(1e20)), true},
		{"other failure", errors.New("matrix singular"), false},
		{"wrapped failure", fmt.Errorf("solve: %w", mat.ErrSingular), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, usableSolve(tt.err))
		})
	}
}
