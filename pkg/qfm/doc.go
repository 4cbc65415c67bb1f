// Package qfm holds the numerical core of the quadratic-flux-minimizing
// surface construction: boundary straightening, the flat unknown vector of
// a trial curve and the residual of its action gradient equations.
package qfm
