// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package outlier

import (
	"gonum.org/v1/gonum/stat/distuv"
)

// FTest returns the probability that the chi-squared improvement from fit 1
// (chi21, dof1) to fit 2 (chi22, dof2) is due to chance. ok is false when
// the test cannot be evaluated: the second fit did not improve chi-squared,
// did not remove degrees of freedom, or has none left. In that case p is 1.
func FTest(chi21 float64, dof1 int, chi22 float64, dof2 int) (p float64, ok bool) {
	deltaChi2 := chi21 - chi22
	deltaDof := dof1 - dof2
	if deltaChi2 <= 0 || deltaDof <= 0 || dof2 <= 0 || chi22 <= 0 {
		return 1, false
	}
	f := (deltaChi2 / float64(deltaDof)) / (chi22 / float64(dof2))
	dist := distuv.F{D1: float64(deltaDof), D2: float64(dof2)}
	return 1 - dist.CDF(f), true
}
