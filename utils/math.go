package utils

import (
	"gorgonia.org/tensor"
)

// ComputeLinearNorm returns the Euclidean distance between two point tensors.
func ComputeLinearNorm(t1, t2 *tensor.Dense) (float32, error) {
	diff, err := tensor.Sub(t1, t2)
	if err != nil {
		return 0, err
	}

	squaredDiff, err := tensor.Square(diff)
	if err != nil {
		return 0, err
	}
	sumOfSquares, err := tensor.Sum(squaredDiff)
	if err != nil {
		return 0, err
	}
	dist, err := tensor.Sqrt(sumOfSquares)
	if err != nil {
		return 0, err
	}
	return dist.(*tensor.Dense).Float32s()[0], nil
}
