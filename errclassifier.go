// SPDX-License-Identifier: GPL-3.0-or-later

package rdnet

// ErrClassifier labels an error with a short category string for a dial
// pipeline stage's structured log fields.
//
// Implementations map errors to short, descriptive labels (e.g.,
// "ETIMEDOUT", "ECONNRESET") so log aggregation can group flows by
// failure class instead of matching on free-form error text.
type ErrClassifier interface {
	Classify(err error) string
}

// ErrClassifierFunc adapts a function to the [ErrClassifier] interface.
//
// This allows using simple functions as classifiers:
//
//	op.ErrClassifier = ErrClassifierFunc(func(err error) string {
//		return string(errclass.Classify(err))
//	})
type ErrClassifierFunc func(error) string

var _ ErrClassifier = ErrClassifierFunc(nil)

// Classify implements [ErrClassifier].
func (f ErrClassifierFunc) Classify(err error) string {
	return f(err)
}

// DefaultErrClassifier is a no-op classifier that returns an empty string.
// A caller wanting the engine's own OS-errno taxonomy instead wraps
// [errclass.Classify] with [ErrClassifierFunc] (adapting its
// [errclass.Class] result to string) and assigns it to [Config.ErrClassifier].
var DefaultErrClassifier = ErrClassifierFunc(func(error) string { return "" })
