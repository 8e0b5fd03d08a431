// SPDX-License-Identifier: GPL-3.0-or-later

package rdnet

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// DefaultErrClassifier always returns an empty string, regardless of err.
func TestDefaultErrClassifier(t *testing.T) {
	result := DefaultErrClassifier.Classify(nil)
	assert.Equal(t, "", result)

	result = DefaultErrClassifier.Classify(context.DeadlineExceeded)
	assert.Equal(t, "", result)

	result = DefaultErrClassifier.Classify(errors.New("unknown error"))
	assert.Equal(t, "", result)
}
