package worker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeCallback(t *testing.T) {
	zeros := "0x" + strings.Repeat("0", 62)
	assert.Equal(t, zeros+"00", encodeCallback(emailCheck{}))
	assert.Equal(t, zeros+"01", encodeCallback(emailCheck{valid: true}))
	assert.Equal(t, zeros+"02", encodeCallback(emailCheck{performed: true}))
	assert.Equal(t, zeros+"03", encodeCallback(emailCheck{valid: true, performed: true}))
}

func TestCallbackValid(t *testing.T) {
	zeros := "0x" + strings.Repeat("0", 62)
	assert.True(t, callbackValid(zeros+"01"))
	assert.True(t, callbackValid(zeros+"03"))
	assert.False(t, callbackValid(zeros+"02"))
	assert.False(t, callbackValid("0x01"))
	assert.False(t, callbackValid("0x"))
	assert.False(t, callbackValid("not hex"))
	assert.True(t, callbackValid(encodeCallback(emailCheck{valid: true})))
}
