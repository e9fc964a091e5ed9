package pool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffersComeBackEmpty(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("rendered page")
	PutBuffer(buf)

	again := GetBuffer()
	assert.Equal(t, 0, again.Len())
	PutBuffer(again)
}

func TestPutBufferDropsOversized(t *testing.T) {
	PutBuffer(nil)
	PutBuffer(bytes.NewBuffer(make([]byte, 0, maxPooled+1)))
	assert.Equal(t, 0, GetBuffer().Len())
}
