package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectName(t *testing.T) {
	assert.Equal(t, "previews/ab/abcdef.json", objectName("abcdef"))
	assert.Equal(t, "previews/x.json", objectName("x"))
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		size int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatSize(c.size))
	}
}
