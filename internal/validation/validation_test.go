package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilename_ValidAndInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    string
		want  string
		errIs error
	}{
		{name: "simple", in: "manual.pdf", want: "manual.pdf", errIs: nil},
		{name: "empty", in: "", want: "", errIs: ErrInvalidFilename},
		{name: "dot", in: ".", want: "", errIs: ErrInvalidFilename},
		{name: "dotdot", in: "..", want: "", errIs: ErrInvalidFilename},
		{name: "slash", in: "a/b.pdf", want: "", errIs: ErrInvalidFilename},
		{name: "backslash", in: `a\b.pdf`, want: "", errIs: ErrInvalidFilename},
		{name: "traversal", in: "../escape.pdf", want: "", errIs: ErrInvalidFilename},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Filename(tt.in)
			assert.Equal(t, tt.want, got)
			assert.ErrorIs(t, err, tt.errIs)
		})
	}
}
