package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "fenced html block",
			in:   "Here you go:\n```html\n<!DOCTYPE html>\n<html><body>Hi</body></html>\n```\nEnjoy!",
			want: "<!DOCTYPE html>\n<html><body>Hi</body></html>",
		},
		{
			name: "bare fence",
			in:   "```\n<html><body>x</body></html>\n```",
			want: "<html><body>x</body></html>",
		},
		{
			name: "doctype span with chatter",
			in:   "Sure! <!DOCTYPE html><html><head></head><body>ok</body></html> Let me know.",
			want: "<!DOCTYPE html><html><head></head><body>ok</body></html>",
		},
		{
			name: "html tag without doctype",
			in:   "result: <HTML lang=\"en\"><body>y</body></HTML>",
			want: "<HTML lang=\"en\"><body>y</body></HTML>",
		},
		{
			name: "truncated document",
			in:   "<!doctype html><html><body>cut",
			want: "<!doctype html><html><body>cut",
		},
		{
			name: "plain markup",
			in:   "  <div class=\"hero\">Hello</div>\n",
			want: "<div class=\"hero\">Hello</div>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractHTML(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractHTML_Empty(t *testing.T) {
	for _, in := range []string{"", "   \n\t"} {
		_, err := ExtractHTML(in)
		assert.ErrorIs(t, err, ErrUpstreamGeneration)
	}
}
