package plugin

import "testing"

func TestGroupDescription(t *testing.T) {
	group := Group{Permalink: "http://example.com/acme/web/issues/1/"}

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", "", "http://example.com/acme/web/issues/1/"},
		{"single line", "Hello world", "http://example.com/acme/web/issues/1/\n\n    Hello world"},
		{
			"multi line",
			"Traceback:\r\n  File \"foo.py\"\n",
			"http://example.com/acme/web/issues/1/\n\n    Traceback:\n      File \"foo.py\"",
		},
		{"bare carriage return", "first\rsecond", "http://example.com/acme/web/issues/1/\n\n    first\n    second"},
		{"blank lines only", "\n\n", "http://example.com/acme/web/issues/1/\n\n    \n    "},
		{"interior and trailing blanks", "a\n\nb\n\n", "http://example.com/acme/web/issues/1/\n\n    a\n    \n    b\n    "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GroupDescription(group, Event{Body: tt.body}); got != tt.want {
				t.Errorf("GroupDescription() = %q, want %q", got, tt.want)
			}
		})
	}
}
