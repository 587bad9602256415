package parser

import "testing"

func TestCategorizeUserAgent(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{"AppleCoreMedia/1.0.0.16G77 (iPhone; U; CPU OS 12_4 like Mac OS X)", "iOS"},
		{"Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X)", "iOS"},
		{"ExoPlayerLib/2.18.1", "Android"},
		{"okhttp/4.10.0", "Android"},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64)", "Windows"},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)", "macOS"},
		{"Mozilla/5.0 (X11; Linux x86_64)", "Linux"},
		{"curl/8.0.1", "CLI"},
		{"Wget/1.21", "CLI"},
		{"Googlebot/2.1 (+http://www.google.com/bot.html)", "Bot"},
		{"VLC/3.0.18 LibVLC/3.0.18", "Other"},
		{"", "Unknown"},
	}

	for _, tt := range tests {
		if got := CategorizeUserAgent(tt.ua); got != tt.want {
			t.Errorf("CategorizeUserAgent(%q) = %q, want %q", tt.ua, got, tt.want)
		}
	}
}
