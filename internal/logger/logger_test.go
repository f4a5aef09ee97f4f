package logger

import "testing"

func TestShouldLog(t *testing.T) {
	tests := []struct {
		currentLevel string
		messageLevel string
		want         bool
	}{
		{LogLevelError, LogLevelError, true},
		{LogLevelError, LogLevelWarn, false},
		{LogLevelInfo, LogLevelError, true},
		{LogLevelInfo, LogLevelInfo, true},
		{LogLevelInfo, LogLevelDebug, false},
		{LogLevelDebug, LogLevelTrace, false},
		{LogLevelTrace, LogLevelTrace, true},
		{"bogus", LogLevelTrace, true}, // Unknown levels allow everything
	}

	for _, tt := range tests {
		if got := shouldLog(tt.currentLevel, tt.messageLevel); got != tt.want {
			t.Errorf("shouldLog(%q, %q) = %v, want %v", tt.currentLevel, tt.messageLevel, got, tt.want)
		}
	}
}

func TestIsDebugEnabled(t *testing.T) {
	saved := GlobalLogging
	defer func() { GlobalLogging = saved }()

	GlobalLogging = nil
	if IsDebugEnabled() {
		t.Error("IsDebugEnabled() = true with no configuration")
	}

	GlobalLogging = &LoggingConfig{Level: "debug"}
	if !IsDebugEnabled() {
		t.Error("IsDebugEnabled() = false at debug level")
	}

	GlobalLogging = &LoggingConfig{Level: "INFO"}
	if IsDebugEnabled() {
		t.Error("IsDebugEnabled() = true at info level")
	}
}
