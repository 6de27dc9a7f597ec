package cli

import (
	"bytes"
	"testing"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
)

func newLogger(stacktraces bool) (*log.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return &log.Logger{Handler: New(buf, false, stacktraces), Level: log.DebugLevel}, buf
}

func TestHandler_HandleLog(t *testing.T) {
	t.Run("writes the level, message and fields", func(t *testing.T) {
		l, buf := newLogger(false)
		l.WithField("path", "notes/todo.txt").Info("wrote file to disk")

		out := buf.String()
		assert.Contains(t, out, "INFO")
		assert.Contains(t, out, "wrote file to disk")
		assert.Contains(t, out, "path=notes/todo.txt")
		assert.NotContains(t, out, "Stacktrace:")
	})

	t.Run("includes a stacktrace for errors when enabled", func(t *testing.T) {
		l, buf := newLogger(true)
		l.WithField("error", errors.New("disk on fire")).Error("failed to write file")

		assert.Contains(t, buf.String(), "Stacktrace:")
		assert.Contains(t, buf.String(), "disk on fire")
	})

	t.Run("skips stacktraces below warn level", func(t *testing.T) {
		l, buf := newLogger(true)
		l.WithField("error", errors.New("not important")).Debug("rejected request")

		assert.NotContains(t, buf.String(), "Stacktrace:")
	})
}
