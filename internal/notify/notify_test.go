package notify

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf).Notify(Error, "boom")
	require.Equal(t, "[error] boom\n", buf.String())
}

func TestMultiAndRecorder(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rec := &Recorder{}
	m := Multi{rec, Log{L: zap.New(core)}}

	m.Notify(Success, "saved")
	m.Notify(Error, "failed")

	require.Equal(t, []Entry{{Success, "saved"}, {Error, "failed"}}, rec.Entries())
	require.Equal(t, 1, rec.Count(Error))
	require.Equal(t, 2, logs.Len())
	require.Equal(t, zap.WarnLevel, logs.All()[1].Level)
}
