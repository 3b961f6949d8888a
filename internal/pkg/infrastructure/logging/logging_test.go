package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestLoggerIsCarriedInContext(t *testing.T) {
	is := is.New(t)
	buf := &bytes.Buffer{}

	ctx, _ := newLogger(context.Background(), buf, "Sensor-Storage", "1.0", "debug")
	ctx, _ = WithSensor(ctx, "AA:BB")

	log := GetLoggerFromContext(ctx)
	log.Info().Msg("hello")

	out := buf.String()
	is.True(strings.Contains(out, `"service":"sensor-storage"`))
	is.True(strings.Contains(out, `"sensor_id":"AA:BB"`))
}

func TestThatUnknownLevelFallsBackToInfo(t *testing.T) {
	is := is.New(t)
	buf := &bytes.Buffer{}

	_, log := newLogger(context.Background(), buf, "svc", "1.0", "gurka")
	log.Debug().Msg("hidden")
	log.Info().Msg("visible")

	is.True(!strings.Contains(buf.String(), "hidden"))
	is.True(strings.Contains(buf.String(), "visible"))
}
