package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestWithLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	ctx := base.WithContext(context.Background())

	ctx = WithLogger(ctx, map[string]interface{}{"job": "employees"})
	InfoLog(ctx, "exported %d rows", 12)

	assert.Contains(t, buf.String(), `"job":"employees"`)
	assert.Contains(t, buf.String(), `"message":"exported 12 rows"`)

	// export code reads the same logger from the context
	zerolog.Ctx(ctx).Warn().Msg("from library")
	assert.Contains(t, buf.String(), `"message":"from library"`)
}

func TestErrorLog(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	ctx := base.WithContext(context.Background())

	ErrorLogErr(ctx, errors.New("boom"), "export %s failed", "employees")
	assert.Contains(t, buf.String(), `"error":"boom"`)
	assert.Contains(t, buf.String(), `"message":"export employees failed"`)

	buf.Reset()
	ErrorLog(ctx, "plain %d", 3)
	assert.Contains(t, buf.String(), `"message":"plain 3"`)
	assert.NotContains(t, buf.String(), `"error"`)
}

func TestGetLoggerFallsBackToGlobal(t *testing.T) {
	assert.Same(t, Logger(), getLogger(context.Background()))
}
