package composables

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUseTx_NoPool(t *testing.T) {
	_, err := UseTx(context.Background())
	require.ErrorIs(t, err, ErrNoPool)

	err = InTx(context.Background(), func(context.Context) error { return nil })
	require.ErrorIs(t, err, ErrNoPool)
}

func TestUseLogger_FallsBackToStandard(t *testing.T) {
	entry := UseLogger(context.Background())
	require.NotNil(t, entry)
	assert.Same(t, logrus.StandardLogger(), entry.Logger)

	custom := logrus.NewEntry(logrus.New()).WithField("request-id", "abc")
	assert.Same(t, custom, UseLogger(WithLogger(context.Background(), custom)))
}

func TestUseQuery(t *testing.T) {
	type filter struct {
		Category string   `form:"category"`
		Limit    int      `form:"limit"`
		Tags     []string `form:"tags"`
	}
	r := httptest.NewRequest("GET", "/?category=RRC&limit=20&tags=a&tags=b&sort=x", nil)
	f, err := UseQuery(&filter{}, r)
	require.NoError(t, err)
	assert.Equal(t, "RRC", f.Category)
	assert.Equal(t, 20, f.Limit)
	assert.Equal(t, []string{"a", "b"}, f.Tags)
	assert.Equal(t, "x", GetLastQueryParam(r, "sort"))
}

func TestRequestID(t *testing.T) {
	assert.Empty(t, UseRequestID(context.Background()))
	assert.Equal(t, "r-1", UseRequestID(WithRequestID(context.Background(), "r-1")))
}
