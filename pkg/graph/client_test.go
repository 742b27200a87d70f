package graph

import (
	"errors"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() ectologger.Logger {
	return zapadapter.NewZapEctoLogger(zap.NewNop(), nil)
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(Config{Host: "localhost", Port: 7687}, testLogger())
	require.NoError(t, err)
	require.NotNil(t, client)
}

func TestShapeError(t *testing.T) {
	t.Run("connectivity failures surface as 503", func(t *testing.T) {
		err := shapeError(&neo4j.ConnectivityError{}, "failed to execute graph query")

		assert.Equal(t, http.StatusServiceUnavailable, httperror.GetStatusCode(err))
		assert.ErrorContains(t, err, "graph database unavailable")
	})

	t.Run("other failures surface as 500", func(t *testing.T) {
		err := shapeError(errors.New("SyntaxError"), "failed to execute graph query")

		assert.Equal(t, http.StatusInternalServerError, httperror.GetStatusCode(err))
		assert.ErrorContains(t, err, "failed to execute graph query")
	})
}
