package server_test

import (
	"testing"

	"service-catalog/core/server"

	"github.com/stretchr/testify/assert"
)

func TestConfig(t *testing.T) {
	c := server.Config{Port: "9090"}
	assert.Equal(t, ":9090", c.Addr())
	assert.Equal(t, 512*1024, c.BodyLimit())

	c.BodyLimitKB = 64
	assert.Equal(t, 64*1024, c.BodyLimit())
}
