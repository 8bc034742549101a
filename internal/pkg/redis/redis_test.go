package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "http://localhost:6379")
	assert.ErrorContains(t, err, "invalid redis url")
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(context.Background(), "redis://127.0.0.1:1/0")
	assert.ErrorContains(t, err, "redis ping failed")
}
