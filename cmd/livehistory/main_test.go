package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunRejectsUnknownCommand(t *testing.T) {
	assert.Error(t, run([]string{"frobnicate"}))
}

func TestRunVersion(t *testing.T) {
	assert.NoError(t, run([]string{"version"}))
}
