package main

import (
	"bytes"
	"testing"

	"github.com/smallbiznis/bookkeeper/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterSnowflake(t *testing.T) {
	node, err := RegisterSnowflake(config.Config{SnowflakeNode: 7})
	require.NoError(t, err)
	assert.NotZero(t, node.Generate())

	_, err = RegisterSnowflake(config.Config{SnowflakeNode: 4096})
	assert.Error(t, err)
}

func TestReportCommandTree(t *testing.T) {
	cmd := newReportCommand()
	names := []string{}
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"trial-balance", "profit-and-loss", "balance-sheet", "ledger-vouchers"}, names)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]string{"diff": "0.00"}))
	assert.JSONEq(t, `{"diff":"0.00"}`, buf.String())
}
