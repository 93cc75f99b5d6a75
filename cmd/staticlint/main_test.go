package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/patric-chuzhbe/rango/cmd/staticlint/noexit"
)

func TestAnalyzers(t *testing.T) {
	names := func(cfg ConfigData) map[string]bool {
		result := map[string]bool{}
		for _, a := range analyzers(cfg) {
			result[a.Name] = true
		}
		return result
	}

	base := names(ConfigData{})
	assert.True(t, base[noexit.Analyzer.Name])
	assert.True(t, base["nilerr"])
	assert.False(t, base["SA4006"])

	withStaticcheck := names(ConfigData{Staticcheck: []string{"SA4006", "NOPE"}})
	assert.True(t, withStaticcheck["SA4006"])
	assert.Len(t, withStaticcheck, len(base)+1)
}
