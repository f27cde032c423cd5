package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrivilegeHas(t *testing.T) {
	p := PrivPlayer | PrivSupporter

	assert.True(t, p.Has(PrivPlayer))
	assert.True(t, p.Has(PrivSupporter))
	assert.True(t, p.Has(PrivPlayer|PrivSupporter))
	assert.False(t, p.Has(PrivModerator))
}

func TestPrivilegeRestricted(t *testing.T) {
	assert.True(t, Privilege(0).Restricted())
	assert.True(t, PrivModerator.Restricted())
	assert.False(t, PrivPlayer.Restricted())
	assert.False(t, (PrivPlayer | PrivModerator).Restricted())
}

func TestAllModesCoversEveryMode(t *testing.T) {
	assert.Equal(t, []Mode{ModeOsu, ModeTaiko, ModeCatch, ModeMania}, AllModes)
}
