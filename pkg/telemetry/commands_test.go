// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 SoNdA11

package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandEncode(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
		key  string
	}{
		{"mode", NewModeCommand(ModeBridge), `{"mode":"bridge"}`, "mode"},
		{"boost type fixed", NewBoostTypeCommand(BoostFixed), `{"boostType":"fix"}`, "boostType"},
		{"boost type percent", NewBoostTypeCommand(BoostPercent), `{"boostType":"pct"}`, "boostType"},
		{"boost", NewBoostCommand(42), `{"boost":42}`, "boost"},
		{"boost zero", NewBoostCommand(0), `{"boost":0}`, "boost"},
		{"sim", NewSimCommand(180), `{"sim":180}`, "sim"},
		{"select", NewSelectCommand("AA:01"), `{"trainerAddress":"AA:01"}`, "trainerAddress"},
		{"disconnect", NewDisconnectCommand(), `{"disconnect":true}`, "disconnect"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.cmd.Encode()
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
			assert.Equal(t, tt.key, tt.cmd.Name())
		})
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		arg     string
		want    string
		wantErr bool
	}{
		{"mode=bridge", `{"mode":"bridge"}`, false},
		{"mode=SIM", `{"mode":"sim"}`, false},
		{"mode=turbo", "", true},
		{"boostType=percent", `{"boostType":"pct"}`, false},
		{"boosttype=fix", `{"boostType":"fix"}`, false},
		{"boostType=double", "", true},
		{"boost=15", `{"boost":15}`, false},
		{"boost=lots", "", true},
		{"sim=200", `{"sim":200}`, false},
		{"sim=9000", "", true},
		{"trainer=AA:01", `{"trainerAddress":"AA:01"}`, false},
		{"trainerAddress=", "", true},
		{"disconnect", `{"disconnect":true}`, false},
		{"reboot=now", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			cmd, err := ParseCommand(tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			data, err := cmd.Encode()
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestCommandEchoed(t *testing.T) {
	s := &Snapshot{
		Mode:           ModeBridge,
		BoostType:      BoostPercent,
		BoostValue:     20,
		SimBasePower:   Some(180),
		TrainerAddress: "AA:01",
		Connected:      true,
	}

	assert.True(t, NewModeCommand(ModeBridge).Echoed(s))
	assert.False(t, NewModeCommand(ModeSim).Echoed(s))
	assert.True(t, NewBoostTypeCommand(BoostPercent).Echoed(s))
	assert.True(t, NewBoostCommand(20).Echoed(s))
	assert.False(t, NewBoostCommand(21).Echoed(s))
	assert.True(t, NewSimCommand(180).Echoed(s))
	assert.True(t, NewSelectCommand("AA:01").Echoed(s))
	assert.False(t, NewDisconnectCommand().Echoed(s))
	assert.False(t, NewModeCommand(ModeBridge).Echoed(nil))
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "BOOST_TYPE percent", NewBoostTypeCommand(BoostPercent).String())
	assert.Equal(t, "SIM 150 W", NewSimCommand(150).String())
	assert.Equal(t, "DISCONNECT", NewDisconnectCommand().String())
	assert.Equal(t, "EMPTY", Command{}.String())
}
