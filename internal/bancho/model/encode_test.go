package model

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onecho/banchod/internal/bancho/packet"
)

func TestEncodePresenceRoundTrips(t *testing.T) {
	s := NewSession(7, "flyingtuna", "flyingtuna", "tok")
	s.UTCOffset = 2
	s.Geo = Geo{CountryCode: 38, Lat: 12.5, Lon: -3.25}
	s.Privileges = PrivPlayer | PrivSupporter
	s.Stats[ModeOsu].Rank = 42
	s.Status.Mode = ModeOsu

	frame := EncodePresence(s)
	frames, err := packet.SplitFrames(frame)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, packet.SRVUserPresence, frames[0].ID)

	r := packet.NewReader(frames[0].Payload)
	uid, err := r.I32()
	require.NoError(t, err)
	require.Equal(t, int32(7), uid)

	name, err := r.String()
	require.NoError(t, err)
	require.Equal(t, "flyingtuna", name)

	offset, err := r.I8()
	require.NoError(t, err)
	require.Equal(t, int8(2), offset)

	country, err := r.U8()
	require.NoError(t, err)
	require.Equal(t, uint8(38), country)

	privs, err := r.U8()
	require.NoError(t, err)
	require.Equal(t, uint8(PrivPlayer|PrivSupporter), privs)

	lon, err := r.F32()
	require.NoError(t, err)
	require.Equal(t, float32(-3.25), lon)

	lat, err := r.F32()
	require.NoError(t, err)
	require.Equal(t, float32(12.5), lat)

	rank, err := r.I32()
	require.NoError(t, err)
	require.Equal(t, int32(42), rank)

	require.True(t, r.Empty())
}

func TestEncodeStatsUsesCurrentModeAndScalesAccuracy(t *testing.T) {
	s := NewSession(8, "u", "u", "tok")
	s.Status.Mode = ModeTaiko
	s.Status.Action = ActionPlaying
	s.Status.ActionText = "Freedom Dive"
	s.Stats[ModeTaiko].RankedScore = 123456
	s.Stats[ModeTaiko].Accuracy = 98.76
	s.Stats[ModeTaiko].Rank = 3
	s.Stats[ModeTaiko].PP = 700

	frame := EncodeStats(s)
	frames, err := packet.SplitFrames(frame)
	require.NoError(t, err)
	require.Equal(t, packet.SRVUserStats, frames[0].ID)

	r := packet.NewReader(frames[0].Payload)
	uid, _ := r.I32()
	require.Equal(t, int32(8), uid)

	action, _ := r.U8()
	require.Equal(t, uint8(ActionPlaying), action)

	text, _ := r.String()
	require.Equal(t, "Freedom Dive", text)

	_, _ = r.String() // beatmap md5
	_, _ = r.U32()    // mods
	mode, _ := r.U8()
	require.Equal(t, uint8(ModeTaiko), mode)
	_, _ = r.I32() // beatmap id

	score, _ := r.U64()
	require.Equal(t, uint64(123456), score)

	acc, _ := r.F32()
	require.InDelta(t, 0.9876, acc, 1e-6)
}

func TestRankOfMissingModeStatsIsZero(t *testing.T) {
	s := NewSession(9, "u", "u", "tok")
	delete(s.Stats, ModeMania)
	s.Status.Mode = ModeMania

	require.Equal(t, int32(0), rankOf(s))
}
