package model

import "github.com/onecho/banchod/internal/bancho/packet"

// EncodePresence builds a SRV_USER_PRESENCE frame for s.
func EncodePresence(s *Session) []byte {
	w := packet.NewWriter()
	w.I32(s.UserID).
		String(s.Username).
		I8(int8(s.UTCOffset)).
		U8(uint8(s.Geo.CountryCode)).
		U8(uint8(s.Privileges)).
		F32(s.Geo.Lon).
		F32(s.Geo.Lat).
		I32(rankOf(s))
	return w.Finish(packet.SRVUserPresence)
}

// EncodeStats builds a SRV_USER_STATS frame for s using its current
// mode's stats. Accuracy on the wire is stored/100.
func EncodeStats(s *Session) []byte {
	stats := s.Stats[s.Status.Mode]
	w := packet.NewWriter()
	w.I32(s.UserID).
		U8(uint8(s.Status.Action)).
		String(s.Status.ActionText).
		String(s.Status.BeatmapMD5).
		U32(s.Status.Mods).
		U8(uint8(s.Status.Mode)).
		I32(s.Status.BeatmapID).
		U64(stats.RankedScore).
		F32(float32(stats.Accuracy) / 100).
		U32(stats.Playcount).
		U64(stats.TotalScore).
		I32(rankOf(s)).
		I16(int16(stats.PP))
	return w.Finish(packet.SRVUserStats)
}

func rankOf(s *Session) int32 {
	if stats := s.Stats[s.Status.Mode]; stats != nil {
		return stats.Rank
	}
	return 0
}
