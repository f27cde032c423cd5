// Package app wires the core collaborators (registry, channel table,
// leaderboards, relation store, spectate manager, persistence) into
// the single shared value every request handler operates on, the way
// one struct through HTTP and gRPC handlers instead of reaching for
// package-level globals.
package app

import (
	"context"
	"log/slog"

	"github.com/onecho/banchod/internal/bancho/channel"
	"github.com/onecho/banchod/internal/bancho/leaderboard"
	"github.com/onecho/banchod/internal/bancho/model"
	"github.com/onecho/banchod/internal/bancho/registry"
	"github.com/onecho/banchod/internal/bancho/spectate"
	"github.com/onecho/banchod/internal/bancho/store"
	"github.com/onecho/banchod/pkg/config"
	"github.com/onecho/banchod/pkg/metrics"
	"github.com/onecho/banchod/pkg/ttyrec"
)

// State is the process-wide collection of live collaborators a
// connected session's request is dispatched against.
type State struct {
	Config   *config.BanchoConfig
	Logger   *slog.Logger
	Metrics  *metrics.Registry
	Store    *store.Store
	Registry *registry.Registry
	Channels *channel.Table
	Boards   *leaderboard.Indexes
	Spectate *spectate.Manager
	Bot      *model.Session
}

// New constructs a State with every collaborator initialised but not
// yet populated from persistence; call Bootstrap to seed it.
func New(cfg *config.BanchoConfig, logger *slog.Logger, m *metrics.Registry, st *store.Store, rec *ttyrec.Recorder) *State {
	channels := channel.NewTable()
	return &State{
		Config:   cfg,
		Logger:   logger,
		Metrics:  m,
		Store:    st,
		Registry: registry.New(logger),
		Channels: channels,
		Boards:   leaderboard.NewIndexes(),
		Spectate: spectate.NewManager(channels, logger).WithRecorder(rec),
		Bot:      model.NewBotSession(),
	}
}

// Bootstrap ensures the fixed #osu/#announce/#lobby channels, loads
// persisted channels, and seeds the leaderboards from every persisted
// stats row with a non-zero ranked score. The bot session is held in
// State.Bot and is not added to the Registry.
func (s *State) Bootstrap(ctx context.Context) error {
	s.Channels.Ensure("#osu", "Main channel", model.PrivPlayer, model.PrivPlayer, true)
	s.Channels.Ensure("#announce", "Announcements", model.PrivPlayer, model.PrivModerator, false)
	s.Channels.Ensure("#lobby", "Multiplayer lobby", model.PrivPlayer, model.PrivPlayer, false)

	rows, err := s.Store.Channels(ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		s.Channels.Ensure(row.Name, row.Topic, row.ReadPrivs, row.WritePrivs, row.AutoJoin)
	}

	users, err := s.Store.AllUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		stats, err := s.Store.StatsFor(ctx, u.ID)
		if err != nil {
			return err
		}
		for mode, st := range stats {
			if st.RankedScore > 0 {
				s.Boards.For(mode).Upsert(u.ID, st.RankedScore)
			}
		}
	}

	return nil
}
