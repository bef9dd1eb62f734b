package engine

import (
	"github.com/avvvet/wordclash-services/internal/gamesvc/models"
)

// NextPlayer picks who plays after current. Turns alternate to the other team
// whenever it has an active member, each team resuming after the member it
// last sent. A team without a cursor starts from its first active member.
// With no current player the first active member of the lowest slot plays.
// It returns nil when nobody is active.
func NextPlayer(g *models.SessionGraph, current string) *models.TeamMember {
	var cur *models.TeamMember
	if current != "" {
		cur = g.MemberByUser(current)
	}

	if cur == nil {
		for _, t := range g.Teams {
			if active := g.ActiveMembers(t.ID); len(active) > 0 {
				return active[0]
			}
		}
		return nil
	}

	if other := g.Other(cur.TeamID); other != nil {
		if active := g.ActiveMembers(other.ID); len(active) > 0 {
			return after(active, g.MemberByUser(other.LastPlayer))
		}
	}
	return after(g.ActiveMembers(cur.TeamID), cur)
}

// after returns the first member following prev in join order, wrapping around.
func after(active []*models.TeamMember, prev *models.TeamMember) *models.TeamMember {
	if len(active) == 0 {
		return nil
	}
	if prev == nil {
		return active[0]
	}
	for _, m := range active {
		if m.JoinOrder > prev.JoinOrder {
			return m
		}
	}
	return active[0]
}
