package models

import "sort"

// SessionGraph is a session loaded together with its teams and members.
// Records reference each other by id only; lookups go through the helpers below.
type SessionGraph struct {
	Session *GameSession  `json:"session"`
	Teams   []*Team       `json:"teams"`
	Members []*TeamMember `json:"members"`
}

// Normalize orders teams by slot and members by join order.
func (g *SessionGraph) Normalize() {
	sort.SliceStable(g.Teams, func(i, j int) bool { return g.Teams[i].Slot < g.Teams[j].Slot })
	sort.SliceStable(g.Members, func(i, j int) bool { return g.Members[i].JoinOrder < g.Members[j].JoinOrder })
}

func (g *SessionGraph) Team(id int64) *Team {
	for _, t := range g.Teams {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (g *SessionGraph) TeamBySlot(slot int) *Team {
	for _, t := range g.Teams {
		if t.Slot == slot {
			return t
		}
	}
	return nil
}

// Other returns the opposing team.
func (g *SessionGraph) Other(teamID int64) *Team {
	for _, t := range g.Teams {
		if t.ID != teamID {
			return t
		}
	}
	return nil
}

func (g *SessionGraph) MemberByUser(userID string) *TeamMember {
	for _, m := range g.Members {
		if m.UserID == userID {
			return m
		}
	}
	return nil
}

// MembersOf returns a team's members in join order.
func (g *SessionGraph) MembersOf(teamID int64) []*TeamMember {
	var out []*TeamMember
	for _, m := range g.Members {
		if m.TeamID == teamID {
			out = append(out, m)
		}
	}
	return out
}

// ActiveMembers returns a team's active members in join order.
func (g *SessionGraph) ActiveMembers(teamID int64) []*TeamMember {
	var out []*TeamMember
	for _, m := range g.Members {
		if m.TeamID == teamID && m.Active {
			out = append(out, m)
		}
	}
	return out
}

// NextJoinOrder returns the join order for the next member to join.
func (g *SessionGraph) NextJoinOrder() int {
	max := 0
	for _, m := range g.Members {
		if m.JoinOrder > max {
			max = m.JoinOrder
		}
	}
	return max + 1
}
