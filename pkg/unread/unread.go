// Package unread derives per-peer unread counts and the sidebar
// ordering from a reconciled message set. Both functions are pure; the
// caller recomputes whenever the reconciled set or the presence map
// changes.
package unread

import (
	"sort"
	"strings"

	"chat-core/pkg/models"
)

// Peer is one conversation partner as presented in the sidebar.
type Peer struct {
	ID          string
	DisplayName string
}

// Count returns how many messages addressed to self are not yet read,
// keyed by sender. Soft-deleted messages carry no readable content and
// are excluded.
func Count(msgs []models.Message, selfID string) map[string]int {
	counts := make(map[string]int)
	for _, m := range msgs {
		if m.To != selfID || m.IsDeleted {
			continue
		}
		if m.Status != models.StatusRead {
			counts[m.From]++
		}
	}
	return counts
}

// Order sorts peers for display: unread count descending, then online
// peers first, then display name ascending. The input slice is not
// modified.
func Order(peers []Peer, unread map[string]int, online map[string]bool) []Peer {
	out := make([]Peer, len(peers))
	copy(out, peers)

	sort.SliceStable(out, func(i, j int) bool {
		ui, uj := unread[out[i].ID], unread[out[j].ID]
		if ui != uj {
			return ui > uj
		}
		oi, oj := online[out[i].ID], online[out[j].ID]
		if oi != oj {
			return oi
		}
		return strings.ToLower(out[i].DisplayName) < strings.ToLower(out[j].DisplayName)
	})
	return out
}
