// Package reconcile merges a locally cached message sequence with a
// server-fetched one into a single deduplicated, status-resolved log.
// The merge is pure and idempotent; it is the system's actual
// durability mechanism — the live relay is only best-effort.
package reconcile

import (
	"sort"

	"chat-core/pkg/models"
)

// Reconcile merges local and remote message sequences. Entries are
// keyed by message id; on collision the status resolves by rank (read >
// delivered > sent) unless the lower-ranked side carries a strictly
// later timestamp, in which case the later write wins. The timestamp
// resolves to the max of both sides and every other field takes the
// remote value as authoritative.
//
// Entries without an id are discarded: ids are assigned client-side
// before transmission, so an id-less entry can only be corrupt cache
// data. Entries with no text and no attachments that are not marked
// deleted are discarded for the same reason.
func Reconcile(local, remote []models.Message) []models.Message {
	merged := make(map[string]models.Message, len(local)+len(remote))

	for _, m := range local {
		if m.ID == "" {
			continue
		}
		merged[m.ID] = scrub(m)
	}

	for _, r := range remote {
		if r.ID == "" {
			continue
		}
		l, ok := merged[r.ID]
		if !ok {
			merged[r.ID] = scrub(r)
			continue
		}
		merged[r.ID] = Merge(l, r)
	}

	out := make([]models.Message, 0, len(merged))
	for _, m := range merged {
		if m.Empty() && !m.IsDeleted {
			continue
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Merge resolves a single id collision between a local and a remote
// copy of the same logical message.
func Merge(local, remote models.Message) models.Message {
	out := remote
	out.Status = resolveStatus(local, remote)
	if local.Timestamp > out.Timestamp {
		out.Timestamp = local.Timestamp
	}
	if local.IsDeleted || remote.IsDeleted {
		out.IsDeleted = true
		if out.DeletedAt == 0 {
			out.DeletedAt = local.DeletedAt
		}
	}
	return scrub(out)
}

// resolveStatus applies last-writer-wins with a status-monotonicity
// bias: the higher rank wins unless the lower-ranked copy was written
// strictly later.
func resolveStatus(a, b models.Message) models.Status {
	if a.Status == b.Status {
		return a.Status
	}
	hi, lo := a, b
	if b.Status.Rank() > a.Status.Rank() {
		hi, lo = b, a
	}
	if lo.Timestamp > hi.Timestamp {
		return lo.Status
	}
	return hi.Status
}

// scrub enforces the soft-delete invariant: once deleted, the content
// is gone for every reader regardless of what the stored copy says.
func scrub(m models.Message) models.Message {
	if m.IsDeleted {
		m.Text = ""
		m.Attachments = nil
	}
	return m
}
