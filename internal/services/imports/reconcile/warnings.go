package reconcile

import (
	"strconv"

	"laneledger/internal/services/imports/domain"
)

// SummarizeWarnings collapses warnings sharing a record type and message.
// Groups keep the order of their first appearance; a group of one passes
// through unchanged, larger groups become one "multiple" entry suffixed " (xN)"
func SummarizeWarnings(ws []domain.Warning) []domain.Warning {
	type groupKey struct {
		t domain.RecordType
		m string
	}
	order := make([]groupKey, 0, len(ws))
	groups := make(map[groupKey][]domain.Warning, len(ws))
	for _, w := range ws {
		k := groupKey{w.RecordType, w.Message}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], w)
	}

	out := make([]domain.Warning, 0, len(order))
	for _, k := range order {
		g := groups[k]
		if len(g) == 1 {
			out = append(out, g[0])
			continue
		}
		out = append(out, domain.Warning{
			RecordType: k.t,
			RecordID:   domain.RecordIDMultiple,
			Message:    k.m + " (x" + strconv.Itoa(len(g)) + ")",
		})
	}
	return out
}

func warn(t domain.RecordType, id int64, hasID bool, msg string) domain.Warning {
	rid := "unknown"
	if hasID {
		rid = strconv.FormatInt(id, 10)
	}
	return domain.Warning{RecordType: t, RecordID: rid, Message: msg}
}
