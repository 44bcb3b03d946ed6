package browse

// Page slices a full result set into a bounded page. It is purely a view: no
// driver calls are made. The offset is clamped to [0, total]; a limit of
// zero or above maxLimit falls back to maxLimit. NextOffset is set only when
// nodes remain past the page. A page over a partial full result stays
// partial even when it holds every node.
func Page(full *Result, offset, limit, maxLimit int) *Result {
	if maxLimit <= 0 {
		maxLimit = DefaultLimits().PageLimit
	}
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}

	total := len(full.Nodes)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	page := &Result{
		Nodes:          append([]Node(nil), full.Nodes[offset:end]...),
		IsPartial:      full.IsPartial || end < total,
		TotalAvailable: total,
		ActualDepth:    full.ActualDepth,
		Note:           full.Note,
		Explored:       full.Explored,
		Expandable:     full.Expandable,
		Stats:          full.Stats,
	}
	if end < total {
		next := end
		page.NextOffset = &next
	}
	return page
}
