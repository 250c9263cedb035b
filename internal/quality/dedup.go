package quality

// Deduplicator resolves redundant observations of one airframe within a
// batch. Multiple sensors can report the same icao24 at overlapping
// timestamps; exactly one strategy is applied to the whole batch.
type Deduplicator struct {
	strategy     DedupStrategy
	completeness *CompletenessValidator
}

// NewDeduplicator builds the dedup stage. The completeness validator backs
// the keep-most-complete strategy.
func NewDeduplicator(strategy DedupStrategy, completeness *CompletenessValidator) *Deduplicator {
	return &Deduplicator{strategy: strategy, completeness: completeness}
}

// DedupResult is the outcome of the dedup stage for one processed batch.
type DedupResult struct {
	// Kept preserves the batch order of the records that continue through
	// the pipeline. Under keep-all-flag-duplicates this is every record.
	Kept []RawStateVector
	// DuplicateIdx marks indices into Kept that are duplicates (only
	// populated by keep-all-flag-duplicates).
	DuplicateIdx map[int]bool
	// Removed counts records dropped by the removing strategies.
	Removed int
}

// Deduplicate applies the configured strategy to one batch.
func (d *Deduplicator) Deduplicate(batch []RawStateVector) DedupResult {
	res := DedupResult{DuplicateIdx: make(map[int]bool)}
	if len(batch) == 0 {
		return res
	}

	// Records without an identifier cannot be grouped; they pass through
	// untouched and the quarantine decision deals with them.
	groups := make(map[string][]int, len(batch))
	for i, rec := range batch {
		if rec.ICAO24 == "" {
			continue
		}
		groups[rec.ICAO24] = append(groups[rec.ICAO24], i)
	}

	if d.strategy == DedupKeepAllFlag {
		res.Kept = batch
		for _, idxs := range groups {
			if len(idxs) < 2 {
				continue
			}
			winner := d.pickLatest(batch, idxs)
			for _, i := range idxs {
				if i != winner {
					res.DuplicateIdx[i] = true
				}
			}
		}
		return res
	}

	drop := make(map[int]bool)
	for _, idxs := range groups {
		if len(idxs) < 2 {
			continue
		}
		var winner int
		switch d.strategy {
		case DedupKeepLatest:
			winner = d.pickLatest(batch, idxs)
		default: // keep-most-complete
			winner = d.pickMostComplete(batch, idxs)
		}
		for _, i := range idxs {
			if i != winner {
				drop[i] = true
			}
		}
	}

	res.Kept = make([]RawStateVector, 0, len(batch)-len(drop))
	for i, rec := range batch {
		if drop[i] {
			res.Removed++
			continue
		}
		res.Kept = append(res.Kept, rec)
	}
	return res
}

// pickLatest returns the index with the highest last_contact; ties and
// missing timestamps resolve to the earliest batch position for determinism.
func (d *Deduplicator) pickLatest(batch []RawStateVector, idxs []int) int {
	winner := idxs[0]
	var winnerContact int64 = -1
	if batch[winner].LastContact != nil {
		winnerContact = *batch[winner].LastContact
	}
	for _, i := range idxs[1:] {
		var contact int64 = -1
		if batch[i].LastContact != nil {
			contact = *batch[i].LastContact
		}
		if contact > winnerContact {
			winner = i
			winnerContact = contact
		}
	}
	return winner
}

// pickMostComplete returns the index with the highest completeness score,
// ties broken by latest last_contact, then earliest batch position.
func (d *Deduplicator) pickMostComplete(batch []RawStateVector, idxs []int) int {
	winner := idxs[0]
	winnerScore := d.completeness.Score(&batch[winner])
	for _, i := range idxs[1:] {
		score := d.completeness.Score(&batch[i])
		if score > winnerScore {
			winner = i
			winnerScore = score
			continue
		}
		if score == winnerScore && laterContact(batch, i, winner) {
			winner = i
		}
	}
	return winner
}

func laterContact(batch []RawStateVector, a, b int) bool {
	var ca, cb int64 = -1, -1
	if batch[a].LastContact != nil {
		ca = *batch[a].LastContact
	}
	if batch[b].LastContact != nil {
		cb = *batch[b].LastContact
	}
	return ca > cb
}
