package appstore

// QualityOf derives the data-quality tag from a completeness heuristic
// over the four critical fields: icon, rating signal, description and
// developer. 0 missing -> RAW, 1 -> CLEANED, 2 or more -> FLAGGED.
func QualityOf(p AppPayload) QualityTag {
	missing := 0
	if !p.IconURL.Valid {
		missing++
	}
	if !p.Score.Valid && !p.RatingCount.Valid {
		missing++
	}
	if p.Description == "" || p.Description == NotAvailable {
		missing++
	}
	if p.Developer == "" || p.Developer == NotAvailable {
		missing++
	}
	switch {
	case missing == 0:
		return QualityRaw
	case missing == 1:
		return QualityCleaned
	default:
		return QualityFlagged
	}
}
