package migrate

// NextGroup returns the first group, in manifest order, that is not yet
// finished. It returns false once every group is finished, which is the
// terminal condition of the whole migration.
func NextGroup(groups []GroupRef, progress Progress) (GroupRef, bool) {
	for _, g := range groups {
		if !progress.FinishedGroups.Has(g.ID) {
			return g, true
		}
	}
	return GroupRef{}, false
}

// Remaining lists the unfinished groups in manifest order.
func Remaining(groups []GroupRef, progress Progress) []GroupRef {
	var out []GroupRef
	for _, g := range groups {
		if !progress.FinishedGroups.Has(g.ID) {
			out = append(out, g)
		}
	}
	return out
}

func IsComplete(groups []GroupRef, progress Progress) bool {
	_, ok := NextGroup(groups, progress)
	return !ok
}

// FindGroup looks a group up by id.
func FindGroup(groups []GroupRef, id string) (GroupRef, bool) {
	for _, g := range groups {
		if g.ID == id {
			return g, true
		}
	}
	return GroupRef{}, false
}
