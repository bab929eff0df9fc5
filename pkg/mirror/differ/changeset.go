package differ

import "sort"

// ChangeSet is the work needed to make one destination level match its
// source level. Every slice is sorted.
type ChangeSet struct {
	FoldersToRemove []string
	FoldersToCreate []string
	FilesToRemove   []string

	// FilesToSync holds every source file. Each is copied when absent from the
	// destination and otherwise compared first.
	FilesToSync []string
}

// Empty reports whether the change set has nothing to remove, create, or check.
func (c ChangeSet) Empty() bool {
	return len(c.FoldersToRemove) == 0 && len(c.FoldersToCreate) == 0 &&
		len(c.FilesToRemove) == 0 && len(c.FilesToSync) == 0
}

// Compute returns the set differences between a source and a destination
// listing of the same level. Destination entries that are neither folders
// nor files (broken symlinks, sockets, fifos) are removed as files unless the
// source holds a skipped entry of the same name.
func Compute(src, dst Listing) ChangeSet {
	filesToRemove := difference(dst.Files, src.Files)
	if stale := difference(dst.skippedNames(), src.skippedNames()); len(stale) > 0 {
		filesToRemove = append(filesToRemove, stale...)
		sort.Strings(filesToRemove)
	}

	return ChangeSet{
		FoldersToRemove: difference(dst.Folders, src.Folders),
		FoldersToCreate: difference(src.Folders, dst.Folders),
		FilesToRemove:   filesToRemove,
		FilesToSync:     append([]string(nil), src.Files...),
	}
}

// difference returns the names in a that are not in b. Both must be sorted.
func difference(a, b []string) []string {
	var out []string
	for _, name := range a {
		if !contains(b, name) {
			out = append(out, name)
		}
	}
	return out
}
