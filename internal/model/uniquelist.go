package model

// UniqueList is an ordered sequence of ids holding each value at most
// once. It is the single canonical representation for the liked/reposted
// mirrors on a profile; repositories normalize through it instead of
// checking duplicates ad hoc at call sites.
type UniqueList []string

// Normalize returns a copy with duplicates removed, first occurrence wins.
func (l UniqueList) Normalize() UniqueList {
	if len(l) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(l))
	out := make(UniqueList, 0, len(l))
	for _, v := range l {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Contains reports whether v is present.
func (l UniqueList) Contains(v string) bool {
	for _, e := range l {
		if e == v {
			return true
		}
	}
	return false
}

// Append returns the list with v appended, unchanged if already present.
func (l UniqueList) Append(v string) UniqueList {
	if l.Contains(v) {
		return l
	}
	return append(l, v)
}

// Remove returns the list without v, order preserved.
func (l UniqueList) Remove(v string) UniqueList {
	out := l[:0:0]
	for _, e := range l {
		if e != v {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
