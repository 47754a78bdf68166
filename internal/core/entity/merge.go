package entity

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
)

// Side identifies which copy of a record won a comparison.
type Side int

const (
	SideLocal Side = iota
	SideRemote
)

func (s Side) String() string {
	if s == SideRemote {
		return "remote"
	}
	return "local"
}

// Resolve compares two copies of the same record. The strictly newer
// UpdatedAt wins; ties favor the local copy.
func Resolve(local, remote Document) Side {
	if remote.UpdatedAt.After(local.UpdatedAt) {
		return SideRemote
	}
	return SideLocal
}

// DeleteGuard reports whether a local record may be removed because the
// remote store no longer has it. A nil guard allows every deletion.
type DeleteGuard func(Document) bool

// NeverDelete refuses every remote deletion.
func NeverDelete(Document) bool { return false }

// MergeResult is the outcome of merging a full remote collection into local.
type MergeResult struct {
	// Merged is the collection to write back locally, ordered by CreatedAt then ID.
	Merged []Document
	// Push holds local copies the remote is missing or holds an older version of.
	Push []Document
	// Removed holds ids dropped locally because the remote deleted them.
	Removed []string
	// Preserved holds ids the remote deleted but the guard kept. They are also in Push.
	Preserved []string
}

// Merge reconciles a local collection with a freshly scanned remote one.
//
//   - present on both sides: Resolve decides; a local winner that differs is pushed
//   - remote only: adopted
//   - local only, never seen remotely: created offline, kept and pushed
//   - local only, seen remotely before: deleted remotely; removed if guard allows,
//     otherwise kept, marked unseen and pushed
func Merge(local, remote []Document, guard DeleteGuard) MergeResult {
	if guard == nil {
		guard = func(Document) bool { return true }
	}

	remoteByID := make(map[string]Document, len(remote))
	for _, r := range remote {
		remoteByID[r.ID] = r
	}

	var res MergeResult
	seen := make(map[string]struct{}, len(local))

	for _, l := range local {
		seen[l.ID] = struct{}{}
		r, onRemote := remoteByID[l.ID]

		switch {
		case onRemote:
			if Resolve(l, r) == SideRemote {
				r.RemoteSeen = true
				res.Merged = append(res.Merged, r)
				continue
			}
			l.RemoteSeen = true
			res.Merged = append(res.Merged, l)
			if l.UpdatedAt.After(r.UpdatedAt) || !SameContent(l.Data, r.Data) {
				res.Push = append(res.Push, l)
			}

		case !l.RemoteSeen:
			res.Merged = append(res.Merged, l)
			res.Push = append(res.Push, l)

		case guard(l):
			res.Removed = append(res.Removed, l.ID)

		default:
			l.RemoteSeen = false
			res.Merged = append(res.Merged, l)
			res.Push = append(res.Push, l)
			res.Preserved = append(res.Preserved, l.ID)
		}
	}

	for _, r := range remote {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		r.RemoteSeen = true
		res.Merged = append(res.Merged, r)
	}

	SortDocuments(res.Merged)
	return res
}

// SortDocuments orders documents by CreatedAt, then ID.
func SortDocuments(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
}

// SameContent compares two JSON payloads semantically (key order and
// whitespace are ignored). Stores may reformat JSON, e.g. Postgres jsonb.
func SameContent(a, b json.RawMessage) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

// MergeFields overlays the top-level fields of patch onto base. It is the
// field-level merge a remote store applies to a batched upsert, so two tills
// writing disjoint fields of one record keep both changes.
func MergeFields(base, patch json.RawMessage) (json.RawMessage, error) {
	if len(base) == 0 {
		return patch, nil
	}
	var b, p map[string]json.RawMessage
	if err := json.Unmarshal(base, &b); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(patch, &p); err != nil {
		return nil, err
	}
	if b == nil {
		b = make(map[string]json.RawMessage, len(p))
	}
	for k, v := range p {
		b[k] = v
	}
	return json.Marshal(b)
}
