// Package mphf builds a minimal perfect hash function over a fixed key
// set: for N distinct keys it assigns each one a unique slot in [0, N),
// with O(N) table size and O(1) evaluation (spec.md §4.3: "index lookup;
// no runtime boolean algebra", and the key table must verify a foreign
// key is rejected rather than silently aliased to a real slot).
//
// The construction follows the "hash-and-displace" family (CHD): keys are
// bucketed by a cheap first-level hash, buckets are processed largest
// first, and each bucket is assigned a per-bucket displacement value that
// resolves it into free slots of the final table with no collisions.
package mphf

import (
	"fmt"
	"sort"
)

// fnvOffset and fnvPrime are the FNV-1a offset basis / prime pair, reused
// across levels with a per-level displacement folded in.
const (
	fnvOffset = 14695981039346656037
	fnvPrime  = 1099511628211
)

// hash runs FNV-1a over key, folds in the displacement d, and finishes with
// a 64-bit avalanche mix so every output bit depends on every bit of d.
func hash(key []byte, d uint64) uint64 {
	h := uint64(fnvOffset)
	for _, b := range key {
		h ^= uint64(b)
		h *= fnvPrime
	}
	h ^= d * 0x9e3779b97f4a7c15
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

// Table is a constructed minimal perfect hash over a fixed key set, plus
// the verification keys needed to reject lookups for foreign keys.
type Table struct {
	n          int
	displace   []uint32 // per-bucket displacement, indexed by bucket
	bucketOf   func(h uint64) int
	verifyKeys [][]byte // verifyKeys[slot] is the key that owns slot
}

// numBuckets picks a bucket count proportional to N; CHD converges fast
// with roughly N/4 buckets for modest N (the .krx key table tops out in
// the low thousands per spec.md's script size limits).
func numBuckets(n int) int {
	b := n/4 + 1
	if b < 1 {
		b = 1
	}
	return b
}

// Build constructs a minimal perfect hash over keys. Keys must be
// pairwise distinct; Build returns an error if a displacement search
// fails after a bounded number of attempts (astronomically unlikely for
// the FNV-1a-based hash family used here, but the error path exists so
// callers never get stuck retrying).
func Build(keys [][]byte) (*Table, error) {
	n := len(keys)
	if n == 0 {
		return &Table{n: 0}, nil
	}

	nb := numBuckets(n)
	buckets := make([][]int, nb)
	for i, k := range keys {
		b := int(hash(k, 0) % uint64(nb))
		buckets[b] = append(buckets[b], i)
	}

	order := make([]int, nb)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return len(buckets[order[i]]) > len(buckets[order[j]])
	})

	slotOwner := make([]int, n) // slot -> key index, -1 if free
	for i := range slotOwner {
		slotOwner[i] = -1
	}
	displace := make([]uint32, nb)

	const maxDisplacement = 1 << 20
	for _, b := range order {
		bucket := buckets[b]
		if len(bucket) == 0 {
			continue
		}
		found := false
		for d := uint32(0); d < maxDisplacement; d++ {
			slots := make([]int, len(bucket))
			collision := false
			used := make(map[int]bool, len(bucket))
			for i, keyIdx := range bucket {
				slot := int(hash(keys[keyIdx], uint64(d)) % uint64(n))
				if slotOwner[slot] != -1 || used[slot] {
					collision = true
					break
				}
				used[slot] = true
				slots[i] = slot
			}
			if collision {
				continue
			}
			for i, keyIdx := range bucket {
				slotOwner[slots[i]] = keyIdx
			}
			displace[b] = d
			found = true
			break
		}
		if !found {
			return nil, fmt.Errorf("mphf: could not displace bucket of size %d after %d attempts", len(bucket), maxDisplacement)
		}
	}

	verifyKeys := make([][]byte, n)
	for slot, keyIdx := range slotOwner {
		if keyIdx >= 0 {
			verifyKeys[slot] = keys[keyIdx]
		}
	}

	t := &Table{n: n, displace: displace, verifyKeys: verifyKeys}
	t.bucketOf = func(h uint64) int { return int(h % uint64(nb)) }
	return t, nil
}

// Lookup returns the slot assigned to key, and true if key was part of
// the original key set. A foreign key lands on a slot whose owner doesn't
// match (verification step), so Lookup reports false instead of aliasing
// it to a real slot.
func (t *Table) Lookup(key []byte) (int, bool) {
	if t.n == 0 {
		return 0, false
	}
	b := t.bucketOf(hash(key, 0))
	d := t.displace[b]
	slot := int(hash(key, uint64(d)) % uint64(t.n))
	owner := t.verifyKeys[slot]
	if owner == nil || !equalBytes(owner, key) {
		return 0, false
	}
	return slot, true
}

// Len returns the number of keys in the table (equivalently, the slot
// count: the hash is minimal).
func (t *Table) Len() int { return t.n }

// Displacements returns the per-bucket displacement table, for
// serialization into the .krx key table.
func (t *Table) Displacements() []uint32 {
	out := make([]uint32, len(t.displace))
	copy(out, t.displace)
	return out
}

// NumBuckets reports the bucket count used by the construction, needed to
// reconstruct bucketOf after deserializing Displacements.
func (t *Table) NumBuckets() int {
	return len(t.displace)
}

// FromDisplacements rebuilds a lookup-only Table from a previously built
// displacement table and the ordered key list (slot i owns keys[i] after
// construction order is applied) — used when loading a .krx file where
// the MPHF was built at compile time and only needs to be evaluated at
// load time.
func FromDisplacements(displace []uint32, verifyKeys [][]byte) *Table {
	n := len(verifyKeys)
	nb := len(displace)
	t := &Table{n: n, displace: displace, verifyKeys: verifyKeys}
	t.bucketOf = func(h uint64) int { return int(h % uint64(nb)) }
	return t
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
