// Package krx implements the `.krx` binary profile format (spec.md §4.3):
// a compiled Profile serialized with a fixed little-endian header, an
// MPHF-indexed base-key table, and a condition truth table (DFA) per
// conditional group. Decode rebuilds each group's Condition from its truth
// table; the evaluator evaluates that rebuilt Condition, not the packed
// table.
package krx

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"github.com/keyrx-dev/krx/internal/keycode"
	"github.com/keyrx-dev/krx/internal/krxerr"
	"github.com/keyrx-dev/krx/internal/krx/mphf"
	"github.com/keyrx-dev/krx/internal/mapping"
)

var magic = [8]byte{'K', 'E', 'Y', 'R', 'X', 0, 0, 0}

const formatVersion uint32 = 1

// header is the fixed-size on-disk file header. Every offset is relative
// to the start of the file; every size is in bytes unless noted.
type header struct {
	Magic   [8]byte
	Version uint32
	Flags   uint32

	BaseKeyCount    uint32
	MPHFBucketCount uint32
	GroupCount      uint32

	BaseKeyTableOff  uint32
	MPHFDisplaceOff  uint32
	BaseRuleTableOff uint32

	AtomTableOff uint32
	AtomTableLen uint32

	DFATableOff uint32
	DFATableLen uint32

	GroupRuleTableOff uint32
	GroupRuleTableLen uint32

	GroupHeaderTableOff uint32

	StringTableOff uint32
	StringTableLen uint32

	Checksum uint32
}

const headerSize = 8 + 4*18 // Magic + 18 uint32 fields

// wireRule is the fixed-size on-disk encoding of mapping.Rule.
type wireRule struct {
	Input          uint16
	Kind           uint8
	Output         uint16
	Mods           uint8
	Modifier       uint8
	Lock           uint8
	TapThresholdMs uint32
}

const wireRuleSize = 2 + 1 + 2 + 1 + 1 + 1 + 4

func encodeRule(r mapping.Rule) wireRule {
	return wireRule{
		Input:          uint16(r.Input),
		Kind:           uint8(r.Kind),
		Output:         uint16(r.Output),
		Mods:           uint8(r.Mods),
		Modifier:       uint8(r.Modifier),
		Lock:           uint8(r.Lock),
		TapThresholdMs: r.TapThresholdMs,
	}
}

func decodeRule(w wireRule) mapping.Rule {
	return mapping.Rule{
		Input:          keycode.Code(w.Input),
		Kind:           mapping.Kind(w.Kind),
		Output:         keycode.Code(w.Output),
		Mods:           mapping.ModifierFlags(w.Mods),
		Modifier:       mapping.ModifierID(w.Modifier),
		Lock:           mapping.LockID(w.Lock),
		TapThresholdMs: w.TapThresholdMs,
	}
}

// wireGroupHeader is the fixed-size on-disk encoding of a ConditionGroup's
// metadata; its rules and condition atoms live in shared tables.
type wireGroupHeader struct {
	PatternOff uint32
	PatternLen uint32

	AtomOff   uint32
	AtomCount uint32

	DFAOff uint32
	DFALen uint32

	RuleOff   uint32
	RuleCount uint32
}

const wireGroupHeaderSize = 4 * 8

func keyBytes(c keycode.Code) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(c))
	return b
}

// Encode serializes a compiled Profile to the .krx binary format.
func Encode(p *mapping.Profile) ([]byte, error) {
	baseKeys := make([][]byte, len(p.Base))
	baseRules := make([]wireRule, len(p.Base))
	for i, r := range p.Base {
		baseKeys[i] = keyBytes(r.Input)
	}

	table, err := mphf.Build(baseKeys)
	if err != nil {
		return nil, err
	}
	// Re-order base rules into MPHF slot order so BaseKeyTable[slot] and
	// BaseRuleTable[slot] agree.
	orderedKeys := make([][]byte, len(p.Base))
	for _, r := range p.Base {
		slot, ok := table.Lookup(keyBytes(r.Input))
		if !ok {
			return nil, krxerr.ErrCorruptIndex
		}
		orderedKeys[slot] = keyBytes(r.Input)
		baseRules[slot] = encodeRule(r)
	}

	var baseKeyTable bytes.Buffer
	for _, k := range orderedKeys {
		baseKeyTable.Write(k)
	}

	var baseRuleTable bytes.Buffer
	for _, r := range baseRules {
		if err := binary.Write(&baseRuleTable, binary.LittleEndian, r); err != nil {
			return nil, err
		}
	}

	var displaceTable bytes.Buffer
	for _, d := range table.Displacements() {
		if err := binary.Write(&displaceTable, binary.LittleEndian, d); err != nil {
			return nil, err
		}
	}

	var atomTable, dfaTable, groupRuleTable, groupHeaderTable, stringTable bytes.Buffer
	for _, g := range p.Groups {
		patternOff := uint32(stringTable.Len())
		pattern := []byte(g.DevicePattern.String())
		stringTable.Write(pattern)

		atoms := g.Condition.Atoms()
		atomOff := uint32(atomTable.Len())
		for _, a := range atoms {
			atomTable.WriteByte(byte(a.Kind))
			atomTable.WriteByte(a.ID)
		}

		rows := 1 << len(atoms)
		dfaBytes := (rows + 7) / 8
		dfa := make([]byte, dfaBytes)
		for row := 0; row < rows; row++ {
			var mods, locks mapping.Bitset256
			for bit, a := range atoms {
				if row&(1<<bit) == 0 {
					continue
				}
				if a.Kind == mapping.AtomModifier {
					mods.Set(a.ID)
				} else {
					locks.Set(a.ID)
				}
			}
			if g.Condition.Eval(mods, locks) {
				dfa[row/8] |= 1 << uint(row%8)
			}
		}
		dfaOff := uint32(dfaTable.Len())
		dfaTable.Write(dfa)

		ruleOff := uint32(groupRuleTable.Len() / wireRuleSize)
		for _, r := range g.Rules {
			if err := binary.Write(&groupRuleTable, binary.LittleEndian, encodeRule(r)); err != nil {
				return nil, err
			}
		}

		gh := wireGroupHeader{
			PatternOff: patternOff,
			PatternLen: uint32(len(pattern)),
			AtomOff:    atomOff,
			AtomCount:  uint32(len(atoms)),
			DFAOff:     dfaOff,
			DFALen:     uint32(len(dfa)),
			RuleOff:    ruleOff,
			RuleCount:  uint32(len(g.Rules)),
		}
		if err := binary.Write(&groupHeaderTable, binary.LittleEndian, gh); err != nil {
			return nil, err
		}
	}

	h := header{
		Magic:   magic,
		Version: formatVersion,

		BaseKeyCount:    uint32(len(p.Base)),
		MPHFBucketCount: uint32(table.NumBuckets()),
		GroupCount:      uint32(len(p.Groups)),
	}

	off := uint32(headerSize)
	h.BaseKeyTableOff = off
	off += uint32(baseKeyTable.Len())
	h.MPHFDisplaceOff = off
	off += uint32(displaceTable.Len())
	h.BaseRuleTableOff = off
	off += uint32(baseRuleTable.Len())
	h.AtomTableOff = off
	h.AtomTableLen = uint32(atomTable.Len())
	off += h.AtomTableLen
	h.DFATableOff = off
	h.DFATableLen = uint32(dfaTable.Len())
	off += h.DFATableLen
	h.GroupRuleTableOff = off
	h.GroupRuleTableLen = uint32(groupRuleTable.Len())
	off += h.GroupRuleTableLen
	h.GroupHeaderTableOff = off
	off += uint32(groupHeaderTable.Len())
	h.StringTableOff = off
	h.StringTableLen = uint32(stringTable.Len())

	var payload bytes.Buffer
	payload.Write(baseKeyTable.Bytes())
	payload.Write(displaceTable.Bytes())
	payload.Write(baseRuleTable.Bytes())
	payload.Write(atomTable.Bytes())
	payload.Write(dfaTable.Bytes())
	payload.Write(groupRuleTable.Bytes())
	payload.Write(groupHeaderTable.Bytes())
	payload.Write(stringTable.Bytes())
	h.Checksum = crc32.ChecksumIEEE(payload.Bytes())

	var out bytes.Buffer
	if err := binary.Write(&out, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	out.Write(payload.Bytes())
	return out.Bytes(), nil
}

// Decode parses a .krx file into a compiled Profile.
func Decode(data []byte) (*mapping.Profile, error) {
	if len(data) < headerSize {
		return nil, krxerr.ErrCorruptIndex
	}
	var h header
	if err := binary.Read(bytes.NewReader(data[:headerSize]), binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	if h.Magic != magic || h.Version != formatVersion {
		return nil, krxerr.ErrIncompatibleFormat
	}
	if crc32.ChecksumIEEE(data[headerSize:]) != h.Checksum {
		return nil, krxerr.ErrChecksumMismatch
	}

	base := make([]mapping.Rule, h.BaseKeyCount)
	for slot := uint32(0); slot < h.BaseKeyCount; slot++ {
		off := h.BaseRuleTableOff + slot*wireRuleSize
		var w wireRule
		if err := binary.Read(bytes.NewReader(data[off:off+wireRuleSize]), binary.LittleEndian, &w); err != nil {
			return nil, err
		}
		base[slot] = decodeRule(w)
	}

	groups := make([]mapping.ConditionGroup, h.GroupCount)
	for i := uint32(0); i < h.GroupCount; i++ {
		off := h.GroupHeaderTableOff + i*wireGroupHeaderSize
		var gh wireGroupHeader
		if err := binary.Read(bytes.NewReader(data[off:off+wireGroupHeaderSize]), binary.LittleEndian, &gh); err != nil {
			return nil, err
		}

		patternBytes := data[h.StringTableOff+gh.PatternOff : h.StringTableOff+gh.PatternOff+gh.PatternLen]
		glob, err := mapping.CompileGlob(string(patternBytes))
		if err != nil {
			return nil, err
		}

		atoms := make([]mapping.Atom, gh.AtomCount)
		for a := uint32(0); a < gh.AtomCount; a++ {
			off := h.AtomTableOff + gh.AtomOff + a*2
			atoms[a] = mapping.Atom{Kind: mapping.AtomKind(data[off]), ID: data[off+1]}
		}
		dfa := data[h.DFATableOff+gh.DFAOff : h.DFATableOff+gh.DFAOff+gh.DFALen]
		cond := conditionFromDFA(atoms, dfa)

		rules := make([]mapping.Rule, gh.RuleCount)
		for r := uint32(0); r < gh.RuleCount; r++ {
			off := h.GroupRuleTableOff + (gh.RuleOff+r)*wireRuleSize
			var w wireRule
			if err := binary.Read(bytes.NewReader(data[off:off+wireRuleSize]), binary.LittleEndian, &w); err != nil {
				return nil, err
			}
			rules[r] = decodeRule(w)
		}

		groups[i] = mapping.ConditionGroup{DevicePattern: glob, Condition: cond, Rules: rules}
	}

	return &mapping.Profile{Base: base, Groups: groups}, nil
}

// conditionFromDFA rebuilds a Condition whose Eval reproduces the decoded
// truth table exactly: an OR of ANDs over the rows marked true, one
// conjunct per atom (negated for a 0 bit). The decoded Profile carries
// this tree, so the runtime evaluator walks it with Condition.Eval; the
// packed table itself is not consulted after Decode.
func conditionFromDFA(atoms []mapping.Atom, dfa []byte) mapping.Condition {
	if len(atoms) == 0 {
		// A single-row table: And() is vacuously true, Or() vacuously false.
		if dfa[0]&1 != 0 {
			return mapping.And()
		}
		return mapping.Or()
	}

	rows := 1 << len(atoms)
	var disjuncts []mapping.Condition
	for row := 0; row < rows; row++ {
		if dfa[row/8]&(1<<uint(row%8)) == 0 {
			continue
		}
		conjuncts := make([]mapping.Condition, len(atoms))
		for bit, a := range atoms {
			leaf := mapping.AtomCond(a)
			if row&(1<<bit) == 0 {
				leaf = mapping.Not(leaf)
			}
			conjuncts[bit] = leaf
		}
		disjuncts = append(disjuncts, mapping.And(conjuncts...))
	}
	if len(disjuncts) == 0 {
		return mapping.Or()
	}
	return mapping.Or(disjuncts...)
}

// EvaluateDFA looks up the truth table row for atoms directly from the
// packed DFA bytes: a single index computation and bit test, no boolean
// algebra. The runtime evaluator does not call it; it evaluates the
// Condition rebuilt by conditionFromDFA.
func EvaluateDFA(atoms []mapping.Atom, dfa []byte, mods, locks mapping.Bitset256) bool {
	row := 0
	for bit, a := range atoms {
		if a.Active(mods, locks) {
			row |= 1 << bit
		}
	}
	return dfa[row/8]&(1<<uint(row%8)) != 0
}
