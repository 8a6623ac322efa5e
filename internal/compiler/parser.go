package compiler

import (
	"strconv"

	"github.com/keyrx-dev/krx/internal/keycode"
	"github.com/keyrx-dev/krx/internal/mapping"
)

// MaxScriptBytes is the compile-time cap on script size (spec.md §4.4).
const MaxScriptBytes = 512 * 1024

// MaxCommands is the compile-time cap on the number of top-level commands
// a script may contain (spec.md §4.4).
const MaxCommands = 100000

// groupBuilder accumulates the rules for one when_start/when_end block
// (or the vacuous-true rules declared directly under device_start).
type groupBuilder struct {
	devicePattern mapping.Glob
	condition     mapping.Condition
	rules         []mapping.Rule
	line, column  int
}

// parser turns a token stream into a mapping.Profile, per the script
// grammar in spec.md §6.
type parser struct {
	lex *lexer
	tok token

	profile *mapping.Profile

	inDevice       bool
	devicePattern  mapping.Glob
	deviceImplicit *groupBuilder

	activeCond *groupBuilder

	commandCount int
}

// Compile parses src and returns the mapping.Profile it describes, or a
// *krxerr.CompileError (possibly wrapped) on the first failure.
func Compile(src string) (*mapping.Profile, error) {
	if len(src) > MaxScriptBytes {
		return nil, newSemanticError(0, 0, "script exceeds the maximum allowed size of 512 KB")
	}

	p := &parser{
		lex:           newLexer(src),
		profile:       &mapping.Profile{},
		devicePattern: mapping.Glob{Kind: mapping.GlobAll, Raw: "*"},
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	for p.tok.kind != tokEOF {
		if err := p.statement(); err != nil {
			return nil, err
		}
	}
	if p.inDevice {
		return nil, newSyntaxError(p.tok.line, p.tok.column, "device_start without a matching device_end")
	}
	if p.activeCond != nil {
		return nil, newSyntaxError(p.tok.line, p.tok.column, "when_start without a matching when_end")
	}
	if err := validateProfile(p.profile); err != nil {
		return nil, err
	}
	return p.profile, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	if p.tok.kind != kind {
		return token{}, newSyntaxError(p.tok.line, p.tok.column, "expected "+what)
	}
	tok := p.tok
	if err := p.advance(); err != nil {
		return token{}, err
	}
	return tok, nil
}

func (p *parser) expectIdent(name string) error {
	if p.tok.kind != tokIdent || p.tok.text != name {
		return newSyntaxError(p.tok.line, p.tok.column, "expected "+name)
	}
	return p.advance()
}

// statement parses one top-level command: device_start/device_end,
// when_start/when_end, map(...), or tap_hold(...).
func (p *parser) statement() error {
	if p.tok.kind != tokIdent {
		return newSyntaxError(p.tok.line, p.tok.column, "expected a command")
	}
	p.commandCount++
	if p.commandCount > MaxCommands {
		return newSemanticError(p.tok.line, p.tok.column, "script exceeds the maximum allowed command count")
	}

	switch p.tok.text {
	case "device_start":
		return p.deviceStart()
	case "device_end":
		return p.deviceEnd()
	case "when_start":
		return p.whenStart()
	case "when_end":
		return p.whenEnd()
	case "map":
		return p.mapStatement()
	case "tap_hold":
		return p.tapHoldStatement()
	default:
		return newSyntaxError(p.tok.line, p.tok.column, "unknown command "+p.tok.text)
	}
}

func (p *parser) deviceStart() error {
	line, col := p.tok.line, p.tok.column
	if p.inDevice {
		return newSyntaxError(line, col, "device_start cannot be nested inside another device_start")
	}
	if err := p.expectIdent("device_start"); err != nil {
		return err
	}
	if _, err := p.expect(tokLParen, "("); err != nil {
		return err
	}
	patTok, err := p.expect(tokString, "a device pattern string")
	if err != nil {
		return err
	}
	glob, compErr := mapping.CompileGlob(patTok.text)
	if compErr != nil {
		return newSemanticError(patTok.line, patTok.column, compErr.Error())
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return err
	}
	if _, err := p.expect(tokSemi, ";"); err != nil {
		return err
	}

	p.inDevice = true
	p.devicePattern = glob
	p.deviceImplicit = nil
	return nil
}

func (p *parser) deviceEnd() error {
	if !p.inDevice {
		return newSyntaxError(p.tok.line, p.tok.column, "device_end without a matching device_start")
	}
	if err := p.expectIdent("device_end"); err != nil {
		return err
	}
	if _, err := p.expect(tokLParen, "("); err != nil {
		return err
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return err
	}
	if _, err := p.expect(tokSemi, ";"); err != nil {
		return err
	}

	p.flushImplicit()
	p.inDevice = false
	p.devicePattern = mapping.Glob{Kind: mapping.GlobAll, Raw: "*"}
	return nil
}

func (p *parser) flushImplicit() {
	if p.deviceImplicit != nil && len(p.deviceImplicit.rules) > 0 {
		p.profile.Groups = append(p.profile.Groups, mapping.ConditionGroup{
			DevicePattern: p.deviceImplicit.devicePattern,
			Condition:     mapping.And(),
			Rules:         p.deviceImplicit.rules,
		})
	}
	p.deviceImplicit = nil
}

func (p *parser) whenStart() error {
	line, col := p.tok.line, p.tok.column
	if p.activeCond != nil {
		return newSyntaxError(line, col, "when_start cannot be nested inside another when_start")
	}
	if err := p.expectIdent("when_start"); err != nil {
		return err
	}
	if _, err := p.expect(tokLParen, "("); err != nil {
		return err
	}
	cond, err := p.parseCondExpr()
	if err != nil {
		return err
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return err
	}
	if _, err := p.expect(tokSemi, ";"); err != nil {
		return err
	}

	p.activeCond = &groupBuilder{
		devicePattern: p.devicePattern,
		condition:     cond,
		line:          line,
		column:        col,
	}
	return nil
}

func (p *parser) whenEnd() error {
	if p.activeCond == nil {
		return newSyntaxError(p.tok.line, p.tok.column, "when_end without a matching when_start")
	}
	if err := p.expectIdent("when_end"); err != nil {
		return err
	}
	if _, err := p.expect(tokLParen, "("); err != nil {
		return err
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return err
	}
	if _, err := p.expect(tokSemi, ";"); err != nil {
		return err
	}

	g := p.activeCond
	p.activeCond = nil
	if len(g.rules) > 0 {
		p.profile.Groups = append(p.profile.Groups, mapping.ConditionGroup{
			DevicePattern: g.devicePattern,
			Condition:     g.condition,
			Rules:         g.rules,
		})
	}
	return nil
}

// parseCondExpr parses a when_start condition: a bare "MD_xx"/"LK_xx"
// atom, or an AND/OR/NOT expression over atoms.
func (p *parser) parseCondExpr() (mapping.Condition, error) {
	return p.parseOrExpr()
}

func (p *parser) parseOrExpr() (mapping.Condition, error) {
	left, err := p.parseAndExpr()
	if err != nil {
		return mapping.Condition{}, err
	}
	children := []mapping.Condition{left}
	for p.tok.kind == tokIdent && p.tok.text == "OR" {
		if err := p.advance(); err != nil {
			return mapping.Condition{}, err
		}
		right, err := p.parseAndExpr()
		if err != nil {
			return mapping.Condition{}, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return mapping.Or(children...), nil
}

func (p *parser) parseAndExpr() (mapping.Condition, error) {
	left, err := p.parseUnary()
	if err != nil {
		return mapping.Condition{}, err
	}
	children := []mapping.Condition{left}
	for p.tok.kind == tokIdent && p.tok.text == "AND" {
		if err := p.advance(); err != nil {
			return mapping.Condition{}, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return mapping.Condition{}, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return mapping.And(children...), nil
}

func (p *parser) parseUnary() (mapping.Condition, error) {
	if p.tok.kind == tokIdent && p.tok.text == "NOT" {
		if err := p.advance(); err != nil {
			return mapping.Condition{}, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return mapping.Condition{}, err
		}
		return mapping.Not(inner), nil
	}
	if p.tok.kind == tokLParen {
		if err := p.advance(); err != nil {
			return mapping.Condition{}, err
		}
		inner, err := p.parseOrExpr()
		if err != nil {
			return mapping.Condition{}, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return mapping.Condition{}, err
		}
		return inner, nil
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() (mapping.Condition, error) {
	if p.tok.kind != tokIdent {
		return mapping.Condition{}, newSyntaxError(p.tok.line, p.tok.column, "expected an MD_xx/LK_xx atom, NOT, or (")
	}
	name := p.tok.text
	line, col := p.tok.line, p.tok.column
	if err := p.advance(); err != nil {
		return mapping.Condition{}, err
	}
	if id, err := mapping.ParseModifierID(name); err == nil {
		return mapping.ModifierActive(id), nil
	}
	if id, err := mapping.ParseLockID(name); err == nil {
		return mapping.LockActive(id), nil
	}
	return mapping.Condition{}, newSemanticError(line, col, "identifier "+name+" is not a valid MD_xx or LK_xx atom")
}

// mapStatement parses map(K_in, K_out) / map(K_in, with_mods(...)) /
// map(K_in, "MD_xx") / map(K_in, "LK_xx").
func (p *parser) mapStatement() error {
	line, col := p.tok.line, p.tok.column
	if err := p.expectIdent("map"); err != nil {
		return err
	}
	if _, err := p.expect(tokLParen, "("); err != nil {
		return err
	}
	inTok, err := p.expect(tokIdent, "an input key name")
	if err != nil {
		return err
	}
	inCode, ok := keycode.Lookup(inTok.text)
	if !ok {
		return newSemanticError(inTok.line, inTok.column, "unknown key "+inTok.text)
	}
	if _, err := p.expect(tokComma, ","); err != nil {
		return err
	}

	rule, err := p.parseMapTarget(inCode)
	if err != nil {
		return err
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return err
	}
	if _, err := p.expect(tokSemi, ";"); err != nil {
		return err
	}

	p.emitRule(rule, line, col)
	return nil
}

func (p *parser) parseMapTarget(input keycode.Code) (mapping.Rule, error) {
	if p.tok.kind == tokIdent && p.tok.text == "with_mods" {
		return p.parseWithMods(input)
	}
	if p.tok.kind == tokIdent {
		name := p.tok.text
		line, col := p.tok.line, p.tok.column
		if id, err := mapping.ParseModifierID(name); err == nil {
			if err := p.advance(); err != nil {
				return mapping.Rule{}, err
			}
			return mapping.Rule{Input: input, Kind: mapping.KindModifier, Modifier: id}, nil
		}
		if id, err := mapping.ParseLockID(name); err == nil {
			if err := p.advance(); err != nil {
				return mapping.Rule{}, err
			}
			return mapping.Rule{Input: input, Kind: mapping.KindLock, Lock: id}, nil
		}
		outCode, ok := keycode.Lookup(name)
		if !ok {
			return mapping.Rule{}, newSemanticError(line, col, "unknown key "+name)
		}
		if err := p.advance(); err != nil {
			return mapping.Rule{}, err
		}
		return mapping.Rule{Input: input, Kind: mapping.KindSimple, Output: outCode}, nil
	}
	if p.tok.kind == tokString {
		name := p.tok.text
		line, col := p.tok.line, p.tok.column
		if err := p.advance(); err != nil {
			return mapping.Rule{}, err
		}
		if id, err := mapping.ParseModifierID(name); err == nil {
			return mapping.Rule{Input: input, Kind: mapping.KindModifier, Modifier: id}, nil
		}
		if id, err := mapping.ParseLockID(name); err == nil {
			return mapping.Rule{Input: input, Kind: mapping.KindLock, Lock: id}, nil
		}
		return mapping.Rule{}, newSemanticError(line, col, "string "+name+" is not a valid MD_xx or LK_xx identifier")
	}
	return mapping.Rule{}, newSyntaxError(p.tok.line, p.tok.column, "expected a key name, MD_xx, LK_xx, or with_mods(...)")
}

func (p *parser) parseWithMods(input keycode.Code) (mapping.Rule, error) {
	if err := p.expectIdent("with_mods"); err != nil {
		return mapping.Rule{}, err
	}
	if _, err := p.expect(tokLParen, "("); err != nil {
		return mapping.Rule{}, err
	}
	outTok, err := p.expect(tokIdent, "an output key name")
	if err != nil {
		return mapping.Rule{}, err
	}
	outCode, ok := keycode.Lookup(outTok.text)
	if !ok {
		return mapping.Rule{}, newSemanticError(outTok.line, outTok.column, "unknown key "+outTok.text)
	}

	var mods mapping.ModifierFlags
	for p.tok.kind == tokComma {
		if err := p.advance(); err != nil {
			return mapping.Rule{}, err
		}
		flag, err := p.parseModFlag()
		if err != nil {
			return mapping.Rule{}, err
		}
		mods |= flag
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return mapping.Rule{}, err
	}
	return mapping.Rule{Input: input, Kind: mapping.KindModifiedOutput, Output: outCode, Mods: mods}, nil
}

var modFlagNames = map[string]mapping.ModifierFlags{
	"shift":       mapping.FlagLeftShift,
	"shift_right": mapping.FlagRightShift,
	"ctrl":        mapping.FlagLeftCtrl,
	"ctrl_right":  mapping.FlagRightCtrl,
	"alt":         mapping.FlagLeftAlt,
	"alt_right":   mapping.FlagRightAlt,
	"gui":         mapping.FlagLeftGui,
	"gui_right":   mapping.FlagRightGui,
}

func (p *parser) parseModFlag() (mapping.ModifierFlags, error) {
	nameTok, err := p.expect(tokIdent, "a modifier flag name")
	if err != nil {
		return 0, err
	}
	flag, ok := modFlagNames[nameTok.text]
	if !ok {
		return 0, newSemanticError(nameTok.line, nameTok.column, "unknown modifier flag "+nameTok.text)
	}
	if _, err := p.expect(tokEquals, "="); err != nil {
		return 0, err
	}
	valTok, err := p.expect(tokIdent, "true or false")
	if err != nil {
		return 0, err
	}
	switch valTok.text {
	case "true":
		return flag, nil
	case "false":
		return 0, nil
	default:
		return 0, newSemanticError(valTok.line, valTok.column, "expected true or false")
	}
}

// tapHoldStatement parses tap_hold(K_in, K_tap, MD_xx, threshold_ms).
func (p *parser) tapHoldStatement() error {
	line, col := p.tok.line, p.tok.column
	if err := p.expectIdent("tap_hold"); err != nil {
		return err
	}
	if _, err := p.expect(tokLParen, "("); err != nil {
		return err
	}
	inTok, err := p.expect(tokIdent, "an input key name")
	if err != nil {
		return err
	}
	inCode, ok := keycode.Lookup(inTok.text)
	if !ok {
		return newSemanticError(inTok.line, inTok.column, "unknown key "+inTok.text)
	}
	if _, err := p.expect(tokComma, ","); err != nil {
		return err
	}

	tapTok, err := p.expect(tokIdent, "a tap output key name")
	if err != nil {
		return err
	}
	tapCode, ok := keycode.Lookup(tapTok.text)
	if !ok {
		return newSemanticError(tapTok.line, tapTok.column, "unknown key "+tapTok.text)
	}
	if _, err := p.expect(tokComma, ","); err != nil {
		return err
	}

	modTok, err := p.expect(tokIdent, "an MD_xx hold modifier")
	if err != nil {
		return err
	}
	modID, perr := mapping.ParseModifierID(modTok.text)
	if perr != nil {
		return newSemanticError(modTok.line, modTok.column, perr.Error())
	}
	if _, err := p.expect(tokComma, ","); err != nil {
		return err
	}

	thresholdTok, err := p.expect(tokNumber, "a threshold in milliseconds")
	if err != nil {
		return err
	}
	threshold, convErr := strconv.ParseUint(thresholdTok.text, 10, 32)
	if convErr != nil {
		return newSemanticError(thresholdTok.line, thresholdTok.column, "invalid threshold "+thresholdTok.text)
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return err
	}
	if _, err := p.expect(tokSemi, ";"); err != nil {
		return err
	}

	p.emitRule(mapping.Rule{
		Input:          inCode,
		Kind:           mapping.KindTapHold,
		Output:         tapCode,
		Modifier:       modID,
		TapThresholdMs: uint32(threshold),
	}, line, col)
	return nil
}

// emitRule appends rule to whichever scope is active: the enclosing
// when_start group, the device_start vacuous-true group, or the
// unconditional base rule set.
func (p *parser) emitRule(rule mapping.Rule, line, col int) {
	switch {
	case p.activeCond != nil:
		p.activeCond.rules = append(p.activeCond.rules, rule)
	case p.inDevice:
		if p.deviceImplicit == nil {
			p.deviceImplicit = &groupBuilder{devicePattern: p.devicePattern, line: line, column: col}
		}
		p.deviceImplicit.rules = append(p.deviceImplicit.rules, rule)
	default:
		p.profile.Base = append(p.profile.Base, rule)
	}
}
