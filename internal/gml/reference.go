package gml

import (
	"github.com/gmtooling/gmscope/internal/types"
)

// lexicalParser is the built-in reference parser. It is lexical, not
// syntactic: declarations are recognized from token shapes (#macro, enum,
// globalvar, function, var, static), everything else that looks like a name
// becomes a reference. Assignment detection uses a statement-position
// approximation, so a legacy equality test like `if (a = 3)` is excluded by
// its surrounding parenthesis rather than by grammar.
type lexicalParser struct{}

func (p *lexicalParser) Parse(src []byte, opts ParseOptions) (*Tree, error) {
	toks := lex(src)
	decls := collectDecls(toks, opts.ScopeID)
	return emit(toks, decls, opts), nil
}

// declInfo is one declaration site found by the first pass.
type declInfo struct {
	roles  types.RoleSet
	ref    DeclRef
	owner  *DeclRef
	global bool
}

// fileDecls indexes every declaration in a file, by token offset for
// emission and by name for back-references. Name tables are first-wins so
// back-references are deterministic when a name is declared twice.
type fileDecls struct {
	byOffset map[int]*declInfo
	macros   map[string]*declInfo
	enums    map[string]*declInfo
	members  map[string]map[string]*declInfo
	globals  map[string]*declInfo
	scripts  map[string]*declInfo
	locals   map[string]*declInfo
}

func newFileDecls() *fileDecls {
	return &fileDecls{
		byOffset: make(map[int]*declInfo),
		macros:   make(map[string]*declInfo),
		enums:    make(map[string]*declInfo),
		members:  make(map[string]map[string]*declInfo),
		globals:  make(map[string]*declInfo),
		scripts:  make(map[string]*declInfo),
		locals:   make(map[string]*declInfo),
	}
}

func (d *fileDecls) add(tok token, info *declInfo, named map[string]*declInfo) {
	if _, seen := d.byOffset[tok.start]; seen {
		return
	}
	d.byOffset[tok.start] = info
	if named != nil {
		if _, exists := named[tok.text]; !exists {
			named[tok.text] = info
		}
	}
}

// collectDecls is the first pass. The walk advances one token at a time and
// handlers only peek ahead, so constructs nested inside initializers (an
// anonymous function in a var initializer, say) are still found when the
// walk reaches them.
func collectDecls(toks []token, scopeID string) *fileDecls {
	d := newFileDecls()

	declare := func(tok token, roles types.RoleSet) *declInfo {
		return &declInfo{
			roles: roles,
			ref:   DeclRef{Span: types.SourceSpan{Start: tok.start, End: tok.end}, Scope: scopeID},
		}
	}

	isName := func(i int) bool {
		return i < len(toks) && toks[i].kind == tokIdent && !isKeyword(toks[i].text)
	}
	isPunct := func(i int, text string) bool {
		return i < len(toks) && toks[i].kind == tokPunct && toks[i].text == text
	}

	for i := 0; i < len(toks); i++ {
		tok := toks[i]

		if tok.kind == tokDirective && tok.text == "macro" {
			if isName(i + 1) {
				d.add(toks[i+1], declare(toks[i+1], types.RoleDeclaration|types.RoleMacro), d.macros)
			}
			continue
		}
		if tok.kind != tokIdent || !isKeyword(tok.text) {
			continue
		}

		switch tok.text {
		case "enum":
			if !isName(i + 1) {
				continue
			}
			nameTok := toks[i+1]
			enumInfo := declare(nameTok, types.RoleDeclaration|types.RoleEnum)
			d.add(nameTok, enumInfo, d.enums)
			if !isPunct(i+2, "{") {
				continue
			}
			members := d.members[nameTok.text]
			if members == nil {
				members = make(map[string]*declInfo)
				d.members[nameTok.text] = members
			}
			collectEnumMembers(toks, i+3, d, members, enumInfo, declare)

		case "globalvar":
			for j := i + 1; isName(j); j += 2 {
				info := declare(toks[j], types.RoleDeclaration|types.RoleGlobal|types.RoleVariable)
				info.global = true
				d.add(toks[j], info, d.globals)
				if !isPunct(j+1, ",") {
					break
				}
			}

		case "function":
			params := i + 1
			if isName(i + 1) {
				d.add(toks[i+1], declare(toks[i+1], types.RoleDeclaration|types.RoleScript), d.scripts)
				params = i + 2
			}
			if isPunct(params, "(") {
				collectParams(toks, params+1, d, declare)
			}

		case "var", "static":
			collectLocals(toks, i+1, d, declare)
		}
	}

	return d
}

// collectEnumMembers scans an enum body starting just inside the opening
// brace. Identifiers in member position become enumMember declarations;
// identifiers inside value expressions are left for the reference pass.
func collectEnumMembers(toks []token, start int, d *fileDecls, members map[string]*declInfo, owner *declInfo, declare func(token, types.RoleSet) *declInfo) {
	expectMember := true
	depth := 0
	for j := start; j < len(toks); j++ {
		tok := toks[j]
		if tok.kind == tokPunct {
			switch tok.text {
			case "(", "[":
				depth++
			case ")", "]":
				depth--
			case "{":
				depth++
			case "}":
				if depth == 0 {
					return
				}
				depth--
			case ",":
				if depth == 0 {
					expectMember = true
				}
			}
			continue
		}
		if expectMember && depth == 0 && tok.kind == tokIdent && !isKeyword(tok.text) {
			info := declare(tok, types.RoleDeclaration|types.RoleEnumMember)
			info.owner = &owner.ref
			d.add(tok, info, members)
			expectMember = false
		}
	}
}

// collectParams scans a parameter list starting just inside the opening
// paren. Only identifiers in parameter position declare; default-value
// expressions are left for the reference pass.
func collectParams(toks []token, start int, d *fileDecls, declare func(token, types.RoleSet) *declInfo) {
	expectParam := true
	depth := 1
	for j := start; j < len(toks); j++ {
		tok := toks[j]
		if tok.kind == tokPunct {
			switch tok.text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
				if depth == 0 {
					return
				}
			case ",":
				if depth == 1 {
					expectParam = true
				}
			}
			continue
		}
		if expectParam && depth == 1 && tok.kind == tokIdent && !isKeyword(tok.text) {
			d.add(tok, declare(tok, types.RoleDeclaration|types.RoleVariable), d.locals)
			expectParam = false
		}
	}
}

// collectLocals scans a var or static declaration list. An initializer is
// skipped up to the comma that introduces the next name; the scan stops at a
// semicolon, a keyword, or a closing bracket, which cuts multi-declarators
// short when an initializer itself contains a keyword. The walk in
// collectDecls still visits the skipped tokens.
func collectLocals(toks []token, start int, d *fileDecls, declare func(token, types.RoleSet) *declInfo) {
	j := start
	for {
		if j >= len(toks) || toks[j].kind != tokIdent || isKeyword(toks[j].text) {
			return
		}
		d.add(toks[j], declare(toks[j], types.RoleDeclaration|types.RoleVariable), d.locals)
		j++

		if j < len(toks) && toks[j].kind == tokPunct && toks[j].text == "=" {
			comma := skipInitializer(toks, j+1)
			if comma < 0 {
				return
			}
			j = comma
		}
		if j >= len(toks) || toks[j].kind != tokPunct || toks[j].text != "," {
			return
		}
		j++
	}
}

// skipInitializer advances past an initializer expression and returns the
// index of the depth-zero comma introducing the next declarator, or -1 when
// the declaration list ends first.
func skipInitializer(toks []token, j int) int {
	depth := 0
	for ; j < len(toks); j++ {
		tok := toks[j]
		if tok.kind == tokIdent && isKeyword(tok.text) {
			return -1
		}
		if tok.kind != tokPunct {
			continue
		}
		switch tok.text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			if depth == 0 {
				return -1
			}
			depth--
		case ";":
			return -1
		case ",":
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// statementKeywords may directly precede an assignment statement, either as
// control words or as value keywords that end the previous statement.
var statementKeywords = map[string]struct{}{
	"else": {}, "then": {}, "do": {}, "begin": {}, "end": {},
	"exit": {}, "break": {}, "continue": {}, "constructor": {},
	"true": {}, "false": {}, "undefined": {}, "noone": {}, "all": {},
	"self": {}, "other": {},
}

// statementPosition approximates whether the token at index i starts a
// statement. Operators and opening brackets before it mean expression
// context, where a plain = is GML's legacy equality rather than assignment.
func statementPosition(toks []token, i int) bool {
	if i == 0 {
		return true
	}
	prev := toks[i-1]
	switch prev.kind {
	case tokPunct:
		switch prev.text {
		case ")", "]", "}", "{", ";", ":":
			return true
		}
		return false
	case tokIdent:
		if isKeyword(prev.text) {
			_, ok := statementKeywords[prev.text]
			return ok
		}
		return true
	case tokNumber, tokString:
		return true
	default:
		return false
	}
}

// emit is the second pass: every non-keyword identifier becomes an
// occurrence, with declaration roles when the first pass claimed its offset
// and reference classification otherwise.
func emit(toks []token, decls *fileDecls, opts ParseOptions) *Tree {
	tree := &Tree{}

	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		if tok.kind != tokIdent || isKeyword(tok.text) {
			continue
		}

		var span types.SourceSpan
		if opts.IncludeLocations {
			span = types.SourceSpan{Start: tok.start, End: tok.end}
		}

		ident := Identifier{Name: tok.text, Span: span, Scope: opts.ScopeID}

		dotted := i > 0 && toks[i-1].kind == tokPunct && toks[i-1].text == "."
		var qualifier string
		if dotted && i > 1 && toks[i-2].kind == tokIdent {
			qualifier = toks[i-2].text
		}

		info, isDecl := decls.byOffset[tok.start]

		if opts.IncludeIdentifierRoles {
			if isDecl {
				ident.Roles = info.roles
				ident.Owner = info.owner
				ident.IsGlobal = info.global
			} else {
				classifyReference(&ident, decls, dotted, qualifier)
			}
		}

		tree.Identifiers = append(tree.Identifiers, ident)
		if isDecl {
			// A declared name followed by ( is the declaration itself
			// (function scr_x(...)), never a call of it.
			continue
		}

		if next(toks, i, "(") {
			tree.Calls = append(tree.Calls, Call{
				Callee:     tok.text,
				CalleeSpan: span,
				BareCallee: !dotted,
			})
		}

		if next(toks, i, "=") {
			pos := i
			if dotted {
				pos = i - 2
			}
			if statementPosition(toks, pos) {
				tree.Assignments = append(tree.Assignments, Assignment{
					Target:     tok.text,
					TargetSpan: span,
					BareTarget: !dotted,
				})
			}
		}
	}

	return tree
}

func next(toks []token, i int, text string) bool {
	return i+1 < len(toks) && toks[i+1].kind == tokPunct && toks[i+1].text == text
}

// classifyReference tags a non-declaration identifier. Qualified names
// resolve through their qualifier (global namespace or a known enum);
// bare names resolve against the file's declaration tables.
func classifyReference(ident *Identifier, decls *fileDecls, dotted bool, qualifier string) {
	ident.Roles = types.RoleReference

	if dotted {
		switch {
		case qualifier == "global":
			ident.Roles |= types.RoleGlobal | types.RoleVariable
			ident.IsGlobal = true
			if info, ok := decls.globals[ident.Name]; ok {
				ident.Decl = &info.ref
			}
		case decls.enums[qualifier] != nil:
			ident.Roles |= types.RoleEnumMember
			ident.Owner = &decls.enums[qualifier].ref
			if info, ok := decls.members[qualifier][ident.Name]; ok {
				ident.Decl = &info.ref
			}
		}
		return
	}

	if info, ok := decls.macros[ident.Name]; ok {
		ident.Roles |= types.RoleMacro
		ident.Decl = &info.ref
		return
	}
	if info, ok := decls.enums[ident.Name]; ok {
		ident.Roles |= types.RoleEnum
		ident.Decl = &info.ref
		return
	}
	if info, ok := decls.globals[ident.Name]; ok {
		ident.Roles |= types.RoleGlobal | types.RoleVariable
		ident.IsGlobal = true
		ident.Decl = &info.ref
		return
	}
	if info, ok := decls.scripts[ident.Name]; ok {
		ident.Roles |= types.RoleScript
		ident.Decl = &info.ref
		return
	}
	if info, ok := decls.locals[ident.Name]; ok {
		ident.Roles |= types.RoleVariable
		ident.Decl = &info.ref
		return
	}
}
