package scale

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// qualifiedPath strips "<T as Trait>::" and "T::" style qualifiers that
// runtime type names carry, keeping the final segment.
var qualifiedPath = regexp.MustCompile(`<[^<>]*\bas\b[^<>]*>::|\b[A-Za-z_][A-Za-z0-9_]*::`)

// AddExpr parses a type expression such as "Vec<(AccountId, Compact<u64>)>"
// and registers every structural type it mentions. It returns the canonical
// TypeID of the expression. Named references are not required to exist yet;
// they are resolved when the registry is used.
func (b *Builder) AddExpr(expr string) (TypeID, error) {
	if b.published {
		return "", ErrRegistryPublished
	}
	p := &exprParser{src: qualifiedPath.ReplaceAllString(expr, "")}
	id, err := p.parseType(b)
	if err != nil {
		return "", fmt.Errorf("%w %q: %w", ErrInvalidTypeExpr, expr, err)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return "", fmt.Errorf("%w %q: unexpected %q", ErrInvalidTypeExpr, expr, p.src[p.pos:])
	}
	return id, nil
}

type exprParser struct {
	src string
	pos int
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n') {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *exprParser) expect(c byte) error {
	if p.peek() != c {
		return fmt.Errorf("expected %q at %d", c, p.pos)
	}
	p.pos++
	return nil
}

func (p *exprParser) ident() string {
	p.skipSpace()
	// References such as &'static str keep only the referenced type.
	if p.pos < len(p.src) && p.src[p.pos] == '&' {
		p.pos++
		p.skipSpace()
		if p.pos < len(p.src) && p.src[p.pos] == '\'' {
			p.pos++
			p.word()
		}
		p.skipSpace()
	}
	return p.word()
}

func (p *exprParser) word() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *exprParser) parseType(b *Builder) (TypeID, error) {
	switch p.peek() {
	case '(':
		return p.parseTuple(b)
	case '[':
		return p.parseArray(b)
	case 0:
		return "", fmt.Errorf("unexpected end")
	}

	name := p.ident()
	if name == "" {
		return "", fmt.Errorf("expected type name at %d", p.pos)
	}
	if p.peek() != '<' {
		return TypeID(name), nil
	}
	p.pos++

	var args []TypeID
	for {
		arg, err := p.parseType(b)
		if err != nil {
			return "", err
		}
		args = append(args, arg)
		if p.peek() == ',' {
			p.pos++
			continue
		}
		break
	}
	if err := p.expect('>'); err != nil {
		return "", err
	}

	return b.addGeneric(name, args)
}

func (p *exprParser) parseTuple(b *Builder) (TypeID, error) {
	p.pos++ // (
	var elems []TypeID
	for p.peek() != ')' {
		elem, err := p.parseType(b)
		if err != nil {
			return "", err
		}
		elems = append(elems, elem)
		if p.peek() == ',' {
			p.pos++
			continue
		}
		if p.peek() != ')' {
			return "", fmt.Errorf("expected ',' or ')' at %d", p.pos)
		}
	}
	p.pos++ // )

	return b.addTuple(elems)
}

func (p *exprParser) parseArray(b *Builder) (TypeID, error) {
	p.pos++ // [
	elem, err := p.parseType(b)
	if err != nil {
		return "", err
	}
	if err := p.expect(';'); err != nil {
		return "", err
	}
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	n, err := strconv.ParseUint(p.src[start:p.pos], 10, 32)
	if err != nil {
		return "", fmt.Errorf("invalid array length: %w", err)
	}
	if err := p.expect(']'); err != nil {
		return "", err
	}

	id := TypeID(fmt.Sprintf("[%s; %d]", elem, n))
	return id, b.ensure(id, &TypeDef{Kind: KindArray, Elem: elem, Len: uint32(n)})
}

func (b *Builder) addTuple(elems []TypeID) (TypeID, error) {
	if len(elems) == 0 {
		return "()", nil
	}
	parts := make([]string, len(elems))
	fields := make([]Field, len(elems))
	for i, e := range elems {
		parts[i] = string(e)
		fields[i] = Field{Type: e}
	}
	id := TypeID("(" + strings.Join(parts, ", ") + ")")
	return id, b.ensure(id, &TypeDef{Kind: KindTuple, Fields: fields})
}

func (b *Builder) addGeneric(name string, args []TypeID) (TypeID, error) {
	one := func() (TypeID, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("%s expects one argument, got %d", name, len(args))
		}
		return args[0], nil
	}

	switch name {
	case "Compact":
		elem, err := one()
		if err != nil {
			return "", err
		}
		id := TypeID("Compact<" + string(elem) + ">")
		return id, b.ensure(id, &TypeDef{Kind: KindCompact, Elem: elem})
	case "Vec", "BTreeSet", "BoundedVec", "WeakBoundedVec", "BoundedBTreeSet":
		// Bounded collections carry their bound as a second parameter that
		// does not reach the wire.
		if len(args) == 0 {
			return "", fmt.Errorf("%s expects an argument", name)
		}
		return b.addSequence(args[0])
	case "Option":
		elem, err := one()
		if err != nil {
			return "", err
		}
		id := TypeID("Option<" + string(elem) + ">")
		return id, b.ensure(id, &TypeDef{Kind: KindOption, Elem: elem})
	case "Box", "Rc", "Arc", "Cow", "PhantomData":
		if name == "PhantomData" {
			return "()", nil
		}
		return one()
	case "BTreeMap", "HashMap", "BoundedBTreeMap":
		if len(args) < 2 {
			return "", fmt.Errorf("%s expects key and value", name)
		}
		pair, err := b.addTuple(args[:2])
		if err != nil {
			return "", err
		}
		return b.addSequence(pair)
	default:
		// Unknown generic wrappers are looked up by their bare name, the
		// convention presets follow for runtime generics.
		return TypeID(name), nil
	}
}

func (b *Builder) addSequence(elem TypeID) (TypeID, error) {
	id := TypeID("Vec<" + string(elem) + ">")
	return id, b.ensure(id, &TypeDef{Kind: KindSequence, Elem: elem})
}

// ensure registers a structural type unless an identical id already exists.
func (b *Builder) ensure(id TypeID, def *TypeDef) error {
	if _, ok := b.Lookup(id); ok {
		return nil
	}
	return b.Add(id, def)
}
