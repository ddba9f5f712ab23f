/*
 * Copyright 2021 National Library of Norway.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *       http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package wcprod

import (
	"io"
	"unicode"
	"unicode/utf8"
)

// Tokenizer turns a stream of code points into XML tokens.
//
// Only the current tag or the current text run is buffered. Comments and processing instructions
// are skipped, document type declarations are rejected.
type Tokenizer struct {
	src  CodePointSource
	opts *options

	peeked  rune
	hasPeek bool

	queue []Token // tokens from the current tag
	qpos  int

	stack    []string
	buf      []byte // current text run, name or attribute value
	attrSeen map[string]struct{}

	pos    position
	tokens int64
	err    error
}

// NewTokenizer creates a Tokenizer reading from src.
func NewTokenizer(src CodePointSource, opts ...Option) *Tokenizer {
	return newTokenizer(src, newOptions(opts...))
}

func newTokenizer(src CodePointSource, o *options) *Tokenizer {
	return &Tokenizer{
		src:      src,
		opts:     o,
		attrSeen: make(map[string]struct{}),
		pos:      position{line: 1},
	}
}

// NextToken implements TokenSource.
//
// A self-closing tag is returned as a StartElement followed by its attributes and an EndElement.
// Errors are final: once an error is returned, every later call returns the same error.
func (t *Tokenizer) NextToken() (Token, error) {
	if t.err != nil {
		return Token{}, t.err
	}
	for t.qpos >= len(t.queue) {
		t.queue = t.queue[:0]
		t.qpos = 0
		if err := t.scan(); err != nil {
			t.err = err
			return Token{}, err
		}
	}
	tok := t.queue[t.qpos]
	t.queue[t.qpos] = Token{}
	t.qpos++
	t.tokens++
	return tok, nil
}

// Depth returns the number of open elements after the most recently scanned tag.
func (t *Tokenizer) Depth() int {
	return len(t.stack)
}

// Line returns the current line number in the document.
func (t *Tokenizer) Line() int {
	return t.pos.line
}

// Tokens returns the number of tokens returned so far.
func (t *Tokenizer) Tokens() int64 {
	return t.tokens
}

// scan reads code points until at least one token is queued or the document ends.
func (t *Tokenizer) scan() error {
	r, err := t.read()
	if err == io.EOF {
		if len(t.stack) > 0 {
			return newMalformedXMLErrorf(t.pos, ErrUnexpectedEOF, "element <%s> not closed", t.stack[len(t.stack)-1])
		}
		return io.EOF
	}
	if err != nil {
		return err
	}

	if r != '<' {
		return t.scanText(r)
	}

	r, err = t.readInTag()
	if err != nil {
		return err
	}
	switch r {
	case '/':
		return t.scanEndTag()
	case '?':
		return t.skipUntil("?>")
	case '!':
		return t.scanBang()
	default:
		return t.scanStartTag(r)
	}
}

func (t *Tokenizer) scanText(r rune) error {
	t.buf = t.buf[:0]
	whitespace := true
	for {
		if r == '&' {
			var err error
			if r, err = t.readEntity(); err != nil {
				return err
			}
			whitespace = false
		} else if whitespace && !isSpace(r) {
			whitespace = false
		}
		if err := t.appendRune(r); err != nil {
			return err
		}

		next, err := t.peek()
		if err == io.EOF || (err == nil && next == '<') {
			break
		}
		if err != nil {
			return err
		}
		if r, err = t.read(); err != nil {
			return err
		}
	}

	if len(t.stack) == 0 {
		if whitespace {
			return nil
		}
		return newMalformedXMLError(t.pos, nil, "content outside root element")
	}
	if whitespace && !t.opts.keepWhitespace {
		return nil
	}
	t.queue = append(t.queue, Token{Kind: CharData, Value: string(t.buf)})
	return nil
}

func (t *Tokenizer) scanStartTag(first rune) error {
	name, err := t.scanName(first)
	if err != nil {
		return err
	}
	if len(t.stack) >= t.opts.maxDepth {
		return newMalformedXMLError(t.pos, ErrDepthLimit, "")
	}
	t.queue = append(t.queue, Token{Kind: StartElement, Name: name})
	clear(t.attrSeen)

	for {
		spaced, err := t.skipSpace()
		if err != nil {
			return err
		}
		r, err := t.readInTag()
		if err != nil {
			return err
		}
		switch {
		case r == '>':
			t.stack = append(t.stack, name)
			return nil
		case r == '/':
			if r, err = t.readInTag(); err != nil {
				return err
			}
			if r != '>' {
				return newMalformedXMLErrorf(t.pos, nil, "expected '>' after '/' in <%s>", name)
			}
			t.queue = append(t.queue, Token{Kind: EndElement, Name: name})
			return nil
		case !spaced:
			return newMalformedXMLErrorf(t.pos, nil, "unexpected %q in <%s>", r, name)
		}

		attr, err := t.scanAttribute(r)
		if err != nil {
			return err
		}
		if _, ok := t.attrSeen[attr.Name]; ok {
			return newMalformedXMLErrorf(t.pos, ErrDuplicateAttr, "%s in <%s>", attr.Name, name)
		}
		if len(t.attrSeen) >= t.opts.maxAttrs {
			return newMalformedXMLErrorf(t.pos, ErrAttrLimit, "in <%s>", name)
		}
		t.attrSeen[attr.Name] = struct{}{}
		t.queue = append(t.queue, attr)
	}
}

func (t *Tokenizer) scanAttribute(first rune) (Token, error) {
	name, err := t.scanName(first)
	if err != nil {
		return Token{}, err
	}
	if _, err = t.skipSpace(); err != nil {
		return Token{}, err
	}
	r, err := t.readInTag()
	if err != nil {
		return Token{}, err
	}
	if r != '=' {
		return Token{}, newMalformedXMLErrorf(t.pos, nil, "expected '=' after attribute %s", name)
	}
	if _, err = t.skipSpace(); err != nil {
		return Token{}, err
	}
	quote, err := t.readInTag()
	if err != nil {
		return Token{}, err
	}
	if quote != '"' && quote != '\'' {
		return Token{}, newMalformedXMLErrorf(t.pos, nil, "unquoted value for attribute %s", name)
	}

	t.buf = t.buf[:0]
	for {
		r, err := t.readInTag()
		if err != nil {
			return Token{}, err
		}
		switch r {
		case quote:
			return Token{Kind: Attribute, Name: name, Value: string(t.buf)}, nil
		case '<':
			return Token{}, newMalformedXMLErrorf(t.pos, nil, "'<' in value of attribute %s", name)
		case '&':
			if r, err = t.readEntity(); err != nil {
				return Token{}, err
			}
		case '\t', '\n':
			r = ' '
		}
		if err := t.appendRune(r); err != nil {
			return Token{}, err
		}
	}
}

func (t *Tokenizer) scanEndTag() error {
	r, err := t.readInTag()
	if err != nil {
		return err
	}
	name, err := t.scanName(r)
	if err != nil {
		return err
	}
	if _, err = t.skipSpace(); err != nil {
		return err
	}
	if r, err = t.readInTag(); err != nil {
		return err
	}
	if r != '>' {
		return newMalformedXMLErrorf(t.pos, nil, "expected '>' in </%s>", name)
	}

	if len(t.stack) == 0 {
		return newMalformedXMLErrorf(t.pos, ErrMismatchedEndTag, "</%s> without open element", name)
	}
	if top := t.stack[len(t.stack)-1]; top != name {
		return newMalformedXMLErrorf(t.pos, ErrMismatchedEndTag, "expected </%s>, found </%s>", top, name)
	}
	t.stack = t.stack[:len(t.stack)-1]
	t.queue = append(t.queue, Token{Kind: EndElement, Name: name})
	return nil
}

// scanBang handles everything starting with "<!".
func (t *Tokenizer) scanBang() error {
	r, err := t.readInTag()
	if err != nil {
		return err
	}
	switch r {
	case '-':
		if r, err = t.readInTag(); err != nil {
			return err
		}
		if r != '-' {
			return newMalformedXMLError(t.pos, nil, "malformed comment")
		}
		return t.skipUntil("-->")
	case '[':
		return t.scanCDATA()
	}

	t.buf = t.buf[:0]
	for unicode.IsLetter(r) && len(t.buf) < 16 {
		t.buf = utf8.AppendRune(t.buf, r)
		if r, err = t.readInTag(); err != nil {
			return err
		}
	}
	return newMalformedXMLErrorf(t.pos, ErrUnsupportedConstruct, "<!%s declaration", t.buf)
}

func (t *Tokenizer) scanCDATA() error {
	for _, want := range "CDATA[" {
		r, err := t.readInTag()
		if err != nil {
			return err
		}
		if r != want {
			return newMalformedXMLError(t.pos, ErrUnsupportedConstruct, "malformed CDATA section")
		}
	}
	if len(t.stack) == 0 {
		return newMalformedXMLError(t.pos, nil, "CDATA section outside root element")
	}

	t.buf = t.buf[:0]
	for {
		r, err := t.readInTag()
		if err != nil {
			return err
		}
		if err := t.appendRune(r); err != nil {
			return err
		}
		if n := len(t.buf); n >= 3 && t.buf[n-1] == '>' && t.buf[n-2] == ']' && t.buf[n-3] == ']' {
			t.buf = t.buf[:n-3]
			break
		}
	}
	if len(t.buf) == 0 || (!t.opts.keepWhitespace && isAllSpace(t.buf)) {
		return nil
	}
	t.queue = append(t.queue, Token{Kind: CharData, Value: string(t.buf)})
	return nil
}

// skipUntil discards code points up to and including the terminator.
func (t *Tokenizer) skipUntil(terminator string) error {
	term := []rune(terminator)
	window := make([]rune, 0, len(term))
	for {
		r, err := t.readInTag()
		if err != nil {
			return err
		}
		if len(window) == len(term) {
			copy(window, window[1:])
			window = window[:len(window)-1]
		}
		window = append(window, r)
		if len(window) == len(term) && string(window) == terminator {
			return nil
		}
	}
}

func (t *Tokenizer) scanName(first rune) (string, error) {
	if !isNameStart(first) {
		return "", newMalformedXMLErrorf(t.pos, nil, "invalid name start %q", first)
	}
	t.buf = utf8.AppendRune(t.buf[:0], first)
	for {
		r, err := t.peek()
		if err == io.EOF {
			return "", newMalformedXMLError(t.pos, ErrUnexpectedEOF, "in name")
		}
		if err != nil {
			return "", err
		}
		if !isNameChar(r) {
			return string(t.buf), nil
		}
		_, _ = t.read()
		if err := t.appendRune(r); err != nil {
			return "", err
		}
	}
}

// readEntity reads a reference after '&' up to and including ';' and returns the referenced character.
func (t *Tokenizer) readEntity() (rune, error) {
	var ref [maxEntityRefLen]byte
	n := 0
	for {
		r, err := t.readInTag()
		if err != nil {
			return 0, err
		}
		if r == ';' {
			break
		}
		if r >= utf8.RuneSelf || n == len(ref) || r == '<' || r == '&' || isSpace(r) {
			return 0, newMalformedXMLError(t.pos, ErrInvalidEntity, "")
		}
		ref[n] = byte(r)
		n++
	}
	r, err := resolveEntity(ref[:n])
	if err != nil {
		return 0, newMalformedXMLErrorf(t.pos, err, "&%s;", ref[:n])
	}
	return r, nil
}

func (t *Tokenizer) appendRune(r rune) error {
	if len(t.buf)+utf8.RuneLen(r) > t.opts.maxTextRunBytes {
		return newMalformedXMLErrorf(t.pos, ErrTokenTooLarge, "limit is %d bytes", t.opts.maxTextRunBytes)
	}
	t.buf = utf8.AppendRune(t.buf, r)
	return nil
}

func (t *Tokenizer) skipSpace() (bool, error) {
	skipped := false
	for {
		r, err := t.peek()
		if err == io.EOF {
			return skipped, newMalformedXMLError(t.pos, ErrUnexpectedEOF, "in tag")
		}
		if err != nil {
			return skipped, err
		}
		if !isSpace(r) {
			return skipped, nil
		}
		_, _ = t.read()
		skipped = true
	}
}

// readInTag reads the next code point where end of document is not allowed.
func (t *Tokenizer) readInTag() (rune, error) {
	r, err := t.read()
	if err == io.EOF {
		return 0, newMalformedXMLError(t.pos, ErrUnexpectedEOF, "")
	}
	return r, err
}

// read returns the next code point with line endings normalized to '\n'.
func (t *Tokenizer) read() (rune, error) {
	r, err := t.readRaw()
	if err != nil {
		return 0, err
	}
	if r == '\r' {
		next, err := t.peek()
		if err == nil && next == '\n' {
			t.hasPeek = false
		} else if err != nil && err != io.EOF {
			return 0, err
		}
		r = '\n'
	}
	if r == '\n' {
		t.pos.line++
		t.pos.column = 0
	} else {
		t.pos.column++
	}
	return r, nil
}

func (t *Tokenizer) readRaw() (rune, error) {
	if t.hasPeek {
		t.hasPeek = false
		return t.peeked, nil
	}
	cp, err := t.src.NextCodePoint()
	if err != nil {
		return 0, err
	}
	return cp.Rune, nil
}

func (t *Tokenizer) peek() (rune, error) {
	if !t.hasPeek {
		cp, err := t.src.NextCodePoint()
		if err != nil {
			return 0, err
		}
		t.peeked = cp.Rune
		t.hasPeek = true
	}
	return t.peeked, nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isAllSpace(b []byte) bool {
	for _, c := range b {
		if !isSpace(rune(c)) {
			return false
		}
	}
	return true
}

func isNameStart(r rune) bool {
	return r == '_' || r == ':' || unicode.IsLetter(r)
}

func isNameChar(r rune) bool {
	return isNameStart(r) || r == '-' || r == '.' || r == 0xB7 || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}
