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
	"fmt"
	"strings"
)

// TokenKind identifies the kind of an XML token.
type TokenKind uint8

const (
	StartElement TokenKind = iota + 1
	Attribute
	EndElement
	CharData
)

func (k TokenKind) String() string {
	switch k {
	case StartElement:
		return "StartElement"
	case Attribute:
		return "Attribute"
	case EndElement:
		return "EndElement"
	case CharData:
		return "CharData"
	}
	return "Unknown"
}

// Token is a lexical XML token with all character references decoded.
//
// Name is set for StartElement, Attribute and EndElement. Value is set for Attribute and CharData.
type Token struct {
	Kind  TokenKind
	Name  string
	Value string
}

func (t Token) String() string {
	switch t.Kind {
	case StartElement:
		return "<" + t.Name + ">"
	case EndElement:
		return "</" + t.Name + ">"
	case Attribute:
		return fmt.Sprintf("@%s=%q", t.Name, t.Value)
	}
	return fmt.Sprintf("%q", t.Value)
}

// LocalName returns Name without any namespace prefix.
func (t Token) LocalName() string {
	return localName(t.Name)
}

func localName(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// TokenSource is the interface that wraps the NextToken method.
//
// NextToken returns io.EOF at end of document.
type TokenSource interface {
	NextToken() (Token, error)
}
