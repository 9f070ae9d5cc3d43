/*
 * Copyright (c) 2025 by the SlateDeck authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package fdx parses Final Draft interchange (FDX) XML documents into an
// ordered sequence of scenes. FDX exports from different tools encode scene
// headings inconsistently: some use a dedicated SceneHeading tag, some tag
// generic paragraphs with style attributes, and some emit headings as plain
// paragraphs distinguishable only by their INT./EXT. text. The parser
// resolves all three in a single streaming pass and never fails hard; an
// unreadable document yields whatever scenes were recognized before the
// failure, or an empty list.
package fdx

import (
	"encoding/xml"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"slatedeck/internal/domain"
)

// headingState tracks the classifier's view of the currently open element.
type headingState int

const (
	stateIdle headingState = iota
	// stateHeading: the open element is a confirmed scene heading.
	stateHeading
	// stateTentative: the open element is a plain paragraph that may turn
	// out to be a heading once its text is known.
	stateTentative
)

// headingAttrKeys are the attribute names whose values are checked first
// for heading style markers. The same value heuristic is then applied to
// every attribute regardless of key, to tolerate nonstandard naming.
var headingAttrKeys = map[string]bool{
	"type":           true,
	"style":          true,
	"paragraphstyle": true,
	"class":          true,
	"element":        true,
}

// headingPrefixes confirm a tentative paragraph as a scene heading once its
// normalized text is known.
var headingPrefixes = []string{"INT.", "EXT.", "INT./EXT.", "I/E."}

type parser struct {
	scenes []domain.FDXScene

	state        headingState
	depth        int
	headingDepth int
	text         strings.Builder

	// Attributes captured from the open heading element or a
	// SceneProperties child encountered while it is still open.
	curNumber    string
	curLength    int
	curLengthOK  bool

	// SceneProperties data seen with no scene to attach to; consumed by
	// the next scene that finalizes.
	pendingNumber    string
	hasPendingNumber bool
	pendingLength    int
	hasPendingLength bool
}

// Parse consumes an FDX XML stream and returns the scenes it describes, in
// document order. It never returns an error: malformed input ends the pass
// early and the scenes recognized so far are returned.
func Parse(r io.Reader) []domain.FDXScene {
	p := &parser{}
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			break // io.EOF or malformed input; keep partial results
		}
		switch t := tok.(type) {
		case xml.StartElement:
			attrs := make(map[string]string, len(t.Attr))
			for _, a := range t.Attr {
				attrs[strings.ToLower(a.Name.Local)] = a.Value
			}
			p.elementStart(strings.ToLower(t.Name.Local), attrs)
		case xml.CharData:
			p.characters(string(t))
		case xml.EndElement:
			p.elementEnd()
		}
	}
	return p.scenes
}

// ParseFile parses the FDX document at path. Unreadable files yield an
// empty scene list.
func ParseFile(path string) []domain.FDXScene {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

func (p *parser) elementStart(name string, attrs map[string]string) {
	p.depth++

	if name == "sceneproperties" {
		p.sceneProperties(attrs)
		return
	}
	if p.state != stateIdle {
		// Nested markup inside an open heading (Text children etc.);
		// its character data accumulates via characters().
		return
	}
	switch classify(name, attrs) {
	case stateHeading:
		p.openHeading(stateHeading, attrs)
	case stateTentative:
		p.openHeading(stateTentative, attrs)
	}
}

func (p *parser) openHeading(s headingState, attrs map[string]string) {
	p.state = s
	p.headingDepth = p.depth
	p.text.Reset()
	p.curNumber = attrs["number"]
	p.curLength = 0
	p.curLengthOK = false
	if v, ok := parseEighths(attrs["length"]); ok {
		p.curLength = v
		p.curLengthOK = true
	}
}

// sceneProperties routes a SceneProperties element's Number/Length to the
// open heading, the most recently finalized scene (carry-forward for
// multi-paragraph headings), or the pending slot for the next scene.
func (p *parser) sceneProperties(attrs map[string]string) {
	num := attrs["number"]
	length, lengthOK := parseEighths(attrs["length"])

	if p.state != stateIdle {
		if p.curNumber == "" && num != "" {
			p.curNumber = num
		}
		if !p.curLengthOK && lengthOK {
			p.curLength = length
			p.curLengthOK = true
		}
		return
	}
	if len(p.scenes) > 0 {
		last := &p.scenes[len(p.scenes)-1]
		if last.Number == "" {
			if num != "" {
				last.Number = num
			}
			if last.PageLengthEighths == 0 && lengthOK {
				last.PageLengthEighths = length
			}
			return
		}
	}
	if num != "" {
		p.pendingNumber = num
		p.hasPendingNumber = true
	}
	if lengthOK {
		p.pendingLength = length
		p.hasPendingLength = true
	}
}

func (p *parser) characters(s string) {
	if p.state != stateIdle {
		p.text.WriteString(s)
	}
}

func (p *parser) elementEnd() {
	if p.state != stateIdle && p.depth == p.headingDepth {
		p.finalize()
	}
	p.depth--
}

// finalize resolves the open element at close time: tentative paragraphs
// are confirmed or discarded based on their text prefix, and the scene's
// number and length are resolved by precedence (own attributes first, then
// pending SceneProperties data).
func (p *parser) finalize() {
	heading := strings.ToUpper(strings.Join(strings.Fields(p.text.String()), " "))
	state := p.state
	p.state = stateIdle

	if state == stateTentative && !hasHeadingPrefix(heading) {
		return
	}
	if heading == "" {
		return
	}

	number := p.curNumber
	if number == "" && p.hasPendingNumber {
		number = p.pendingNumber
		p.pendingNumber = ""
		p.hasPendingNumber = false
	}
	length := 0
	switch {
	case p.curLengthOK:
		length = p.curLength
	case p.hasPendingLength:
		length = p.pendingLength
		p.pendingLength = 0
		p.hasPendingLength = false
	}
	p.scenes = append(p.scenes, domain.FDXScene{
		Number:            number,
		Heading:           heading,
		PageLengthEighths: length,
	})
}

// classify is the first stage of heading detection, applied at element
// start: dedicated tags and style attributes confirm a heading outright,
// while generic paragraphs are held tentative until their text is known.
func classify(name string, attrs map[string]string) headingState {
	if name == "sceneheading" {
		return stateHeading
	}
	for k, v := range attrs {
		if headingAttrKeys[k] && headingValueMatch(v) {
			return stateHeading
		}
	}
	// Tolerate nonstandard attribute names: any value that reads like a
	// heading style marker counts.
	for _, v := range attrs {
		if headingValueMatch(v) {
			return stateHeading
		}
	}
	if name == "paragraph" {
		return stateTentative
	}
	return stateIdle
}

func headingValueMatch(v string) bool {
	s := strings.ToLower(v)
	if strings.Contains(s, "slug") {
		return true
	}
	if s == "scene heading" {
		return true
	}
	if strings.Contains(s, "scene") && strings.Contains(s, "heading") {
		return true
	}
	return strings.Contains(strings.ReplaceAll(s, " ", ""), "sceneheading")
}

func hasHeadingPrefix(heading string) bool {
	for _, p := range headingPrefixes {
		if strings.HasPrefix(heading, p) {
			return true
		}
	}
	return false
}

// ScenesToDocument lifts parser output into a screenplay document of scene
// heading elements, assigning fresh stable ids. Body text is not carried by
// FDX scene records; callers that need page math should prefer
// paginate.StripsFromScenes, which keeps the explicit lengths.
func ScenesToDocument(scenes []domain.FDXScene) *domain.ScreenplayDocument {
	doc := &domain.ScreenplayDocument{Elements: make([]domain.ScriptElement, 0, len(scenes))}
	for _, sc := range scenes {
		doc.Elements = append(doc.Elements, domain.ScriptElement{
			ID:          uuid.NewString(),
			Type:        domain.ElementSceneHeading,
			Text:        sc.Heading,
			SceneNumber: sc.Number,
		})
	}
	return doc
}
