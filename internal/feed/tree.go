package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// element is a namespace-stripped view of one XML element: its local name,
// attributes keyed by local name, direct character data and child elements.
type element struct {
	name     string
	attrs    map[string]string
	text     strings.Builder
	children []*element
}

// parseTree reads a whole XML document into an element tree.
func parseTree(data []byte) (*element, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.CharsetReader = charset.NewReaderLabel
	d.Entity = xml.HTMLEntity

	var (
		root  *element
		stack []*element
	)

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{name: t.Name.Local, attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				el.attrs[a.Name.Local] = a.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("junk after document element <%s>", root.name)
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			} else if len(bytes.TrimSpace(t)) > 0 {
				return nil, errors.New("text outside document element")
			}
		}
	}

	if root == nil {
		return nil, errors.New("no document element")
	}
	return root, nil
}

// is reports whether the element's local name is exactly name. Only the
// namespace prefix is ignored.
func (e *element) is(name string) bool {
	return e.name == name
}

// child returns the first direct child with the given local name.
func (e *element) child(name string) *element {
	for _, c := range e.children {
		if c.is(name) {
			return c
		}
	}
	return nil
}

// childrenNamed returns every direct child with the given local name.
func (e *element) childrenNamed(name string) []*element {
	var out []*element
	for _, c := range e.children {
		if c.is(name) {
			out = append(out, c)
		}
	}
	return out
}

// firstText walks names in priority order and returns the trimmed text of
// the first direct child that has any. Only direct children are searched.
func (e *element) firstText(names ...string) string {
	for _, name := range names {
		for _, c := range e.children {
			if !c.is(name) {
				continue
			}
			if text := strings.TrimSpace(c.text.String()); text != "" {
				return text
			}
		}
	}
	return ""
}
