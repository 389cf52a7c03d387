// Package frontmatter renders and reads the `---` delimited YAML header
// written at the top of every exported page file.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

// Delimiter opens and closes a front-matter block.
const Delimiter = "---"

// ErrMissing is returned by Decode when the input has no front-matter block.
var ErrMissing = errors.New("frontmatter: block not found")

// Field is one `key: value` line. Encode keeps fields in slice order.
type Field struct {
	Key   string
	Value string
}

// PageHeader is the header written for every page.
type PageHeader struct {
	ID   string `yaml:"ID"`
	Name string `yaml:"name"`
	Slug string `yaml:"slug"`
}

// Fields returns the header in its declared order: ID, name, slug.
func (h PageHeader) Fields() []Field {
	return []Field{
		{Key: "ID", Value: h.ID},
		{Key: "name", Value: h.Name},
		{Key: "slug", Value: h.Slug},
	}
}

// Encode renders fields between delimiter lines. Values are emitted as YAML
// strings, quoted only when YAML requires it, so the block always parses
// back to the exact input. A value containing a newline becomes a `|-`
// block scalar and so spans several lines.
func Encode(fields []Field) ([]byte, error) {
	mapping := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range fields {
		mapping.Content = append(mapping.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Value},
		)
	}

	var buf bytes.Buffer
	buf.WriteString(Delimiter + "\n")
	if len(fields) > 0 {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(mapping); err != nil {
			return nil, fmt.Errorf("frontmatter: encode: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("frontmatter: encode: %w", err)
		}
	}
	buf.WriteString(Delimiter + "\n")
	return buf.Bytes(), nil
}

// EncodePage renders the header for a page.
func EncodePage(h PageHeader) ([]byte, error) {
	return Encode(h.Fields())
}

var yamlFormat = frontmatter.NewFormat(Delimiter, Delimiter, yaml.Unmarshal)

// Decode reads a front-matter block from r into v and returns whatever
// follows the closing delimiter.
func Decode(r io.Reader, v any) ([]byte, error) {
	rest, err := frontmatter.MustParse(r, v, yamlFormat)
	if errors.Is(err, frontmatter.ErrNotFound) {
		return nil, ErrMissing
	}
	if err != nil {
		return nil, fmt.Errorf("frontmatter: decode: %w", err)
	}
	return rest, nil
}

// DecodePage reads a page header from r.
func DecodePage(r io.Reader) (PageHeader, error) {
	var h PageHeader
	if _, err := Decode(r, &h); err != nil {
		return PageHeader{}, err
	}
	return h, nil
}
