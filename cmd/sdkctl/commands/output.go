package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/adamwoolhether/simplesdk/resource"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

const defaultJSONIndent = 2

type pageDoc struct {
	Data []*resource.Entity `json:"data"`
	Meta json.RawMessage    `json:"meta,omitempty"`
}

type selfDoc struct {
	Data json.RawMessage `json:"data"`
	Meta json.RawMessage `json:"meta,omitempty"`
}

func printPayload(w io.Writer, format string, p resource.Payload) error {
	if p.IsZero() {
		return nil
	}

	if page, ok := p.Page(); ok {
		if format == OutputFormatTable {
			return pageTable(w, page)
		}
		return printDoc(w, format, pageDoc{Data: page.Items(), Meta: page.Meta()})
	}

	e, _ := p.Entity()
	if format == OutputFormatTable {
		return entityTable(w, e)
	}
	return printDoc(w, format, e)
}

func printSelf(w io.Writer, format string, s *resource.SelfResponse) error {
	if s == nil {
		return nil
	}

	if format == OutputFormatTable {
		e, err := s.Entity()
		if err != nil {
			return err
		}
		return entityTable(w, e)
	}

	return printDoc(w, format, selfDoc{Data: s.Data(), Meta: s.RawMeta()})
}

// printDoc writes doc as indented JSON or as YAML. YAML output keeps the
// key order of the JSON rendering.
func printDoc(w io.Writer, format string, doc any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}

	if format == OutputFormatYAML {
		var node yaml.Node
		if err := yaml.Unmarshal(b, &node); err != nil {
			return fmt.Errorf("converting output: %w", err)
		}
		blockStyle(&node)

		enc := yaml.NewEncoder(w)
		enc.SetIndent(defaultJSONIndent)
		if err := enc.Encode(&node); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		return enc.Close()
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, b, "", "  "); err != nil {
		return fmt.Errorf("indenting output: %w", err)
	}
	buf.WriteByte('\n')

	_, err = buf.WriteTo(w)
	return err
}

// blockStyle drops the flow and quoting styles a JSON source leaves on
// the nodes, so that the encoder picks plain YAML.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func pageTable(w io.Writer, page *resource.Page) error {
	var (
		cols []string
		seen = make(map[string]bool)
	)
	for _, item := range page.Items() {
		for _, k := range item.Keys() {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}

	table := tablewriter.NewWriter(w)
	table.Header(anySlice(cols)...)

	for _, item := range page.Items() {
		row := make([]any, len(cols))
		for i, k := range cols {
			row[i] = cell(item.Get(k))
		}
		if err := table.Append(row...); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	if total, ok := page.TotalItems(); ok {
		cur, _ := page.CurrentPage()
		pages, _ := page.TotalPages()
		_, err := fmt.Fprintf(w, "page %d of %d, %d total\n", cur, pages, total)
		return err
	}

	return nil
}

func entityTable(w io.Writer, e *resource.Entity) error {
	table := tablewriter.NewWriter(w)
	table.Header("Key", "Value")

	for _, k := range e.Keys() {
		_ = table.Append(k, cell(e.Get(k)))
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func cell(v resource.Value) string {
	switch v.Kind() {
	case resource.KindNull:
		return ""
	case resource.KindString:
		return v.Str()
	default:
		return v.String()
	}
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
