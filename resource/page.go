package resource

import (
	"encoding/json"
	"slices"

	"github.com/tidwall/gjson"
)

// Page is a materialized list response: the entities of "data" in payload
// order plus the raw "meta" object.
type Page struct {
	items []*Entity
	meta  json.RawMessage
}

// NewPage builds a Page from already wrapped items and a raw meta document.
func NewPage(items []*Entity, meta json.RawMessage) *Page {
	return newPage(slices.Clone(items), meta)
}

func newPage(items []*Entity, meta json.RawMessage) *Page {
	if items == nil {
		items = []*Entity{}
	}
	return &Page{items: items, meta: meta}
}

// Items returns the page's entities in payload order.
func (p *Page) Items() []*Entity { return p.items }

// Len returns the number of entities on the page.
func (p *Page) Len() int { return len(p.items) }

// Item returns the entity at index i, or nil when out of range.
func (p *Page) Item(i int) *Entity {
	if i < 0 || i >= len(p.items) {
		return nil
	}
	return p.items[i]
}

// Meta returns the raw meta document; nil when the response had none.
func (p *Page) Meta() json.RawMessage { return p.meta }

// MetaGet looks up a gjson path inside meta, e.g. "pagination.links.next".
func (p *Page) MetaGet(path string) gjson.Result {
	if len(p.meta) == 0 {
		return gjson.Result{}
	}
	return gjson.GetBytes(p.meta, path)
}

// TotalItems returns meta.pagination.total.
func (p *Page) TotalItems() (int, bool) { return p.pagination("total") }

// TotalPages returns meta.pagination.total_pages.
func (p *Page) TotalPages() (int, bool) { return p.pagination("total_pages") }

// PerPage returns meta.pagination.per_page.
func (p *Page) PerPage() (int, bool) { return p.pagination("per_page") }

// CurrentPage returns meta.pagination.current_page.
func (p *Page) CurrentPage() (int, bool) { return p.pagination("current_page") }

// Count returns meta.pagination.count, the number of items on this page as
// reported by the server.
func (p *Page) Count() (int, bool) { return p.pagination("count") }

// Link returns meta.pagination.links.<name> (next, previous, first, last).
// ok is false when the link is absent or null.
func (p *Page) Link(name string) (string, bool) {
	res := p.MetaGet("pagination.links." + gjson.Escape(name))
	if res.Type != gjson.String {
		return "", false
	}
	return res.Str, true
}

func (p *Page) pagination(key string) (int, bool) {
	res := p.MetaGet("pagination." + key)
	if res.Type != gjson.Number {
		return 0, false
	}
	return int(res.Int()), true
}
