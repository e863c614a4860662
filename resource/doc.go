// Package resource materializes JSON:API style response bodies into
// navigable values without a fixed schema.
//
// A read body of the form {"data": {...}} becomes an [Entity]; one of the
// form {"data": [...], "meta": {...}} becomes a [Page]. Both are returned
// inside a [Payload] by [Decode]:
//
//	p, err := resource.Decode(body)
//	if page, ok := p.Page(); ok {
//		for _, e := range page.Items() {
//			fmt.Println(e.Get("name").Str())
//		}
//	}
//
// Entities wrap nested objects eagerly. Arrays become sequences whose
// object elements are entities and whose scalar elements stay scalars.
// [Entity.ToMap] converts an entity back into plain nested data.
//
// Create and update responses are decoded by [DecodeSelf] into a
// [SelfResponse], which keeps its data and meta as raw JSON read by key.
package resource
