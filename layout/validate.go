package layout

import (
	"fmt"

	"github.com/upb-gen/protoc-gen-upb/classify"
)

// validatePlatformLayout checks the invariants that must hold for every
// computed MessageLayout: field alignment, non-overlapping byte ranges
// outside a shared oneof union, unique hasbit indices in range, and
// oneof members sharing their oneof's data/case offsets. A violation here
// is a generator bug, not a user error: these diagnostics are always
// DiagError and the caller aborts on them.
func validatePlatformLayout(ml *MessageLayout) []Diagnostic {
	var diags []Diagnostic

	type span struct {
		start, end uint32
		oneof      string
	}
	var spans []span

	for _, fl := range ml.Fields {
		align := reprAlign(fl.Category.Repr, ml.Width)
		if align > 0 && fl.Offset%align != 0 {
			diags = append(diags, Diagnostic{
				Level:   DiagError,
				Message: fmt.Sprintf("offset %d is not aligned to %d", fl.Offset, align),
				Subject: string(fl.Field.Desc.FullName()),
			})
		}

		if fl.Category.Presence == classify.PresenceOneofCase {
			spans = append(spans, span{
				start: fl.Offset,
				end:   fl.Offset + reprSize(fl.Category.Repr, ml.Width),
				oneof: string(fl.Field.Desc.ContainingOneof().FullName()),
			})
			continue
		}
		spans = append(spans, span{start: fl.Offset, end: fl.Offset + reprSize(fl.Category.Repr, ml.Width)})
	}

	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			a, b := spans[i], spans[j]
			if a.oneof != "" && a.oneof == b.oneof {
				continue // members of the same oneof are meant to overlap (union)
			}
			if a.start < b.end && b.start < a.end {
				diags = append(diags, Diagnostic{
					Level:   DiagError,
					Message: fmt.Sprintf("field byte ranges overlap: [%d,%d) and [%d,%d)", a.start, a.end, b.start, b.end),
					Subject: string(ml.Message.Desc.FullName()),
				})
			}
		}
	}

	seenHasbit := make(map[int32]bool)
	for _, fl := range ml.Fields {
		if fl.Category.Presence != classify.PresenceHasbit {
			continue
		}
		if seenHasbit[fl.Presence] {
			diags = append(diags, Diagnostic{
				Level:   DiagError,
				Message: fmt.Sprintf("duplicate hasbit index %d", fl.Presence),
				Subject: string(ml.Message.Desc.FullName()),
			})
		}
		seenHasbit[fl.Presence] = true
		if fl.Presence < 0 || uint32(fl.Presence) >= 8*ml.HasbitBytes {
			diags = append(diags, Diagnostic{
				Level:   DiagError,
				Message: fmt.Sprintf("hasbit index %d out of range [0,%d)", fl.Presence, 8*ml.HasbitBytes),
				Subject: string(ml.Message.Desc.FullName()),
			})
		}
	}

	for _, ol := range ml.Oneofs {
		for _, m := range ol.Members {
			fl := ml.FieldByDescriptorName(string(m.Desc.Name()))
			if fl == nil {
				continue
			}
			if fl.Offset != ol.DataOffset {
				diags = append(diags, Diagnostic{
					Level:   DiagError,
					Message: "oneof member does not share the oneof's data offset",
					Subject: string(m.Desc.FullName()),
				})
			}
			if fl.CaseOffset() != ol.CaseOffset {
				diags = append(diags, Diagnostic{
					Level:   DiagError,
					Message: "oneof member case-offset mismatch",
					Subject: string(m.Desc.FullName()),
				})
			}
		}
	}

	return diags
}
