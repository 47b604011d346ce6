package layout

import (
	"sort"

	"github.com/samber/lo"
	"google.golang.org/protobuf/compiler/protogen"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/upb-gen/protoc-gen-upb/classify"
)

// messageFieldInfo couples a field with its pre-computed classify.Category,
// fed into ComputePlatformLayout.
type messageFieldInfo struct {
	field *protogen.Field
	cat   classify.Category
}

// slotItem is either a single non-oneof field or a whole oneof group being
// placed as one unit.
type slotItem struct {
	fields  []*protogen.Field // one field, or every member of one oneof
	oneof   *protogen.Oneof   // nil unless this is a oneof group
	align   uint32
	size    uint32
	hot     bool // string-view/message-pointer member present
	sortKey int32
}

// ComputePlatformLayout assigns offset, presence, and size to every field of
// msg for one pointer width: allocate the presence prefix, group fields and
// oneofs into slot items, order the items by descending alignment (within
// one alignment, string-view/message-pointer items first, then ascending
// field number), assign offsets in that order with alignment padding, and
// round the total size up to the pointer width.
// cats must contain an entry, already produced by classify.Classify, for
// every non-synthetic field of msg. subs is this message's precomputed sub-
// table. The returned MessageLayout.Fields is ordered by ascending field
// number, not declaration order, so it agrees with DenseBelow and with the
// emitted MiniTable_Field array: fields[number-1] must be the field with
// that number whenever number <= DenseBelow.
func ComputePlatformLayout(msg *protogen.Message, width Width, cats map[protoreflect.FullName]classify.Category, subs []SubEntry, subIndex map[protoreflect.FullName]int) (*MessageLayout, []Diagnostic) {
	var diags []Diagnostic

	ml := &MessageLayout{
		Message:       msg,
		Width:         width,
		ExtensionMode: extensionModeOf(msg),
	}

	infos := make([]messageFieldInfo, 0, len(msg.Fields))
	for _, f := range msg.Fields {
		cat, ok := cats[f.Desc.FullName()]
		if !ok {
			diags = append(diags, Diagnostic{Level: DiagError, Message: "missing classification for field", Subject: string(f.Desc.FullName())})
			continue
		}
		infos = append(infos, messageFieldInfo{field: f, cat: cat})
	}
	ml.FieldCount = len(infos)

	// Step 1: hasbit/case-slot prefix.
	hasbitIdx, oneofCaseByName, hasbitBytes, prefixSize, requiredCount := allocatePresencePrefix(msg, infos)
	ml.RequiredCount = requiredCount
	ml.HasbitBytes = hasbitBytes

	// Steps 2-5: group into slot items (oneofs collapse to one item) and
	// bucket by alignment.
	items := buildSlotItems(msg, infos, width)

	sort.SliceStable(items, func(i, j int) bool {
		ai, aj := items[i].align, items[j].align
		if ai != aj {
			return ai > aj // largest alignment bucket first
		}
		if items[i].hot != items[j].hot {
			return items[i].hot // hot (string-view/message-pointer) first within bucket (step 3)
		}
		return items[i].sortKey < items[j].sortKey // then ascending field number, for determinism
	})

	offset := prefixSize
	fieldOffset := make(map[protoreflect.FullName]uint32, len(infos))
	oneofLayouts := make([]OneofLayout, 0)
	oneofLayoutByName := make(map[protoreflect.FullName]*OneofLayout)

	for _, item := range items {
		offset = alignUp(offset, item.align)
		for _, f := range item.fields {
			fieldOffset[f.Desc.FullName()] = offset
		}
		if item.oneof != nil {
			ol := OneofLayout{
				Oneof:      item.oneof,
				DataOffset: offset,
				CaseOffset: oneofCaseByName[item.oneof.Desc.FullName()],
				Members:    item.fields,
			}
			oneofLayouts = append(oneofLayouts, ol)
			oneofLayoutByName[item.oneof.Desc.FullName()] = &oneofLayouts[len(oneofLayouts)-1]
		}
		offset += item.size
	}

	ml.Size = alignUp(offset, uint32(width))
	ml.Oneofs = oneofLayouts

	ordered := make([]messageFieldInfo, len(infos))
	copy(ordered, infos)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].field.Desc.Number() < ordered[j].field.Desc.Number()
	})

	ml.Fields = make([]FieldLayout, 0, len(ordered))
	for _, info := range ordered {
		fl := FieldLayout{
			Field:       info.field,
			Category:    info.cat,
			Offset:      fieldOffset[info.field.Desc.FullName()],
			SubMsgIndex: NoSub,
		}
		if idx, ok := subIndex[info.field.Desc.FullName()]; ok {
			fl.SubMsgIndex = idx
		}
		switch info.cat.Presence {
		case classify.PresenceHasbit:
			fl.Presence = hasbitIdx[info.field.Desc.FullName()]
		case classify.PresenceOneofCase:
			fl.Presence = ^int32(oneofCaseByName[info.field.Desc.ContainingOneof().FullName()])
		default:
			fl.Presence = 0
		}
		ml.Fields = append(ml.Fields, fl)
	}

	ml.Subs = subs
	ml.DenseBelow = computeDenseBelow(msg)

	diags = append(diags, validatePlatformLayout(ml)...)
	return ml, diags
}

// allocatePresencePrefix allocates the hasbit prefix: required fields get
// the lowest hasbit indices, then optional/singular explicit fields, then
// one 32-bit case slot per oneof, in the declared oneof order. Returns
// hasbit index per field, case-offset per oneof, the hasbit byte count, the
// total prefix size (bytes), and the required field count.
func allocatePresencePrefix(msg *protogen.Message, infos []messageFieldInfo) (hasbitIdx map[protoreflect.FullName]int32, oneofCase map[protoreflect.FullName]uint32, hasbitBytes, prefixSize uint32, requiredCount int) {
	hasbitIdx = make(map[protoreflect.FullName]int32)
	oneofCase = make(map[protoreflect.FullName]uint32)

	required := lo.Filter(infos, func(i messageFieldInfo, _ int) bool {
		return i.cat.Presence == classify.PresenceHasbit && i.field.Desc.Cardinality() == protoreflect.Required
	})
	optional := lo.Filter(infos, func(i messageFieldInfo, _ int) bool {
		return i.cat.Presence == classify.PresenceHasbit && i.field.Desc.Cardinality() != protoreflect.Required
	})
	sortByNumber(required)
	sortByNumber(optional)

	var next int32
	for _, i := range required {
		hasbitIdx[i.field.Desc.FullName()] = next
		next++
	}
	requiredCount = len(required)
	for _, i := range optional {
		hasbitIdx[i.field.Desc.FullName()] = next
		next++
	}

	hasbitBytes = (uint32(next) + 7) / 8
	casesStart := alignUp(hasbitBytes, 4)

	var caseOff uint32 = casesStart
	for _, oneof := range msg.Oneofs {
		if oneof.Desc.IsSynthetic() {
			continue // proto3 `optional` is modeled as PresenceHasbit, not a real oneof slot
		}
		oneofCase[oneof.Desc.FullName()] = caseOff
		caseOff += 4
	}

	prefixSize = caseOff
	return hasbitIdx, oneofCase, hasbitBytes, prefixSize, requiredCount
}

func sortByNumber(infos []messageFieldInfo) {
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].field.Desc.Number() < infos[j].field.Desc.Number()
	})
}

func buildSlotItems(msg *protogen.Message, infos []messageFieldInfo, width Width) []slotItem {
	var items []slotItem
	seenOneof := make(map[protoreflect.FullName]bool)

	byName := make(map[protoreflect.FullName]messageFieldInfo, len(infos))
	for _, i := range infos {
		byName[i.field.Desc.FullName()] = i
	}

	for _, f := range msg.Fields {
		info, ok := byName[f.Desc.FullName()]
		if !ok {
			continue
		}
		if info.cat.Presence == classify.PresenceOneofCase {
			oneofName := f.Desc.ContainingOneof().FullName()
			if seenOneof[oneofName] {
				continue
			}
			seenOneof[oneofName] = true
			items = append(items, buildOneofItem(f.Oneof, msg, byName, width))
			continue
		}
		items = append(items, slotItem{
			fields:  []*protogen.Field{f},
			align:   reprAlign(info.cat.Repr, width),
			size:    reprSize(info.cat.Repr, width),
			hot:     info.cat.Repr == classify.ReprStringView || info.cat.Repr == classify.ReprPointer,
			sortKey: int32(f.Desc.Number()),
		})
	}
	return items
}

func buildOneofItem(oneof *protogen.Oneof, _ *protogen.Message, byName map[protoreflect.FullName]messageFieldInfo, width Width) slotItem {
	item := slotItem{oneof: oneof}
	minNumber := int32(1<<31 - 1)
	for _, f := range oneof.Fields {
		info, ok := byName[f.Desc.FullName()]
		if !ok {
			continue
		}
		a := reprAlign(info.cat.Repr, width)
		s := reprSize(info.cat.Repr, width)
		if a > item.align {
			item.align = a
		}
		if s > item.size {
			item.size = s
		}
		if info.cat.Repr == classify.ReprStringView || info.cat.Repr == classify.ReprPointer {
			item.hot = true
		}
		if n := int32(f.Desc.Number()); n < minNumber {
			minNumber = n
		}
		item.fields = append(item.fields, f)
	}
	item.sortKey = minNumber
	return item
}

func extensionModeOf(msg *protogen.Message) ExtensionMode {
	if msg.Desc.Options() != nil {
		if opts, ok := msg.Desc.Options().(interface{ GetMessageSetWireFormat() bool }); ok && opts.GetMessageSetWireFormat() {
			return MessageSet
		}
	}
	if msg.Desc.ExtensionRanges().Len() > 0 {
		return Extendable
	}
	return NonExtendable
}

// computeDenseBelow finds the largest N such that the first N fields, sorted
// by number, are numbered 1..N contiguously.
func computeDenseBelow(msg *protogen.Message) int {
	numbers := make([]int, 0, len(msg.Fields))
	for _, f := range msg.Fields {
		numbers = append(numbers, int(f.Desc.Number()))
	}
	sort.Ints(numbers)
	n := 0
	for i, v := range numbers {
		if v == i+1 {
			n = i + 1
		} else {
			break
		}
	}
	return n
}
