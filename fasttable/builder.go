package fasttable

import (
	"sort"

	"google.golang.org/protobuf/compiler/protogen"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/upb-gen/protoc-gen-upb/classify"
	"github.com/upb-gen/protoc-gen-upb/layout"
)

// GenericSymbol is the decoder symbol placed in every unoccupied slot so the
// table can be probed without a presence check.
const GenericSymbol = "_upb_FastDecoder_DecodeGeneric"

// MaxSlots is the largest fast-table size.
const MaxSlots = 32

// Entry is one placed (or sentinel) fast-table row.
type Entry struct {
	Slot   int
	Symbol string
	Data   DataWord
}

// SkipReason explains why an eligible-looking field did not get a fast-table
// entry.
type SkipReason string

const (
	SkipMap            SkipReason = "map field"
	SkipOpenEnum       SkipReason = "open enum field"
	SkipExtension      SkipReason = "extension field"
	SkipTagTooWide     SkipReason = "tag exceeds two varint bytes"
	SkipUnknownType    SkipReason = "no decoder mnemonic for type"
	SkipOverflow       SkipReason = "packed field overflows its bit width"
	SkipSlotLost       SkipReason = "slot already claimed by a hotter field"
)

// Skipped records one field that was considered and rejected.
type Skipped struct {
	Field  string
	Reason SkipReason
}

// Table is one message's fast dispatch table.
type Table struct {
	Entries []Entry // len(Entries) == Size; empty when disabled
	Size    int     // power of two <= MaxSlots, 0 when disabled
	Mask    uint32  // (Size-1)<<3, or 0xFF when disabled
	Skipped []Skipped
}

// Disabled is the zero-entry sentinel mask used when a message has no placed
// fast-table entries at all.
const Disabled uint32 = 0xFF

// candidate is an eligible field plus everything needed to pack and
// place its entry.
type candidate struct {
	field       *layout.FieldLayout
	isRequired  bool
	fieldNumber int32
	tag         uint32
	tagByte0    byte
	tagWidth    int
	symbol      string
	data        DataWord
}

// HotnessLess orders two fields contending for the same fast-table slot.
// Ascending field number is the default tie-break; Builder accepts an
// override of this comparator so the profile package can substitute a
// frequency-driven order without touching placement logic.
type HotnessLess func(aRequired, bRequired bool, aNumber, bNumber int32) bool

// DefaultHotness is the default comparator: required fields first,
// then ascending field number.
func DefaultHotness(aRequired, bRequired bool, aNumber, bNumber int32) bool {
	if aRequired != bRequired {
		return aRequired
	}
	return aNumber < bNumber
}

// Build selects and packs fast-table entries for one message's platform
// layout and places them in a power-of-two table keyed by tag-byte slot, per
// FastTableBuilder. fileOf resolves whether a referenced sub-message lives
// in the same file as msg; pass nil to always treat sub-messages as cross-
// file.
func Build(ml *layout.MessageLayout, fileOf *layout.FileLayout, hotness HotnessLess) *Table {
	if hotness == nil {
		hotness = DefaultHotness
	}

	var cands []candidate
	var skipped []Skipped

	for i := range ml.Fields {
		fl := &ml.Fields[i]
		c, reason, ok := eligible(ml, fl, fileOf)
		if !ok {
			skipped = append(skipped, Skipped{Field: string(fl.Field.Desc.FullName()), Reason: reason})
			continue
		}
		cands = append(cands, c)
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return hotness(cands[i].isRequired, cands[j].isRequired, cands[i].fieldNumber, cands[j].fieldNumber)
	})

	bySlot := make(map[int]candidate)
	maxSlot := -1
	for _, c := range cands {
		slot := int((c.tagByte0 & 0xF8) >> 3)
		if _, taken := bySlot[slot]; taken {
			skipped = append(skipped, Skipped{
				Field:  string(c.field.Field.Desc.FullName()),
				Reason: SkipSlotLost,
			})
			continue
		}
		bySlot[slot] = c
		if slot > maxSlot {
			maxSlot = slot
		}
	}

	if len(bySlot) == 0 {
		return &Table{Mask: Disabled, Skipped: skipped}
	}

	size := 1
	for size <= maxSlot {
		size <<= 1
	}
	if size > MaxSlots {
		size = MaxSlots
	}

	entries := make([]Entry, size)
	for slot := 0; slot < size; slot++ {
		if c, ok := bySlot[slot]; ok {
			entries[slot] = Entry{Slot: slot, Symbol: c.symbol, Data: c.data}
			continue
		}
		entries[slot] = Entry{Slot: slot, Symbol: GenericSymbol, Data: DataWord(0)}
	}

	return &Table{
		Entries: entries,
		Size:    size,
		Mask:    uint32(size-1) << 3,
		Skipped: skipped,
	}
}

func eligible(ml *layout.MessageLayout, fl *layout.FieldLayout, fileOf *layout.FileLayout) (candidate, SkipReason, bool) {
	d := fl.Field.Desc

	if fl.Category.Extension {
		return candidate{}, SkipExtension, false
	}
	if fl.Category.Mode == classify.ModeMap {
		return candidate{}, SkipMap, false
	}
	if d.Kind() == protoreflect.EnumKind && fl.Field.Enum != nil && !isClosedEnumField(fl.Field) {
		return candidate{}, SkipOpenEnum, false
	}

	tag := EncodeTag(int32(d.Number()), int(fl.Category.WireType))
	width := tagWidthBytes(tag)
	if width == 0 {
		return candidate{}, SkipTagTooWide, false
	}

	card := cardinalityOf(fl.Category)
	ceiling := CeilMax
	if d.Kind() == protoreflect.MessageKind || d.Kind() == protoreflect.GroupKind {
		if fl.Field.Message != nil && fileOf != nil && sameFile(fl.Field.Message, ml) {
			if sub := fileOf.ByDescriptor(fl.Field.Message.Desc); sub != nil {
				subLayout := sub.L64
				if ml.Width == layout.Width32 {
					subLayout = sub.L32
				}
				ceiling = ChooseSizeCeiling(subLayout.Size)
			}
		}
	}

	mnemonic, ok := typeMnemonic(fl.Category.DescriptorType, ceiling)
	if !ok {
		return candidate{}, SkipUnknownType, false
	}

	symbol := DecoderSymbol(card, mnemonic, width)

	var presence, caseOffset uint32
	isRequired := d.Cardinality() == protoreflect.Required
	switch fl.Category.Presence {
	case classify.PresenceHasbit:
		if fl.Presence < 0 || uint32(fl.Presence) > MaxHasbit {
			return candidate{}, SkipOverflow, false
		}
		presence = uint32(fl.Presence)
	case classify.PresenceOneofCase:
		if d.Number() > MaxOneofNumber {
			return candidate{}, SkipOverflow, false
		}
		presence = uint32(d.Number())
		caseOffset = fl.CaseOffset()
		if caseOffset > MaxCaseOffset {
			return candidate{}, SkipOverflow, false
		}
	default:
		presence = 0
	}

	submsgIndex := uint32(0)
	if fl.SubMsgIndex != layout.NoSub {
		if fl.SubMsgIndex > MaxSubMsgIndex {
			return candidate{}, SkipOverflow, false
		}
		submsgIndex = uint32(fl.SubMsgIndex)
	}
	if fl.Offset > MaxOffset {
		return candidate{}, SkipOverflow, false
	}

	data := NewDataWord(fl.Offset, caseOffset, presence, submsgIndex, tag)

	return candidate{
		field:       fl,
		isRequired:  isRequired,
		fieldNumber: int32(d.Number()),
		tag:         tag,
		tagByte0:    tagByte0(tag),
		tagWidth:    width,
		symbol:      symbol,
		data:        data,
	}, "", true
}

func cardinalityOf(cat classify.Category) Cardinality {
	switch {
	case cat.Presence == classify.PresenceOneofCase:
		return CardOneof
	case cat.Mode == classify.ModeArray && cat.Packed:
		return CardPacked
	case cat.Mode == classify.ModeArray:
		return CardRepeated
	default:
		return CardScalar
	}
}

// isClosedEnumField mirrors layout's private isClosedEnum: classic proto2
// enums are closed, proto3 enums are open.
func isClosedEnumField(f *protogen.Field) bool {
	return f.Enum.Desc.Syntax() == protoreflect.Proto2
}

// sameFile reports whether sub is declared in the same.proto file as the
// message owning ml, the condition under which the size-ceiling fast path is
// safe.
func sameFile(sub *protogen.Message, ml *layout.MessageLayout) bool {
	return sub.Desc.ParentFile().Path() == ml.Message.Desc.ParentFile().Path()
}

// tagByte0 returns the first varint-encoded byte of tag, the byte the fast
// table actually dispatches on.
func tagByte0(tag uint32) byte {
	if tag <= 0x7F {
		return byte(tag)
	}
	return byte(tag&0x7F) | 0x80
}

