package layout

import (
	"encoding/binary"
	"math"
)

// Field is a decoded field slot.
type Field struct {
	Type  FieldType
	Int   int64
	Float float64
	// Data aliases the arena for strings and blobs. Strings include their
	// trailing NUL. Valid until the next mutation of the directory.
	Data []byte
}

// PutNull sets the field at (row, col) to NULL.
func (d *Directory) PutNull(row, col uint32) error {
	slot, err := d.fieldSlot(row, col)
	if err != nil {
		return err
	}
	b := d.a.Bytes()[slot : slot+FieldSlotSize]
	clear(b)
	return nil
}

// PutInt64 stores an integer inline.
func (d *Directory) PutInt64(row, col uint32, v int64) error {
	slot, err := d.fieldSlot(row, col)
	if err != nil {
		return err
	}
	b := d.a.Bytes()[slot : slot+FieldSlotSize]
	binary.LittleEndian.PutUint32(b, uint32(FieldInteger))
	binary.LittleEndian.PutUint64(b[4:], uint64(v))
	return nil
}

// PutFloat64 stores a double inline.
func (d *Directory) PutFloat64(row, col uint32, v float64) error {
	slot, err := d.fieldSlot(row, col)
	if err != nil {
		return err
	}
	b := d.a.Bytes()[slot : slot+FieldSlotSize]
	binary.LittleEndian.PutUint32(b, uint32(FieldFloat))
	binary.LittleEndian.PutUint64(b[4:], math.Float64bits(v))
	return nil
}

// PutString copies s plus a NUL terminator into the arena.
func (d *Directory) PutString(row, col uint32, s string) error {
	if uint64(len(s))+1 > math.MaxUint32 {
		return ErrCapacityExceeded
	}
	return d.putVar(row, col, FieldString, uint32(len(s))+1, true, func(dst []byte) {
		copy(dst, s)
		dst[len(s)] = 0
	})
}

// PutBlob copies b into the arena.
func (d *Directory) PutBlob(row, col uint32, b []byte) error {
	if uint64(len(b)) > math.MaxUint32 {
		return ErrCapacityExceeded
	}
	return d.putVar(row, col, FieldBlob, uint32(len(b)), false, func(dst []byte) {
		copy(dst, b)
	})
}

// putVar allocates the payload and only then updates the slot, so a failed
// allocation leaves the slot as it was.
func (d *Directory) putVar(row, col uint32, typ FieldType, size uint32, aligned bool, fill func([]byte)) error {
	slot, err := d.fieldSlot(row, col)
	if err != nil {
		return err
	}
	off, err := d.a.Alloc(size, aligned)
	if err != nil {
		return ErrCapacityExceeded
	}
	buf := d.a.Bytes()
	fill(buf[off : off+size])

	b := buf[slot : slot+FieldSlotSize]
	binary.LittleEndian.PutUint32(b, uint32(typ))
	binary.LittleEndian.PutUint32(b[4:], off)
	binary.LittleEndian.PutUint32(b[8:], size)
	return nil
}

// Field decodes the slot at (row, col).
func (d *Directory) Field(row, col uint32) (Field, error) {
	slot, err := d.fieldSlot(row, col)
	if err != nil {
		return Field{}, err
	}
	b := d.a.Bytes()[slot : slot+FieldSlotSize]
	f := Field{Type: FieldType(binary.LittleEndian.Uint32(b))}
	switch f.Type {
	case FieldNull:
	case FieldInteger:
		f.Int = int64(binary.LittleEndian.Uint64(b[4:]))
	case FieldFloat:
		f.Float = math.Float64frombits(binary.LittleEndian.Uint64(b[4:]))
	case FieldString, FieldBlob:
		off := binary.LittleEndian.Uint32(b[4:])
		size := binary.LittleEndian.Uint32(b[8:])
		data, err := d.a.Slice(off, size)
		if err != nil {
			return Field{}, ErrCorrupt
		}
		f.Data = data
	default:
		return Field{}, ErrCorrupt
	}
	return f, nil
}
