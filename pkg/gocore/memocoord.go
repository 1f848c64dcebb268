package pkg

import "os"

// MemoMode selects how a Coordinator resolves the memo file
// associated with a table.
type MemoMode int

const (
	// MemoModeAuto opens the default memo file if present, otherwise
	// proceeds without one; memo field access only fails if it is
	// actually attempted.
	MemoModeAuto MemoMode = iota
	// MemoModeRequired opens (or creates) the default memo file and
	// fails AttachMemo itself if that is not possible.
	MemoModeRequired
	// MemoModeDisabled never opens a memo file, even if one exists;
	// resolving a non-empty memo reference or writing memo text fails
	// with ErrMemoFileRequired, while an empty reference still resolves
	// to the empty string.
	MemoModeDisabled
)

// Coordinator binds a Table to its MemoFile (if any) and translates
// memo field values between the table's raw pointer encoding and
// memo content. It holds no reference back into any registry; a
// Coordinator is only ever reachable through the handles a caller
// already holds.
type Coordinator struct {
	Table *Table
	Memo  *MemoFile
	mode  MemoMode
}

// AttachMemo resolves the memo file for table according to mode. If
// table has no memo-kind fields, the coordinator never touches memo
// files regardless of mode.
func AttachMemo(table *Table, mode MemoMode, blockSize uint16, dialect MemoDialect) (*Coordinator, error) {
	c := &Coordinator{Table: table, mode: mode}
	if !table.HasMemoFields() || mode == MemoModeDisabled {
		return c, nil
	}
	path := table.DefaultMemoPath()
	mf, err := OpenMemoFile(path, dialect)
	if err != nil {
		if os.IsNotExist(errCause(err)) {
			if mode == MemoModeRequired {
				mf, err = CreateMemoFile(path, blockSize, dialect)
				if err != nil {
					return nil, err
				}
				c.Memo = mf
				return c, nil
			}
			return c, nil // auto mode: proceed without a memo file
		}
		return nil, err
	}
	c.Memo = mf
	return c, nil
}

// errCause unwraps to the underlying error os.IsNotExist can inspect.
func errCause(err error) error {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if u, ok := err.(unwrapper); ok {
			err = u.Unwrap()
			continue
		}
		break
	}
	return err
}

// Close closes the memo file if one is attached.
func (c *Coordinator) Close() error {
	if c.Memo != nil {
		return c.Memo.Close()
	}
	return nil
}

// ResolveMemoText decodes the memo field value v (as produced by
// DecodeField for a KindMemo field) into its referenced text content.
func (c *Coordinator) ResolveMemoText(v Value) (string, error) {
	if v.Kind != KindMemo {
		return "", newErr(ErrInvalidFieldDescriptor, "value is not a memo field")
	}
	if v.MemoRef.IsZero() {
		return "", nil
	}
	if c.Memo == nil {
		return "", newErr(ErrMemoFileRequired, "table has memo fields but no memo file is attached (mode=%d)", c.mode)
	}
	content, err := c.Memo.ReadMemo(v.MemoRef)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// WriteMemoText stores text in the attached memo file and returns the
// Value a caller should encode into the table's memo field slot.
func (c *Coordinator) WriteMemoText(text string) (Value, error) {
	if c.Memo == nil {
		return Value{}, newErr(ErrMemoFileRequired, "table has memo fields but no memo file is attached (mode=%d)", c.mode)
	}
	ref, err := c.Memo.WriteMemo([]byte(text))
	if err != nil {
		return Value{}, err
	}
	return Value{Kind: KindMemo, MemoRef: ref}, nil
}
