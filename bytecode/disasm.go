package bytecode

import (
	"fmt"
	"strings"

	"github.com/picojs/picojs/lit"
)

// literalGroup returns the annotation for a literal index based on the
// group it falls into.
func (c *CompiledCode) literalGroup(index uint16) string {
	switch {
	case index < c.ArgumentEnd:
		return "arg"
	case index < c.RegisterEnd:
		return "reg"
	case index < c.IdentEnd:
		return "ident"
	case index < c.ConstLiteralEnd:
		return "const"
	default:
		return "lit"
	}
}

// formatLiteral renders one literal pool entry for display.
func (c *CompiledCode) formatLiteral(store *lit.Store, index uint16) string {
	group := c.literalGroup(index)
	if int(index) >= len(c.LiteralPool) {
		return fmt.Sprintf("idx:%d(%s)", index, group)
	}
	value := c.LiteralPool[index]
	switch value.Tag() {
	case TagString:
		r := store.Decompress(value.CP())
		return fmt.Sprintf("idx:%d(%s)->%q", index, group, string(r.ToUTF8(nil)))
	case TagNumber:
		r := store.Decompress(value.CP())
		return fmt.Sprintf("idx:%d(%s)->%s", index, group, string(lit.NumberToUTF8(r.Number())))
	case TagFunction:
		return fmt.Sprintf("idx:%d(%s)->function#%d", index, group, value.FunctionIndex())
	default:
		return fmt.Sprintf("idx:%d(%s)->undefined", index, group)
	}
}

// Disassemble renders the compiled-code object as text: the header
// fields, the literal pool, and one line per instruction with decoded
// arguments. Nested functions are appended after the outer code.
func Disassemble(c *CompiledCode, store *lit.Store) string {
	var sb strings.Builder
	disassemble(&sb, c, store, "script")
	return sb.String()
}

func disassemble(sb *strings.Builder, c *CompiledCode, store *lit.Store, title string) {
	fmt.Fprintf(sb, "; %s\n", title)
	fmt.Fprintf(sb, "  stack limit: %d\n", c.StackLimit)

	flags := make([]string, 0, 2)
	if c.FullLiteralEncoding() {
		flags = append(flags, "full_lit_enc")
	} else {
		flags = append(flags, "small_lit_enc")
	}
	if c.IsStrict() {
		flags = append(flags, "strict_mode")
	}
	fmt.Fprintf(sb, "  flags: [%s]\n", strings.Join(flags, ","))
	fmt.Fprintf(sb, "  argument range end: %d\n", c.ArgumentEnd)
	fmt.Fprintf(sb, "  register range end: %d\n", c.RegisterEnd)
	fmt.Fprintf(sb, "  identifier range end: %d\n", c.IdentEnd)
	fmt.Fprintf(sb, "  const literal range end: %d\n", c.ConstLiteralEnd)
	fmt.Fprintf(sb, "  literal range end: %d\n", c.LiteralEnd)

	if len(c.LiteralPool) > 0 {
		fmt.Fprintf(sb, "  literals:\n")
		for i := range c.LiteralPool {
			fmt.Fprintf(sb, "    %s\n", c.formatLiteral(store, uint16(i)))
		}
	}

	fmt.Fprintf(sb, "  code:\n")
	for pos := 0; pos < len(c.Code); {
		in, err := c.DecodeInstruction(pos)
		if err != nil {
			fmt.Fprintf(sb, " %4d : <%v>\n", pos, err)
			break
		}
		fmt.Fprintf(sb, " %4d : %s", in.Offset, in.Name())

		if in.Flags&FlagLiteralArg != 0 {
			fmt.Fprintf(sb, " %s", c.formatLiteral(store, in.Literal))
		}
		if in.Flags&FlagLiteralArg2 != 0 {
			fmt.Fprintf(sb, " %s", c.formatLiteral(store, in.Literal2))
		}
		for _, init := range in.InitLiterals {
			fmt.Fprintf(sb, " %s", c.formatLiteral(store, init))
		}
		if in.Flags&FlagBranchArg == 0 && in.Flags&FlagByteArg != 0 {
			fmt.Fprintf(sb, " byte_arg:%d", in.ByteArg)
		}
		if in.IsBranch() {
			fmt.Fprintf(sb, " offset:%d(->%d)", in.BranchOffset, in.Target())
		}
		sb.WriteByte('\n')
		pos += in.Size
	}

	for i, fn := range c.Functions {
		sb.WriteByte('\n')
		disassemble(sb, fn, store, fmt.Sprintf("%s function#%d", title, i))
	}
}
