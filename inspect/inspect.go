// Package inspect provides an interactive terminal browser for
// compiled-code objects: header fields, literal pool and disassembly,
// with one entry per function in the compiled tree.
package inspect

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/picojs/picojs/bytecode"
	"github.com/picojs/picojs/lit"
)

// Inspector is the text user interface for browsing compiled code.
type Inspector struct {
	App   *tview.Application
	Store *lit.Store

	FunctionList *tview.List
	HeaderView   *tview.TextView
	LiteralView  *tview.TextView
	CodeView     *tview.TextView

	functions []*bytecode.CompiledCode
	titles    []string
}

// NewInspector builds the interface for one compiled-code tree.
func NewInspector(code *bytecode.CompiledCode, store *lit.Store) *Inspector {
	ins := &Inspector{
		App:   tview.NewApplication(),
		Store: store,
	}
	ins.collect(code, "script")
	ins.buildLayout()
	return ins
}

// collect flattens the compiled tree into the function list.
func (ins *Inspector) collect(code *bytecode.CompiledCode, title string) {
	ins.functions = append(ins.functions, code)
	ins.titles = append(ins.titles, title)
	for i, fn := range code.Functions {
		ins.collect(fn, fmt.Sprintf("%s/fn#%d", title, i))
	}
}

func (ins *Inspector) buildLayout() {
	ins.FunctionList = tview.NewList().ShowSecondaryText(false)
	ins.FunctionList.SetBorder(true).SetTitle(" Functions ")

	ins.HeaderView = tview.NewTextView().SetDynamicColors(true)
	ins.HeaderView.SetBorder(true).SetTitle(" Header ")

	ins.LiteralView = tview.NewTextView().SetDynamicColors(true)
	ins.LiteralView.SetBorder(true).SetTitle(" Literals ")

	ins.CodeView = tview.NewTextView().SetDynamicColors(true)
	ins.CodeView.SetBorder(true).SetTitle(" Byte Code ")

	for _, title := range ins.titles {
		ins.FunctionList.AddItem(title, "", 0, nil)
	}
	ins.FunctionList.SetChangedFunc(func(index int, _ string, _ string, _ rune) {
		ins.showFunction(index)
	})

	rightPanel := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ins.HeaderView, 9, 0, false).
		AddItem(ins.LiteralView, 0, 1, false).
		AddItem(ins.CodeView, 0, 2, false)

	layout := tview.NewFlex().
		AddItem(ins.FunctionList, 30, 0, true).
		AddItem(rightPanel, 0, 1, false)

	ins.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEscape:
			ins.App.Stop()
			return nil
		case tcell.KeyRune:
			if event.Rune() == 'q' {
				ins.App.Stop()
				return nil
			}
		}
		return event
	})

	ins.App.SetRoot(layout, true)
	ins.showFunction(0)
}

// showFunction fills the panels for the selected function.
func (ins *Inspector) showFunction(index int) {
	if index < 0 || index >= len(ins.functions) {
		return
	}
	code := ins.functions[index]

	var header strings.Builder
	fmt.Fprintf(&header, "[yellow]stack limit:[-]        %d\n", code.StackLimit)
	fmt.Fprintf(&header, "[yellow]argument end:[-]       %d\n", code.ArgumentEnd)
	fmt.Fprintf(&header, "[yellow]register end:[-]       %d\n", code.RegisterEnd)
	fmt.Fprintf(&header, "[yellow]ident end:[-]          %d\n", code.IdentEnd)
	fmt.Fprintf(&header, "[yellow]const literal end:[-]  %d\n", code.ConstLiteralEnd)
	fmt.Fprintf(&header, "[yellow]literal end:[-]        %d\n", code.LiteralEnd)
	encoding := "small"
	if code.FullLiteralEncoding() {
		encoding = "full"
	}
	strict := ""
	if code.IsStrict() {
		strict = ", strict"
	}
	fmt.Fprintf(&header, "[yellow]flags:[-]              %s%s\n", encoding, strict)
	fmt.Fprintf(&header, "[yellow]code size:[-]          %d bytes\n", len(code.Code))
	ins.HeaderView.SetText(header.String())

	ins.LiteralView.SetText(formatLiterals(code, ins.Store))
	ins.CodeView.SetText(formatCode(code))
}

// formatLiterals renders the literal pool one entry per line.
func formatLiterals(code *bytecode.CompiledCode, store *lit.Store) string {
	var sb strings.Builder
	for i, value := range code.LiteralPool {
		group := literalGroup(code, uint16(i))
		switch value.Tag() {
		case bytecode.TagString:
			record := store.Decompress(value.CP())
			fmt.Fprintf(&sb, "%3d [green]%-6s[-] %q\n", i, group, string(record.ToUTF8(nil)))
		case bytecode.TagNumber:
			record := store.Decompress(value.CP())
			fmt.Fprintf(&sb, "%3d [green]%-6s[-] %s\n", i, group, lit.NumberToUTF8(record.Number()))
		case bytecode.TagFunction:
			fmt.Fprintf(&sb, "%3d [green]%-6s[-] function#%d\n", i, group, value.FunctionIndex())
		default:
			fmt.Fprintf(&sb, "%3d [green]%-6s[-] undefined\n", i, group)
		}
	}
	return sb.String()
}

func literalGroup(code *bytecode.CompiledCode, index uint16) string {
	switch {
	case index < code.ArgumentEnd:
		return "arg"
	case index < code.RegisterEnd:
		return "reg"
	case index < code.IdentEnd:
		return "ident"
	case index < code.ConstLiteralEnd:
		return "const"
	default:
		return "lit"
	}
}

// formatCode renders the disassembly one instruction per line.
func formatCode(code *bytecode.CompiledCode) string {
	var sb strings.Builder
	for pos := 0; pos < len(code.Code); {
		in, err := code.DecodeInstruction(pos)
		if err != nil {
			fmt.Fprintf(&sb, "[red]%4d : %v[-]\n", pos, err)
			break
		}
		fmt.Fprintf(&sb, "%4d : [aqua]%s[-]", in.Offset, in.Name())
		if in.Flags&bytecode.FlagLiteralArg != 0 {
			fmt.Fprintf(&sb, " lit:%d", in.Literal)
		}
		if in.Flags&bytecode.FlagLiteralArg2 != 0 {
			fmt.Fprintf(&sb, " lit:%d", in.Literal2)
		}
		if in.Flags&bytecode.FlagBranchArg == 0 && in.Flags&bytecode.FlagByteArg != 0 {
			fmt.Fprintf(&sb, " byte:%d", in.ByteArg)
		}
		if in.IsBranch() {
			fmt.Fprintf(&sb, " [fuchsia]->%d[-]", in.Target())
		}
		sb.WriteByte('\n')
		pos += in.Size
	}
	return sb.String()
}

// Run starts the interface and blocks until the user quits.
func (ins *Inspector) Run() error {
	return ins.App.Run()
}
