package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	red   = color.New(color.FgRed)
	green = color.New(color.FgGreen)
	cyan  = color.New(color.FgCyan)
	bold  = color.New(color.Bold)
)

func initColors(noColor bool) {
	if noColor {
		color.NoColor = true
	}
}

type ui struct {
	out io.Writer
	err io.Writer
}

func newUI(out, err io.Writer) *ui {
	return &ui{out: out, err: err}
}

func (u *ui) Label(text string) string {
	return bold.Sprint(text)
}

func (u *ui) Println(a ...any) {
	_, _ = fmt.Fprintln(u.out, a...)
}

func (u *ui) Successf(format string, args ...any) {
	_, _ = green.Fprintf(u.out, "✓ "+format+"\n", args...)
}

func (u *ui) Failf(format string, args ...any) {
	_, _ = red.Fprintf(u.out, "✗ "+format+"\n", args...)
}

func (u *ui) Infof(format string, args ...any) {
	_, _ = cyan.Fprintf(u.out, format+"\n", args...)
}

func (u *ui) Errorf(format string, args ...any) {
	_, _ = red.Fprintf(u.err, "Error: "+format+"\n", args...)
}
